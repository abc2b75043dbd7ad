package ir

import (
	"marketscreener/internal/config"
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
)

// RequiredColumns runs the final pass of spec §4.2: for each source node
// still in the graph, add single-column projections for the table's
// always-include columns (skipping any already projected), and, if any
// aggregate expression carrying a time range ultimately depends on this
// source, add the table's time column too. Exported because the
// optimizer re-runs it after its dedup/inline passes may have changed
// which columns are still reachable.
func RequiredColumns(g *graph.Graph, cfg *config.Config) {
	existing := existingColumns(g)

	for _, src := range g.Sources() {
		table, ok := cfg.Table(src.Table)
		if !ok {
			continue
		}
		target := effectiveTargetFor(g, src.Table, src.ID())

		for _, col := range table.AlwaysIncludeColumns {
			if existing[columnKey{src.Table, col}] {
				continue
			}
			addRequiredColumn(g, target, src.Table, col)
			existing[columnKey{src.Table, col}] = true
		}

		if table.TimeColumn != "" && !existing[columnKey{src.Table, table.TimeColumn}] {
			if sourceFeedsTimeAggregate(g, src.ID()) {
				addRequiredColumn(g, target, src.Table, table.TimeColumn)
				existing[columnKey{src.Table, table.TimeColumn}] = true
			}
		}
	}
}

type columnKey struct {
	table  string
	column string
}

func existingColumns(g *graph.Graph) map[columnKey]bool {
	out := make(map[columnKey]bool)
	for _, n := range g.Nodes() {
		p, ok := n.(*graph.ProjectionNode)
		if !ok {
			continue
		}
		for _, c := range p.Columns {
			if c.Table != "" {
				out[columnKey{c.Table, c.Name}] = true
			}
		}
	}
	return out
}

func addRequiredColumn(g *graph.Graph, target, table, column string) {
	id := g.NextID(graph.KindProjection)
	col := graph.ProjectionColumn{
		Name:                 column,
		Table:                table,
		SourceNode:           target,
		IsRequiredProjection: true,
	}
	g.AddNode(graph.NewProjection(id, []string{target}, []graph.ProjectionColumn{col}))
}

// effectiveTargetFor returns the join node id if the graph has one,
// otherwise the source's own id — join inference always folds every
// source into a single join when more than one table is present.
func effectiveTargetFor(g *graph.Graph, table, sourceID string) string {
	for _, n := range g.Nodes() {
		if _, ok := n.(*graph.JoinNode); ok {
			return n.ID()
		}
	}
	return sourceID
}

// sourceFeedsTimeAggregate reports whether any expression node wrapping
// an Aggregate with a non-nil TimeRange has sourceID in its transitive
// input closure.
func sourceFeedsTimeAggregate(g *graph.Graph, sourceID string) bool {
	for _, n := range g.Nodes() {
		expr, ok := n.(*graph.ExpressionNode)
		if !ok {
			continue
		}
		agg, ok := expr.Expr.(*domain.Aggregate)
		if !ok || agg.TimeRange == nil {
			continue
		}
		if transitiveDependencies(g, n.ID())[sourceID] {
			return true
		}
	}
	return false
}

func transitiveDependencies(g *graph.Graph, id string) map[string]bool {
	seen := make(map[string]bool)
	var visit func(string)
	visit = func(nid string) {
		if seen[nid] {
			return
		}
		seen[nid] = true
		n, ok := g.Get(nid)
		if !ok {
			return
		}
		for _, in := range n.Inputs() {
			visit(in)
		}
	}
	visit(id)
	return seen
}
