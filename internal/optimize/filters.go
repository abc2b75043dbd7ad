package optimize

import (
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
)

// mergeFilters implements pass 3 (spec §4.4.3). Filter and
// composite-filter nodes that share an identical sorted input-id list —
// meaning they constrain the same underlying value(s) — are merged into
// one fresh AND composite over the originals.
func mergeFilters(g *graph.Graph) {
	groups := make(map[string][]graph.Node)
	var order []string
	for _, n := range g.Nodes() {
		if n.Kind() != graph.KindFilter && n.Kind() != graph.KindCompositeFilter {
			continue
		}
		key := sortedJoin(n.Inputs())
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], n)
	}

	for _, key := range order {
		nodes := groups[key]
		if len(nodes) < 2 {
			continue
		}
		childIDs := make([]string, len(nodes))
		for i, n := range nodes {
			childIDs[i] = n.ID()
		}
		compID := g.NextID(graph.KindCompositeFilter)
		comp := graph.NewCompositeFilter(compID, childIDs, domain.CompositeAnd)
		g.AddNode(comp)

		for _, n := range nodes {
			g.ReplaceNodeID(n.ID(), compID, "", compID)
		}
	}
}

// removeUselessComposites implements pass 4 (spec §4.4.4): a composite
// filter with exactly one child is a degenerate and/or that adds nothing
// — splice it out and let its dependents consume the child directly.
// Runs to a fixed point since splicing one composite can expose another.
func removeUselessComposites(g *graph.Graph) {
	for {
		changed := false
		for _, n := range g.Nodes() {
			cf, ok := n.(*graph.CompositeFilterNode)
			if !ok || len(cf.Inputs()) != 1 {
				continue
			}
			child := cf.Inputs()[0]
			g.ReplaceNodeID(cf.ID(), child, "", child)
			g.RemoveNode(cf.ID())
			changed = true
			break
		}
		if !changed {
			return
		}
	}
}

// dedupProjectionExpressions implements pass 5 (spec §4.4.5): an
// expression node with exactly one input (a private projection) and
// exactly one dependent is a candidate to collapse into an earlier
// structurally-equal expression, taking its private projection with it.
func dedupProjectionExpressions(g *graph.Graph) {
	var seen []*graph.ExpressionNode
	for _, n := range g.Nodes() {
		e, ok := n.(*graph.ExpressionNode)
		if !ok || len(e.Inputs()) != 1 {
			continue
		}
		projID := e.Inputs()[0]
		projNode, ok := g.Get(projID)
		if !ok {
			continue
		}
		if _, ok := projNode.(*graph.ProjectionNode); !ok {
			continue
		}
		if len(g.FindDependents(e.ID())) != 1 {
			continue
		}

		var match *graph.ExpressionNode
		for _, s := range seen {
			if s.Alias == e.Alias && structurallyEqual(s.Expr, e.Expr) {
				match = s
				break
			}
		}
		if match == nil {
			seen = append(seen, e)
			continue
		}

		g.ReplaceNodeID(e.ID(), match.ID(), "", match.ID())
		g.RemoveNode(e.ID())
		if len(g.FindDependents(projID)) == 0 {
			g.RemoveNode(projID)
		}
	}
}
