package optimize

import (
	"reflect"

	"marketscreener/internal/config"
	"marketscreener/internal/graph"
)

// crossTablePrune implements the cross-table prune risky rewrite
// (spec §4.4.6). It fires only when exactly two source tables remain,
// one of them is "tickers", every projection off "tickers" projects only
// the ticker column, and every filter consuming those projections
// references only the ticker metric — in that shape the join is
// redundant, since ticker also lives on the other table.
func crossTablePrune(g *graph.Graph, _ *config.Config) {
	sources := g.Sources()
	if len(sources) != 2 {
		return
	}
	var tickersSrc, otherSrc *graph.SourceNode
	for _, s := range sources {
		if s.Table == "tickers" {
			tickersSrc = s
		} else {
			otherSrc = s
		}
	}
	if tickersSrc == nil || otherSrc == nil {
		return
	}

	var tickerProjs []*graph.ProjectionNode
	for _, n := range g.Nodes() {
		p, ok := n.(*graph.ProjectionNode)
		if !ok {
			continue
		}
		for _, c := range p.Columns {
			if c.Table != tickersSrc.Table {
				continue
			}
			if c.Name != "ticker" {
				return // a non-ticker column off tickers rules out the prune
			}
			tickerProjs = append(tickerProjs, p)
		}
	}
	if len(tickerProjs) == 0 {
		return
	}

	tickerProjSet := make(map[string]bool, len(tickerProjs))
	for _, p := range tickerProjs {
		tickerProjSet[p.ID()] = true
	}
	for _, n := range g.Nodes() {
		f, ok := n.(*graph.FilterNode)
		if !ok {
			continue
		}
		if tickerProjSet[f.Left.Input] && f.Left.Metric != "" && f.Left.Metric != "ticker" {
			return
		}
		if tickerProjSet[f.Right.Input] && f.Right.Metric != "" && f.Right.Metric != "ticker" {
			return
		}
	}

	var joinID string
	for _, n := range g.Nodes() {
		if _, ok := n.(*graph.JoinNode); ok {
			joinID = n.ID()
		}
	}

	newProjID := g.NextID(graph.KindProjection)
	newProj := graph.NewProjection(newProjID, []string{otherSrc.ID()}, []graph.ProjectionColumn{
		{Name: "ticker", Table: otherSrc.Table, SourceNode: otherSrc.ID()},
	})
	g.AddNode(newProj)

	for _, p := range tickerProjs {
		g.ReplaceNodeID(p.ID(), newProjID, "", newProjID)
		g.RemoveNode(p.ID())
	}
	if joinID != "" {
		g.ReplaceNodeID(joinID, otherSrc.ID(), "", otherSrc.ID())
		g.RemoveNode(joinID)
	}
	g.RemoveNode(tickersSrc.ID())
}

// removeDuplicateFilters implements the duplicate-filter-removal risky
// rewrite (spec §4.4.6): among filters whose inputs are all projections,
// collapse any two with identical (ordered) input lists and identical
// metadata.
func removeDuplicateFilters(g *graph.Graph) {
	var kept []*graph.FilterNode
	for _, n := range g.Nodes() {
		f, ok := n.(*graph.FilterNode)
		if !ok || !allInputsAreProjections(g, f) {
			continue
		}
		if dup := findDuplicateFilter(g, kept, f); dup != nil {
			g.ReplaceNodeID(f.ID(), dup.ID(), "", dup.ID())
			g.RemoveNode(f.ID())
			continue
		}
		kept = append(kept, f)
	}
}

func allInputsAreProjections(g *graph.Graph, f *graph.FilterNode) bool {
	for _, id := range f.Inputs() {
		n, ok := g.Get(id)
		if !ok {
			return false
		}
		if _, ok := n.(*graph.ProjectionNode); !ok {
			return false
		}
	}
	return true
}

func findDuplicateFilter(g *graph.Graph, kept []*graph.FilterNode, f *graph.FilterNode) *graph.FilterNode {
	for _, k := range kept {
		if !sameStrings(k.Inputs(), f.Inputs()) {
			continue
		}
		if !reflect.DeepEqual(k.Metadata(), f.Metadata()) {
			continue
		}
		return k
	}
	return nil
}
