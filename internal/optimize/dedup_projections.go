package optimize

import (
	"sort"
	"strings"

	"marketscreener/internal/graph"
)

// dedupProjections implements pass 1 (spec §4.4.1). Non-required
// projections are deduplicated among themselves first, then required
// projections among themselves — a required projection is never merged
// into a non-required one, since that would risk the optimizer later
// discarding a column the required-columns pass depends on finding.
func dedupProjections(g *graph.Graph) {
	dedupProjectionGroup(g, false)
	dedupProjectionGroup(g, true)
}

func dedupProjectionGroup(g *graph.Graph, required bool) {
	var kept []*graph.ProjectionNode
	for _, n := range g.Nodes() {
		p, ok := n.(*graph.ProjectionNode)
		if !ok || isRequiredProjection(p) != required {
			continue
		}
		if dup := findDuplicateProjection(g, kept, p); dup != nil {
			g.ReplaceNodeID(p.ID(), dup.ID(), "", dup.ID())
			g.RemoveNode(p.ID())
			continue
		}
		kept = append(kept, p)
	}
}

func isRequiredProjection(p *graph.ProjectionNode) bool {
	for _, c := range p.Columns {
		if c.IsRequiredProjection {
			return true
		}
	}
	return false
}

func findDuplicateProjection(g *graph.Graph, kept []*graph.ProjectionNode, p *graph.ProjectionNode) *graph.ProjectionNode {
	pIns := sortedJoin(p.Inputs())
	pFp := projectionFingerprint(p)
	pDeps := depsSignature(g, p.ID())
	for _, k := range kept {
		if sortedJoin(k.Inputs()) != pIns {
			continue
		}
		if projectionFingerprint(k) != pFp {
			continue
		}
		if !sameStrings(depsSignature(g, k.ID()), pDeps) {
			continue
		}
		return k
	}
	return nil
}

// projectionFingerprint sorts each column's identity (name+alias, or a
// structural rendering of an inline expression) so that column order
// doesn't defeat comparison.
func projectionFingerprint(p *graph.ProjectionNode) string {
	parts := make([]string, 0, len(p.Columns))
	for _, c := range p.Columns {
		if c.Expression != nil {
			parts = append(parts, "expr:"+exprFingerprint(c.Expression)+"|"+c.Alias)
		} else {
			parts = append(parts, "col:"+c.Name+"|"+c.Alias)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}
