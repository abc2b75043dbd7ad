package ir

import (
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
)

// lowerSortBy lowers the query-level sort_by list to a single sort node.
// Each criterion's expression is lowered independently (an expression
// referenced by both sort_by and, say, group_by ends up as two distinct
// graph nodes here — the dedup-projections optimizer pass collapses
// structurally identical ones later).
func (b *Builder) lowerSortBy(criteria []domain.SortCriterion) (string, error) {
	exprIDs := make([]string, 0, len(criteria))
	refs := make([]graph.SortCriterionRef, 0, len(criteria))
	seen := make(map[string]bool, len(criteria))

	for _, sc := range criteria {
		id, _, err := b.lowerExpression(sc.Expression)
		if err != nil {
			return "", err
		}
		refs = append(refs, graph.SortCriterionRef{Expression: id, Direction: sc.Direction})
		if !seen[id] {
			seen[id] = true
			exprIDs = append(exprIDs, id)
		}
	}

	id := b.g.NextID(graph.KindSort)
	b.g.AddNode(graph.NewSort(id, exprIDs, refs))
	return id, nil
}
