// Package sqlplan turns an optimized compute graph into ClickHouse SQL
// text: it partitions the graph into CTEs, decides WHERE vs QUALIFY
// placement for predicates, and assembles PREWHERE/WHERE/QUALIFY/GROUP
// BY/ORDER BY/LIMIT clauses around a main SELECT (spec §4.5, §4.6).
package sqlplan

import (
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
)

// frag is one node's rendered SQL: an unaliased value expression plus
// the alias it should be projected or referenced as.
type frag struct {
	sql      string
	alias    string
	isWindow bool
}

func coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// isComputedExpr reports whether n is a Math or Aggregate expression node
// — the two kinds that get referenced by alias from a filter/sort scope
// rather than inlined as a bare column.
func isComputedExpr(n graph.Node) bool {
	e, ok := n.(*graph.ExpressionNode)
	if !ok {
		return false
	}
	switch e.Expr.(type) {
	case *domain.Math, *domain.Aggregate:
		return true
	default:
		return false
	}
}
