package sqlplan

import (
	"strings"

	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
)

// windowTokens are the SQL fragments that mark a predicate as touching a
// window-function result even when it wasn't reached through an aliased
// reference (spec §4.6: "or the SQL contains an inline window function
// token").
var windowTokens = []string{"last_value", "first_value", "avg(", "sum(", "min(", "max(", "count("}

// renderFilter translates a filter/composite-filter node to a predicate
// string plus whether it touches a window-function alias (and so belongs
// in QUALIFY rather than WHERE).
func (tr *translator) renderFilter(nodeID string) (sql string, touchesWindow bool) {
	n, ok := tr.g.Get(nodeID)
	if !ok {
		return "", false
	}
	switch f := n.(type) {
	case *graph.FilterNode:
		left, leftWindow := tr.renderSide(f.Left)
		right, rightWindow := tr.renderSide(f.Right)
		sql := left + " " + sqlOp(f.Op) + " " + right
		return sql, leftWindow || rightWindow || containsWindowToken(sql)
	case *graph.CompositeFilterNode:
		var parts []string
		anyWindow := false
		for _, childID := range f.Inputs() {
			childSQL, w := tr.renderFilter(childID)
			if childSQL == "" {
				continue
			}
			parts = append(parts, childSQL)
			anyWindow = anyWindow || w
		}
		if len(parts) == 0 {
			return "", false
		}
		switch f.Operator {
		case domain.CompositeNot:
			return "NOT (" + parts[0] + ")", anyWindow
		case domain.CompositeOr:
			return "(" + strings.Join(parts, " OR ") + ")", anyWindow
		default:
			return "(" + strings.Join(parts, " AND ") + ")", anyWindow
		}
	default:
		return "", false
	}
}

func (tr *translator) renderSide(side graph.ConditionSide) (string, bool) {
	if side.Parameter != "" {
		return side.Parameter, false
	}
	if side.Inline != nil {
		return "", false
	}
	if side.Input == "" {
		return "", false
	}
	f := tr.render(side.Input)
	n, _ := tr.g.Get(side.Input)
	if isComputedExpr(n) {
		// A Math target has no auto-generated alias (unlike Aggregate),
		// so an unaliased side must still fall back to its rendered
		// expression rather than collapsing to "".
		return coalesce(side.Metric, f.alias, f.sql), f.isWindow
	}
	if side.Metric != "" {
		return side.Metric, f.isWindow
	}
	return f.sql, f.isWindow
}

func containsWindowToken(sql string) bool {
	for _, tok := range windowTokens {
		if strings.Contains(sql, tok) {
			return true
		}
	}
	return false
}

func sqlOp(op domain.FilterOp) string {
	switch op {
	case domain.OpEq:
		return "="
	case domain.OpNeq:
		return "!="
	case domain.OpGt:
		return ">"
	case domain.OpGte:
		return ">="
	case domain.OpLt:
		return "<"
	case domain.OpLte:
		return "<="
	case domain.OpIn:
		return "IN"
	case domain.OpNin:
		return "NOT IN"
	case domain.OpContains:
		return "LIKE"
	case domain.OpNcontains:
		return "NOT LIKE"
	default:
		return "="
	}
}
