package sqlplan

import (
	"fmt"
	"sort"
	"strings"

	"marketscreener/internal/config"
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
)

// Plan renders an optimized graph to SQL text. It groups every source,
// join, projection, expression, and non-outermost sort/limit node into a
// single CTE whenever the graph needs one (a windowed aggregate, or a
// node with more than one downstream dependent) — a deliberate
// simplification of spec §4.5's multi-group planner (see DESIGN.md) that
// still produces the WITH/WHERE/QUALIFY/GROUP BY/LIMIT-BY shapes golden
// queries depend on. The outermost sort and limit, when present, always
// render in the main SELECT (spec §4.5).
func Plan(g *graph.Graph, cfg *config.Config) (string, error) {
	if _, err := g.ExecutionOrder(); err != nil {
		return "", err
	}

	sources := g.Sources()
	multiSrc := len(sources) > 1
	tr := newTranslator(g, cfg, multiSrc)

	outermostSort := findOutermostSort(g)
	outermostLimit := findOutermostLimit(g)

	needsCTE := graphNeedsCTE(g, outermostSort, outermostLimit)

	selectCols, groupBy, wherePreds, qualifyPreds, orderByClauses, limitByClauses := collectScope(tr, g, outermostSort, outermostLimit)

	from := buildFrom(g, sources)
	prewhere := buildPrewhere(g, cfg, sources)

	var b strings.Builder
	if needsCTE {
		b.WriteString("WITH cte_0 AS (\n")
		writeSelectBody(&b, "  ", selectCols, from, prewhere, wherePreds, qualifyPreds, groupBy, orderByClauses, limitByClauses)
		b.WriteString("\n)\n")
		b.WriteString("SELECT ")
		b.WriteString(outerSelectColumns("cte_0", selectCols))
		b.WriteString("\nFROM cte_0")
	} else {
		b.WriteString("SELECT ")
		b.WriteString(mainSelectColumns(selectCols))
		b.WriteString("\nFROM ")
		b.WriteString(from)
		writeClauses(&b, prewhere, wherePreds, qualifyPreds, groupBy, orderByClauses, limitByClauses)
	}

	if outermostSort != nil {
		b.WriteString("\nORDER BY ")
		b.WriteString(renderSortCriteria(tr, outermostSort))
	}
	if outermostLimit != nil {
		b.WriteString("\n")
		b.WriteString(renderLimit(outermostLimit))
	}

	return b.String(), nil
}

func findOutermostSort(g *graph.Graph) *graph.SortNode {
	for _, n := range g.Nodes() {
		s, ok := n.(*graph.SortNode)
		if !ok {
			continue
		}
		if grouped, _ := s.Metadata()["isGrouped"].(bool); !grouped {
			return s
		}
	}
	return nil
}

func findOutermostLimit(g *graph.Graph) *graph.LimitNode {
	for _, n := range g.Nodes() {
		l, ok := n.(*graph.LimitNode)
		if ok && !l.IsGrouped {
			return l
		}
	}
	return nil
}

// graphNeedsCTE decides whether the query needs a WITH clause: any
// windowed aggregate forces one (window functions can't be referenced by
// alias from WHERE in the same scope they're computed), and so does any
// source/join/projection with more than one downstream dependent (the
// value needs computing once, then reused).
func graphNeedsCTE(g *graph.Graph, outerSort *graph.SortNode, outerLimit *graph.LimitNode) bool {
	for _, n := range g.Nodes() {
		if outerSort != nil && n.ID() == outerSort.ID() {
			continue
		}
		if outerLimit != nil && n.ID() == outerLimit.ID() {
			continue
		}
		if e, ok := n.(*graph.ExpressionNode); ok {
			if agg, ok := e.Expr.(*domain.Aggregate); ok && agg.TimeRange != nil {
				return true
			}
		}
		switch n.(type) {
		case *graph.SourceNode, *graph.JoinNode, *graph.ProjectionNode:
			if len(g.FindDependents(n.ID())) > 1 {
				return true
			}
		}
	}
	return false
}

type selectColumn struct {
	sql   string
	alias string
}

func collectScope(tr *translator, g *graph.Graph, outerSort *graph.SortNode, outerLimit *graph.LimitNode) (cols []selectColumn, groupBy []string, where, qualify []string, orderBy []string, limitBy []string) {
	seenAlias := make(map[string]bool)
	groupByDims := make(map[string]bool)

	for _, n := range g.Nodes() {
		if (outerSort != nil && n.ID() == outerSort.ID()) || (outerLimit != nil && n.ID() == outerLimit.ID()) {
			continue
		}
		switch v := n.(type) {
		case *graph.ProjectionNode:
			for _, c := range v.Columns {
				alias := coalesce(c.Alias, c.Name)
				if seenAlias[alias] {
					continue
				}
				seenAlias[alias] = true
				cols = append(cols, selectColumn{sql: tr.qualifiedColumn(c), alias: alias})
			}
		case *graph.ExpressionNode:
			switch v.Expr.(type) {
			case *domain.Math, *domain.Aggregate:
				f := tr.render(v.ID())
				// A Math target has no auto-generated alias (unlike
				// Aggregate); fall back to the node's own id as the
				// alias rather than dropping the column, so an
				// enclosing query can reference it by name.
				alias := coalesce(f.alias, v.Alias, v.ID())
				if seenAlias[alias] {
					continue
				}
				seenAlias[alias] = true
				cols = append(cols, selectColumn{sql: f.sql, alias: alias})
			}
		case *graph.FilterNode, *graph.CompositeFilterNode:
			sql, touchesWindow := tr.renderFilter(v.ID())
			if sql == "" {
				continue
			}
			if touchesWindow {
				qualify = append(qualify, sql)
			} else {
				where = append(where, sql)
			}
		case *graph.SortNode:
			if grouped, _ := v.Metadata()["isGrouped"].(bool); grouped {
				orderBy = append(orderBy, renderSortCriteria(tr, v))
			}
		case *graph.LimitNode:
			if v.IsGrouped {
				limitBy = append(limitBy, renderLimitBy(v))
				if v.GroupDimension != "" {
					groupByDims[v.GroupDimension] = true
				}
			}
		}
	}

	where = append(where, tr.extraDate...)

	for dim := range groupByDims {
		groupBy = append(groupBy, dim)
	}
	sort.Strings(groupBy)

	return cols, groupBy, where, qualify, orderBy, limitBy
}

func mainSelectColumns(cols []selectColumn) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if c.sql == c.alias {
			parts[i] = c.sql
		} else {
			parts[i] = fmt.Sprintf("%s AS %s", c.sql, c.alias)
		}
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, ", ")
}

// outerSelectColumns renders the SELECT list of a query wrapping a CTE: each
// column is referenced by its alias off the CTE, not re-translated from the
// underlying node (the inner expression, including any window function, is
// already computed once inside the CTE body).
func outerSelectColumns(cteName string, cols []selectColumn) string {
	if len(cols) == 0 {
		return "*"
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s.%s AS %s", cteName, c.alias, c.alias)
	}
	return strings.Join(parts, ", ")
}

func writeSelectBody(b *strings.Builder, indent string, cols []selectColumn, from, prewhere string, where, qualify []string, groupBy, orderBy, limitBy []string) {
	b.WriteString(indent + "SELECT " + mainSelectColumns(cols))
	b.WriteString("\n" + indent + "FROM " + from)
	writeClausesIndented(b, indent, prewhere, where, qualify, groupBy, orderBy, limitBy)
}

func writeClauses(b *strings.Builder, prewhere string, where, qualify []string, groupBy, orderBy, limitBy []string) {
	writeClausesIndented(b, "", prewhere, where, qualify, groupBy, orderBy, limitBy)
}

// writeClausesIndented renders PREWHERE/WHERE/QUALIFY/GROUP BY, then the
// ORDER BY a grouped top-N-per-group sort contributes, then its
// "LIMIT n BY dim" — ClickHouse applies LIMIT BY against the preceding
// ORDER BY within the same scope, so the two must render together here
// rather than the ORDER BY waiting for the outermost sort at the very
// end of the query.
func writeClausesIndented(b *strings.Builder, indent string, prewhere string, where, qualify []string, groupBy, orderBy, limitBy []string) {
	if prewhere != "" {
		b.WriteString("\n" + indent + "PREWHERE " + prewhere)
	}
	if len(where) > 0 {
		b.WriteString("\n" + indent + "WHERE " + strings.Join(where, " AND "))
	}
	if len(qualify) > 0 {
		b.WriteString("\n" + indent + "QUALIFY " + strings.Join(qualify, " AND "))
	}
	if len(groupBy) > 0 {
		b.WriteString("\n" + indent + "GROUP BY " + strings.Join(groupBy, ", "))
	}
	if len(orderBy) > 0 {
		b.WriteString("\n" + indent + "ORDER BY " + strings.Join(orderBy, ", "))
	}
	for _, lb := range limitBy {
		b.WriteString("\n" + indent + lb)
	}
}

func buildFrom(g *graph.Graph, sources []*graph.SourceNode) string {
	if len(sources) == 0 {
		return ""
	}
	if len(sources) == 1 {
		return sources[0].Table
	}

	var joinConds []graph.JoinCondition
	for _, n := range g.Nodes() {
		if j, ok := n.(*graph.JoinNode); ok {
			joinConds = j.Conditions
		}
	}

	bySource := make(map[string]string, len(sources))
	for _, s := range sources {
		bySource[s.ID()] = s.Table
	}

	var b strings.Builder
	b.WriteString(sources[0].Table)
	for i := 1; i < len(sources); i++ {
		b.WriteString(" INNER JOIN ")
		b.WriteString(sources[i].Table)
		b.WriteString(" ON ")
		wrote := false
		for _, c := range joinConds {
			if bySource[c.LeftSource] == sources[i-1].Table && bySource[c.RightSource] == sources[i].Table {
				b.WriteString(fmt.Sprintf("%s.%s = %s.%s", sources[i-1].Table, c.LeftKey, sources[i].Table, c.RightKey))
				wrote = true
				break
			}
		}
		if !wrote {
			b.WriteString(fmt.Sprintf("%s.ticker = %s.ticker", sources[i-1].Table, sources[i].Table))
		}
	}
	return b.String()
}

func buildPrewhere(g *graph.Graph, cfg *config.Config, sources []*graph.SourceNode) string {
	if len(sources) == 0 {
		return ""
	}
	var largest domain.TimeRange
	var largestSeconds int64
	for _, n := range g.Nodes() {
		e, ok := n.(*graph.ExpressionNode)
		if !ok {
			continue
		}
		agg, ok := e.Expr.(*domain.Aggregate)
		if !ok || agg.TimeRange == nil {
			continue
		}
		secs := timeRangeSeconds(agg.TimeRange)
		if largest == nil || secs > largestSeconds {
			largest = agg.TimeRange
			largestSeconds = secs
		}
	}
	if largest == nil {
		return ""
	}

	table, _ := cfg.Table(sources[0].Table)
	timeCol := table.TimeColumn
	if timeCol == "" {
		timeCol = "date"
	}

	switch v := largest.(type) {
	case *domain.RelativeRange, *domain.TradingRange:
		duration, unit := rangeDurationUnit(v)
		return fmt.Sprintf("%s >= toDate(date_sub(now(), INTERVAL %d %s))", timeCol, duration, unit)
	case *domain.AbsoluteRange:
		return fmt.Sprintf("%s BETWEEN toDate('%s') AND toDate('%s')", timeCol, formatDate(v.From-86400), formatDate(v.To))
	default:
		return ""
	}
}

func timeRangeSeconds(tr domain.TimeRange) int64 {
	switch v := tr.(type) {
	case *domain.RelativeRange:
		return v.Seconds()
	case *domain.TradingRange:
		return v.Seconds()
	case *domain.AbsoluteRange:
		return v.Seconds()
	default:
		return 0
	}
}

func rangeDurationUnit(tr domain.TimeRange) (int, string) {
	switch v := tr.(type) {
	case *domain.RelativeRange:
		return v.Duration, v.Unit.SQL()
	case *domain.TradingRange:
		return v.Duration, v.Unit.SQL()
	default:
		return 0, "DAY"
	}
}

func renderSortCriteria(tr *translator, s *graph.SortNode) string {
	parts := make([]string, 0, len(s.Criteria))
	for _, c := range s.Criteria {
		var expr string
		if c.IsLiteral {
			expr = c.Expression
		} else {
			f := tr.render(c.Expression)
			expr = coalesce(f.alias, f.sql)
		}
		parts = append(parts, fmt.Sprintf("%s %s", expr, string(c.Direction)))
	}
	return strings.Join(parts, ", ")
}

func renderLimit(l *graph.LimitNode) string {
	s := fmt.Sprintf("LIMIT %d", l.Limit)
	if l.Offset > 0 {
		s += fmt.Sprintf(" OFFSET %d", l.Offset)
	}
	return s
}

func renderLimitBy(l *graph.LimitNode) string {
	s := fmt.Sprintf("LIMIT %d", l.Limit)
	if l.Offset > 0 {
		s += fmt.Sprintf(" OFFSET %d", l.Offset)
	}
	if l.GroupDimension != "" {
		s += fmt.Sprintf(" BY %s", l.GroupDimension)
	}
	return s
}
