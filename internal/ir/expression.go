package ir

import (
	"fmt"
	"strings"

	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
)

// lowerExpression dispatches on the concrete Expression variant and
// returns the id of the node it lowered to, plus the resolved
// metric/alias name a filter condition side should carry when it
// references this expression.
func (b *Builder) lowerExpression(e domain.Expression) (nodeID string, metric string, err error) {
	switch v := e.(type) {
	case *domain.Metric:
		return b.lowerMetricExpr(v, false)
	case *domain.Constant:
		id, err := b.lowerConstant(v, "")
		return id, "", err
	case *domain.Math:
		return b.lowerMath(v)
	case *domain.Aggregate:
		return b.lowerAggregate(v)
	default:
		return "", "", fmt.Errorf("ir: unrecognized expression type %T", e)
	}
}

// lowerMetricExpr resolves m against the config and emits a single-column
// projection off the metric's table. isGrouping marks the resulting
// column as a grouping dimension (spec §4.2's "plain dimension" case
// reuses this path).
func (b *Builder) lowerMetricExpr(m *domain.Metric, isGrouping bool) (nodeID string, metric string, err error) {
	mapping, ok := b.cfg.ResolveMetric(m.Metric)
	if !ok {
		return "", "", domain.ErrUnknownMetric(m.Metric)
	}
	srcID := b.findOrCreateSource(mapping.Table)

	alias := m.Alias
	if alias == "" && m.Metric != mapping.Column {
		alias = m.Metric
	}

	col := graph.ProjectionColumn{
		Name:       mapping.Column,
		Alias:      alias,
		Table:      mapping.Table,
		SourceNode: srcID,
		IsGrouping: isGrouping,
	}
	id := b.g.NextID(graph.KindProjection)
	b.g.AddNode(graph.NewProjection(id, []string{srcID}, []graph.ProjectionColumn{col}))

	if m.Filter != nil {
		if _, err := b.lowerFilterNode(m.Filter, []string{id}); err != nil {
			return "", "", err
		}
	}

	resolved := alias
	if resolved == "" {
		resolved = m.Metric
	}
	return id, resolved, nil
}

// lowerConstant allocates a parameter slot (or inlines a literal) for c
// and emits an expression node carrying the resulting SQL text. op is
// the enclosing filter operator, used only to decide LIKE-wrapping; pass
// "" outside of a filter's value position.
func (b *Builder) lowerConstant(c *domain.Constant, op domain.FilterOp) (string, error) {
	text, err := b.params.Create(c, op)
	if err != nil {
		return "", err
	}
	id := b.g.NextID(graph.KindExpression)
	node := graph.NewExpression(id, nil, c)
	node.Value = text
	node.IsParameter = constantIsParameter(c)
	node.Metadata()["isParameter"] = node.IsParameter
	b.g.AddNode(node)
	return id, nil
}

// constantIsParameter reports whether c's params.Table.Create call
// allocated a real placeholder slot rather than inlining a literal
// (spec §4.7: numbers, booleans, and empty arrays inline; strings,
// including the empty string, and non-empty arrays parameterize).
func constantIsParameter(c *domain.Constant) bool {
	switch c.Kind {
	case domain.ConstString:
		return true
	case domain.ConstStringList:
		return len(c.StrList) > 0
	case domain.ConstNumberList:
		return len(c.NumList) > 0
	default:
		return false
	}
}

func (b *Builder) lowerMath(m *domain.Math) (string, string, error) {
	operandIDs := make([]string, 0, len(m.Operands))
	for _, operand := range m.Operands {
		id, _, err := b.lowerExpression(operand)
		if err != nil {
			return "", "", err
		}
		operandIDs = append(operandIDs, id)
	}
	id := b.g.NextID(graph.KindExpression)
	node := graph.NewExpression(id, operandIDs, m)
	node.Alias = m.Alias
	b.g.AddNode(node)
	return id, m.Alias, nil
}

func (b *Builder) lowerAggregate(a *domain.Aggregate) (string, string, error) {
	targetID, targetMetric, err := b.lowerExpression(a.Target)
	if err != nil {
		return "", "", err
	}

	inputs := []string{targetID}
	lowered := *a
	if a.Filter != nil {
		filterID, err := b.lowerFilterNode(a.Filter, []string{targetID})
		if err != nil {
			return "", "", err
		}
		inputs = append(inputs, filterID)
		lowered.Filter = nil
	}

	alias := a.Alias
	if alias == "" {
		alias = generateAggregateAlias(a.Aggregation, targetMetric, a.TimeRange)
	}
	lowered.Alias = alias

	id := b.g.NextID(graph.KindExpression)
	node := graph.NewExpression(id, inputs, &lowered)
	node.Alias = alias
	b.g.AddNode(node)
	return id, alias, nil
}

// generateAggregateAlias builds a default alias of the form
// "<aggregation>_<target>[_<timeRange>]", truncated to 65 characters —
// the SQL identifier length the diagram and CTE planner both assume is
// safe to echo back verbatim.
func generateAggregateAlias(agg domain.Aggregation, target string, tr domain.TimeRange) string {
	parts := []string{string(agg)}
	if target != "" {
		parts = append(parts, target)
	}
	if suffix := timeRangeAliasSuffix(tr); suffix != "" {
		parts = append(parts, suffix)
	}
	alias := strings.Join(parts, "_")
	if len(alias) > 65 {
		alias = alias[:65]
	}
	return alias
}

func timeRangeAliasSuffix(tr domain.TimeRange) string {
	switch v := tr.(type) {
	case *domain.RelativeRange:
		return fmt.Sprintf("%d%s", v.Duration, unitAbbrev(v.Unit))
	case *domain.TradingRange:
		return fmt.Sprintf("%dt%s", v.Duration, unitAbbrev(v.Unit))
	case *domain.AbsoluteRange:
		return fmt.Sprintf("%dto%d", v.From, v.To)
	default:
		return ""
	}
}

func unitAbbrev(u domain.TimeUnit) string {
	switch u {
	case domain.UnitSecond:
		return "s"
	case domain.UnitMinute:
		return "m"
	case domain.UnitHour:
		return "h"
	case domain.UnitDay:
		return "d"
	case domain.UnitWeek:
		return "w"
	case domain.UnitMonth:
		return "mo"
	case domain.UnitYear:
		return "y"
	default:
		return string(u)
	}
}
