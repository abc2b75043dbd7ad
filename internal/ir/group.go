package ir

import (
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
)

// lowerGroupCriterion lowers one group_by entry. A plain dimension lowers
// to a single grouping-marked projection column. A complex
// {dimension, limit, expression?} criterion additionally lowers an
// ordering expression (defaulting to the dimension itself), a sort node
// tagged with the grouping metadata, and a limit node consuming it — the
// "top N per group" shape (spec §4.2).
func (b *Builder) lowerGroupCriterion(gc domain.GroupCriterion) error {
	if _, ok := b.cfg.ResolveMetric(gc.Dimension); !ok {
		return domain.ErrGroupingDimensionNotFound(gc.Dimension)
	}

	dimID, _, err := b.lowerMetricExpr(&domain.Metric{Metric: gc.Dimension}, true)
	if err != nil {
		return err
	}

	if !gc.IsGrouped() {
		return nil
	}

	orderExprID := dimID
	if gc.Expression != nil {
		id, _, err := b.lowerExpression(gc.Expression)
		if err != nil {
			return err
		}
		orderExprID = id
	}

	sortID := b.g.NextID(graph.KindSort)
	criteria := []graph.SortCriterionRef{{Expression: orderExprID, Direction: domain.SortDesc}}
	sortNode := graph.NewSort(sortID, []string{orderExprID}, criteria)
	sortNode.Metadata()["isGrouped"] = true
	sortNode.Metadata()["groupDimension"] = gc.Dimension
	sortNode.Metadata()["limit"] = gc.Limit
	b.g.AddNode(sortNode)

	limitID := b.g.NextID(graph.KindLimit)
	b.g.AddNode(graph.NewLimit(limitID, []string{sortID}, gc.Limit, 0, true, gc.Dimension))

	return nil
}
