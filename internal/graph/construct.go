package graph

import "marketscreener/internal/domain"

// newBase builds the shared bookkeeping fields every constructor needs.
func newBase(id string, inputs []string) base {
	return base{id: id, inputs: inputs}
}

// NewSource constructs a source node reading from table.
func NewSource(id, table, timeColumn string) *SourceNode {
	return &SourceNode{base: newBase(id, nil), Table: table, TimeColumn: timeColumn}
}

// NewProjection constructs a projection node over inputs (typically one
// source or join id) with the given columns.
func NewProjection(id string, inputs []string, columns []ProjectionColumn) *ProjectionNode {
	return &ProjectionNode{base: newBase(id, inputs), Columns: columns}
}

// NewExpression constructs an expression node wrapping expr, with inputs
// in operand/target order.
func NewExpression(id string, inputs []string, expr domain.Expression) *ExpressionNode {
	return &ExpressionNode{base: newBase(id, inputs), Expr: expr}
}

// NewFilter constructs a simple filter node. inputs must list every
// distinct node id either side's Input references.
func NewFilter(id string, inputs []string, left ConditionSide, op domain.FilterOp, right ConditionSide) *FilterNode {
	return &FilterNode{base: newBase(id, inputs), Left: left, Op: op, Right: right}
}

// NewCompositeFilter constructs a composite filter node over inputs
// (child filter/composite-filter ids).
func NewCompositeFilter(id string, inputs []string, operator domain.CompositeOp) *CompositeFilterNode {
	return &CompositeFilterNode{base: newBase(id, inputs), Operator: operator}
}

// NewSort constructs a sort node from criteria; inputs lists the
// deduplicated referenced expression node ids.
func NewSort(id string, inputs []string, criteria []SortCriterionRef) *SortNode {
	return &SortNode{base: newBase(id, inputs), Criteria: criteria}
}

// NewLimit constructs a limit node, optionally with zero or one input.
func NewLimit(id string, inputs []string, limit, offset int, isGrouped bool, groupDimension string) *LimitNode {
	return &LimitNode{
		base: newBase(id, inputs), Limit: limit, Offset: offset,
		IsGrouped: isGrouped, GroupDimension: groupDimension,
	}
}

// NewJoin constructs a join node over every source input, with pairwise
// join conditions.
func NewJoin(id string, inputs []string, joinType JoinType, conditions []JoinCondition) *JoinNode {
	return &JoinNode{base: newBase(id, inputs), JoinType: joinType, Conditions: conditions}
}
