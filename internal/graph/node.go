// Package graph implements the compute graph IR: a directed acyclic graph
// of typed nodes representing one compiled query (spec §3, §4.1). Nodes
// are stored in an id-keyed map owned by the Graph and refer to each
// other only by id, never by pointer — this is what lets ReplaceNodeID
// rewrite the graph in place without aliasing hazards (spec §9).
package graph

import "marketscreener/internal/domain"

// Kind identifies a ComputeNode variant.
type Kind string

const (
	KindSource          Kind = "source"
	KindProjection      Kind = "projection"
	KindExpression      Kind = "expression"
	KindFilter          Kind = "filter"
	KindCompositeFilter Kind = "composite_filter"
	KindSort            Kind = "sort"
	KindLimit           Kind = "limit"
	KindJoin            Kind = "join"
)

// Node is the common interface every compute-node variant implements.
// Concrete types embed base for the shared bookkeeping fields and add
// their own kind-specific data.
type Node interface {
	node()
	ID() string
	Kind() Kind
	Inputs() []string
	SetInputs([]string)
	IsTerminal() bool
	SetTerminal(bool)
	Metadata() map[string]interface{}
}

type base struct {
	id       string
	inputs   []string
	terminal bool
	metadata map[string]interface{}
}

func (b *base) ID() string           { return b.id }
func (b *base) Inputs() []string     { return b.inputs }
func (b *base) SetInputs(in []string) { b.inputs = in }
func (b *base) IsTerminal() bool     { return b.terminal }
func (b *base) SetTerminal(t bool)   { b.terminal = t }
func (b *base) Metadata() map[string]interface{} {
	if b.metadata == nil {
		b.metadata = map[string]interface{}{}
	}
	return b.metadata
}

// SourceNode reads directly from a physical table.
type SourceNode struct {
	base
	Table      string
	TimeColumn string
}

func (*SourceNode) node()      {}
func (*SourceNode) Kind() Kind { return KindSource }

// ProjectionColumn is one column of a ProjectionNode: either a plain
// column reference off SourceNode, or an inline Expression to translate.
type ProjectionColumn struct {
	Name                 string
	Alias                string
	Table                string // origin table name, preserved across join-inference rewrites of SourceNode
	SourceNode           string
	Expression           domain.Expression
	IsGrouping           bool
	IsRequiredProjection bool
}

// ProjectionNode selects an ordered set of columns off a single source or
// join input.
type ProjectionNode struct {
	base
	Columns []ProjectionColumn
}

func (*ProjectionNode) node()      {}
func (*ProjectionNode) Kind() Kind { return KindProjection }

// ExpressionNode wraps a constant, math, or aggregate domain.Expression.
// Expr is retained for structural-equality comparisons (spec §9); operand
// node ids live in Inputs, in the same order as Expr's own operand list
// (for Math) or with index 0 as the lowered target (for Aggregate).
type ExpressionNode struct {
	base
	Expr        domain.Expression
	Value       string // resolved literal or {param_i: Type} placeholder, for constants
	Alias       string
	IsParameter bool
}

func (*ExpressionNode) node()      {}
func (*ExpressionNode) Kind() Kind { return KindExpression }

// ConditionSide is one side of a FilterNode's condition: exactly one of
// Input+Metric, Parameter, or Inline is populated.
type ConditionSide struct {
	Input     string
	Metric    string
	Parameter string
	Inline    domain.Expression
}

// IsInputRef reports whether this side names a graph node.
func (s ConditionSide) IsInputRef() bool { return s.Input != "" }

// FilterNode is a simple comparison between two condition sides.
type FilterNode struct {
	base
	Left  ConditionSide
	Op    domain.FilterOp
	Right ConditionSide
}

func (*FilterNode) node()      {}
func (*FilterNode) Kind() Kind { return KindFilter }

// CompositeFilterNode combines child filter/composite-filter inputs with
// a logical operator.
type CompositeFilterNode struct {
	base
	Operator domain.CompositeOp
}

func (*CompositeFilterNode) node()      {}
func (*CompositeFilterNode) Kind() Kind { return KindCompositeFilter }

// SortCriterionRef is one entry of a SortNode: Expression holds a NodeID
// until parameter inlining rewrites it to a literal placeholder string.
type SortCriterionRef struct {
	Expression string
	IsLiteral  bool
	Direction  domain.SortDirection
}

// SortNode orders rows by one or more expressions.
type SortNode struct {
	base
	Criteria []SortCriterionRef
}

func (*SortNode) node()      {}
func (*SortNode) Kind() Kind { return KindSort }

// LimitNode caps the row count, optionally per grouping dimension
// ("LIMIT n BY dim").
type LimitNode struct {
	base
	Limit          int
	Offset         int
	IsGrouped      bool
	GroupDimension string
}

func (*LimitNode) node()      {}
func (*LimitNode) Kind() Kind { return KindLimit }

// JoinType enumerates SQL join kinds. Join inference (spec §4.3) always
// produces INNER; the type exists for completeness of the node taxonomy.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
)

// JoinCondition is one pairwise equality condition of a JoinNode.
type JoinCondition struct {
	LeftSource  string
	LeftKey     string
	RightSource string
	RightKey    string
	Op          string
}

// JoinNode combines two or more source inputs.
type JoinNode struct {
	base
	JoinType   JoinType
	Conditions []JoinCondition
}

func (*JoinNode) node()      {}
func (*JoinNode) Kind() Kind { return KindJoin }
