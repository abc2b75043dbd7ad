package domain

// Expression is the recursive tagged union of constant, metric, math, and
// aggregate expressions (spec §3). Variants carry their own fields rather
// than sharing a base struct, matching the marker-interface style the
// screener's SQL layers use throughout.
type Expression interface {
	exprNode()
}

// ConstantKind identifies the literal shape a Constant carries.
type ConstantKind int

const (
	ConstNumber ConstantKind = iota
	ConstString
	ConstBool
	ConstStringList
	ConstNumberList
	// ConstMixedList marks an array literal whose elements did not all
	// decode to the same JSON type. The compiler cannot represent it as
	// either a StrList or a NumList; params.Table rejects it with
	// MixedTypeArrayError (spec §4.7) rather than guessing a coercion.
	ConstMixedList
)

// Constant is a literal value: number, string, boolean, string list, or
// number list.
type Constant struct {
	Kind        ConstantKind
	Number      float64
	Str         string
	Bool        bool
	StrList     []string
	NumList     []float64
	MixedDetail string // human-readable description, populated only for ConstMixedList
}

func (*Constant) exprNode() {}

// Metric references a config-resolved (table, column) pair.
type Metric struct {
	Metric string
	Filter Filter // optional inline filter, nil if absent
	Alias  string
}

func (*Metric) exprNode() {}

// MathOperator enumerates the operators a Math expression may carry.
type MathOperator string

const (
	MathAdd    MathOperator = "add"
	MathSub    MathOperator = "sub"
	MathMul    MathOperator = "mul"
	MathDiv    MathOperator = "div"
	MathPow    MathOperator = "pow"
	MathMod    MathOperator = "mod"
	MathSqrt   MathOperator = "sqrt"
	MathAbs    MathOperator = "abs"
	MathLn     MathOperator = "ln"
	MathLog10  MathOperator = "log10"
	MathEq     MathOperator = "eq"
	MathNeq    MathOperator = "neq"
	MathGt     MathOperator = "gt"
	MathGte    MathOperator = "gte"
	MathLt     MathOperator = "lt"
	MathLte    MathOperator = "lte"
)

// Math is an arithmetic/comparison expression over one or more operands.
type Math struct {
	Operator MathOperator
	Operands []Expression
	Alias    string
}

func (*Math) exprNode() {}

// Aggregation enumerates the supported aggregate functions.
type Aggregation string

const (
	AggFirst      Aggregation = "first"
	AggLast       Aggregation = "last"
	AggMin        Aggregation = "min"
	AggMax        Aggregation = "max"
	AggMedian     Aggregation = "median"
	AggPercentile Aggregation = "percentile"
	AggAvg        Aggregation = "avg"
	AggSum        Aggregation = "sum"
	AggStddev     Aggregation = "stddev"
	AggCount      Aggregation = "count"
	AggVariance   Aggregation = "variance"
	AggDiff       Aggregation = "diff"
	AggDiffPct    Aggregation = "diff_pct"
	AggEma        Aggregation = "ema"
)

// Aggregate wraps a target expression (Metric, Math, or another
// Aggregate) with an aggregation function, an optional time window, and
// an optional inline filter.
type Aggregate struct {
	Target      Expression
	Aggregation Aggregation
	TimeRange   TimeRange // nil if absent
	Params      map[string]float64
	Filter      Filter // nil if absent
	Alias       string
}

func (*Aggregate) exprNode() {}
