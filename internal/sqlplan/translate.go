package sqlplan

import (
	"fmt"
	"strings"

	"marketscreener/internal/config"
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
)

// translator renders graph nodes to SQL fragments, memoizing by node id
// so a node referenced from more than one place (e.g. a metric used both
// in a projection and a filter) is only reasoned about once.
type translator struct {
	g         *graph.Graph
	cfg       *config.Config
	multiSrc  bool
	cache     map[string]frag
	whereOnce map[string]bool
	extraDate []string // deduped date predicates aggregates contribute to WHERE
}

func newTranslator(g *graph.Graph, cfg *config.Config, multiSrc bool) *translator {
	return &translator{
		g:         g,
		cfg:       cfg,
		multiSrc:  multiSrc,
		cache:     make(map[string]frag),
		whereOnce: make(map[string]bool),
	}
}

func (tr *translator) render(nodeID string) frag {
	if f, ok := tr.cache[nodeID]; ok {
		return f
	}
	n, ok := tr.g.Get(nodeID)
	if !ok {
		return frag{}
	}
	var f frag
	switch v := n.(type) {
	case *graph.ProjectionNode:
		f = tr.renderProjectionAsOperand(v)
	case *graph.ExpressionNode:
		f = tr.renderExpression(v)
	default:
		f = frag{sql: nodeID}
	}
	tr.cache[nodeID] = f
	return f
}

// renderProjectionAsOperand renders a projection's first column as a bare
// value expression, for use as a Math/Aggregate operand. Any further
// columns are not rendered; the builder and the required-columns pass
// only create single-column projections.
func (tr *translator) renderProjectionAsOperand(p *graph.ProjectionNode) frag {
	if len(p.Columns) == 0 {
		return frag{}
	}
	c := p.Columns[0]
	col := tr.qualifiedColumn(c)
	return frag{sql: col, alias: coalesce(c.Alias, c.Name)}
}

func (tr *translator) qualifiedColumn(c graph.ProjectionColumn) string {
	if tr.multiSrc && c.Table != "" {
		return c.Table + "." + c.Name
	}
	return c.Name
}

func (tr *translator) renderExpression(e *graph.ExpressionNode) frag {
	switch v := e.Expr.(type) {
	case *domain.Constant:
		return frag{sql: e.Value, alias: e.Alias}
	case *domain.Math:
		return tr.renderMath(e, v)
	case *domain.Aggregate:
		return tr.renderAggregate(e, v)
	default:
		return frag{}
	}
}

func (tr *translator) renderMath(e *graph.ExpressionNode, m *domain.Math) frag {
	operands := make([]string, 0, len(e.Inputs()))
	window := false
	for _, id := range e.Inputs() {
		of := tr.render(id)
		operands = append(operands, tr.operandText(id, of))
		window = window || of.isWindow
	}

	var sql string
	switch m.Operator {
	case domain.MathSqrt:
		sql = fmt.Sprintf("sqrt(%s)", operands[0])
	case domain.MathAbs:
		sql = fmt.Sprintf("abs(%s)", operands[0])
	case domain.MathLn:
		sql = fmt.Sprintf("ln(%s)", operands[0])
	case domain.MathLog10:
		sql = fmt.Sprintf("log10(%s)", operands[0])
	default:
		sym := mathSymbol(m.Operator)
		sql = "(" + strings.Join(operands, " "+sym+" ") + ")"
	}

	return frag{sql: sql, alias: m.Alias, isWindow: window}
}

func mathSymbol(op domain.MathOperator) string {
	switch op {
	case domain.MathAdd:
		return "+"
	case domain.MathSub:
		return "-"
	case domain.MathMul:
		return "*"
	case domain.MathDiv:
		return "/"
	case domain.MathPow:
		return "^"
	case domain.MathMod:
		return "%"
	case domain.MathEq:
		return "="
	case domain.MathNeq:
		return "!="
	case domain.MathGt:
		return ">"
	case domain.MathGte:
		return ">="
	case domain.MathLt:
		return "<"
	case domain.MathLte:
		return "<="
	default:
		return string(op)
	}
}

// operandText resolves how a node should read when used as an operand:
// a computed (math/aggregate) node is referenced by alias once it has
// one, everything else is inlined verbatim.
func (tr *translator) operandText(nodeID string, f frag) string {
	if n, ok := tr.g.Get(nodeID); ok && isComputedExpr(n) && f.alias != "" {
		return f.alias
	}
	return f.sql
}

func (tr *translator) renderAggregate(e *graph.ExpressionNode, a *domain.Aggregate) frag {
	targetID := e.Inputs()[0]
	targetFrag := tr.render(targetID)
	col := targetFrag.sql

	table, _ := tr.originTable(targetID)
	pk, timeCol := tr.pkAndTimeColumn(table)

	sql := aggregateWindowSQL(a.Aggregation, col, pk, timeCol, a.TimeRange, a.Params)

	if pred := dateRangePredicate(timeCol, a.TimeRange); pred != "" && !tr.whereOnce[pred] {
		tr.whereOnce[pred] = true
		tr.extraDate = append(tr.extraDate, pred)
	}

	return frag{sql: sql, alias: a.Alias, isWindow: a.TimeRange != nil}
}

// originTable walks the transitive dependency closure of nodeID looking
// for the projection it ultimately reads from, so window functions know
// which table's primary key and time column to partition/order by.
func (tr *translator) originTable(nodeID string) (string, bool) {
	seen := map[string]bool{}
	var visit func(string) (string, bool)
	visit = func(id string) (string, bool) {
		if seen[id] {
			return "", false
		}
		seen[id] = true
		n, ok := tr.g.Get(id)
		if !ok {
			return "", false
		}
		if p, ok := n.(*graph.ProjectionNode); ok {
			for _, c := range p.Columns {
				if c.Table != "" {
					return c.Table, true
				}
			}
		}
		for _, in := range n.Inputs() {
			if t, ok := visit(in); ok {
				return t, ok
			}
		}
		return "", false
	}
	return visit(nodeID)
}

func (tr *translator) pkAndTimeColumn(table string) (pk, timeCol string) {
	t, ok := tr.cfg.Table(table)
	if !ok {
		return "", ""
	}
	if len(t.PrimaryKeys) > 0 {
		pk = t.PrimaryKeys[0]
	}
	timeCol = t.TimeColumn
	if timeCol == "" {
		timeCol = "date"
	}
	return pk, timeCol
}
