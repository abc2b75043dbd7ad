// Package diagram renders a compute graph to a flow-diagram text (spec
// §4.8): a fixed "graph TD;" header followed by node and edge lines
// sorted for stable, diffable output.
package diagram

import (
	"fmt"
	"sort"
	"strings"

	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
)

// Render produces the diagram text for g.
func Render(g *graph.Graph) string {
	ids := renderIDs(g)

	var lines []string
	for _, n := range g.Nodes() {
		lines = append(lines, nodeLine(g, n, ids))
		for _, in := range n.Inputs() {
			lines = append(lines, fmt.Sprintf("%s --> %s", ids[in], ids[n.ID()]))
		}
	}
	sort.Strings(lines)

	var b strings.Builder
	b.WriteString("graph TD;\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	return b.String()
}

// renderIDs maps every node id to its diagram render id: a source node
// renders as its table name (suffixed _2, _3, … if the table backs more
// than one source node), everything else renders as its own id.
func renderIDs(g *graph.Graph) map[string]string {
	out := make(map[string]string)
	counts := make(map[string]int)
	for _, n := range g.Nodes() {
		s, ok := n.(*graph.SourceNode)
		if !ok {
			out[n.ID()] = n.ID()
			continue
		}
		counts[s.Table]++
		if counts[s.Table] == 1 {
			out[n.ID()] = s.Table
		} else {
			out[n.ID()] = fmt.Sprintf("%s_%d", s.Table, counts[s.Table])
		}
	}
	return out
}

func nodeLine(g *graph.Graph, n graph.Node, ids map[string]string) string {
	id := ids[n.ID()]
	switch v := n.(type) {
	case *graph.SourceNode:
		return fmt.Sprintf("%s[(%s)]", id, v.Table)
	case *graph.ProjectionNode:
		return fmt.Sprintf("%s[[%s]]", id, projectionLabel(v))
	case *graph.ExpressionNode:
		return fmt.Sprintf("%s(%s)", id, expressionLabel(v))
	case *graph.FilterNode:
		return fmt.Sprintf("%s{%s}", id, filterLabel(g, v, ids))
	case *graph.CompositeFilterNode:
		return fmt.Sprintf("%s((%s))", id, strings.ToUpper(string(v.Operator)))
	case *graph.SortNode:
		return fmt.Sprintf("%s[%s]", id, sortLabel(v))
	case *graph.LimitNode:
		return fmt.Sprintf("%s([%s])", id, limitLabel(v))
	case *graph.JoinNode:
		return fmt.Sprintf("%s{{%s}}", id, joinLabel(v, ids))
	default:
		return fmt.Sprintf("%s[%s]", id, n.Kind())
	}
}

func projectionLabel(p *graph.ProjectionNode) string {
	names := make([]string, 0, len(p.Columns))
	grouping := false
	for _, c := range p.Columns {
		if c.IsGrouping {
			grouping = true
		}
		names = append(names, coalesce(c.Alias, c.Name))
	}
	if grouping {
		return "GROUP BY\\n" + strings.Join(names, ", ")
	}
	return "Project\\n" + strings.Join(names, ", ")
}

func expressionLabel(e *graph.ExpressionNode) string {
	switch v := e.Expr.(type) {
	case *domain.Constant:
		return e.Value
	case *domain.Math:
		return string(v.Operator)
	case *domain.Aggregate:
		return string(v.Aggregation) + "\\n" + e.Alias
	default:
		return e.Alias
	}
}

func filterLabel(g *graph.Graph, f *graph.FilterNode, ids map[string]string) string {
	left := sideLabel(g, f.Left, ids)
	right := sideLabel(g, f.Right, ids)
	return fmt.Sprintf("%s %s %s", left, f.Op, right)
}

func sideLabel(g *graph.Graph, side graph.ConditionSide, ids map[string]string) string {
	if side.Parameter != "" {
		return side.Parameter
	}
	if side.Input != "" {
		if side.Metric != "" {
			return side.Metric
		}
		if n, ok := g.Get(side.Input); ok {
			return ids[n.ID()]
		}
	}
	return "?"
}

func sortLabel(s *graph.SortNode) string {
	parts := make([]string, 0, len(s.Criteria))
	for _, c := range s.Criteria {
		parts = append(parts, fmt.Sprintf("%s %s", c.Expression, c.Direction))
	}
	label := "Sort\\n" + strings.Join(parts, ", ")
	if dim, ok := s.Metadata()["groupDimension"].(string); ok && dim != "" {
		label += "\\nBY " + dim
	}
	return label
}

func limitLabel(l *graph.LimitNode) string {
	label := fmt.Sprintf("Limit %d", l.Limit)
	if l.GroupDimension != "" {
		label += " BY " + l.GroupDimension
	}
	return label
}

func joinLabel(j *graph.JoinNode, ids map[string]string) string {
	if len(j.Conditions) == 0 {
		return "Join"
	}
	c := j.Conditions[0]
	return fmt.Sprintf("Join %s with %s on %s = %s", ids[c.LeftSource], ids[c.RightSource], c.LeftKey, c.RightKey)
}

func coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
