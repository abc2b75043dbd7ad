package optimize

import (
	"marketscreener/internal/graph"
)

// inlineParameters implements pass 2 (spec §4.4.2). Both sides of a
// filter condition are treated symmetrically — each becomes a parameter
// placeholder iff its own Input matches the parameter node id — which by
// construction avoids the asymmetric-overwrite bug spec §9 flags in the
// reference implementation. The parameter's already-resolved placeholder
// text lives on the ExpressionNode itself (set at IR build time), so this
// pass needs nothing from the params.Table.
func inlineParameters(g *graph.Graph) {
	for _, n := range g.Nodes() {
		e, ok := n.(*graph.ExpressionNode)
		if !ok || !e.IsParameter {
			continue
		}
		paramID := e.ID()
		placeholder := e.Value

		for _, dep := range g.FindDependents(paramID) {
			switch v := dep.(type) {
			case *graph.FilterNode:
				if v.Left.Input == paramID {
					v.Left = graph.ConditionSide{Parameter: placeholder}
				}
				if v.Right.Input == paramID {
					v.Right = graph.ConditionSide{Parameter: placeholder}
				}
			case *graph.SortNode:
				for i := range v.Criteria {
					if !v.Criteria[i].IsLiteral && v.Criteria[i].Expression == paramID {
						v.Criteria[i].Expression = placeholder
						v.Criteria[i].IsLiteral = true
					}
				}
			}
			dep.SetInputs(removeID(dep.Inputs(), paramID))
			dep.Metadata()["hasParameter"] = true
		}

		g.RemoveNode(paramID)
	}
}

func removeID(ids []string, target string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
