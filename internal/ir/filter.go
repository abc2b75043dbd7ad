package ir

import (
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
)

// lowerFilterNode lowers f, wiring extraInputs (a caller-owned dependency
// such as the projection an inline metric filter narrows) into the
// resulting node's Inputs so join inference and the required-columns
// pass still see the dependency even though nothing else references it.
func (b *Builder) lowerFilterNode(f domain.Filter, extraInputs []string) (string, error) {
	switch v := f.(type) {
	case *domain.SimpleFilter:
		return b.lowerSimpleFilter(v, extraInputs)
	case *domain.CompositeFilter:
		return b.lowerCompositeFilter(v, extraInputs)
	default:
		return "", domain.ErrValidation("ir: unrecognized filter type %T", f)
	}
}

func (b *Builder) lowerSimpleFilter(f *domain.SimpleFilter, extraInputs []string) (string, error) {
	targetID, targetMetric, err := b.lowerExpression(f.Target)
	if err != nil {
		return "", err
	}

	var right graph.ConditionSide
	var rightID string
	if c, ok := f.Value.(*domain.Constant); ok {
		id, err := b.lowerConstant(c, f.Op)
		if err != nil {
			return "", err
		}
		rightID = id
		right = graph.ConditionSide{Input: id}
	} else {
		id, metric, err := b.lowerExpression(f.Value)
		if err != nil {
			return "", err
		}
		rightID = id
		right = graph.ConditionSide{Input: id, Metric: metric}
	}

	left := graph.ConditionSide{Input: targetID, Metric: targetMetric}

	inputs := dedupeStrings(append([]string{targetID, rightID}, extraInputs...))
	id := b.g.NextID(graph.KindFilter)
	b.g.AddNode(graph.NewFilter(id, inputs, left, f.Op, right))
	return id, nil
}

func (b *Builder) lowerCompositeFilter(f *domain.CompositeFilter, extraInputs []string) (string, error) {
	childIDs := make([]string, 0, len(f.Filters))
	for _, child := range f.Filters {
		id, err := b.lowerFilterNode(child, nil)
		if err != nil {
			return "", err
		}
		childIDs = append(childIDs, id)
	}
	inputs := dedupeStrings(append(childIDs, extraInputs...))
	id := b.g.NextID(graph.KindCompositeFilter)
	b.g.AddNode(graph.NewCompositeFilter(id, inputs, f.Operator))
	return id, nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
