package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscreener/internal/config"
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
	"marketscreener/internal/ir"
)

func TestBuild_SingleMetricFilterProducesSourceProjectionFilter(t *testing.T) {
	cfg := config.DefaultConfig()
	uq := &domain.UserQuery{
		ID:   "q1",
		Name: "q1",
		Filter: &domain.SimpleFilter{
			Target: &domain.Metric{Metric: "sector"},
			Op:     domain.OpEq,
			Value:  &domain.Constant{Kind: domain.ConstString, Str: "Technology"},
		},
	}

	g, params, err := ir.Build(cfg, uq)
	require.NoError(t, err)

	var sawSource, sawFilter bool
	for _, n := range g.Nodes() {
		switch v := n.(type) {
		case *graph.SourceNode:
			assert.Equal(t, "tickers", v.Table)
			sawSource = true
		case *graph.FilterNode:
			assert.Equal(t, domain.OpEq, v.Op)
			sawFilter = true
		}
	}
	assert.True(t, sawSource)
	assert.True(t, sawFilter)
	assert.Len(t, params.Names(), 1)
}

func TestBuild_UnknownMetricSurfacesError(t *testing.T) {
	cfg := config.DefaultConfig()
	uq := &domain.UserQuery{
		ID:   "q1",
		Name: "q1",
		Filter: &domain.SimpleFilter{
			Target: &domain.Metric{Metric: "nonexistent"},
			Op:     domain.OpEq,
			Value:  &domain.Constant{Kind: domain.ConstString, Str: "x"},
		},
	}

	_, _, err := ir.Build(cfg, uq)
	require.Error(t, err)
	var unknownErr *domain.UnknownMetricError
	require.ErrorAs(t, err, &unknownErr)
}

func TestBuild_MultiTableQueryInfersJoin(t *testing.T) {
	cfg := config.DefaultConfig()
	uq := &domain.UserQuery{
		ID:   "q1",
		Name: "q1",
		Filter: &domain.CompositeFilter{
			Operator: domain.CompositeAnd,
			Filters: []domain.Filter{
				&domain.SimpleFilter{
					Target: &domain.Metric{Metric: "sector"},
					Op:     domain.OpEq,
					Value:  &domain.Constant{Kind: domain.ConstString, Str: "Technology"},
				},
				&domain.SimpleFilter{
					Target: &domain.Metric{Metric: "close"},
					Op:     domain.OpGt,
					Value:  &domain.Constant{Kind: domain.ConstNumber, Number: 100},
				},
			},
		},
	}

	g, _, err := ir.Build(cfg, uq)
	require.NoError(t, err)

	var sawJoin bool
	for _, n := range g.Nodes() {
		if _, ok := n.(*graph.JoinNode); ok {
			sawJoin = true
		}
	}
	assert.True(t, sawJoin)
}

func TestBuild_LimitNodeChainsOffSort(t *testing.T) {
	cfg := config.DefaultConfig()
	limit := 25
	uq := &domain.UserQuery{
		ID:   "q1",
		Name: "q1",
		Filter: &domain.SimpleFilter{
			Target: &domain.Metric{Metric: "sector"},
			Op:     domain.OpEq,
			Value:  &domain.Constant{Kind: domain.ConstString, Str: "Technology"},
		},
		SortBy: []domain.SortCriterion{{Expression: &domain.Metric{Metric: "close"}, Direction: domain.SortDesc}},
		Limit:  &limit,
	}

	g, _, err := ir.Build(cfg, uq)
	require.NoError(t, err)

	var limitNode *graph.LimitNode
	for _, n := range g.Nodes() {
		if l, ok := n.(*graph.LimitNode); ok && !l.IsGrouped {
			limitNode = l
		}
	}
	require.NotNil(t, limitNode)
	assert.Equal(t, 25, limitNode.Limit)
	require.Len(t, limitNode.Inputs(), 1)

	sortNode, ok := g.Get(limitNode.Inputs()[0])
	require.True(t, ok)
	_, isSort := sortNode.(*graph.SortNode)
	assert.True(t, isSort)
}
