package optimize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscreener/internal/config"
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
	"marketscreener/internal/optimize"
)

func countKind(g *graph.Graph, k graph.Kind) int {
	n := 0
	for _, node := range g.Nodes() {
		if node.Kind() == k {
			n++
		}
	}
	return n
}

func TestRun_DedupsIdenticalProjections(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.NewSource("source_1", "tickers", ""))
	col := []graph.ProjectionColumn{{Name: "sector", SourceNode: "source_1"}}
	p1 := graph.NewProjection("projection_1", []string{"source_1"}, col)
	p2 := graph.NewProjection("projection_2", []string{"source_1"}, col)
	g.AddNode(p1)
	g.AddNode(p2)
	// Each projection feeds one filter, so their dependents have the same
	// shape and the two count as duplicates.
	g.AddNode(graph.NewFilter("filter_2", []string{"projection_1"},
		graph.ConditionSide{Input: "projection_1", Metric: "sector"}, domain.OpEq,
		graph.ConditionSide{Parameter: "param_2"}))
	f := graph.NewFilter("filter_1", []string{"projection_2"},
		graph.ConditionSide{Input: "projection_2", Metric: "sector"}, domain.OpEq,
		graph.ConditionSide{Parameter: "param_1"})
	g.AddNode(f)

	require.NoError(t, optimize.Run(g, config.DefaultConfig(), false))

	assert.Equal(t, 1, countKind(g, graph.KindProjection))
	assert.Equal(t, "projection_1", f.Left.Input)
}

func TestRun_InlineParametersRewritesBothSidesSymmetrically(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.NewSource("source_1", "tickers", ""))
	proj := graph.NewProjection("projection_1", []string{"source_1"}, []graph.ProjectionColumn{
		{Name: "sector", SourceNode: "source_1"},
	})
	g.AddNode(proj)

	paramNode := graph.NewExpression("expression_1", nil, &domain.Constant{Kind: domain.ConstString, Str: "Technology"})
	paramNode.Value = "{param_1: String}"
	paramNode.IsParameter = true
	g.AddNode(paramNode)

	f := graph.NewFilter("filter_1", []string{"projection_1", "expression_1"},
		graph.ConditionSide{Input: "expression_1"}, domain.OpEq,
		graph.ConditionSide{Input: "projection_1", Metric: "sector"})
	g.AddNode(f)

	require.NoError(t, optimize.Run(g, config.DefaultConfig(), false))

	assert.Equal(t, "{param_1: String}", f.Left.Parameter)
	assert.Equal(t, "", f.Left.Input)
	assert.Equal(t, "projection_1", f.Right.Input)
	_, exists := g.Get("expression_1")
	assert.False(t, exists)
}

func TestRun_MergeFiltersCombinesFiltersOnSameInputs(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.NewSource("source_1", "daily_agg", "date"))
	proj := graph.NewProjection("projection_1", []string{"source_1"}, []graph.ProjectionColumn{
		{Name: "close", SourceNode: "source_1"},
	})
	g.AddNode(proj)

	f1 := graph.NewFilter("filter_1", []string{"projection_1"},
		graph.ConditionSide{Input: "projection_1", Metric: "close"}, domain.OpGt,
		graph.ConditionSide{Parameter: "param_1"})
	f2 := graph.NewFilter("filter_2", []string{"projection_1"},
		graph.ConditionSide{Input: "projection_1", Metric: "close"}, domain.OpLt,
		graph.ConditionSide{Parameter: "param_2"})
	g.AddNode(f1)
	g.AddNode(f2)

	require.NoError(t, optimize.Run(g, config.DefaultConfig(), false))

	assert.Equal(t, 1, countKind(g, graph.KindCompositeFilter))
}

func TestRun_RemoveUselessCompositesSplicesOutSingleChildComposite(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.NewSource("source_1", "tickers", ""))
	proj := graph.NewProjection("projection_1", []string{"source_1"}, []graph.ProjectionColumn{
		{Name: "sector", SourceNode: "source_1"},
	})
	g.AddNode(proj)
	f := graph.NewFilter("filter_1", []string{"projection_1"},
		graph.ConditionSide{Input: "projection_1", Metric: "sector"}, domain.OpEq,
		graph.ConditionSide{Parameter: "param_1"})
	g.AddNode(f)
	comp := graph.NewCompositeFilter("composite_filter_1", []string{"filter_1"}, domain.CompositeAnd)
	g.AddNode(comp)

	require.NoError(t, optimize.Run(g, config.DefaultConfig(), false))

	assert.Equal(t, 0, countKind(g, graph.KindCompositeFilter))
	_, exists := g.Get("composite_filter_1")
	assert.False(t, exists)
}

func TestRun_DedupProjectionExpressionsCollapsesStructurallyIdenticalAggregates(t *testing.T) {
	tr := &domain.RelativeRange{Duration: 30, Unit: domain.UnitDay}
	agg1 := &domain.Aggregate{Target: &domain.Metric{Metric: "close"}, Aggregation: domain.AggAvg, TimeRange: tr, Alias: "avg_close_30d"}
	agg2 := &domain.Aggregate{Target: &domain.Metric{Metric: "close"}, Aggregation: domain.AggAvg, TimeRange: tr, Alias: "avg_close_30d"}

	g := graph.New()
	g.AddNode(graph.NewSource("source_1", "daily_agg", "date"))
	proj1 := graph.NewProjection("projection_1", []string{"source_1"}, []graph.ProjectionColumn{{Name: "close", SourceNode: "source_1"}})
	proj2 := graph.NewProjection("projection_2", []string{"source_1"}, []graph.ProjectionColumn{{Name: "close", SourceNode: "source_1"}})
	g.AddNode(proj1)
	g.AddNode(proj2)

	expr1 := graph.NewExpression("expression_1", []string{"projection_1"}, agg1)
	expr1.Alias = "avg_close_30d"
	expr2 := graph.NewExpression("expression_2", []string{"projection_2"}, agg2)
	expr2.Alias = "avg_close_30d"
	g.AddNode(expr1)
	g.AddNode(expr2)

	f1 := graph.NewFilter("filter_1", []string{"expression_1"},
		graph.ConditionSide{Input: "expression_1"}, domain.OpGt, graph.ConditionSide{Parameter: "param_1"})
	f2 := graph.NewFilter("filter_2", []string{"expression_2"},
		graph.ConditionSide{Input: "expression_2"}, domain.OpLt, graph.ConditionSide{Parameter: "param_2"})
	g.AddNode(f1)
	g.AddNode(f2)

	require.NoError(t, optimize.Run(g, config.DefaultConfig(), false))

	assert.Equal(t, f1.Left.Input, f2.Left.Input)
	assert.Equal(t, 1, countKind(g, graph.KindExpression))
}

func TestRun_RiskyCrossTablePruneRemovesRedundantJoin(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.NewSource("source_1", "tickers", ""))
	g.AddNode(graph.NewSource("source_2", "daily_agg", "date"))

	tickerProj := graph.NewProjection("projection_1", []string{"source_1"}, []graph.ProjectionColumn{
		{Name: "ticker", Table: "tickers", SourceNode: "source_1"},
	})
	g.AddNode(tickerProj)
	f := graph.NewFilter("filter_1", []string{"projection_1"},
		graph.ConditionSide{Input: "projection_1", Metric: "ticker"}, domain.OpEq,
		graph.ConditionSide{Parameter: "param_1"})
	g.AddNode(f)

	join := graph.NewJoin("join_1", []string{"source_1", "source_2"}, graph.JoinInner, []graph.JoinCondition{
		{LeftSource: "source_1", LeftKey: "ticker", RightSource: "source_2", RightKey: "ticker", Op: "="},
	})
	g.AddNode(join)
	g.ReplaceNodeID("source_1", "join_1", "", "join_1")
	g.ReplaceNodeID("source_2", "join_1", "", "join_1")

	require.NoError(t, optimize.Run(g, config.DefaultConfig(), true))

	assert.Equal(t, 0, countKind(g, graph.KindJoin))
	_, tickersRemains := g.Get("source_1")
	assert.False(t, tickersRemains)
}
