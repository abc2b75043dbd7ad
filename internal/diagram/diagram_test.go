package diagram_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscreener/internal/diagram"
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
)

func TestRender_SourceProjectionFilterShapesAndHeader(t *testing.T) {
	g := graph.New()
	src := graph.NewSource("source_1", "tickers", "")
	g.AddNode(src)
	proj := graph.NewProjection("projection_1", []string{"source_1"}, []graph.ProjectionColumn{
		{Name: "sector", Table: "tickers", SourceNode: "source_1"},
	})
	g.AddNode(proj)
	filter := graph.NewFilter("filter_1", []string{"projection_1"},
		graph.ConditionSide{Input: "projection_1", Metric: "sector"}, domain.OpEq,
		graph.ConditionSide{Parameter: "{param_1: String}"})
	g.AddNode(filter)

	out := diagram.Render(g)

	require.True(t, strings.HasPrefix(out, "graph TD;\n"))
	assert.Contains(t, out, "tickers[(tickers)]")
	assert.Contains(t, out, "projection_1[[Project\\nsector]]")
	assert.Contains(t, out, "sector eq {param_1: String}")
	assert.Contains(t, out, "tickers --> projection_1")
	assert.Contains(t, out, "projection_1 --> filter_1")
}

func TestRender_SecondSourceOffSameTableGetsSuffixedID(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.NewSource("source_1", "tickers", ""))
	g.AddNode(graph.NewSource("source_2", "tickers", ""))

	out := diagram.Render(g)
	assert.Contains(t, out, "tickers[(tickers)]")
	assert.Contains(t, out, "tickers_2[(tickers)]")
}

func TestRender_JoinNodeUsesHexagonShape(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.NewSource("source_1", "tickers", ""))
	g.AddNode(graph.NewSource("source_2", "daily_agg", "date"))
	join := graph.NewJoin("join_1", []string{"source_1", "source_2"}, graph.JoinInner, []graph.JoinCondition{
		{LeftSource: "source_1", LeftKey: "ticker", RightSource: "source_2", RightKey: "ticker", Op: "="},
	})
	g.AddNode(join)

	out := diagram.Render(g)
	assert.Contains(t, out, "join_1{{Join tickers with daily_agg on ticker = ticker}}")
}

func TestRender_GroupingProjectionLabelsAsGroupBy(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.NewSource("source_1", "tickers", ""))
	proj := graph.NewProjection("projection_1", []string{"source_1"}, []graph.ProjectionColumn{
		{Name: "sector", Table: "tickers", SourceNode: "source_1", IsGrouping: true},
	})
	g.AddNode(proj)

	out := diagram.Render(g)
	assert.Contains(t, out, "projection_1[[GROUP BY\\nsector]]")
}

func TestRender_OutputIsSortedForStableDiffing(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.NewSource("source_1", "tickers", ""))
	proj := graph.NewProjection("projection_1", []string{"source_1"}, []graph.ProjectionColumn{
		{Name: "sector", Table: "tickers", SourceNode: "source_1"},
	})
	g.AddNode(proj)

	out1 := diagram.Render(g)
	out2 := diagram.Render(g)
	assert.Equal(t, out1, out2)
}
