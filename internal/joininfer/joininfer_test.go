package joininfer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscreener/internal/config"
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
	"marketscreener/internal/joininfer"
)

func TestInfer_SingleSourceIsNoOp(t *testing.T) {
	g := graph.New()
	src := graph.NewSource("source_1", "tickers", "")
	g.AddNode(src)

	require.NoError(t, joininfer.Infer(g, config.DefaultConfig()))
	assert.True(t, src.IsTerminal())
	assert.Equal(t, 1, g.Len())
}

func TestInfer_TwoSourcesProduceSingleJoinAndRewireReferences(t *testing.T) {
	g := graph.New()
	src1 := graph.NewSource("source_1", "tickers", "")
	src2 := graph.NewSource("source_2", "daily_agg", "date")
	g.AddNode(src1)
	g.AddNode(src2)

	proj := graph.NewProjection("projection_1", []string{"source_1"}, []graph.ProjectionColumn{
		{Name: "sector", SourceNode: "source_1"},
	})
	g.AddNode(proj)

	require.NoError(t, joininfer.Infer(g, config.DefaultConfig()))

	var join *graph.JoinNode
	for _, n := range g.Nodes() {
		if j, ok := n.(*graph.JoinNode); ok {
			join = j
		}
	}
	require.NotNil(t, join)
	assert.ElementsMatch(t, []string{"source_1", "source_2"}, join.Inputs())
	require.Len(t, join.Conditions, 1)
	assert.Equal(t, "ticker", join.Conditions[0].LeftKey)
	assert.Equal(t, "ticker", join.Conditions[0].RightKey)

	assert.False(t, src1.IsTerminal())
	assert.False(t, src2.IsTerminal())
	assert.Equal(t, join.ID(), proj.Columns[0].SourceNode)
}

func TestInfer_NoCommonPrimaryKeyReturnsError(t *testing.T) {
	cfg := &config.Config{
		Tables: map[string]config.Table{
			"a": {Name: "a", PrimaryKeys: []string{"id_a"}},
			"b": {Name: "b", PrimaryKeys: []string{"id_b"}},
		},
	}
	g := graph.New()
	g.AddNode(graph.NewSource("source_1", "a", ""))
	g.AddNode(graph.NewSource("source_2", "b", ""))

	err := joininfer.Infer(g, cfg)
	require.Error(t, err)
	var noKeyErr *domain.NoCommonPrimaryKeyError
	require.ErrorAs(t, err, &noKeyErr)
}
