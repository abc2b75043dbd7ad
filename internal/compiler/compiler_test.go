package compiler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscreener/internal/compiler"
	"marketscreener/internal/config"
	"marketscreener/internal/domain"
)

func newQuery(id string, filter domain.Filter) *domain.UserQuery {
	return &domain.UserQuery{ID: id, Name: id, Filter: filter}
}

// Scenario 1: sector eq Technology, limit 100.
func TestCompile_SimpleEqualityFilterWithLimit(t *testing.T) {
	limit := 100
	uq := newQuery("q1", &domain.SimpleFilter{
		Target: &domain.Metric{Metric: "sector"},
		Op:     domain.OpEq,
		Value:  &domain.Constant{Kind: domain.ConstString, Str: "Technology"},
	})
	uq.Limit = &limit

	c := compiler.New(config.DefaultConfig())
	result, err := c.Compile(uq, compiler.Options{})
	require.NoError(t, err)

	assert.Contains(t, result.SQL, "tickers")
	assert.Contains(t, result.SQL, "LIMIT 100")
	assert.Contains(t, result.SQL, "sector =")
	require.Len(t, result.Parameters, 1)
	assert.Equal(t, "Technology", result.Parameters["param_1"])
}

// Scenario 2: 30-day return > 10%, sorted desc, limit 50.
func TestCompile_WindowedAggregateFilterProducesQualify(t *testing.T) {
	limit := 50
	aggTarget := &domain.Aggregate{
		Target:      &domain.Metric{Metric: "close"},
		Aggregation: domain.AggDiffPct,
		TimeRange:   &domain.RelativeRange{Duration: 30, Unit: domain.UnitDay},
		Alias:       "return_30d",
	}
	uq := newQuery("q2", &domain.SimpleFilter{
		Target: aggTarget,
		Op:     domain.OpGt,
		Value:  &domain.Constant{Kind: domain.ConstNumber, Number: 10},
	})
	uq.SortBy = []domain.SortCriterion{{Expression: aggTarget, Direction: domain.SortDesc}}
	uq.Limit = &limit

	c := compiler.New(config.DefaultConfig())
	result, err := c.Compile(uq, compiler.Options{})
	require.NoError(t, err)

	assert.Contains(t, result.SQL, "WITH")
	assert.Contains(t, result.SQL, "last_value")
	assert.Contains(t, result.SQL, "first_value")
	assert.Contains(t, result.SQL, "nullIf(")
	assert.Contains(t, result.SQL, "QUALIFY")
	assert.Contains(t, result.SQL, "ORDER BY return_30d desc")
	assert.Contains(t, result.SQL, "LIMIT 50")
}

// Scenario 3: top-3 per sector by 90-day price change, country/active
// filters, overall limit 100. Exercises join inference across
// tickers/daily_agg; the risky cross-table prune is covered by the next test.
func TestCompile_TopNPerGroupWithJoin(t *testing.T) {
	limit := 100
	uq := &domain.UserQuery{
		ID:   "q3",
		Name: "q3",
		Filter: &domain.CompositeFilter{
			Operator: domain.CompositeAnd,
			Filters: []domain.Filter{
				&domain.SimpleFilter{
					Target: &domain.Metric{Metric: "country"},
					Op:     domain.OpEq,
					Value:  &domain.Constant{Kind: domain.ConstString, Str: "United States"},
				},
				&domain.SimpleFilter{
					Target: &domain.Metric{Metric: "active"},
					Op:     domain.OpEq,
					Value:  &domain.Constant{Kind: domain.ConstBool, Bool: true},
				},
			},
		},
		GroupBy: []domain.GroupCriterion{
			{
				Dimension: "sector",
				Limit:     3,
				Expression: &domain.Aggregate{
					Target:      &domain.Metric{Metric: "close"},
					Aggregation: domain.AggDiffPct,
					TimeRange:   &domain.RelativeRange{Duration: 90, Unit: domain.UnitDay},
					Alias:       "change_90d",
				},
			},
		},
		Limit: &limit,
	}

	c := compiler.New(config.DefaultConfig())
	result, err := c.Compile(uq, compiler.Options{})
	require.NoError(t, err)

	assert.Contains(t, result.SQL, "ORDER BY change_90d desc")
	assert.Contains(t, result.SQL, "LIMIT 3 BY sector")
	assert.Contains(t, result.SQL, "GROUP BY sector")
	assert.Contains(t, result.SQL, "LIMIT 100")
	assert.Contains(t, result.Diagram, "Join")
}

// Scenario 3 (risky variant): when the only filter touching the tickers
// side of the join constrains "ticker" itself, the cross-table prune
// drops the join entirely and reads straight off daily_agg.
func TestCompile_RiskyCrossTablePruneDropsRedundantJoin(t *testing.T) {
	uq := newQuery("q3b", &domain.SimpleFilter{
		Target: &domain.Metric{Metric: "ticker"},
		Op:     domain.OpEq,
		Value:  &domain.Constant{Kind: domain.ConstString, Str: "AAPL"},
	})
	uq.SortBy = []domain.SortCriterion{{Expression: &domain.Metric{Metric: "close"}, Direction: domain.SortDesc}}

	c := compiler.New(config.DefaultConfig())

	plain, err := c.Compile(uq, compiler.Options{})
	require.NoError(t, err)
	assert.Contains(t, plain.Diagram, "Join")

	risky, err := c.Compile(uq, compiler.Options{Risky: true})
	require.NoError(t, err)
	assert.Contains(t, risky.SQL, "daily_agg")
	assert.NotContains(t, risky.Diagram, "Join")
}

// Scenario 4: composite AND of two filters on the same aggregate
// (avg close 30d > 100 AND < 200) collapses to one aggregate expression.
func TestCompile_CompositeFilterOnSameAggregateDedupes(t *testing.T) {
	tr := &domain.RelativeRange{Duration: 30, Unit: domain.UnitDay}
	agg1 := &domain.Aggregate{Target: &domain.Metric{Metric: "close"}, Aggregation: domain.AggAvg, TimeRange: tr}
	agg2 := &domain.Aggregate{Target: &domain.Metric{Metric: "close"}, Aggregation: domain.AggAvg, TimeRange: tr}

	uq := newQuery("q4", &domain.CompositeFilter{
		Operator: domain.CompositeAnd,
		Filters: []domain.Filter{
			&domain.SimpleFilter{Target: agg1, Op: domain.OpGt, Value: &domain.Constant{Kind: domain.ConstNumber, Number: 100}},
			&domain.SimpleFilter{Target: agg2, Op: domain.OpLt, Value: &domain.Constant{Kind: domain.ConstNumber, Number: 200}},
		},
	})

	c := compiler.New(config.DefaultConfig())
	result, err := c.Compile(uq, compiler.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(result.SQL, "avg("))
}

// Scenario 5: absolute time range with -1 day leeway on the "from" bound.
func TestCompile_AbsoluteTimeRangePrewhereLeeway(t *testing.T) {
	uq := newQuery("q5", &domain.SimpleFilter{
		Target: &domain.Aggregate{
			Target:      &domain.Metric{Metric: "close"},
			Aggregation: domain.AggDiffPct,
			TimeRange:   &domain.AbsoluteRange{From: 1704067200, To: 1735603200}, // 2024-01-01 .. 2024-12-31
		},
		Op:    domain.OpGt,
		Value: &domain.Constant{Kind: domain.ConstNumber, Number: 0},
	})

	c := compiler.New(config.DefaultConfig())
	result, err := c.Compile(uq, compiler.Options{})
	require.NoError(t, err)

	assert.Contains(t, result.SQL, "toDate('2023-12-31')")
	assert.Contains(t, result.SQL, "toDate('2024-12-31')")
}

// Scenario 6: math close/volume > 0.001 inlines the numeric literal.
func TestCompile_MathDivisionInlinesNumericLiteral(t *testing.T) {
	uq := newQuery("q6", &domain.SimpleFilter{
		Target: &domain.Math{
			Operator: domain.MathDiv,
			Operands: []domain.Expression{
				&domain.Metric{Metric: "close"},
				&domain.Metric{Metric: "volume"},
			},
		},
		Op:    domain.OpGt,
		Value: &domain.Constant{Kind: domain.ConstNumber, Number: 0.001},
	})

	c := compiler.New(config.DefaultConfig())
	result, err := c.Compile(uq, compiler.Options{})
	require.NoError(t, err)

	assert.Contains(t, result.SQL, "(close / volume)")
	assert.Contains(t, result.SQL, "0.001")
	assert.Empty(t, result.Parameters)
}

func TestCompile_RejectsInvalidUserQuery(t *testing.T) {
	c := compiler.New(config.DefaultConfig())
	_, err := c.Compile(&domain.UserQuery{}, compiler.Options{})
	require.Error(t, err)
}

func TestCompile_UnknownMetricSurfacesError(t *testing.T) {
	uq := newQuery("q7", &domain.SimpleFilter{
		Target: &domain.Metric{Metric: "not_a_real_metric"},
		Op:     domain.OpEq,
		Value:  &domain.Constant{Kind: domain.ConstString, Str: "x"},
	})
	c := compiler.New(config.DefaultConfig())
	_, err := c.Compile(uq, compiler.Options{})
	require.Error(t, err)
	var unknownErr *domain.UnknownMetricError
	require.ErrorAs(t, err, &unknownErr)
}
