package sqlplan_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketscreener/internal/config"
	"marketscreener/internal/domain"
	"marketscreener/internal/ir"
	"marketscreener/internal/optimize"
	"marketscreener/internal/sqlplan"
)

func buildAndOptimize(t *testing.T, cfg *config.Config, uq *domain.UserQuery) string {
	t.Helper()
	g, _, err := ir.Build(cfg, uq)
	require.NoError(t, err)
	require.NoError(t, optimize.Run(g, cfg, false))
	sql, err := sqlplan.Plan(g, cfg)
	require.NoError(t, err)
	return sql
}

func TestPlan_SingleTableNoCTENeeded(t *testing.T) {
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

	sql := buildAndOptimize(t, cfg, uq)
	assert.NotContains(t, sql, "WITH")
	assert.Contains(t, sql, "FROM tickers")
	assert.Contains(t, sql, "WHERE sector =")
}

func TestPlan_TwoTableJoinRendersInnerJoinOnSharedKey(t *testing.T) {
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
					Value:  &domain.Constant{Kind: domain.ConstNumber, Number: 50},
				},
			},
		},
	}

	sql := buildAndOptimize(t, cfg, uq)
	assert.Contains(t, sql, "tickers INNER JOIN daily_agg ON tickers.ticker = daily_agg.ticker")
}

func TestPlan_TradingRangeRendersIntervalPrewhere(t *testing.T) {
	cfg := config.DefaultConfig()
	uq := &domain.UserQuery{
		ID:   "q1",
		Name: "q1",
		Filter: &domain.SimpleFilter{
			Target: &domain.Aggregate{
				Target:      &domain.Metric{Metric: "close"},
				Aggregation: domain.AggDiffPct,
				TimeRange:   &domain.TradingRange{Duration: 10, Unit: domain.UnitDay},
			},
			Op:    domain.OpGt,
			Value: &domain.Constant{Kind: domain.ConstNumber, Number: 0},
		},
	}

	sql := buildAndOptimize(t, cfg, uq)
	assert.Contains(t, sql, "PREWHERE date >= toDate(date_sub(now(), INTERVAL")
}

func TestPlan_OutermostLimitRendersAfterSelect(t *testing.T) {
	cfg := config.DefaultConfig()
	limit := 10
	uq := &domain.UserQuery{ID: "q1", Name: "q1", Filter: &domain.SimpleFilter{
		Target: &domain.Metric{Metric: "sector"},
		Op:     domain.OpEq,
		Value:  &domain.Constant{Kind: domain.ConstString, Str: "Technology"},
	}, Limit: &limit}

	sql := buildAndOptimize(t, cfg, uq)
	assert.Contains(t, sql, "SELECT")
	assert.Contains(t, sql, "LIMIT 10")
}

func TestPlan_UnaliasedMathAppearsInSelectAndWhere(t *testing.T) {
	cfg := config.DefaultConfig()
	uq := &domain.UserQuery{
		ID:   "q1",
		Name: "q1",
		Filter: &domain.SimpleFilter{
			Target: &domain.Math{
				Operator: domain.MathDiv,
				Operands: []domain.Expression{
					&domain.Metric{Metric: "close"},
					&domain.Metric{Metric: "volume"},
				},
			},
			Op:    domain.OpGt,
			Value: &domain.Constant{Kind: domain.ConstNumber, Number: 0.001},
		},
	}

	sql := buildAndOptimize(t, cfg, uq)
	assert.Equal(t, 2, strings.Count(sql, "(close / volume)"), "expected the unaliased Math expression in both SELECT and WHERE, got %s", sql)
	assert.Contains(t, sql, "WHERE (close / volume) > 0.001")
}

func TestPlan_GroupedTopNRendersOrderByBeforeLimitBy(t *testing.T) {
	cfg := config.DefaultConfig()
	limit := 100
	uq := &domain.UserQuery{
		ID:   "q1",
		Name: "q1",
		Filter: &domain.SimpleFilter{
			Target: &domain.Metric{Metric: "sector"},
			Op:     domain.OpEq,
			Value:  &domain.Constant{Kind: domain.ConstString, Str: "Technology"},
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

	sql := buildAndOptimize(t, cfg, uq)
	orderIdx := strings.Index(sql, "ORDER BY change_90d desc")
	limitByIdx := strings.Index(sql, "LIMIT 3 BY sector")
	require.NotEqual(t, -1, orderIdx, "expected ORDER BY change_90d desc in %s", sql)
	require.NotEqual(t, -1, limitByIdx, "expected LIMIT 3 BY sector in %s", sql)
	assert.Less(t, orderIdx, limitByIdx)
}
