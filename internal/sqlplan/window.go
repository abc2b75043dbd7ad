package sqlplan

import (
	"fmt"
	"time"

	"marketscreener/internal/domain"
)

// aggregateWindowSQL renders the window-function form spec §4.6's table
// specifies for each aggregation kind.
func aggregateWindowSQL(agg domain.Aggregation, col, pk, timeCol string, tr domain.TimeRange, params map[string]float64) string {
	switch agg {
	case domain.AggFirst:
		return fmt.Sprintf("first_value(%s) %s", col, windowOver(pk, timeCol, " ASC", tr, true))
	case domain.AggLast:
		return fmt.Sprintf("last_value(%s) %s", col, windowOver(pk, timeCol, " ASC", tr, true))
	case domain.AggAvg, domain.AggSum, domain.AggMin, domain.AggMax, domain.AggCount:
		return fmt.Sprintf("%s(%s) %s", string(agg), col, windowOver(pk, timeCol, "", tr, false))
	case domain.AggMedian:
		return fmt.Sprintf("quantile(0.5)(%s) %s", col, windowOver(pk, timeCol, "", tr, false))
	case domain.AggPercentile:
		p := params["percentile"]
		if p == 0 {
			p = 0.5
		}
		return fmt.Sprintf("quantile(%s)(%s) %s", trimFloat(p), col, windowOver(pk, timeCol, "", tr, false))
	case domain.AggStddev:
		return fmt.Sprintf("stddevPopStable(%s) %s", col, windowOver(pk, timeCol, "", tr, false))
	case domain.AggVariance:
		return fmt.Sprintf("varPop(%s) %s", col, windowOver(pk, timeCol, "", tr, false))
	case domain.AggDiff:
		last := fmt.Sprintf("last_value(%s) %s", col, windowOver(pk, timeCol, " ASC", tr, true))
		first := fmt.Sprintf("first_value(%s) %s", col, windowOver(pk, timeCol, " ASC", tr, true))
		return fmt.Sprintf("%s - %s", last, first)
	case domain.AggDiffPct:
		last := fmt.Sprintf("last_value(%s) %s", col, windowOver(pk, timeCol, " ASC", tr, true))
		first := fmt.Sprintf("first_value(%s) %s", col, windowOver(pk, timeCol, " ASC", tr, true))
		return fmt.Sprintf("(%s - %s) / nullIf(%s, 0) * 100", last, first, first)
	default:
		return fmt.Sprintf("%s(%s) %s", string(agg), col, windowOver(pk, timeCol, "", tr, false))
	}
}

func windowOver(pk, timeCol, order string, tr domain.TimeRange, includeFrameAlways bool) string {
	frame := ""
	if trading, ok := tr.(*domain.TradingRange); ok {
		frame = fmt.Sprintf(" ROWS BETWEEN %d PRECEDING AND CURRENT ROW", trading.Duration-1)
	} else if includeFrameAlways {
		frame = " ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING"
	}
	return fmt.Sprintf("OVER (PARTITION BY %s ORDER BY %s%s%s)", pk, timeCol, order, frame)
}

// dateRangePredicate renders the per-aggregate WHERE predicate spec
// §4.6 describes for relative and absolute ranges. Trading ranges are
// expressed entirely through the window frame and contribute no
// separate date predicate.
func dateRangePredicate(timeCol string, tr domain.TimeRange) string {
	switch v := tr.(type) {
	case *domain.RelativeRange:
		return fmt.Sprintf("%s >= date_sub(now(), INTERVAL %d %s)", timeCol, v.Duration, v.Unit.SQL())
	case *domain.AbsoluteRange:
		return fmt.Sprintf("%s BETWEEN toDate('%s') AND toDate('%s')", timeCol, formatDate(v.From), formatDate(v.To))
	default:
		return ""
	}
}

func formatDate(unixSeconds int64) string {
	return time.Unix(unixSeconds, 0).UTC().Format("2006-01-02")
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%g", v)
	return s
}
