package optimize

import (
	"fmt"
	"strings"

	"marketscreener/internal/domain"
)

// structurallyEqual implements the equality relation spec §9 defines for
// deduplication: same kind, same alias, and variant-specific structural
// equality of operands/targets/filters.
func structurallyEqual(a, b domain.Expression) bool {
	switch va := a.(type) {
	case *domain.Constant:
		vb, ok := b.(*domain.Constant)
		return ok && constantEqual(va, vb)
	case *domain.Metric:
		vb, ok := b.(*domain.Metric)
		return ok && va.Metric == vb.Metric && va.Alias == vb.Alias && filterEqual(va.Filter, vb.Filter)
	case *domain.Math:
		vb, ok := b.(*domain.Math)
		if !ok || va.Operator != vb.Operator || va.Alias != vb.Alias || len(va.Operands) != len(vb.Operands) {
			return false
		}
		for i := range va.Operands {
			if !structurallyEqual(va.Operands[i], vb.Operands[i]) {
				return false
			}
		}
		return true
	case *domain.Aggregate:
		vb, ok := b.(*domain.Aggregate)
		if !ok || va.Aggregation != vb.Aggregation || va.Alias != vb.Alias {
			return false
		}
		if (va.TimeRange == nil) != (vb.TimeRange == nil) {
			return false
		}
		if va.TimeRange != nil && !timeRangeEqual(va.TimeRange, vb.TimeRange) {
			return false
		}
		if !filterEqual(va.Filter, vb.Filter) {
			return false
		}
		return structurallyEqual(va.Target, vb.Target)
	default:
		return false
	}
}

func constantEqual(a, b *domain.Constant) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case domain.ConstNumber:
		return a.Number == b.Number
	case domain.ConstBool:
		return a.Bool == b.Bool
	case domain.ConstString:
		return a.Str == b.Str
	case domain.ConstStringList:
		return sameStrings(a.StrList, b.StrList)
	case domain.ConstNumberList:
		if len(a.NumList) != len(b.NumList) {
			return false
		}
		for i := range a.NumList {
			if a.NumList[i] != b.NumList[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func timeRangeEqual(a, b domain.TimeRange) bool {
	if a.RangeKind() != b.RangeKind() {
		return false
	}
	switch va := a.(type) {
	case *domain.AbsoluteRange:
		vb := b.(*domain.AbsoluteRange)
		return va.From == vb.From && va.To == vb.To
	case *domain.RelativeRange:
		vb := b.(*domain.RelativeRange)
		return va.Duration == vb.Duration && va.Unit == vb.Unit
	case *domain.TradingRange:
		vb := b.(*domain.TradingRange)
		return va.Duration == vb.Duration && va.Unit == vb.Unit
	default:
		return false
	}
}

func filterEqual(a, b domain.Filter) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch va := a.(type) {
	case *domain.SimpleFilter:
		vb, ok := b.(*domain.SimpleFilter)
		return ok && va.Op == vb.Op && structurallyEqual(va.Target, vb.Target) && structurallyEqual(va.Value, vb.Value)
	case *domain.CompositeFilter:
		vb, ok := b.(*domain.CompositeFilter)
		if !ok || va.Operator != vb.Operator || len(va.Filters) != len(vb.Filters) {
			return false
		}
		for i := range va.Filters {
			if !filterEqual(va.Filters[i], vb.Filters[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// exprFingerprint renders a stable, order-sensitive text form of an
// expression for use as a map/sort key — a strictly coarser tool than
// structurallyEqual, used only where a plain string comparison is
// convenient (projection fingerprints).
func exprFingerprint(e domain.Expression) string {
	switch v := e.(type) {
	case *domain.Constant:
		return fmt.Sprintf("const(%d,%v,%v,%q,%v,%v)", v.Kind, v.Number, v.Bool, v.Str, v.StrList, v.NumList)
	case *domain.Metric:
		return fmt.Sprintf("metric(%s,%s)", v.Metric, v.Alias)
	case *domain.Math:
		parts := make([]string, len(v.Operands))
		for i, op := range v.Operands {
			parts[i] = exprFingerprint(op)
		}
		return fmt.Sprintf("math(%s,%s,[%s])", v.Operator, v.Alias, strings.Join(parts, ","))
	case *domain.Aggregate:
		return fmt.Sprintf("agg(%s,%s,[%s])", v.Aggregation, v.Alias, exprFingerprint(v.Target))
	default:
		return "?"
	}
}
