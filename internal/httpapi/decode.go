// Package httpapi is the thin HTTP collaborator spec §1/§6 names as
// out-of-scope for the core: a POST /compile endpoint and a GET /health
// endpoint, request validation, and translation between wire JSON and the
// domain.UserQuery the compiler consumes.
package httpapi

import (
	"encoding/json"
	"fmt"

	"marketscreener/internal/domain"
)

// wireQuery mirrors the JSON shape of spec §3's UserQuery. Fields decode
// with encoding/json first (for basic shape) and then jsonschema/v6
// validates the raw bytes before this struct is ever trusted — decode.go
// only has to worry about turning already-valid JSON into domain values.
type wireQuery struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Status   string                 `json:"status"`
	Filter   json.RawMessage        `json:"filter"`
	GroupBy  []wireGroupCriterion   `json:"group_by"`
	SortBy   []wireSortCriterion    `json:"sort_by"`
	Limit    *int                   `json:"limit"`
	Metadata map[string]interface{} `json:"-"`
}

type wireGroupCriterion struct {
	Dimension  string          `json:"dimension"`
	Limit      int             `json:"limit"`
	Expression json.RawMessage `json:"expression"`
}

type wireSortCriterion struct {
	Expression json.RawMessage `json:"expression"`
	Direction  string          `json:"direction"`
}

// DecodeUserQueryFile validates and decodes a UserQuery JSON document read
// from a file, for use by non-HTTP callers such as cmd/compilecli that
// still want the same schema validation the HTTP handler applies.
func DecodeUserQueryFile(body []byte) (*domain.UserQuery, error) {
	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if details := validateUserQuery(raw); len(details) > 0 {
		msgs := make([]string, len(details))
		for i, d := range details {
			msgs[i] = fmt.Sprintf("%s: %s", d.Path, d.Message)
		}
		return nil, fmt.Errorf("schema validation failed: %v", msgs)
	}
	return decodeUserQuery(body)
}

// decodeUserQuery turns validated request JSON into a domain.UserQuery.
// Pass-through metadata fields (description, markets, schedule, …) that
// aren't part of the compiler's own model are captured verbatim into
// Metadata, per spec §3.
func decodeUserQuery(body []byte) (*domain.UserQuery, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	var wq wireQuery
	if err := json.Unmarshal(body, &wq); err != nil {
		return nil, err
	}

	known := map[string]bool{
		"id": true, "name": true, "status": true, "filter": true,
		"group_by": true, "sort_by": true, "limit": true,
	}
	metadata := make(map[string]interface{})
	for k, v := range raw {
		if known[k] {
			continue
		}
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, err
		}
		metadata[k] = val
	}

	filter, err := decodeFilter(wq.Filter)
	if err != nil {
		return nil, err
	}

	groupBy := make([]domain.GroupCriterion, 0, len(wq.GroupBy))
	for _, gc := range wq.GroupBy {
		var expr domain.Expression
		if len(gc.Expression) > 0 {
			expr, err = decodeExpression(gc.Expression)
			if err != nil {
				return nil, err
			}
		}
		groupBy = append(groupBy, domain.GroupCriterion{
			Dimension:  gc.Dimension,
			Limit:      gc.Limit,
			Expression: expr,
		})
	}

	sortBy := make([]domain.SortCriterion, 0, len(wq.SortBy))
	for _, sc := range wq.SortBy {
		expr, err := decodeExpression(sc.Expression)
		if err != nil {
			return nil, err
		}
		dir := domain.SortAsc
		if sc.Direction == string(domain.SortDesc) {
			dir = domain.SortDesc
		}
		sortBy = append(sortBy, domain.SortCriterion{Expression: expr, Direction: dir})
	}

	if len(metadata) == 0 {
		metadata = nil
	}

	return &domain.UserQuery{
		ID:       wq.ID,
		Name:     wq.Name,
		Status:   domain.Status(wq.Status),
		Filter:   filter,
		GroupBy:  groupBy,
		SortBy:   sortBy,
		Limit:    wq.Limit,
		Metadata: metadata,
	}, nil
}

type wireSimpleFilter struct {
	Target json.RawMessage `json:"target"`
	Op     string          `json:"op"`
	Value  json.RawMessage `json:"value"`
}

type wireCompositeFilter struct {
	Operator string            `json:"operator"`
	Filters  []json.RawMessage `json:"filters"`
}

// decodeFilter dispatches on presence of "op" (simple) vs "operator"
// (composite) — the two Filter variants never share a discriminant field
// (spec §3), so field presence is the tag.
func decodeFilter(raw json.RawMessage) (domain.Filter, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if _, ok := probe["operator"]; ok {
		var wf wireCompositeFilter
		if err := json.Unmarshal(raw, &wf); err != nil {
			return nil, err
		}
		children := make([]domain.Filter, 0, len(wf.Filters))
		for _, c := range wf.Filters {
			cf, err := decodeFilter(c)
			if err != nil {
				return nil, err
			}
			children = append(children, cf)
		}
		return &domain.CompositeFilter{
			Operator: domain.CompositeOp(wf.Operator),
			Filters:  children,
		}, nil
	}
	if _, ok := probe["op"]; ok {
		var wf wireSimpleFilter
		if err := json.Unmarshal(raw, &wf); err != nil {
			return nil, err
		}
		target, err := decodeExpression(wf.Target)
		if err != nil {
			return nil, err
		}
		value, err := decodeExpression(wf.Value)
		if err != nil {
			return nil, err
		}
		return &domain.SimpleFilter{Target: target, Op: domain.FilterOp(wf.Op), Value: value}, nil
	}
	return nil, fmt.Errorf("httpapi: filter has neither \"op\" nor \"operator\"")
}

type wireMetric struct {
	Metric string          `json:"metric"`
	Filter json.RawMessage `json:"filter"`
	Alias  string          `json:"alias"`
}

type wireMath struct {
	Operator string            `json:"operator"`
	Operands []json.RawMessage `json:"operands"`
	Alias    string            `json:"alias"`
}

type wireAggregate struct {
	Target      json.RawMessage    `json:"target"`
	Aggregation string             `json:"aggregation"`
	TimeRange   json.RawMessage    `json:"time_range"`
	Params      map[string]float64 `json:"params"`
	Filter      json.RawMessage    `json:"filter"`
	Alias       string             `json:"alias"`
}

// decodeExpression dispatches on which discriminant field is present:
// "metric" (Metric), "aggregation" (Aggregate), "operator"+"operands"
// (Math), or a bare JSON scalar/array (Constant).
func decodeExpression(raw json.RawMessage) (domain.Expression, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err == nil && probe != nil {
		if _, ok := probe["metric"]; ok {
			var wm wireMetric
			if err := json.Unmarshal(raw, &wm); err != nil {
				return nil, err
			}
			filter, err := decodeFilter(wm.Filter)
			if err != nil {
				return nil, err
			}
			return &domain.Metric{Metric: wm.Metric, Filter: filter, Alias: wm.Alias}, nil
		}
		if _, ok := probe["aggregation"]; ok {
			var wa wireAggregate
			if err := json.Unmarshal(raw, &wa); err != nil {
				return nil, err
			}
			target, err := decodeExpression(wa.Target)
			if err != nil {
				return nil, err
			}
			timeRange, err := decodeTimeRange(wa.TimeRange)
			if err != nil {
				return nil, err
			}
			filter, err := decodeFilter(wa.Filter)
			if err != nil {
				return nil, err
			}
			return &domain.Aggregate{
				Target:      target,
				Aggregation: domain.Aggregation(wa.Aggregation),
				TimeRange:   timeRange,
				Params:      wa.Params,
				Filter:      filter,
				Alias:       wa.Alias,
			}, nil
		}
		if _, ok := probe["operator"]; ok {
			var wm wireMath
			if err := json.Unmarshal(raw, &wm); err != nil {
				return nil, err
			}
			operands := make([]domain.Expression, 0, len(wm.Operands))
			for _, o := range wm.Operands {
				expr, err := decodeExpression(o)
				if err != nil {
					return nil, err
				}
				operands = append(operands, expr)
			}
			return &domain.Math{Operator: domain.MathOperator(wm.Operator), Operands: operands, Alias: wm.Alias}, nil
		}
	}
	return decodeConstant(raw)
}

// decodeConstant handles the bare-scalar/array Constant variant: a JSON
// number, string, boolean, or homogeneous array of strings or numbers.
// Any other array, including an array of booleans, decodes as
// ConstMixedList, which the compiler rejects with MixedTypeArrayError.
func decodeConstant(raw json.RawMessage) (domain.Expression, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	switch val := v.(type) {
	case float64:
		return &domain.Constant{Kind: domain.ConstNumber, Number: val}, nil
	case string:
		return &domain.Constant{Kind: domain.ConstString, Str: val}, nil
	case bool:
		return &domain.Constant{Kind: domain.ConstBool, Bool: val}, nil
	case []interface{}:
		return decodeConstantList(val)
	default:
		return nil, fmt.Errorf("httpapi: unrecognized expression literal %v", raw)
	}
}

func decodeConstantList(items []interface{}) (domain.Expression, error) {
	if len(items) == 0 {
		return &domain.Constant{Kind: domain.ConstStringList}, nil
	}
	switch items[0].(type) {
	case string:
		out := make([]string, 0, len(items))
		for _, it := range items {
			s, ok := it.(string)
			if !ok {
				return &domain.Constant{Kind: domain.ConstMixedList, MixedDetail: "expected string, array has mixed element types"}, nil
			}
			out = append(out, s)
		}
		return &domain.Constant{Kind: domain.ConstStringList, StrList: out}, nil
	case float64:
		out := make([]float64, 0, len(items))
		for _, it := range items {
			n, ok := it.(float64)
			if !ok {
				return &domain.Constant{Kind: domain.ConstMixedList, MixedDetail: "expected number, array has mixed element types"}, nil
			}
			out = append(out, n)
		}
		return &domain.Constant{Kind: domain.ConstNumberList, NumList: out}, nil
	default:
		return &domain.Constant{Kind: domain.ConstMixedList, MixedDetail: "unsupported array element type"}, nil
	}
}

type wireTimeRange struct {
	From     *int64 `json:"from"`
	To       *int64 `json:"to"`
	Duration int    `json:"duration"`
	Unit     string `json:"unit"`
	At       *int64 `json:"at"`
}

// decodeTimeRange dispatches on presence of "from"/"to" (Absolute) vs
// "duration"/"unit" (Relative or Trading). Relative and Trading share an
// identical wire shape (spec §3); the discriminant is an explicit
// "kind": "trading" tag this compiler expects on trading-calendar ranges,
// defaulting to Relative otherwise.
func decodeTimeRange(raw json.RawMessage) (domain.TimeRange, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if _, ok := probe["from"]; ok {
		var wt wireTimeRange
		if err := json.Unmarshal(raw, &wt); err != nil {
			return nil, err
		}
		var from, to int64
		if wt.From != nil {
			from = *wt.From
		}
		if wt.To != nil {
			to = *wt.To
		}
		return &domain.AbsoluteRange{From: from, To: to}, nil
	}

	var wt wireTimeRange
	if err := json.Unmarshal(raw, &wt); err != nil {
		return nil, err
	}
	var kind struct {
		Kind string `json:"kind"`
	}
	_ = json.Unmarshal(raw, &kind)

	if kind.Kind == "trading" {
		return &domain.TradingRange{Duration: wt.Duration, Unit: domain.TimeUnit(wt.Unit), At: wt.At}, nil
	}
	return &domain.RelativeRange{Duration: wt.Duration, Unit: domain.TimeUnit(wt.Unit), At: wt.At}, nil
}
