// Package params implements the append-only parameter table the SQL
// translator threads values through (spec §4.7). Numbers and booleans are
// inlined directly into the SQL text; strings and non-empty arrays become
// named, typed placeholders.
package params

import (
	"encoding/json"
	"fmt"
	"strconv"

	"marketscreener/internal/domain"
)

// Type names the ClickHouse-side type a placeholder is bound as.
type Type string

const (
	TypeString       Type = "String"
	TypeFloat64      Type = "Float64"
	TypeArrayString  Type = "Array(String)"
	TypeArrayFloat64 Type = "Array(Float64)"
)

// Table is the append-only param_1, param_2, ... map a single compile
// call builds up. It is never shared across calls (spec §5).
type Table struct {
	names  []string
	values map[string]interface{}
	types  map[string]Type
}

// New returns an empty parameter table.
func New() *Table {
	return &Table{
		values: make(map[string]interface{}),
		types:  make(map[string]Type),
	}
}

// Names returns the parameter names in insertion order.
func (t *Table) Names() []string { return t.names }

// Values returns the parameter name to value map. A Go map carries no
// order; Names and OrderedValues give the insertion order.
func (t *Table) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(t.names))
	for _, n := range t.names {
		out[n] = t.values[n]
	}
	return out
}

func (t *Table) alloc(typ Type, value interface{}) string {
	name := fmt.Sprintf("param_%d", len(t.names)+1)
	t.names = append(t.names, name)
	t.values[name] = value
	t.types[name] = typ
	return name
}

func (t *Table) placeholder(name string) string {
	return fmt.Sprintf("{%s: %s}", name, t.types[name])
}

// formatNumber renders a float64 the way an inlined SQL literal should
// look: no scientific notation, no trailing zeros beyond what the value
// needs.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Create allocates or inlines a SQL fragment for a Constant expression,
// per the rules in spec §4.7. op is the enclosing filter operator, if
// any — used only to decide whether a string value should be LIKE-wrapped
// at creation time (contains/ncontains).
func (t *Table) Create(c *domain.Constant, op domain.FilterOp) (string, error) {
	switch c.Kind {
	case domain.ConstNumber:
		return formatNumber(c.Number), nil
	case domain.ConstBool:
		if c.Bool {
			return "1", nil
		}
		return "0", nil
	case domain.ConstString:
		val := c.Str
		if op == domain.OpContains || op == domain.OpNcontains {
			val = "%" + val + "%"
		}
		name := t.alloc(TypeString, val)
		return t.placeholder(name), nil
	case domain.ConstStringList:
		if len(c.StrList) == 0 {
			return "[]", nil
		}
		name := t.alloc(TypeArrayString, append([]string(nil), c.StrList...))
		return t.placeholder(name), nil
	case domain.ConstNumberList:
		if len(c.NumList) == 0 {
			return "[]", nil
		}
		name := t.alloc(TypeArrayFloat64, append([]float64(nil), c.NumList...))
		return t.placeholder(name), nil
	case domain.ConstMixedList:
		return "", domain.ErrMixedTypeArray(c.MixedDetail)
	default:
		return "", fmt.Errorf("unrecognized constant kind %v", c.Kind)
	}
}

// OrderedValues snapshots a Table's values for JSON output. encoding/json
// marshals map[string]interface{} in sorted key order, which would put
// "param_10" before "param_2" — OrderedValues instead marshals as a JSON
// object with keys in the table's own insertion order (spec §6: "The
// parameters map preserves insertion order").
type OrderedValues struct {
	names  []string
	values map[string]interface{}
}

// NewOrderedValues snapshots t's current names and values.
func NewOrderedValues(t *Table) OrderedValues {
	return OrderedValues{names: t.Names(), values: t.Values()}
}

func (o OrderedValues) MarshalJSON() ([]byte, error) {
	var buf []byte
	buf = append(buf, '{')
	for i, name := range o.names {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		val, err := json.Marshal(o.values[name])
		if err != nil {
			return nil, err
		}
		buf = append(buf, val...)
	}
	buf = append(buf, '}')
	return buf, nil
}
