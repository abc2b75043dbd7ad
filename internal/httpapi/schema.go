package httpapi

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// userQuerySchema is the JSON Schema for the wire UserQuery shape (spec
// §3, §6: "a schema validator that returns structured errors"). It
// checks structural shape only — the deeper invariants (composite "not"
// arity, unknown metric names) are the core's own job (domain.Validate,
// config.ResolveMetric).
const userQuerySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://marketscreener.internal/schemas/user-query.json",
  "type": "object",
  "required": ["id", "name", "filter"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "status": {"enum": ["active", "running", "completed", "failed", "stopped"]},
    "filter": {"$ref": "#/$defs/filter"},
    "group_by": {"type": "array", "items": {"$ref": "#/$defs/groupCriterion"}},
    "sort_by": {"type": "array", "items": {"$ref": "#/$defs/sortCriterion"}},
    "limit": {"type": "integer", "exclusiveMinimum": 0}
  },
  "$defs": {
    "filter": {
      "type": "object",
      "oneOf": [
        {
          "required": ["target", "op", "value"],
          "properties": {
            "target": {"$ref": "#/$defs/expression"},
            "op": {"enum": ["eq", "neq", "gt", "gte", "lt", "lte", "in", "nin", "contains", "ncontains"]},
            "value": {"$ref": "#/$defs/expression"}
          }
        },
        {
          "required": ["operator", "filters"],
          "properties": {
            "operator": {"enum": ["and", "or", "not"]},
            "filters": {"type": "array", "minItems": 1, "items": {"$ref": "#/$defs/filter"}}
          }
        }
      ]
    },
    "expression": {
      "anyOf": [
        {"type": ["number", "string", "boolean"]},
        {"type": "array"},
        {
          "type": "object",
          "required": ["metric"],
          "properties": {
            "metric": {"type": "string", "minLength": 1},
            "filter": {"$ref": "#/$defs/filter"},
            "alias": {"type": "string"}
          }
        },
        {
          "type": "object",
          "required": ["operator", "operands"],
          "properties": {
            "operator": {"enum": ["add", "sub", "mul", "div", "pow", "mod", "sqrt", "abs", "ln", "log10", "eq", "neq", "gt", "gte", "lt", "lte"]},
            "operands": {"type": "array", "minItems": 1, "items": {"$ref": "#/$defs/expression"}},
            "alias": {"type": "string"}
          }
        },
        {
          "type": "object",
          "required": ["target", "aggregation"],
          "properties": {
            "target": {"$ref": "#/$defs/expression"},
            "aggregation": {"enum": ["first", "last", "min", "max", "median", "percentile", "avg", "sum", "stddev", "count", "variance", "diff", "diff_pct", "ema"]},
            "time_range": {"$ref": "#/$defs/timeRange"},
            "params": {"type": "object"},
            "filter": {"$ref": "#/$defs/filter"},
            "alias": {"type": "string"}
          }
        }
      ]
    },
    "timeRange": {
      "type": "object",
      "oneOf": [
        {"required": ["from", "to"], "properties": {"from": {"type": "integer"}, "to": {"type": "integer"}}},
        {"required": ["duration", "unit"], "properties": {
          "duration": {"type": "integer", "exclusiveMinimum": 0},
          "unit": {"enum": ["second", "minute", "hour", "day", "week", "month", "year"]},
          "kind": {"enum": ["relative", "trading"]},
          "at": {"type": "integer"}
        }}
      ]
    },
    "groupCriterion": {
      "type": "object",
      "required": ["dimension"],
      "properties": {
        "dimension": {"type": "string", "minLength": 1},
        "limit": {"type": "integer", "minimum": 0},
        "expression": {"$ref": "#/$defs/expression"}
      }
    },
    "sortCriterion": {
      "type": "object",
      "required": ["expression", "direction"],
      "properties": {
        "expression": {"$ref": "#/$defs/expression"},
        "direction": {"enum": ["asc", "desc"]}
      }
    }
  }
}`

var compiledSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(userQuerySchema)))
	if err != nil {
		panic(fmt.Sprintf("httpapi: invalid embedded schema: %v", err))
	}
	const uri = "https://marketscreener.internal/schemas/user-query.json"
	if err := c.AddResource(uri, doc); err != nil {
		panic(fmt.Sprintf("httpapi: invalid embedded schema: %v", err))
	}
	compiledSchema, err = c.Compile(uri)
	if err != nil {
		panic(fmt.Sprintf("httpapi: schema compile failed: %v", err))
	}
}

// validationDetail is one "path: message" entry spec §6 requires in the
// 422 response body.
type validationDetail struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// validateUserQuery runs the compiled schema against decoded (not
// domain-typed) JSON and returns structured, walkable error detail.
func validateUserQuery(v interface{}) []validationDetail {
	err := compiledSchema.Validate(v)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []validationDetail{{Path: "", Message: err.Error()}}
	}
	var details []validationDetail
	collectValidationErrors(verr, &details)
	return details
}

func collectValidationErrors(verr *jsonschema.ValidationError, out *[]validationDetail) {
	if len(verr.Causes) == 0 {
		path := "/" + strings.Join(toStringSlice(verr.InstanceLocation), "/")
		*out = append(*out, validationDetail{Path: path, Message: verr.Error()})
		return
	}
	for _, cause := range verr.Causes {
		collectValidationErrors(cause, out)
	}
}

func toStringSlice(loc []string) []string {
	if loc == nil {
		return []string{}
	}
	return loc
}
