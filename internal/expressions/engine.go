// Package expressions evaluates caller-supplied predicate expressions
// for the query layer's custom filter operator. Three interchangeable
// engines are provided: CEL, Expr and GoJQ.
package expressions

import (
	"context"

	"github.com/rendis/calltree/pkg/schema"
)

// Engine evaluates an expression against a node-scoped environment.
// The environment exposes two top-level variables:
//   - node:     scalar fields of the node under test (id, name, type,
//     duration, startTime, endTime, status, childCount, hasError)
//   - metadata: the node's open metadata bag
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// NodeEnv builds the evaluation environment for a node.
func NodeEnv(node *schema.Node) map[string]any {
	if node == nil {
		return map[string]any{"node": map[string]any{}, "metadata": map[string]any{}}
	}
	metadata := node.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		"node": map[string]any{
			"id":         node.ID,
			"name":       node.Name,
			"type":       string(node.Type),
			"duration":   node.Duration,
			"startTime":  node.StartTime,
			"endTime":    node.EndTime,
			"status":     string(node.Status),
			"childCount": len(node.Children),
			"hasError":   node.Error != nil,
		},
		"metadata": metadata,
	}
}

// Truthy reports whether an evaluation result counts as a match.
// nil, false, zero numbers and empty strings do not match; everything
// else does.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case uint64:
		return val != 0
	default:
		return true
	}
}

// New returns the engine registered under the given name: "cel",
// "expr" or "jq".
func New(name string) (Engine, error) {
	switch name {
	case "cel":
		return NewCELEngine()
	case "expr":
		return NewExprEngine(), nil
	case "jq":
		return NewGoJQEngine(), nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeUnsupported, "unknown expression engine: %s", name)
	}
}
