// Package query filters call trees down to matching subtrees and
// performs first-match deep search.
package query

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rendis/calltree/internal/aggregate"
	"github.com/rendis/calltree/internal/expressions"
	"github.com/rendis/calltree/pkg/schema"
)

// Operator enumerates the supported filter comparisons.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpStartsWith  Operator = "startsWith"
	OpEndsWith    Operator = "endsWith"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpHasError    Operator = "hasError"
	OpNoError     Operator = "noError"

	// OpCustom evaluates the filter value as an expression through the
	// engine configured on Config. With no engine configured it
	// matches every node.
	OpCustom Operator = "custom"
)

// Filter is one {field, operator, value} condition. Field is a direct
// node attribute name or a dotted path into metadata
// (e.g. "metadata.serviceName").
type Filter struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Config carries the query layer's collaborators. The zero value is
// valid: no custom-operator engine and no logging.
type Config struct {
	Engine expressions.Engine
	Logger *slog.Logger
}

// ApplyFilters prunes the tree to nodes matching every filter, keeping
// the ancestor path to each match: a node is retained if it matches
// directly or if at least one filtered child remains. An empty filter
// list matches every node. Returns nil when nothing in the subtree
// matches — a normal outcome, not a failure.
//
// The result is a new tree; the input is never mutated. Filter
// evaluation never raises: a field resolving to nothing, or an
// operator applied to a wrongly typed value, simply does not match.
// The context is passed to custom-operator expression evaluation.
func ApplyFilters(ctx context.Context, node *schema.Node, filters []Filter, cfg Config) *schema.Node {
	if node == nil {
		return nil
	}

	// Children first, so pruning propagates bottom-up.
	var kept []*schema.Node
	for _, child := range node.Children {
		if filtered := ApplyFilters(ctx, child, filters, cfg); filtered != nil {
			kept = append(kept, filtered)
		}
	}

	if !matches(ctx, node, filters, cfg) && len(kept) == 0 {
		return nil
	}

	out := node.CloneShallow()
	out.Children = kept
	return out
}

// matches reports whether the node passes every filter.
func matches(ctx context.Context, node *schema.Node, filters []Filter, cfg Config) bool {
	for _, f := range filters {
		if !evalFilter(ctx, node, f, cfg) {
			return false
		}
	}
	return true
}

func evalFilter(ctx context.Context, node *schema.Node, f Filter, cfg Config) bool {
	switch f.Operator {
	case OpHasError:
		return node.Error != nil
	case OpNoError:
		return node.Error == nil
	case OpCustom:
		return evalCustom(ctx, node, f, cfg)
	}

	fieldVal, ok := resolveField(node, f.Field)
	if !ok {
		return false
	}

	switch f.Operator {
	case OpEquals:
		return looseEqual(fieldVal, f.Value)
	case OpContains, OpStartsWith, OpEndsWith:
		s, sok := fieldVal.(string)
		q, qok := f.Value.(string)
		if !sok || !qok {
			warn(cfg, node, f, "string operator on non-string value")
			return false
		}
		switch f.Operator {
		case OpStartsWith:
			return strings.HasPrefix(s, q)
		case OpEndsWith:
			return strings.HasSuffix(s, q)
		default:
			return strings.Contains(s, q)
		}
	case OpGreaterThan, OpLessThan:
		fv, fok := aggregate.AsFloat(fieldVal)
		qv, qok := aggregate.AsFloat(f.Value)
		if !fok || !qok {
			warn(cfg, node, f, "numeric operator on non-numeric value")
			return false
		}
		if f.Operator == OpGreaterThan {
			return fv > qv
		}
		return fv < qv
	default:
		warn(cfg, node, f, "unknown operator")
		return false
	}
}

// evalCustom runs the configured expression engine with the filter
// value as the expression source. Evaluation errors count as no match.
func evalCustom(ctx context.Context, node *schema.Node, f Filter, cfg Config) bool {
	if cfg.Engine == nil {
		return true
	}
	expression, ok := f.Value.(string)
	if !ok {
		warn(cfg, node, f, "custom operator requires a string expression")
		return false
	}
	out, err := cfg.Engine.Evaluate(ctx, expression, expressions.NodeEnv(node))
	if err != nil {
		warn(cfg, node, f, err.Error())
		return false
	}
	return expressions.Truthy(out)
}

// resolveField reads a direct node attribute or walks a dotted path
// into metadata. The second return is false when the path resolves to
// nothing.
func resolveField(node *schema.Node, field string) (any, bool) {
	switch field {
	case "id":
		return node.ID, true
	case "name":
		return node.Name, true
	case "type":
		return string(node.Type), true
	case "duration":
		return node.Duration, true
	case "startTime":
		return node.StartTime, true
	case "endTime":
		return node.EndTime, true
	case "status":
		return string(node.Status), true
	case "parentCallId":
		return node.ParentCallID, true
	case "depth":
		return node.Depth, true
	}

	segments := strings.Split(field, ".")
	if segments[0] != "metadata" || node.Metadata == nil {
		return nil, false
	}

	var current any = node.Metadata
	for _, seg := range segments[1:] {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// looseEqual compares a resolved field against a filter value:
// numbers by float64 value, strings and bools directly. Mismatched
// kinds never match.
func looseEqual(a, b any) bool {
	if af, aok := aggregate.AsFloat(a); aok {
		bf, bok := aggregate.AsFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func warn(cfg Config, node *schema.Node, f Filter, msg string) {
	if cfg.Logger == nil {
		return
	}
	cfg.Logger.Warn("filter did not match",
		slog.String("node_id", node.ID),
		slog.String("field", f.Field),
		slog.String("operator", string(f.Operator)),
		slog.String("reason", msg),
	)
}
