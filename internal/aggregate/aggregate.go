// Package aggregate computes derived values over a call tree: subtree
// duration totals, the critical path, and resource-usage rollups.
//
// All rollups are simple additive sums. They deliberately do not
// correct for children that overlap or execute concurrently, so none
// of them reconstruct true wall-clock time.
package aggregate

import (
	"github.com/rendis/calltree/pkg/schema"
)

// SubtreeDuration returns the node's own duration plus the sum of
// SubtreeDuration over all children.
func SubtreeDuration(node *schema.Node) float64 {
	if node == nil {
		return 0
	}
	total := node.Duration
	for _, c := range node.Children {
		total += SubtreeDuration(c)
	}
	return total
}

// CriticalPath returns the root-to-leaf branch whose nodes' own
// durations sum to the greatest value. Candidates are scored by the
// sum of durations along the path only, not the full subtree. Ties go
// to the first child in Children order (strict > comparison).
//
// This is the deepest single branch of greatest summed self-duration,
// an approximation that ignores scheduling dependencies among parallel
// children.
func CriticalPath(node *schema.Node) []*schema.Node {
	if node == nil {
		return nil
	}
	if len(node.Children) == 0 {
		return []*schema.Node{node}
	}

	var best []*schema.Node
	bestScore := 0.0
	for i, child := range node.Children {
		path := CriticalPath(child)
		score := PathDuration(path)
		if i == 0 || score > bestScore {
			best = path
			bestScore = score
		}
	}

	out := make([]*schema.Node, 0, len(best)+1)
	out = append(out, node)
	return append(out, best...)
}

// PathDuration sums the own durations of the nodes in a path.
func PathDuration(path []*schema.Node) float64 {
	var total float64
	for _, n := range path {
		total += n.Duration
	}
	return total
}

// Usage is the additive resource rollup over a subtree.
type Usage struct {
	CPU     float64 `json:"cpu"`     // percent, summed
	Memory  float64 `json:"memory"`  // KB
	Network float64 `json:"network"` // bytes transferred
}

// ResourceUtilization sums the cpuUsage, memoryUsage and networkBytes
// metadata fields across the node and all descendants. Missing or
// non-numeric fields count as zero.
func ResourceUtilization(node *schema.Node) Usage {
	var u Usage
	accumulate(node, &u)
	return u
}

func accumulate(node *schema.Node, u *Usage) {
	if node == nil {
		return
	}
	u.CPU += numericField(node.Metadata, schema.MetaCPUUsage)
	u.Memory += numericField(node.Metadata, schema.MetaMemoryUsage)
	u.Network += numericField(node.Metadata, schema.MetaNetworkBytes)
	for _, c := range node.Children {
		accumulate(c, u)
	}
}

func numericField(metadata map[string]any, key string) float64 {
	if metadata == nil {
		return 0
	}
	f, ok := AsFloat(metadata[key])
	if !ok {
		return 0
	}
	return f
}

// AsFloat coerces the numeric types that survive JSON decoding and
// hand-built trees into float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
