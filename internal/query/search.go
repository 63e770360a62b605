package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rendis/calltree/pkg/schema"
)

// DeepSearch walks the tree in pre-order and returns the first node
// containing the query as a substring. At each node the checks run in
// order: name, error message (when present), type, then metadata
// values in sorted key order, then children in their existing order.
// Numeric values are stringified before comparison. Returns nil when
// nothing in the subtree matches.
//
// The returned node is the original node, not a copy — DeepSearch is a
// read-only query.
func DeepSearch(node *schema.Node, query string, caseSensitive bool) *schema.Node {
	if node == nil || query == "" {
		return nil
	}

	if matchesQuery(node.Name, query, caseSensitive) {
		return node
	}
	if node.Error != nil && matchesQuery(node.Error.Message, query, caseSensitive) {
		return node
	}
	if matchesQuery(string(node.Type), query, caseSensitive) {
		return node
	}

	// Metadata entries in sorted key order so iteration is stable.
	keys := make([]string, 0, len(node.Metadata))
	for k := range node.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if matchesQuery(stringify(node.Metadata[k]), query, caseSensitive) {
			return node
		}
	}

	for _, child := range node.Children {
		if found := DeepSearch(child, query, caseSensitive); found != nil {
			return found
		}
	}
	return nil
}

func matchesQuery(value, query string, caseSensitive bool) bool {
	if !caseSensitive {
		value = strings.ToLower(value)
		query = strings.ToLower(query)
	}
	return strings.Contains(value, query)
}

// stringify renders a metadata value for substring comparison.
// %v keeps integral floats free of trailing zeros, matching how the
// values were written in the source payload.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
