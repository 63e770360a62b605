// Package fingerprint produces timing-independent comparison keys for
// call-tree nodes, used to detect whether two captures represent the
// same logical call shape.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/rendis/calltree/pkg/schema"
)

// StructuralHash returns a comparison key for a single node, ignoring
// its descendants and its volatile timing fields (duration, startTime,
// endTime) as well as the flat-representation annotations. The
// remaining fields are serialized canonically — map keys sorted at
// every level — so two semantically identical nodes hash equal
// regardless of construction order, then digested with SHA-256.
func StructuralHash(node *schema.Node) (string, error) {
	if node == nil {
		return "", schema.NewError(schema.ErrCodeValidation, "cannot fingerprint a nil node")
	}

	stable := map[string]any{
		"id":   node.ID,
		"name": node.Name,
	}
	if node.Type != "" {
		stable["type"] = string(node.Type)
	}
	if node.Status != "" {
		stable["status"] = string(node.Status)
	}
	if node.Error != nil {
		stable["error"] = map[string]any{
			"message":    node.Error.Message,
			"code":       node.Error.Code,
			"stackTrace": node.Error.StackTrace,
			"severity":   node.Error.Severity,
			"category":   node.Error.Category,
		}
	}
	if len(node.Metadata) > 0 {
		stable["metadata"] = node.Metadata
	}

	// encoding/json writes map keys in sorted order at every nesting
	// level, which makes the serialization canonical.
	data, err := json.Marshal(stable)
	if err != nil {
		return "", schema.NewError(schema.ErrCodeValidation, "node is not serializable").
			WithNode(node.ID).
			WithCause(err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
