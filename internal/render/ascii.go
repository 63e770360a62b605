// Package render produces text renderings of call trees for tool
// output and debugging. It is a plain serializer, not the interactive
// tree widget the presentation layer owns.
package render

import (
	"fmt"
	"strings"

	"github.com/rendis/calltree/pkg/schema"
)

// statusTag returns a short ASCII indicator for a node status.
func statusTag(status schema.Status) string {
	switch status {
	case schema.StatusSuccess:
		return "[OK]"
	case schema.StatusFailure:
		return "[FAIL]"
	case schema.StatusTimeout:
		return "[TIMEOUT]"
	case schema.StatusAborted:
		return "[ABORT]"
	case schema.StatusPending:
		return "[PEND]"
	default:
		return ""
	}
}

// ASCII renders the tree as an indented listing with box-drawing
// branch connectors, one node per line.
func ASCII(root *schema.Node) string {
	if root == nil {
		return ""
	}
	var b strings.Builder
	writeNode(&b, root, "", "")
	return b.String()
}

func writeNode(b *strings.Builder, node *schema.Node, branch, indent string) {
	b.WriteString(branch)
	b.WriteString(label(node))
	b.WriteByte('\n')

	for i, child := range node.Children {
		last := i == len(node.Children)-1
		connector, childIndent := "├── ", "│   "
		if last {
			connector, childIndent = "└── ", "    "
		}
		writeNode(b, child, indent+connector, indent+childIndent)
	}
}

// label formats one node line: name, type, duration and status tag.
func label(node *schema.Node) string {
	parts := []string{node.Name}
	if node.Type != "" {
		parts = append(parts, fmt.Sprintf("[%s]", node.Type))
	}
	parts = append(parts, fmt.Sprintf("%gms", node.Duration))
	if tag := statusTag(node.Status); tag != "" {
		parts = append(parts, tag)
	}
	return strings.Join(parts, " ")
}
