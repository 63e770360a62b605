// Package convert translates traces between the hierarchical tree form
// and the flat pre-order list form linked by parentCallId.
package convert

import (
	"github.com/google/uuid"
	"github.com/rendis/calltree/pkg/schema"
)

// VirtualRootName labels the synthetic root created when a flat list
// reconstructs into more than one disconnected tree.
const VirtualRootName = "Multiple entry points"

// Flatten converts a tree into a pre-order list: each node before its
// children, children in their existing order. Every entry is a copy of
// the original annotated with ParentCallID (its actual parent, or the
// supplied parentID for the root) and Depth (distance from the
// traversal root). Children are stripped from the entries; the flat
// list is reconstructed solely from ParentCallID. The input is never
// mutated.
func Flatten(root *schema.Node, parentID string) []*schema.Node {
	if root == nil {
		return nil
	}
	out := make([]*schema.Node, 0, count(root))
	flattenInto(&out, root, parentID, 0)
	return out
}

func flattenInto(out *[]*schema.Node, node *schema.Node, parentID string, depth int) {
	entry := node.CloneShallow()
	entry.ParentCallID = parentID
	entry.Depth = depth
	*out = append(*out, entry)

	for _, child := range node.Children {
		flattenInto(out, child, node.ID, depth+1)
	}
}

// BuildTree re-links a flat list into a tree. It returns nil for an
// empty list. Nodes whose ParentCallID references an id present in the
// list become children of that node, in list-iteration order; a node
// with no ParentCallID, or one referencing an id absent from the list
// (a dangling parent from partial capture), is treated as a root
// candidate rather than an error. Parent references forming a cycle
// are broken at the first listed node, which is promoted to a root.
//
// A single root candidate is returned directly. Multiple candidates
// are wrapped in a synthetic virtual root carrying their summed
// duration, earliest start, latest end, and metadata recording the
// synthesis. For single-root well-formed input, BuildTree is the exact
// inverse of Flatten.
func BuildTree(flat []*schema.Node) *schema.Node {
	if len(flat) == 0 {
		return nil
	}

	// Working copies with children reset; the output tree owns its
	// nodes independently of the input list.
	copies := make([]*schema.Node, len(flat))
	byID := make(map[string]*schema.Node, len(flat))
	for i, n := range flat {
		c := n.CloneShallow()
		copies[i] = c
		byID[n.ID] = c
	}

	var roots []*schema.Node
	for _, c := range copies {
		parent, ok := byID[c.ParentCallID]
		if c.ParentCallID == "" || !ok || parent == c {
			roots = append(roots, c)
			continue
		}
		parent.Children = append(parent.Children, c)
	}

	// A parent-reference cycle leaves no root candidate. Promote the
	// first listed node, detaching its back-edge, so malformed links
	// degrade instead of failing.
	if len(roots) == 0 {
		first := copies[0]
		if parent, ok := byID[first.ParentCallID]; ok {
			parent.Children = detach(parent.Children, first)
		}
		roots = append(roots, first)
	}

	if len(roots) == 1 {
		root := roots[0]
		root.ParentCallID = ""
		root.Depth = 0
		clearAnnotations(root)
		return root
	}

	return synthesizeRoot(roots)
}

// synthesizeRoot wraps disconnected root candidates in a virtual root.
func synthesizeRoot(roots []*schema.Node) *schema.Node {
	vroot := &schema.Node{
		ID:        uuid.New().String(),
		Name:      VirtualRootName,
		Type:      schema.NodeTypeVirtualRoot,
		StartTime: roots[0].StartTime,
		EndTime:   roots[0].EndTime,
		Metadata: map[string]any{
			"synthesized": true,
			"rootCount":   len(roots),
		},
		Children: roots,
	}
	for _, r := range roots {
		r.ParentCallID = ""
		r.Depth = 0
		vroot.Duration += r.Duration
		if r.StartTime < vroot.StartTime {
			vroot.StartTime = r.StartTime
		}
		if r.EndTime > vroot.EndTime {
			vroot.EndTime = r.EndTime
		}
		clearAnnotations(r)
	}
	return vroot
}

// detach removes node from a children slice by identity.
func detach(children []*schema.Node, node *schema.Node) []*schema.Node {
	for i, c := range children {
		if c == node {
			return append(children[:i], children[i+1:]...)
		}
	}
	return children
}

// clearAnnotations removes flat-only fields from a reconstructed
// subtree so the result matches a hand-authored tree.
func clearAnnotations(node *schema.Node) {
	for _, c := range node.Children {
		c.ParentCallID = ""
		c.Depth = 0
		clearAnnotations(c)
	}
}

func count(node *schema.Node) int {
	n := 1
	for _, c := range node.Children {
		n += count(c)
	}
	return n
}
