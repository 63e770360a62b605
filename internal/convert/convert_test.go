package convert

import (
	"testing"

	"github.com/rendis/calltree/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *schema.Node {
	return &schema.Node{
		ID: "root", Name: "handler", Type: schema.NodeTypeFunction,
		Duration: 10, StartTime: 1000, EndTime: 1100,
		Children: []*schema.Node{
			{
				ID: "db", Name: "SELECT users", Type: schema.NodeTypeDatabaseQuery,
				Duration: 50, StartTime: 1010, EndTime: 1060,
				Metadata: map[string]any{schema.MetaServiceName: "users-db"},
			},
			{
				ID: "svc", Name: "POST /charge", Type: schema.NodeTypeServiceCall,
				Duration: 5, StartTime: 1020, EndTime: 1025,
				Children: []*schema.Node{
					{ID: "retry", Name: "retry", Type: schema.NodeTypeNetworkIO, Duration: 100, StartTime: 1021, EndTime: 1121},
				},
			},
		},
	}
}

func TestFlattenPreOrder(t *testing.T) {
	flat := Flatten(sampleTree(), "")

	require.Len(t, flat, 4)
	ids := []string{flat[0].ID, flat[1].ID, flat[2].ID, flat[3].ID}
	assert.Equal(t, []string{"root", "db", "svc", "retry"}, ids)

	// Parent and depth annotations.
	assert.Equal(t, "", flat[0].ParentCallID)
	assert.Equal(t, 0, flat[0].Depth)
	assert.Equal(t, "root", flat[1].ParentCallID)
	assert.Equal(t, 1, flat[1].Depth)
	assert.Equal(t, "root", flat[2].ParentCallID)
	assert.Equal(t, "svc", flat[3].ParentCallID)
	assert.Equal(t, 2, flat[3].Depth)

	// Entries are a pre-order stream: children are stripped.
	for _, entry := range flat {
		assert.Nil(t, entry.Children)
	}
}

func TestFlattenWithSuppliedParentID(t *testing.T) {
	flat := Flatten(sampleTree(), "external-parent")
	assert.Equal(t, "external-parent", flat[0].ParentCallID)
}

func TestFlattenDoesNotMutateInput(t *testing.T) {
	tree := sampleTree()
	flat := Flatten(tree, "")

	flat[1].Name = "changed"
	flat[1].Metadata[schema.MetaServiceName] = "changed"

	assert.Equal(t, "SELECT users", tree.Children[0].Name)
	assert.Equal(t, "users-db", tree.Children[0].Metadata[schema.MetaServiceName])
	assert.Equal(t, "", tree.ParentCallID)
	assert.Len(t, tree.Children, 2)
}

func TestBuildTreeEmpty(t *testing.T) {
	assert.Nil(t, BuildTree(nil))
	assert.Nil(t, BuildTree([]*schema.Node{}))
}

func TestRoundTrip(t *testing.T) {
	tree := sampleTree()
	rebuilt := BuildTree(Flatten(tree, ""))

	require.NotNil(t, rebuilt)
	assert.Equal(t, tree, rebuilt)
}

func TestBuildTreeDanglingParentBecomesRoot(t *testing.T) {
	flat := []*schema.Node{
		{ID: "a", Name: "a", ParentCallID: "missing", Duration: 1},
		{ID: "b", Name: "b", ParentCallID: "a", Duration: 2},
	}

	root := BuildTree(flat)
	require.NotNil(t, root)
	assert.Equal(t, "a", root.ID)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "b", root.Children[0].ID)
}

func TestBuildTreeMultiRootSynthesis(t *testing.T) {
	a := &schema.Node{ID: "a", Name: "a", Duration: 10, StartTime: 100, EndTime: 110}
	b := &schema.Node{ID: "b", Name: "b", Duration: 20, StartTime: 50, EndTime: 200}

	root := BuildTree([]*schema.Node{a, b})
	require.NotNil(t, root)

	assert.Equal(t, schema.NodeTypeVirtualRoot, root.Type)
	assert.Equal(t, VirtualRootName, root.Name)
	assert.NotEmpty(t, root.ID)
	assert.Equal(t, float64(30), root.Duration)
	assert.Equal(t, float64(50), root.StartTime)
	assert.Equal(t, float64(200), root.EndTime)
	assert.Equal(t, true, root.Metadata["synthesized"])
	assert.Equal(t, 2, root.Metadata["rootCount"])

	// Children are the root candidates in input order.
	require.Len(t, root.Children, 2)
	assert.Equal(t, "a", root.Children[0].ID)
	assert.Equal(t, "b", root.Children[1].ID)
}

func TestBuildTreeChildOrderFollowsListOrder(t *testing.T) {
	flat := []*schema.Node{
		{ID: "root", Name: "root"},
		{ID: "c2", Name: "second", ParentCallID: "root"},
		{ID: "c1", Name: "first", ParentCallID: "root"},
	}

	root := BuildTree(flat)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "c2", root.Children[0].ID)
	assert.Equal(t, "c1", root.Children[1].ID)
}

func TestBuildTreeParentCycle(t *testing.T) {
	flat := []*schema.Node{
		{ID: "a", Name: "a", ParentCallID: "b"},
		{ID: "b", Name: "b", ParentCallID: "a"},
	}

	root := BuildTree(flat)
	require.NotNil(t, root)
	assert.Equal(t, "a", root.ID)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "b", root.Children[0].ID)
	assert.Empty(t, root.Children[0].Children)
}

func TestBuildTreeLongerCycle(t *testing.T) {
	flat := []*schema.Node{
		{ID: "a", Name: "a", ParentCallID: "c"},
		{ID: "b", Name: "b", ParentCallID: "a"},
		{ID: "c", Name: "c", ParentCallID: "b"},
	}

	root := BuildTree(flat)
	require.NotNil(t, root)
	assert.Equal(t, "a", root.ID)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "b", root.Children[0].ID)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, "c", root.Children[0].Children[0].ID)
}

func TestBuildTreeCycleAlongsideRealRoot(t *testing.T) {
	flat := []*schema.Node{
		{ID: "root", Name: "root"},
		{ID: "x", Name: "x", ParentCallID: "y"},
		{ID: "y", Name: "y", ParentCallID: "x"},
	}

	// The cycle pair is unreachable from the real root and is dropped.
	root := BuildTree(flat)
	require.NotNil(t, root)
	assert.Equal(t, "root", root.ID)
	assert.Empty(t, root.Children)
}

func TestBuildTreeDoesNotMutateInput(t *testing.T) {
	a := &schema.Node{ID: "a", Name: "a", ParentCallID: "keep-me"}
	b := &schema.Node{ID: "b", Name: "b", ParentCallID: "a"}

	root := BuildTree([]*schema.Node{a, b})
	root.Children[0].Name = "changed"

	assert.Equal(t, "keep-me", a.ParentCallID)
	assert.Equal(t, "b", b.Name)
	assert.Nil(t, a.Children)
}
