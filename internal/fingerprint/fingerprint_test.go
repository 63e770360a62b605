package fingerprint

import (
	"testing"

	"github.com/rendis/calltree/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuralHashIgnoresTiming(t *testing.T) {
	first := &schema.Node{
		ID: "op-1", Name: "GET /users", Type: schema.NodeTypeServiceCall,
		Duration: 120, StartTime: 1000, EndTime: 1120,
		Metadata: map[string]any{"serviceName": "users"},
	}
	second := &schema.Node{
		ID: "op-1", Name: "GET /users", Type: schema.NodeTypeServiceCall,
		Duration: 450, StartTime: 9999, EndTime: 10449,
		Metadata: map[string]any{"serviceName": "users"},
	}

	h1, err := StructuralHash(first)
	require.NoError(t, err)
	h2, err := StructuralHash(second)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestStructuralHashIgnoresChildrenAndAnnotations(t *testing.T) {
	bare := &schema.Node{ID: "op-1", Name: "fetch"}
	decorated := &schema.Node{
		ID: "op-1", Name: "fetch",
		ParentCallID: "parent", Depth: 3,
		Children: []*schema.Node{{ID: "child", Name: "child"}},
	}

	h1, err := StructuralHash(bare)
	require.NoError(t, err)
	h2, err := StructuralHash(decorated)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestStructuralHashDistinguishesContent(t *testing.T) {
	base := &schema.Node{ID: "op-1", Name: "fetch"}

	differentName := &schema.Node{ID: "op-1", Name: "store"}
	withError := &schema.Node{ID: "op-1", Name: "fetch", Error: &schema.ErrorInfo{Message: "x"}}
	withStatus := &schema.Node{ID: "op-1", Name: "fetch", Status: schema.StatusTimeout}

	hBase, err := StructuralHash(base)
	require.NoError(t, err)

	for _, variant := range []*schema.Node{differentName, withError, withStatus} {
		h, hashErr := StructuralHash(variant)
		require.NoError(t, hashErr)
		assert.NotEqual(t, hBase, h)
	}
}

func TestStructuralHashMetadataOrderIndependent(t *testing.T) {
	// Same logical metadata built in different insertion orders.
	a := &schema.Node{ID: "x", Name: "x", Metadata: map[string]any{}}
	a.Metadata["alpha"] = 1
	a.Metadata["beta"] = map[string]any{"z": true, "a": false}

	b := &schema.Node{ID: "x", Name: "x", Metadata: map[string]any{}}
	b.Metadata["beta"] = map[string]any{"a": false, "z": true}
	b.Metadata["alpha"] = 1

	h1, err := StructuralHash(a)
	require.NoError(t, err)
	h2, err := StructuralHash(b)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestStructuralHashNil(t *testing.T) {
	_, err := StructuralHash(nil)
	require.Error(t, err)
}
