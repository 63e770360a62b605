package expressions

import (
	"context"
	"testing"

	"github.com/rendis/calltree/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNode() *schema.Node {
	return &schema.Node{
		ID:       "n1",
		Name:     "GET /orders",
		Type:     schema.NodeTypeServiceCall,
		Duration: 150,
		Status:   schema.StatusFailure,
		Error:    &schema.ErrorInfo{Message: "boom"},
		Metadata: map[string]any{
			schema.MetaServiceName: "orders",
			schema.MetaCPUUsage:    12.5,
		},
		Children: []*schema.Node{{ID: "c1"}},
	}
}

func TestNodeEnv(t *testing.T) {
	env := NodeEnv(testNode())

	node := env["node"].(map[string]any)
	assert.Equal(t, "n1", node["id"])
	assert.Equal(t, "serviceCall", node["type"])
	assert.Equal(t, float64(150), node["duration"])
	assert.Equal(t, 1, node["childCount"])
	assert.Equal(t, true, node["hasError"])

	metadata := env["metadata"].(map[string]any)
	assert.Equal(t, "orders", metadata[schema.MetaServiceName])
}

func TestNodeEnvNil(t *testing.T) {
	env := NodeEnv(nil)
	assert.Empty(t, env["node"])
	assert.Empty(t, env["metadata"])
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(float64(0)))
	assert.False(t, Truthy(0))
	assert.True(t, Truthy(true))
	assert.True(t, Truthy("x"))
	assert.True(t, Truthy(float64(1)))
	assert.True(t, Truthy([]any{}))
}

func TestNew(t *testing.T) {
	for _, name := range []string{"cel", "expr", "jq"} {
		e, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, e.Name())
	}

	_, err := New("lua")
	require.Error(t, err)
	var terr *schema.TreeError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, schema.ErrCodeUnsupported, terr.Code)
}

// --- CEL ---

func TestCELPredicates(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	env := NodeEnv(testNode())

	out, err := e.Evaluate(context.Background(), `node.duration > 100.0`, env)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(context.Background(), `metadata.serviceName == "orders"`, env)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCELCompileError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), `node.duration >`, NodeEnv(testNode()))
	require.Error(t, err)
}

func TestCELEmptyExpression(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
}

func TestCELCacheReuse(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, evalErr := e.Evaluate(context.Background(), `node.hasError`, NodeEnv(testNode()))
		require.NoError(t, evalErr)
		assert.Equal(t, true, out)
	}
	assert.Len(t, e.cache, 1)
}

// --- Expr ---

func TestExprPredicates(t *testing.T) {
	e := NewExprEngine()
	env := NodeEnv(testNode())

	out, err := e.Evaluate(context.Background(), `node.duration > 100 && node.status == "failure"`, env)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	// Optional chaining over an absent metadata key.
	out, err = e.Evaluate(context.Background(), `metadata?.missing ?? "fallback"`, env)
	require.NoError(t, err)
	assert.Equal(t, "fallback", out)
}

func TestExprEmptyExpression(t *testing.T) {
	e := NewExprEngine()
	_, err := e.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
}

// --- GoJQ ---

func TestGoJQPredicates(t *testing.T) {
	e := NewGoJQEngine()
	env := NodeEnv(testNode())

	out, err := e.Evaluate(context.Background(), `.node.duration > 100`, env)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(context.Background(), `.metadata.serviceName`, env)
	require.NoError(t, err)
	assert.Equal(t, "orders", out)
}

func TestGoJQMultipleOutputs(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), `.metadata | keys[]`, NodeEnv(testNode()))
	require.NoError(t, err)
	assert.Equal(t, []any{"cpuUsage", "serviceName"}, out)
}

func TestGoJQParseError(t *testing.T) {
	e := NewGoJQEngine()
	_, err := e.Evaluate(context.Background(), `.node |`, nil)
	require.Error(t, err)
}
