package sanitize

import (
	"testing"

	"github.com/rendis/calltree/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sensitiveTree() *schema.Node {
	return &schema.Node{
		ID: "root", Name: "checkout",
		Metadata: map[string]any{
			"userId":               "u-123",
			"Email":                "jo@example.com",
			schema.MetaArguments:   map[string]any{"card": "4111111111111111"},
			schema.MetaReturnValue: []any{"ok"},
			schema.MetaServiceName: "checkout-svc",
		},
		Error: &schema.ErrorInfo{
			Message:    "payment declined",
			Code:       "DECLINED",
			StackTrace: "at charge()\nat checkout()",
		},
		Children: []*schema.Node{
			{
				ID: "child", Name: "lookup",
				Metadata: map[string]any{
					"password": "hunter2",
					"region":   "eu-west-1",
				},
			},
		},
	}
}

func TestAnonymizeRedactsSensitiveFields(t *testing.T) {
	out := Anonymize(sensitiveTree())
	require.NotNil(t, out)

	assert.Equal(t, Redacted, out.Metadata["userId"])
	assert.Equal(t, Redacted, out.Metadata["Email"]) // case-insensitive match
	assert.Equal(t, RedactedArguments, out.Metadata[schema.MetaArguments])
	assert.Equal(t, RedactedReturnValue, out.Metadata[schema.MetaReturnValue])

	// Non-sensitive metadata survives.
	assert.Equal(t, "checkout-svc", out.Metadata[schema.MetaServiceName])

	// Stack trace blanked, other error fields preserved.
	require.NotNil(t, out.Error)
	assert.Equal(t, Redacted, out.Error.StackTrace)
	assert.Equal(t, "payment declined", out.Error.Message)
	assert.Equal(t, "DECLINED", out.Error.Code)
}

func TestAnonymizeRecursesIntoChildren(t *testing.T) {
	out := Anonymize(sensitiveTree())
	require.Len(t, out.Children, 1)
	assert.Equal(t, Redacted, out.Children[0].Metadata["password"])
	assert.Equal(t, "eu-west-1", out.Children[0].Metadata["region"])
}

func TestAnonymizeNeverMutatesInput(t *testing.T) {
	tree := sensitiveTree()
	_ = Anonymize(tree)

	assert.Equal(t, "u-123", tree.Metadata["userId"])
	assert.Equal(t, "4111111111111111", tree.Metadata[schema.MetaArguments].(map[string]any)["card"])
	assert.Equal(t, "at charge()\nat checkout()", tree.Error.StackTrace)
	assert.Equal(t, "hunter2", tree.Children[0].Metadata["password"])
}

func TestAnonymizeIdempotent(t *testing.T) {
	once := Anonymize(sensitiveTree())
	twice := Anonymize(once)
	assert.Equal(t, once, twice)
}

func TestAnonymizeNil(t *testing.T) {
	assert.Nil(t, Anonymize(nil))
}
