// Package validation checks raw trace payloads at the wire edge before
// they reach the engine. The engine's functions trust their inputs;
// everything arriving over a transport goes through here first.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/calltree/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// nodeSchemaJSON is the JSON Schema for a single trace node (and,
// through the recursive children reference, a whole tree). Embedded as
// a constant to avoid filesystem dependencies.
const nodeSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://calltree.dev/schemas/node.json",
  "type": "object",
  "required": ["id", "name"],
  "properties": {
    "id": { "type": "string", "minLength": 1 },
    "name": { "type": "string" },
    "type": {
      "type": "string",
      "enum": ["function", "serviceCall", "databaseQuery", "messageQueue", "cacheOp", "externalAPI", "internalAPI", "compute", "diskIO", "networkIO", "event", "task", "virtualRoot"]
    },
    "duration": { "type": "number", "minimum": 0 },
    "startTime": { "type": "number" },
    "endTime": { "type": "number" },
    "status": {
      "type": "string",
      "enum": ["success", "failure", "timeout", "aborted", "pending"]
    },
    "error": {
      "type": "object",
      "required": ["message"],
      "properties": {
        "message": { "type": "string" },
        "code": { "type": "string" },
        "stackTrace": { "type": "string" },
        "severity": { "type": "string" },
        "category": { "type": "string" }
      },
      "additionalProperties": false
    },
    "metadata": { "type": "object" },
    "children": {
      "type": "array",
      "items": { "$ref": "https://calltree.dev/schemas/node.json" }
    },
    "parentCallId": { "type": "string" },
    "depth": { "type": "integer", "minimum": 0 }
  },
  "additionalProperties": false
}`

// flatSchemaJSON is the JSON Schema for the flat-list representation.
const flatSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://calltree.dev/schemas/flat.json",
  "type": "array",
  "items": { "$ref": "https://calltree.dev/schemas/node.json" }
}`

// TraceValidator validates and decodes raw trace payloads using JSON
// Schema Draft 2020-12. It is safe for concurrent use.
type TraceValidator struct {
	treeSchema *jsonschema.Schema
	flatSchema *jsonschema.Schema
}

// NewTraceValidator creates a TraceValidator with both schemas
// pre-compiled.
func NewTraceValidator() (*TraceValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	for id, raw := range map[string]string{
		"https://calltree.dev/schemas/node.json": nodeSchemaJSON,
		"https://calltree.dev/schemas/flat.json": flatSchemaJSON,
	} {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("unmarshal schema %s: %w", id, err)
		}
		if err := c.AddResource(id, doc); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", id, err)
		}
	}

	treeSchema, err := c.Compile("https://calltree.dev/schemas/node.json")
	if err != nil {
		return nil, fmt.Errorf("compile node schema: %w", err)
	}
	flatSchema, err := c.Compile("https://calltree.dev/schemas/flat.json")
	if err != nil {
		return nil, fmt.Errorf("compile flat schema: %w", err)
	}

	return &TraceValidator{treeSchema: treeSchema, flatSchema: flatSchema}, nil
}

// DecodeTree validates a raw tree payload and decodes it, enforcing
// the unique-id invariant the schema cannot express.
func (v *TraceValidator) DecodeTree(data []byte) (*schema.Node, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "payload is not valid JSON").WithCause(err)
	}
	if err := v.treeSchema.Validate(doc); err != nil {
		return nil, toTreeError(err)
	}

	var node schema.Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "failed to decode tree").WithCause(err)
	}

	seen := make(map[string]struct{})
	if err := checkUniqueIDs(&node, seen); err != nil {
		return nil, err
	}
	return &node, nil
}

// DecodeFlat validates a raw flat-list payload and decodes it,
// enforcing id uniqueness across the list.
func (v *TraceValidator) DecodeFlat(data []byte) ([]*schema.Node, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "payload is not valid JSON").WithCause(err)
	}
	if err := v.flatSchema.Validate(doc); err != nil {
		return nil, toTreeError(err)
	}

	var flat []*schema.Node
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "failed to decode flat list").WithCause(err)
	}

	seen := make(map[string]struct{}, len(flat))
	for _, n := range flat {
		if _, dup := seen[n.ID]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "duplicate node id %q", n.ID).WithNode(n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	return flat, nil
}

// checkUniqueIDs walks a tree and rejects duplicate ids, which make
// id-keyed algorithms (reconstruction, fingerprint diffing) undefined.
func checkUniqueIDs(node *schema.Node, seen map[string]struct{}) error {
	if _, dup := seen[node.ID]; dup {
		return schema.NewErrorf(schema.ErrCodeValidation, "duplicate node id %q", node.ID).WithNode(node.ID)
	}
	seen[node.ID] = struct{}{}
	for _, c := range node.Children {
		if err := checkUniqueIDs(c, seen); err != nil {
			return err
		}
	}
	return nil
}

// toTreeError converts a jsonschema.ValidationError into a TreeError
// with the individual violations listed for the caller.
func toTreeError(err error) *schema.TreeError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
