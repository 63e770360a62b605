package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/calltree/internal/aggregate"
	"github.com/rendis/calltree/internal/convert"
	"github.com/rendis/calltree/internal/fingerprint"
	"github.com/rendis/calltree/internal/logging"
	"github.com/rendis/calltree/internal/query"
	"github.com/rendis/calltree/internal/render"
	"github.com/rendis/calltree/internal/sanitize"
	"github.com/rendis/calltree/pkg/schema"
)

// handleBuild reconstructs a tree from a flat node list.
func (s *CallTreeServer) handleBuild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "calltree.build")

	flat, err := s.decodeFlatArg(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid flat list: %v", err)), nil
	}
	if len(flat) == 0 {
		return mcp.NewToolResultError("flat must contain at least one node"), nil
	}

	tree := convert.BuildTree(flat)
	ctx = logging.WithTraceID(ctx, tree.ID)
	s.logger.InfoContext(ctx, "tree built", "nodes", len(flat))
	return marshalResult(tree)
}

// handleFlatten converts a tree into its pre-order flat form.
func (s *CallTreeServer) handleFlatten(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "calltree.flatten")

	tree, err := s.decodeTreeArg(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid tree: %v", err)), nil
	}
	parentID := req.GetString("parent_id", "")
	ctx = logging.WithTraceID(ctx, tree.ID)

	nodes := convert.Flatten(tree, parentID)
	s.logger.InfoContext(ctx, "tree flattened", "nodes", len(nodes))
	return marshalResult(map[string]any{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// handleCriticalPath computes the dominant root-to-leaf branch.
func (s *CallTreeServer) handleCriticalPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "calltree.critical_path")

	tree, err := s.decodeTreeArg(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid tree: %v", err)), nil
	}

	ctx = logging.WithTraceID(ctx, tree.ID)

	path := aggregate.CriticalPath(tree)
	entries := make([]map[string]any, 0, len(path))
	for _, node := range path {
		entries = append(entries, map[string]any{
			"id":          node.ID,
			"name":        node.Name,
			"type":        node.Type,
			"duration_ms": node.Duration,
		})
	}

	s.logger.InfoContext(ctx, "critical path computed", "length", len(path))
	return marshalResult(map[string]any{
		"path":                entries,
		"path_duration_ms":    aggregate.PathDuration(path),
		"subtree_duration_ms": aggregate.SubtreeDuration(tree),
	})
}

// handleStats computes additive rollups over the tree.
func (s *CallTreeServer) handleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "calltree.stats")

	tree, err := s.decodeTreeArg(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid tree: %v", err)), nil
	}

	ctx = logging.WithTraceID(ctx, tree.ID)

	usage := aggregate.ResourceUtilization(tree)
	nodeCount := len(convert.Flatten(tree, ""))

	s.logger.InfoContext(ctx, "stats computed", "nodes", nodeCount)
	return marshalResult(map[string]any{
		"subtree_duration_ms": aggregate.SubtreeDuration(tree),
		"node_count":          nodeCount,
		"resources": map[string]any{
			"cpu":           usage.CPU,
			"memory":        usage.Memory,
			"network_bytes": usage.Network,
		},
	})
}

// handleFilter prunes the tree to matching nodes and their ancestors.
func (s *CallTreeServer) handleFilter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "calltree.filter")

	tree, err := s.decodeTreeArg(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid tree: %v", err)), nil
	}

	ctx = logging.WithTraceID(ctx, tree.ID)

	rawFilters, ok := req.GetArguments()["filters"]
	if !ok {
		return mcp.NewToolResultError("filters is required"), nil
	}
	data, marshalErr := json.Marshal(rawFilters)
	if marshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid filters: %v", marshalErr)), nil
	}
	var filters []query.Filter
	if decodeErr := json.Unmarshal(data, &filters); decodeErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid filters: %v", decodeErr)), nil
	}

	language := req.GetString("language", "cel")
	engine, found := s.engines[language]
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported expression language %q", language)), nil
	}

	result := query.ApplyFilters(ctx, tree, filters, query.Config{Engine: engine, Logger: s.logger})
	if result == nil {
		s.logger.InfoContext(ctx, "filter matched nothing", "filters", len(filters))
		return marshalResult(map[string]any{"matched": false})
	}

	s.logger.InfoContext(ctx, "filter applied", "filters", len(filters))
	return marshalResult(map[string]any{
		"matched": true,
		"tree":    result,
	})
}

// handleSearch finds the first node containing the query string.
func (s *CallTreeServer) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "calltree.search")

	tree, err := s.decodeTreeArg(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid tree: %v", err)), nil
	}
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}
	caseSensitive := req.GetBool("case_sensitive", false)
	ctx = logging.WithTraceID(ctx, tree.ID)

	found := query.DeepSearch(tree, q, caseSensitive)
	if found == nil {
		s.logger.InfoContext(ctx, "search found nothing", "query", q)
		return marshalResult(map[string]any{"found": false})
	}

	ctx = logging.WithNodeID(ctx, found.ID)
	s.logger.InfoContext(ctx, "search matched", "query", q)
	return marshalResult(map[string]any{
		"found": true,
		"node":  found,
	})
}

// handleAnonymize produces a redacted copy of the tree.
func (s *CallTreeServer) handleAnonymize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "calltree.anonymize")

	tree, err := s.decodeTreeArg(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid tree: %v", err)), nil
	}

	ctx = logging.WithTraceID(ctx, tree.ID)
	redacted := sanitize.Anonymize(tree)
	s.logger.InfoContext(ctx, "tree anonymized")
	return marshalResult(redacted)
}

// handleFingerprint computes structural hashes for diffing.
func (s *CallTreeServer) handleFingerprint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "calltree.fingerprint")

	tree, err := s.decodeTreeArg(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid tree: %v", err)), nil
	}

	ctx = logging.WithTraceID(ctx, tree.ID)

	if !req.GetBool("all", false) {
		hash, hashErr := fingerprint.StructuralHash(tree)
		if hashErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fingerprint failed: %v", hashErr)), nil
		}
		s.logger.InfoContext(ctx, "fingerprint computed")
		return marshalResult(map[string]any{
			"id":   tree.ID,
			"hash": hash,
		})
	}

	hashes := make(map[string]string)
	if hashErr := hashSubtree(tree, hashes); hashErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fingerprint failed: %v", hashErr)), nil
	}
	s.logger.InfoContext(ctx, "fingerprints computed", "nodes", len(hashes))
	return marshalResult(map[string]any{
		"hashes": hashes,
	})
}

// handleRender returns an ASCII listing of the tree.
func (s *CallTreeServer) handleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "calltree.render")

	tree, err := s.decodeTreeArg(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid tree: %v", err)), nil
	}

	ctx = logging.WithTraceID(ctx, tree.ID)
	s.logger.InfoContext(ctx, "tree rendered")
	return mcp.NewToolResultText(render.ASCII(tree)), nil
}

// hashSubtree fills hashes with id->hash entries for every node.
func hashSubtree(node *schema.Node, hashes map[string]string) error {
	hash, err := fingerprint.StructuralHash(node)
	if err != nil {
		return err
	}
	hashes[node.ID] = hash
	for _, child := range node.Children {
		if err := hashSubtree(child, hashes); err != nil {
			return err
		}
	}
	return nil
}

// decodeTreeArg extracts and validates the "tree" argument.
func (s *CallTreeServer) decodeTreeArg(req mcp.CallToolRequest) (*schema.Node, error) {
	raw, ok := req.GetArguments()["tree"]
	if !ok {
		return nil, schema.NewError(schema.ErrCodeValidation, "tree is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "tree is not valid JSON").WithCause(err)
	}
	return s.validator.DecodeTree(data)
}

// decodeFlatArg extracts and validates the "flat" argument.
func (s *CallTreeServer) decodeFlatArg(req mcp.CallToolRequest) ([]*schema.Node, error) {
	raw, ok := req.GetArguments()["flat"]
	if !ok {
		return nil, schema.NewError(schema.ErrCodeValidation, "flat is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "flat is not valid JSON").WithCause(err)
	}
	return s.validator.DecodeFlat(data)
}

// marshalResult converts a value to a JSON tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
