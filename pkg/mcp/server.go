// Package mcp exposes the call-tree engine to external collaborators
// over the Model Context Protocol: presentation callers drive the
// transform/query tools, export flows use anonymize, and diffing
// callers consume fingerprints.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/calltree/internal/expressions"
	"github.com/rendis/calltree/internal/validation"
)

// ServerDeps holds the dependencies for creating a CallTreeServer.
// Zero-value fields are filled with defaults.
type ServerDeps struct {
	Validator *validation.TraceValidator
	Engines   map[string]expressions.Engine // custom-filter engines keyed by language
	Logger    *slog.Logger
}

// CallTreeServer wraps an MCP server with the call-tree tool handlers.
type CallTreeServer struct {
	validator *validation.TraceValidator
	engines   map[string]expressions.Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewCallTreeServer creates a CallTreeServer with all tools registered.
func NewCallTreeServer(deps ServerDeps) (*CallTreeServer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	validator := deps.Validator
	if validator == nil {
		v, err := validation.NewTraceValidator()
		if err != nil {
			return nil, fmt.Errorf("create trace validator: %w", err)
		}
		validator = v
	}

	engines := deps.Engines
	if engines == nil {
		engines = make(map[string]expressions.Engine)
		for _, name := range []string{"cel", "expr", "jq"} {
			eng, err := expressions.New(name)
			if err != nil {
				return nil, fmt.Errorf("create %s engine: %w", name, err)
			}
			engines[eng.Name()] = eng
		}
	}

	s := &CallTreeServer{
		validator: validator,
		engines:   engines,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"calltree",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("calltree transforms hierarchical traces of nested operations. Use calltree.build to reconstruct a tree from a flat span list, calltree.flatten for the inverse, calltree.critical_path and calltree.stats for derived views, calltree.filter and calltree.search to narrow a trace, calltree.anonymize before sharing, calltree.fingerprint for diffing, and calltree.render for a text view."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s, nil
}

// Serve starts the stdio transport and blocks until ctx is cancelled
// or stdin closes.
func (s *CallTreeServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom
// transports.
func (s *CallTreeServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *CallTreeServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: buildTool(), Handler: s.handleBuild},
		{Tool: flattenTool(), Handler: s.handleFlatten},
		{Tool: criticalPathTool(), Handler: s.handleCriticalPath},
		{Tool: statsTool(), Handler: s.handleStats},
		{Tool: filterTool(), Handler: s.handleFilter},
		{Tool: searchTool(), Handler: s.handleSearch},
		{Tool: anonymizeTool(), Handler: s.handleAnonymize},
		{Tool: fingerprintTool(), Handler: s.handleFingerprint},
		{Tool: renderTool(), Handler: s.handleRender},
	}
}

// --- Tool definitions ---

func buildTool() mcp.Tool {
	return mcp.NewTool("calltree.build",
		mcp.WithDescription("Reconstruct a call tree from a flat list of nodes linked by parentCallId. Multiple disconnected roots are wrapped in a synthetic virtual root."),
		mcp.WithArray("flat", mcp.Required(), mcp.Description("Flat list of trace nodes")),
	)
}

func flattenTool() mcp.Tool {
	return mcp.NewTool("calltree.flatten",
		mcp.WithDescription("Flatten a call tree into a pre-order node list annotated with parentCallId and depth"),
		mcp.WithObject("tree", mcp.Required(), mcp.Description("Root node of the call tree")),
		mcp.WithString("parent_id", mcp.Description("parentCallId to assign to the root entry")),
	)
}

func criticalPathTool() mcp.Tool {
	return mcp.NewTool("calltree.critical_path",
		mcp.WithDescription("Compute the root-to-leaf branch with the greatest summed self-duration. An approximation that ignores concurrency among siblings."),
		mcp.WithObject("tree", mcp.Required(), mcp.Description("Root node of the call tree")),
	)
}

func statsTool() mcp.Tool {
	return mcp.NewTool("calltree.stats",
		mcp.WithDescription("Compute additive rollups over a call tree: subtree duration total and cpu/memory/network resource usage"),
		mcp.WithObject("tree", mcp.Required(), mcp.Description("Root node of the call tree")),
	)
}

func filterTool() mcp.Tool {
	return mcp.NewTool("calltree.filter",
		mcp.WithDescription("Prune a call tree to nodes matching every filter, preserving the ancestor path to each match"),
		mcp.WithObject("tree", mcp.Required(), mcp.Description("Root node of the call tree")),
		mcp.WithArray("filters", mcp.Required(), mcp.Description("Filter conditions: {field, operator, value}. Operators: equals, contains, startsWith, endsWith, greaterThan, lessThan, hasError, noError, custom")),
		mcp.WithString("language",
			mcp.Enum("cel", "expr", "jq"),
			mcp.Description("Expression language for the custom operator (default: cel)"),
		),
	)
}

func searchTool() mcp.Tool {
	return mcp.NewTool("calltree.search",
		mcp.WithDescription("Find the first node (pre-order) whose name, error message, type or metadata contains the query"),
		mcp.WithObject("tree", mcp.Required(), mcp.Description("Root node of the call tree")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring to search for")),
		mcp.WithBoolean("case_sensitive", mcp.Description("Match case-sensitively (default: false)")),
	)
}

func anonymizeTool() mcp.Tool {
	return mcp.NewTool("calltree.anonymize",
		mcp.WithDescription("Produce a redacted copy of a call tree with sensitive metadata, arguments, return values and stack traces replaced"),
		mcp.WithObject("tree", mcp.Required(), mcp.Description("Root node of the call tree")),
	)
}

func fingerprintTool() mcp.Tool {
	return mcp.NewTool("calltree.fingerprint",
		mcp.WithDescription("Compute timing-independent structural hashes for diffing captures of the same logical trace"),
		mcp.WithObject("tree", mcp.Required(), mcp.Description("Root node of the call tree")),
		mcp.WithBoolean("all", mcp.Description("Hash every node in the tree instead of just the root (default: false)")),
	)
}

func renderTool() mcp.Tool {
	return mcp.NewTool("calltree.render",
		mcp.WithDescription("Render a call tree as an indented ASCII listing"),
		mcp.WithObject("tree", mcp.Required(), mcp.Description("Root node of the call tree")),
	)
}
