package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"simbridge/internal/auth"
	"simbridge/internal/cloud"
	"simbridge/internal/config"
	"simbridge/internal/simulation"
	"simbridge/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ServerName and ServerVersion identify this MCP server to clients.
const (
	ServerName    = "simbridge"
	ServerVersion = "1.0.0"
)

// CloudFactory builds a cloud client for an API key. Swapped out in tests.
type CloudFactory func(apiKey string) cloud.Client

// Server exposes the simulation cloud as MCP tools, resources, and prompts.
// Tool handlers are gated by access tier: the identity resolved by the
// transport travels in the request context and is checked at dispatch time.
type Server struct {
	cfg      *config.Config
	store    *simulation.Store
	newCloud CloudFactory

	mu          sync.RWMutex
	cloudClient cloud.Client
	demoKey     bool

	mcpServer *server.MCPServer
}

// New creates the MCP server and registers all tools, resources, and
// prompts. A nil factory uses the real HTTP cloud client.
func New(cfg *config.Config, store *simulation.Store, factory CloudFactory) *Server {
	if factory == nil {
		factory = func(apiKey string) cloud.Client {
			return cloud.NewHTTPClient(apiKey)
		}
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
	)

	s := &Server{
		cfg:       cfg,
		store:     store,
		newCloud:  factory,
		mcpServer: mcpServer,
	}

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying MCP server for transport mounting.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves the MCP protocol over stdin/stdout. The identity, if
// any, was resolved once at startup from the environment-provided token and
// applies for the lifetime of this process invocation.
func (s *Server) ServeStdio(ctx context.Context, identity *auth.Identity) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetContextFunc(func(ctx context.Context) context.Context {
		return auth.WithIdentity(ctx, identity)
	})
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// gated wraps a tool handler with a tier check. The wrapped handler body
// never runs when the check fails; the rejection is rendered as a tool
// error payload, matching how clients expect auth failures from this
// server.
func (s *Server) gated(tier auth.Tier, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		identity, err := auth.Require(ctx, tier)
		if err != nil {
			username := ""
			if id := auth.IdentityFromContext(ctx); id != nil {
				username = id.Username
			}
			logging.Audit(logging.AuditEvent{
				Action:  request.Params.Name,
				Outcome: "denied",
				User:    username,
				Detail:  err.Error(),
			})
			return mcp.NewToolResultError(err.Error()), nil
		}
		if tier == auth.TierPrivileged {
			logging.Audit(logging.AuditEvent{
				Action:  request.Params.Name,
				Outcome: "allowed",
				User:    identity.Username,
			})
		}
		return handler(ctx, request)
	}
}

// cloud returns the connected cloud client, or nil before connect_anylogic
// has been called.
func (s *Server) cloud() cloud.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloudClient
}

// connectCloud swaps in a client for the given API key and remembers whether
// the demo key is in use.
func (s *Server) connectCloud(apiKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cloudClient = s.newCloud(apiKey)
	s.demoKey = apiKey == ""
}

// usingDemoKey reports whether the current connection uses the demo key.
func (s *Server) usingDemoKey() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.demoKey
}

// notConnectedResult is the uniform reply for tools invoked before
// connect_anylogic.
func notConnectedResult() *mcp.CallToolResult {
	return toolJSON(map[string]any{
		"success": false,
		"error":   "Not connected. Use connect_anylogic first.",
	})
}

// toolJSON renders a payload as an indented JSON tool result.
func toolJSON(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("failed to encode result: " + err.Error())
	}
	return mcp.NewToolResultText(string(data))
}

// toolFailure renders an operation failure as a success=false payload.
func toolFailure(message string, err error) *mcp.CallToolResult {
	if err != nil {
		message = message + ": " + err.Error()
	}
	return toolJSON(map[string]any{
		"success": false,
		"error":   message,
	})
}

// isNotFound reports whether err is the store's missing-run error.
func isNotFound(err error) bool {
	return errors.Is(err, simulation.ErrRunNotFound)
}
