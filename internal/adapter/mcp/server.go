// Package mcp exposes the orchestrator over the Model Context Protocol so
// AI assistants can submit requirements and read session verdicts as tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/TestForge/internal/domain/agent"
	"github.com/Strob0t/TestForge/internal/domain/requirements"
	"github.com/Strob0t/TestForge/internal/domain/session"
	"github.com/Strob0t/TestForge/internal/service"
)

// SessionOrchestrator is the orchestrator surface exposed over MCP.
type SessionOrchestrator interface {
	ProcessRequirements(ctx context.Context, req requirements.Requirements) (*session.Session, error)
	Session(ctx context.Context, sessionID string) (*session.Session, error)
	Sessions(ctx context.Context) ([]service.SessionSummary, error)
	Report(ctx context.Context, sessionID string) (*service.SessionReport, error)
}

// AgentView is the registry surface exposed over MCP.
type AgentView interface {
	Agents() []agent.Definition
	Default() agent.Definition
}

// ProviderProbe is the gateway surface exposed over MCP.
type ProviderProbe interface {
	Names() []string
	TestConnection(ctx context.Context, name string) bool
}

// ServerConfig holds the MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string // empty disables auth on the MCP endpoint
}

// ServerDeps carries the service surfaces the MCP tools call into.
type ServerDeps struct {
	Orchestrator SessionOrchestrator
	Agents       AgentView
	Providers    ProviderProbe
}

// Server hosts the MCP tool and resource surface over streamable HTTP.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	httpSrv   *http.Server
}

// NewServer creates an MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(
			cfg.Name,
			cfg.Version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithResourceCapabilities(false, true),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *mcpserver.MCPServer { return s.mcpServer }

// Start serves the MCP endpoint at /mcp in a background goroutine.
func (s *Server) Start() error {
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer)

	mux := http.NewServeMux()
	mux.Handle("/mcp", AuthMiddleware(s.cfg.APIKey, streamable))

	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("mcp server listening", "addr", s.cfg.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the MCP endpoint.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// toolResultJSON wraps a marshaled JSON document as a text tool result.
func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
