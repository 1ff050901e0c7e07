package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/TestForge/internal/domain/requirements"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.submitRequirementsTool(),
		s.getSessionStatusTool(),
		s.getSessionReportTool(),
		s.listAgentsTool(),
		s.testProviderTool(),
	)
}

func (s *Server) submitRequirementsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("submit_requirements",
		mcplib.WithDescription("Submit requirements text and open a test session; scenarios are delegated immediately"),
		mcplib.WithString("text",
			mcplib.Required(),
			mcplib.Description("The requirements to test, free text"),
		),
		mcplib.WithString("category",
			mcplib.Description("Requirement category: web_app, api or mobile"),
		),
		mcplib.WithString("business_goals",
			mcplib.Description("Business goals used by the verification engine"),
		),
		mcplib.WithString("target_url",
			mcplib.Description("Deployed target the workers probe"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleSubmitRequirements,
	}
}

func (s *Server) getSessionStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_session_status",
		mcplib.WithDescription("Get the current status of a test session by ID"),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("The session ID to check"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetSessionStatus,
	}
}

func (s *Server) getSessionReportTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_session_report",
		mcplib.WithDescription("Get the full report of a test session: plan, results and verification verdict"),
		mcplib.WithString("session_id",
			mcplib.Required(),
			mcplib.Description("The session ID to report on"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetSessionReport,
	}
}

func (s *Server) listAgentsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_agents",
		mcplib.WithDescription("List the registered worker agent classes and their routing"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListAgents,
	}
}

func (s *Server) testProviderTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("test_provider",
		mcplib.WithDescription("Probe a configured model provider's connectivity"),
		mcplib.WithString("provider",
			mcplib.Required(),
			mcplib.Description("The configured provider name to probe"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleTestProvider,
	}
}

func (s *Server) handleSubmitRequirements(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Orchestrator == nil {
		return mcplib.NewToolResultError("orchestrator not configured"), nil
	}
	args := req.GetArguments()
	text, ok := args["text"].(string)
	if !ok || text == "" {
		return mcplib.NewToolResultError("text is required"), nil
	}

	submission := requirements.Requirements{
		Text:          text,
		Category:      argString(args, "category"),
		BusinessGoals: argString(args, "business_goals"),
		TargetURL:     argString(args, "target_url"),
	}
	sess, err := s.deps.Orchestrator.ProcessRequirements(ctx, submission)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to open session", err), nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal session", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetSessionStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Orchestrator == nil {
		return mcplib.NewToolResultError("orchestrator not configured"), nil
	}
	args := req.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcplib.NewToolResultError("session_id is required"), nil
	}
	sess, err := s.deps.Orchestrator.Session(ctx, sessionID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get session %s", sessionID), err,
		), nil
	}

	status := map[string]any{
		"session_id": sess.ID,
		"status":     sess.DeriveStatus(),
		"scenarios":  len(sess.Scenarios),
		"updated_at": sess.UpdatedAt,
	}
	if sess.Verification != nil {
		status["overall_score"] = sess.Verification.OverallScore
		status["confidence"] = sess.Verification.ConfidenceLevel
	}
	data, err := json.Marshal(status)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal status", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetSessionReport(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Orchestrator == nil {
		return mcplib.NewToolResultError("orchestrator not configured"), nil
	}
	args := req.GetArguments()
	sessionID, ok := args["session_id"].(string)
	if !ok || sessionID == "" {
		return mcplib.NewToolResultError("session_id is required"), nil
	}
	report, err := s.deps.Orchestrator.Report(ctx, sessionID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to build report for session %s", sessionID), err,
		), nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal report", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleListAgents(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return mcplib.NewToolResultError("agent registry not configured"), nil
	}
	payload := map[string]any{
		"agents":  s.deps.Agents.Agents(),
		"default": s.deps.Agents.Default().Key,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal agents", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleTestProvider(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Providers == nil {
		return mcplib.NewToolResultError("provider gateway not configured"), nil
	}
	args := req.GetArguments()
	name, ok := args["provider"].(string)
	if !ok || name == "" {
		return mcplib.NewToolResultError("provider is required"), nil
	}
	healthy := s.deps.Providers.TestConnection(ctx, name)
	data, err := json.Marshal(map[string]any{
		"provider": name,
		"healthy":  healthy,
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal probe result", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
