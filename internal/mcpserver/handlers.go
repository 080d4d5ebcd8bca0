package mcpserver

import (
	"context"
	"fmt"
	"time"

	"simbridge/internal/auth"
	"simbridge/internal/cloud"
	"simbridge/internal/simulation"
	"simbridge/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools declares every tool with its access tier. Tier assignment
// follows a read/write split: reads need authentication, anything that
// spends cloud compute or mutates stored results needs the privileged tier.
func (s *Server) registerTools() {
	// Tier 1: public.
	s.mcpServer.AddTool(mcp.NewTool("get_server_info",
		mcp.WithDescription("Get server information and authentication status. Available without authentication."),
	), s.gated(auth.TierPublic, s.handleGetServerInfo))

	// Tier 2: authenticated.
	s.mcpServer.AddTool(mcp.NewTool("connect_anylogic",
		mcp.WithDescription("Connect to AnyLogic Cloud with an API key (uses the public demo key if not provided)."),
		mcp.WithString("api_key", mcp.Description("AnyLogic Cloud API key")),
	), s.gated(auth.TierAuthenticated, s.handleConnect))

	s.mcpServer.AddTool(mcp.NewTool("list_models",
		mcp.WithDescription("List available models in AnyLogic Cloud."),
	), s.gated(auth.TierAuthenticated, s.handleListModels))

	s.mcpServer.AddTool(mcp.NewTool("list_demo_models",
		mcp.WithDescription("List known public demo models available in AnyLogic Cloud."),
	), s.gated(auth.TierAuthenticated, s.handleListDemoModels))

	s.mcpServer.AddTool(mcp.NewTool("list_simulations",
		mcp.WithDescription("List all simulations (running and completed)."),
		mcp.WithString("status_filter", mcp.Description("Filter by status: running, completed, failed, or all")),
	), s.gated(auth.TierAuthenticated, s.handleListSimulations))

	s.mcpServer.AddTool(mcp.NewTool("get_simulation_results",
		mcp.WithDescription("Get results from a completed simulation."),
		mcp.WithString("simulation_id", mcp.Required(), mcp.Description("Simulation id returned by run_simulation")),
	), s.gated(auth.TierAuthenticated, s.handleGetResults))

	// Tier 3: privileged.
	s.mcpServer.AddTool(mcp.NewTool("run_simulation",
		mcp.WithDescription("Run a simulation model with the given parameter overrides."),
		mcp.WithString("model_name", mcp.Required(), mcp.Description("Exact model name as listed by list_models")),
		mcp.WithObject("parameters", mcp.Description("Parameter overrides passed to the model inputs")),
	), s.gated(auth.TierPrivileged, s.handleRunSimulation))

	s.mcpServer.AddTool(mcp.NewTool("export_simulation_results",
		mcp.WithDescription("Export simulation results to CSV or JSON."),
		mcp.WithString("simulation_id", mcp.Required(), mcp.Description("Simulation id to export")),
		mcp.WithString("format", mcp.Required(), mcp.Description("Export format: csv or json")),
	), s.gated(auth.TierPrivileged, s.handleExportResults))

	s.mcpServer.AddTool(mcp.NewTool("cleanup_simulations",
		mcp.WithDescription("Clean up old simulation data."),
		mcp.WithNumber("days_old", mcp.Description("Remove simulations older than this many days (default 30)")),
		mcp.WithString("status_filter", mcp.Description("Limit cleanup to a status: completed, failed, or all (default completed)")),
	), s.gated(auth.TierPrivileged, s.handleCleanup))
}

func (s *Server) handleGetServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	authStatus := "Not authenticated"
	if identity := auth.IdentityFromContext(ctx); identity != nil {
		level := "Standard"
		if identity.IsPrivileged {
			level = "Privileged"
		}
		authStatus = fmt.Sprintf("Authenticated as %s (%s)", identity.Username, level)
	}

	return toolJSON(map[string]any{
		"server":                ServerName,
		"version":               ServerVersion,
		"authentication_status": authStatus,
		"authentication_url":    fmt.Sprintf("http://%s/auth/login", s.cfg.BindAddr()),
	}), nil
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	apiKey := request.GetString("api_key", "")
	s.connectCloud(apiKey)

	logging.Info("MCP", "Connected to simulation cloud (demo key: %t)", apiKey == "")
	return toolJSON(map[string]any{
		"success":        true,
		"message":        "Connected to AnyLogic Cloud",
		"using_demo_key": apiKey == "",
	}), nil
}

func (s *Server) handleListModels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client := s.cloud()
	if client == nil {
		return notConnectedResult(), nil
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		logging.Error("MCP", err, "Failed to list models")
		return toolFailure("Failed to list models", err), nil
	}

	return toolJSON(map[string]any{
		"success": true,
		"models":  models,
		"count":   len(models),
	}), nil
}

// demoModels are well-known public models, listed without a cloud round
// trip so clients can try the server before connecting.
var demoModels = []map[string]string{
	{
		"name":        "Service System Demo",
		"description": "A queue/service system simulation - ideal for testing basic functionality",
		"type":        "Service System",
	},
	{
		"name":        "Supply Chain",
		"description": "Basic supply chain simulation model",
		"type":        "Supply Chain",
	},
	{
		"name":        "Global Supply Chain",
		"description": "Multi-regional supply chain with demand variability",
		"type":        "Supply Chain",
	},
	{
		"name":        "Supply Chain (market driven)",
		"description": "Supply chain with market dynamics and competition",
		"type":        "Supply Chain",
	},
}

func (s *Server) handleListDemoModels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolJSON(map[string]any{
		"success": true,
		"models":  demoModels,
		"note":    "These are common public demo models. Use list_models to see all models in your account.",
	}), nil
}

func (s *Server) handleListSimulations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := request.GetString("status_filter", "all")
	runs := s.store.List(filter)

	return toolJSON(map[string]any{
		"success":     true,
		"simulations": runs,
		"total_count": len(runs),
	}), nil
}

func (s *Server) handleRunSimulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	modelName, err := request.RequireString("model_name")
	if err != nil {
		return mcp.NewToolResultError("model_name argument is required"), nil
	}

	parameters := map[string]any{}
	if raw := request.GetArguments()["parameters"]; raw != nil {
		params, ok := raw.(map[string]any)
		if !ok {
			return mcp.NewToolResultError("parameters must be an object"), nil
		}
		parameters = params
	}

	client := s.cloud()
	if client == nil {
		return notConnectedResult(), nil
	}

	cloudRunID, err := client.StartRun(ctx, modelName, parameters)
	if err != nil {
		logging.Error("MCP", err, "Failed to run simulation for model %q", modelName)
		return toolFailure("Failed to run simulation", err), nil
	}

	run, err := s.store.Create(s.store.NewRunID(), modelName, parameters, cloudRunID)
	if err != nil {
		return toolFailure("Failed to record simulation", err), nil
	}

	identity := auth.IdentityFromContext(ctx)
	logging.Info("MCP", "Started simulation %s for model %q (user %s)", run.ID, modelName, identity.Username)

	return toolJSON(map[string]any{
		"success":       true,
		"simulation_id": run.ID,
		"message":       fmt.Sprintf("Simulation started for model %q", modelName),
		"parameters":    parameters,
	}), nil
}

func (s *Server) handleGetResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	simID, err := request.RequireString("simulation_id")
	if err != nil {
		return mcp.NewToolResultError("simulation_id argument is required"), nil
	}

	run, err := s.store.Get(simID)
	if err != nil {
		if isNotFound(err) {
			return toolFailure(fmt.Sprintf("Simulation %s not found", simID), nil), nil
		}
		return toolFailure("Failed to look up simulation", err), nil
	}

	// Cached outputs serve restarts and repeat queries without a cloud call.
	if outputs, ok, err := s.store.LoadOutputs(simID); err != nil {
		return toolFailure("Failed to load results", err), nil
	} else if ok {
		return toolJSON(map[string]any{
			"success":          true,
			"simulation_id":    simID,
			"status":           run.Status,
			"results":          outputs,
			"loaded_from_disk": true,
		}), nil
	}

	client := s.cloud()
	if client == nil {
		return notConnectedResult(), nil
	}
	if run.CloudRunID == "" {
		return toolFailure(fmt.Sprintf("No results available for %s", simID), nil), nil
	}

	status, err := client.RunStatus(ctx, run.CloudRunID)
	if err != nil {
		logging.Error("MCP", err, "Failed to poll status of %s", simID)
		return toolFailure("Failed to get simulation status", err), nil
	}
	if status != cloud.StatusCompleted {
		return toolJSON(map[string]any{
			"success": false,
			"error":   "Simulation not yet completed",
			"status":  status,
		}), nil
	}

	outputs, err := client.RunOutputs(ctx, run.CloudRunID)
	if err != nil {
		logging.Error("MCP", err, "Failed to fetch outputs of %s", simID)
		return toolFailure("Failed to get results", err), nil
	}

	if err := s.store.SaveOutputs(simID, outputs); err != nil {
		logging.Warn("MCP", "Failed to persist outputs of %s: %v", simID, err)
	}
	if err := s.store.SetStatus(simID, simulation.StatusCompleted); err != nil {
		logging.Warn("MCP", "Failed to update status of %s: %v", simID, err)
	}

	return toolJSON(map[string]any{
		"success":       true,
		"simulation_id": simID,
		"status":        simulation.StatusCompleted,
		"results":       outputs,
	}), nil
}

func (s *Server) handleExportResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	simID, err := request.RequireString("simulation_id")
	if err != nil {
		return mcp.NewToolResultError("simulation_id argument is required"), nil
	}
	format, err := request.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format argument is required"), nil
	}

	path, err := s.store.ExportResults(simID, format)
	if err != nil {
		if isNotFound(err) {
			return toolFailure(fmt.Sprintf("Simulation %s not found", simID), nil), nil
		}
		logging.Error("MCP", err, "Export failed for %s", simID)
		return toolFailure("Export failed", err), nil
	}

	return toolJSON(map[string]any{
		"success":       true,
		"export_file":   path,
		"format":        format,
		"simulation_id": simID,
	}), nil
}

func (s *Server) handleCleanup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	daysOld := request.GetInt("days_old", 30)
	filter := request.GetString("status_filter", simulation.StatusCompleted)
	switch filter {
	case simulation.StatusCompleted, simulation.StatusFailed, "all":
	default:
		return mcp.NewToolResultError("status_filter must be 'completed', 'failed', or 'all'"), nil
	}

	cleaned, err := s.store.Cleanup(time.Duration(daysOld)*24*time.Hour, filter)
	if err != nil {
		logging.Error("MCP", err, "Cleanup failed")
		return toolFailure("Cleanup failed", err), nil
	}

	return toolJSON(map[string]any{
		"success":       true,
		"cleaned_count": cleaned,
		"criteria":      fmt.Sprintf("Older than %d days with status %q", daysOld, filter),
	}), nil
}
