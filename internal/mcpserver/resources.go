package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"simbridge/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
)

// Resource URIs exposed by the server.
const (
	ResourceModels            = "anylogic://models"
	ResourceConnectionStatus  = "anylogic://connection-status"
	ResourceSimulationHistory = "anylogic://simulations/history"
	resourceSimulationPrefix  = "anylogic://simulation/"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		ResourceModels,
		"Models available in the connected AnyLogic Cloud account.",
		mcp.WithMIMEType("application/json"),
	), s.handleModelsResource)

	s.mcpServer.AddResource(mcp.NewResource(
		ResourceConnectionStatus,
		"Current connection status of the simulation cloud client.",
		mcp.WithMIMEType("application/json"),
	), s.handleConnectionStatusResource)

	s.mcpServer.AddResource(mcp.NewResource(
		ResourceSimulationHistory,
		"Complete simulation history with statuses and timestamps.",
		mcp.WithMIMEType("application/json"),
	), s.handleHistoryResource)

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(
		resourceSimulationPrefix+"{simulation_id}",
		"Metadata and results of an individual simulation.",
		mcp.WithTemplateMIMEType("application/json"),
	), s.handleSimulationResource)
}

// jsonResource renders v as a single JSON resource content.
func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleModelsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	client := s.cloud()
	if client == nil {
		return jsonResource(ResourceModels, map[string]any{
			"connected": false,
			"error":     "Not connected to AnyLogic Cloud",
		})
	}

	models, err := client.ListModels(ctx)
	if err != nil {
		logging.Error("MCP", err, "Failed to fetch models resource")
		return jsonResource(ResourceModels, map[string]any{
			"connected": true,
			"error":     fmt.Sprintf("Failed to fetch models: %v", err),
		})
	}

	return jsonResource(ResourceModels, map[string]any{
		"connected": true,
		"models":    models,
		"count":     len(models),
	})
}

func (s *Server) handleConnectionStatusResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	status := map[string]any{
		"connected": s.cloud() != nil,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if s.cloud() != nil {
		status["using_demo_key"] = s.usingDemoKey()
	}
	return jsonResource(ResourceConnectionStatus, status)
}

func (s *Server) handleHistoryResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	runs := s.store.List("all")

	entries := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		entries = append(entries, map[string]any{
			"id":              run.ID,
			"model_name":      run.ModelName,
			"status":          run.Status,
			"created":         run.Created,
			"completed":       run.Completed,
			"parameter_count": len(run.Parameters),
		})
	}

	return jsonResource(ResourceSimulationHistory, map[string]any{
		"total_simulations": len(entries),
		"simulations":       entries,
	})
}

func (s *Server) handleSimulationResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	simID := strings.TrimPrefix(uri, resourceSimulationPrefix)

	run, err := s.store.Get(simID)
	if err != nil {
		if isNotFound(err) {
			return jsonResource(uri, map[string]any{
				"error": fmt.Sprintf("Simulation %s not found", simID),
			})
		}
		return nil, err
	}

	outputs, hasResults, err := s.store.LoadOutputs(simID)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"id":          run.ID,
		"model_name":  run.ModelName,
		"status":      run.Status,
		"created":     run.Created,
		"completed":   run.Completed,
		"parameters":  run.Parameters,
		"has_results": hasResults,
	}
	if hasResults {
		payload["results"] = outputs
	}

	return jsonResource(uri, payload)
}
