package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simbridge/internal/auth"
	"simbridge/internal/cloud"
	"simbridge/internal/config"
	"simbridge/internal/simulation"
)

// stubCloud is a scriptable cloud.Client.
type stubCloud struct {
	models     []cloud.Model
	listErr    error
	runID      string
	startErr   error
	status     string
	statusErr  error
	outputs    cloud.Outputs
	outputsErr error

	startCalls int
}

func (c *stubCloud) ListModels(ctx context.Context) ([]cloud.Model, error) {
	return c.models, c.listErr
}

func (c *stubCloud) StartRun(ctx context.Context, modelName string, parameters map[string]any) (string, error) {
	c.startCalls++
	return c.runID, c.startErr
}

func (c *stubCloud) RunStatus(ctx context.Context, runID string) (string, error) {
	return c.status, c.statusErr
}

func (c *stubCloud) RunOutputs(ctx context.Context, runID string) (cloud.Outputs, error) {
	return c.outputs, c.outputsErr
}

func newTestServer(t *testing.T, stub *stubCloud) *Server {
	t.Helper()

	store, err := simulation.NewStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{Host: "127.0.0.1", Port: 8000}
	return New(cfg, store, func(apiKey string) cloud.Client { return stub })
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func anonymousCtx() context.Context {
	return context.Background()
}

func userCtx(username string, privileged bool) context.Context {
	return auth.WithIdentity(context.Background(), &auth.Identity{
		UserID:       42,
		Username:     username,
		IsPrivileged: privileged,
	})
}

// resultPayload decodes the JSON text content of a tool result.
func resultPayload(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotEmpty(t, result.Content)
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(textContent.Text), &payload))
	return payload
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return textContent.Text
}

func TestGatingDeniesAnonymousCaller(t *testing.T) {
	s := newTestServer(t, &stubCloud{})

	executed := 0
	handler := s.gated(auth.TierAuthenticated, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		executed++
		return mcp.NewToolResultText("ok"), nil
	})

	result, err := handler(anonymousCtx(), toolRequest("list_models", nil))
	require.NoError(t, err, "denial is a tool error payload, not a protocol error")
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "authentication required")
	assert.Equal(t, 0, executed, "gated handler body must not run")
}

func TestGatingDeniesStandardUserOnPrivilegedTool(t *testing.T) {
	s := newTestServer(t, &stubCloud{})

	executed := 0
	handler := s.gated(auth.TierPrivileged, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		executed++
		return mcp.NewToolResultText("ok"), nil
	})

	result, err := handler(userCtx("bob", false), toolRequest("run_simulation", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "bob")
	assert.Equal(t, 0, executed)
}

func TestGatingAdmitsPrivilegedUser(t *testing.T) {
	s := newTestServer(t, &stubCloud{})

	handler := s.gated(auth.TierPrivileged, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	})

	result, err := handler(userCtx("admin", true), toolRequest("run_simulation", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestGetServerInfo(t *testing.T) {
	s := newTestServer(t, &stubCloud{})

	result, err := s.handleGetServerInfo(anonymousCtx(), toolRequest("get_server_info", nil))
	require.NoError(t, err)
	payload := resultPayload(t, result)
	assert.Equal(t, ServerName, payload["server"])
	assert.Equal(t, "Not authenticated", payload["authentication_status"])

	result, err = s.handleGetServerInfo(userCtx("admin", true), toolRequest("get_server_info", nil))
	require.NoError(t, err)
	payload = resultPayload(t, result)
	assert.Equal(t, "Authenticated as admin (Privileged)", payload["authentication_status"])
}

func TestToolsRequireConnectFirst(t *testing.T) {
	s := newTestServer(t, &stubCloud{})
	ctx := userCtx("admin", true)

	result, err := s.handleListModels(ctx, toolRequest("list_models", nil))
	require.NoError(t, err)
	payload := resultPayload(t, result)
	assert.Equal(t, false, payload["success"])
	assert.Contains(t, payload["error"], "connect_anylogic")
}

func TestConnectThenListModels(t *testing.T) {
	stub := &stubCloud{models: []cloud.Model{{ID: "m-1", Name: "Supply Chain"}}}
	s := newTestServer(t, stub)
	ctx := userCtx("alice", false)

	result, err := s.handleConnect(ctx, toolRequest("connect_anylogic", nil))
	require.NoError(t, err)
	payload := resultPayload(t, result)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, true, payload["using_demo_key"])
	assert.True(t, s.usingDemoKey())

	result, err = s.handleListModels(ctx, toolRequest("list_models", nil))
	require.NoError(t, err)
	payload = resultPayload(t, result)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, float64(1), payload["count"])
}

func TestConnectWithOwnKey(t *testing.T) {
	s := newTestServer(t, &stubCloud{})

	_, err := s.handleConnect(userCtx("alice", false),
		toolRequest("connect_anylogic", map[string]any{"api_key": "my-key"}))
	require.NoError(t, err)
	assert.False(t, s.usingDemoKey())
}

func TestListDemoModels(t *testing.T) {
	s := newTestServer(t, &stubCloud{})

	result, err := s.handleListDemoModels(userCtx("alice", false), toolRequest("list_demo_models", nil))
	require.NoError(t, err)
	payload := resultPayload(t, result)
	assert.Equal(t, true, payload["success"])
	models, ok := payload["models"].([]any)
	require.True(t, ok)
	assert.Len(t, models, len(demoModels))
}

func TestRunSimulation(t *testing.T) {
	stub := &stubCloud{runID: "cloud-run-1"}
	s := newTestServer(t, stub)
	ctx := userCtx("admin", true)

	_, err := s.handleConnect(ctx, toolRequest("connect_anylogic", nil))
	require.NoError(t, err)

	result, err := s.handleRunSimulation(ctx, toolRequest("run_simulation", map[string]any{
		"model_name": "Supply Chain",
		"parameters": map[string]any{"demand_rate": 150.0},
	}))
	require.NoError(t, err)
	payload := resultPayload(t, result)
	assert.Equal(t, true, payload["success"])

	simID, ok := payload["simulation_id"].(string)
	require.True(t, ok)
	run, err := s.store.Get(simID)
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusRunning, run.Status)
	assert.Equal(t, "cloud-run-1", run.CloudRunID)
	assert.Equal(t, 1, stub.startCalls)
}

func TestRunSimulationMissingModelName(t *testing.T) {
	s := newTestServer(t, &stubCloud{})

	result, err := s.handleRunSimulation(userCtx("admin", true),
		toolRequest("run_simulation", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRunSimulationRejectsNonObjectParameters(t *testing.T) {
	s := newTestServer(t, &stubCloud{})

	result, err := s.handleRunSimulation(userCtx("admin", true),
		toolRequest("run_simulation", map[string]any{
			"model_name": "Supply Chain",
			"parameters": "demand_rate=150",
		}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRunSimulationStartFailure(t *testing.T) {
	stub := &stubCloud{startErr: errors.New("quota exceeded")}
	s := newTestServer(t, stub)
	ctx := userCtx("admin", true)

	_, err := s.handleConnect(ctx, toolRequest("connect_anylogic", nil))
	require.NoError(t, err)

	result, err := s.handleRunSimulation(ctx, toolRequest("run_simulation", map[string]any{
		"model_name": "Supply Chain",
	}))
	require.NoError(t, err)
	payload := resultPayload(t, result)
	assert.Equal(t, false, payload["success"])
	assert.Contains(t, payload["error"], "quota exceeded")
	assert.Empty(t, s.store.List("all"), "failed starts are not recorded")
}

func TestGetResultsPollsCloudAndCaches(t *testing.T) {
	stub := &stubCloud{
		runID:   "cloud-run-1",
		status:  cloud.StatusCompleted,
		outputs: cloud.Outputs{"total_cost": 12500.5},
	}
	s := newTestServer(t, stub)
	ctx := userCtx("admin", true)

	_, err := s.handleConnect(ctx, toolRequest("connect_anylogic", nil))
	require.NoError(t, err)

	runResult, err := s.handleRunSimulation(ctx, toolRequest("run_simulation", map[string]any{
		"model_name": "Supply Chain",
	}))
	require.NoError(t, err)
	simID := resultPayload(t, runResult)["simulation_id"].(string)

	result, err := s.handleGetResults(ctx, toolRequest("get_simulation_results", map[string]any{
		"simulation_id": simID,
	}))
	require.NoError(t, err)
	payload := resultPayload(t, result)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, simulation.StatusCompleted, payload["status"])
	assert.Nil(t, payload["loaded_from_disk"])

	run, err := s.store.Get(simID)
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusCompleted, run.Status)

	// The second call is served from disk without touching the cloud.
	result, err = s.handleGetResults(ctx, toolRequest("get_simulation_results", map[string]any{
		"simulation_id": simID,
	}))
	require.NoError(t, err)
	payload = resultPayload(t, result)
	assert.Equal(t, true, payload["loaded_from_disk"])
	results, ok := payload["results"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 12500.5, results["total_cost"])
}

func TestGetResultsStillRunning(t *testing.T) {
	stub := &stubCloud{runID: "cloud-run-1", status: cloud.StatusRunning}
	s := newTestServer(t, stub)
	ctx := userCtx("admin", true)

	_, err := s.handleConnect(ctx, toolRequest("connect_anylogic", nil))
	require.NoError(t, err)

	runResult, err := s.handleRunSimulation(ctx, toolRequest("run_simulation", map[string]any{
		"model_name": "Supply Chain",
	}))
	require.NoError(t, err)
	simID := resultPayload(t, runResult)["simulation_id"].(string)

	result, err := s.handleGetResults(ctx, toolRequest("get_simulation_results", map[string]any{
		"simulation_id": simID,
	}))
	require.NoError(t, err)
	payload := resultPayload(t, result)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, cloud.StatusRunning, payload["status"])
}

func TestGetResultsUnknownSimulation(t *testing.T) {
	s := newTestServer(t, &stubCloud{})

	result, err := s.handleGetResults(userCtx("alice", false),
		toolRequest("get_simulation_results", map[string]any{"simulation_id": "sim_missing"}))
	require.NoError(t, err)
	payload := resultPayload(t, result)
	assert.Equal(t, false, payload["success"])
	assert.Contains(t, payload["error"], "not found")
}

func TestExportResults(t *testing.T) {
	s := newTestServer(t, &stubCloud{})

	id := s.store.NewRunID()
	_, err := s.store.Create(id, "Supply Chain", nil, "")
	require.NoError(t, err)
	require.NoError(t, s.store.SaveOutputs(id, cloud.Outputs{"total_cost": 12500.5}))

	result, err := s.handleExportResults(userCtx("admin", true),
		toolRequest("export_simulation_results", map[string]any{
			"simulation_id": id,
			"format":        "csv",
		}))
	require.NoError(t, err)
	payload := resultPayload(t, result)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "csv", payload["format"])
	assert.Contains(t, payload["export_file"], id)
}

func TestCleanupDefaults(t *testing.T) {
	s := newTestServer(t, &stubCloud{})

	result, err := s.handleCleanup(userCtx("admin", true),
		toolRequest("cleanup_simulations", nil))
	require.NoError(t, err)
	payload := resultPayload(t, result)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, float64(0), payload["cleaned_count"])
	assert.Contains(t, payload["criteria"], "30 days")
}

func TestCleanupRejectsBadFilter(t *testing.T) {
	s := newTestServer(t, &stubCloud{})

	result, err := s.handleCleanup(userCtx("admin", true),
		toolRequest("cleanup_simulations", map[string]any{"status_filter": "running"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
