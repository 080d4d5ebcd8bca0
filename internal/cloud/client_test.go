package cloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeCloud(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DemoAPIKey, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]Model{
			{ID: "m-1", Name: "Supply Chain", Version: "3"},
			{ID: "m-2", Name: "Service System Demo", Version: "1"},
		})
	})
	mux.HandleFunc("/models/m-1/versions/latest", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "v-7"})
	})
	mux.HandleFunc("/versions/v-7/runs", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		inputs, ok := body["inputs"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 150.0, inputs["demand_rate"])
		json.NewEncoder(w).Encode(map[string]string{"id": "run-42", "status": StatusRunning})
	})
	mux.HandleFunc("/runs/run-42", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": StatusCompleted})
	})
	mux.HandleFunc("/runs/run-42/results", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Outputs{"total_cost": 12500.5})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEmptyKeyFallsBackToDemoKey(t *testing.T) {
	c := NewHTTPClient("")
	assert.True(t, c.UsingDemoKey())

	c = NewHTTPClient("real-key")
	assert.False(t, c.UsingDemoKey())
}

func TestListModels(t *testing.T) {
	srv := newFakeCloud(t)
	c := NewHTTPClient("", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "Supply Chain", models[0].Name)
}

func TestStartRunResolvesModelByName(t *testing.T) {
	srv := newFakeCloud(t)
	c := NewHTTPClient("", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	runID, err := c.StartRun(context.Background(), "Supply Chain", map[string]any{"demand_rate": 150.0})
	require.NoError(t, err)
	assert.Equal(t, "run-42", runID)
}

func TestStartRunUnknownModel(t *testing.T) {
	srv := newFakeCloud(t)
	c := NewHTTPClient("", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	_, err := c.StartRun(context.Background(), "No Such Model", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunStatusAndOutputs(t *testing.T) {
	srv := newFakeCloud(t)
	c := NewHTTPClient("", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	status, err := c.RunStatus(context.Background(), "run-42")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)

	outputs, err := c.RunOutputs(context.Background(), "run-42")
	require.NoError(t, err)
	assert.Equal(t, 12500.5, outputs["total_cost"])
}

func TestNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c := NewHTTPClient("", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	_, err := c.ListModels(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
