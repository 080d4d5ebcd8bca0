package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"simbridge/pkg/logging"
)

// DemoAPIKey grants access to the public demo models. Used when no key is
// supplied to the connect tool.
const DemoAPIKey = "e05a6efa-ea5f-4adf-b090-ae0ca7d16c20"

// DefaultBaseURL is the simulation cloud's open API root.
const DefaultBaseURL = "https://cloud.anylogic.com/api/open/8.5.0"

// DefaultHTTPTimeout bounds individual cloud API calls. Callers additionally
// propagate request-scoped cancellation through the context.
const DefaultHTTPTimeout = 60 * time.Second

// Run status values reported by the cloud.
const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Model describes a model available in the cloud account.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
}

// Outputs is the raw key/value output set of a completed run. The service
// treats it as opaque JSON.
type Outputs map[string]any

// Client is the narrow boundary to the simulation cloud. The cloud's own
// behavior (numerics, scheduling, result semantics) is out of scope; this
// interface exists so the rest of the service can be tested against a stub.
type Client interface {
	// ListModels returns the models visible to the configured API key.
	ListModels(ctx context.Context) ([]Model, error)

	// StartRun launches a run of the named model with the given parameter
	// overrides and returns the provider's run id.
	StartRun(ctx context.Context, modelName string, parameters map[string]any) (string, error)

	// RunStatus reports the provider-side status of a run.
	RunStatus(ctx context.Context, runID string) (string, error)

	// RunOutputs fetches the outputs of a completed run.
	RunOutputs(ctx context.Context, runID string) (Outputs, error)
}

// HTTPClient talks to the cloud REST API.
//
// Thread-safe: all fields are immutable after construction.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithBaseURL points the client at a different API root, used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *HTTPClient) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient sets a custom underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewHTTPClient builds a cloud client for the given API key. An empty key
// falls back to the demo key.
func NewHTTPClient(apiKey string, opts ...Option) *HTTPClient {
	if apiKey == "" {
		apiKey = DemoAPIKey
	}
	c := &HTTPClient{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UsingDemoKey reports whether the client authenticates with the demo key.
func (c *HTTPClient) UsingDemoKey() bool {
	return c.apiKey == DemoAPIKey
}

// ListModels implements Client.
func (c *HTTPClient) ListModels(ctx context.Context) ([]Model, error) {
	var models []Model
	if err := c.get(ctx, "/models", &models); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	return models, nil
}

// StartRun implements Client. It resolves the model by exact name, targets
// its latest version, and submits the parameter overrides as run inputs.
func (c *HTTPClient) StartRun(ctx context.Context, modelName string, parameters map[string]any) (string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return "", err
	}

	var target *Model
	for i := range models {
		if models[i].Name == modelName {
			target = &models[i]
			break
		}
	}
	if target == nil {
		return "", fmt.Errorf("model %q not found", modelName)
	}

	var version struct {
		ID string `json:"id"`
	}
	if err := c.get(ctx, "/models/"+target.ID+"/versions/latest", &version); err != nil {
		return "", fmt.Errorf("resolving latest version of %q: %w", modelName, err)
	}

	body := map[string]any{"inputs": parameters}
	var run struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.post(ctx, "/versions/"+version.ID+"/runs", body, &run); err != nil {
		return "", fmt.Errorf("starting run of %q: %w", modelName, err)
	}

	logging.Info("Cloud", "Started run %s for model %q", run.ID, modelName)
	return run.ID, nil
}

// RunStatus implements Client.
func (c *HTTPClient) RunStatus(ctx context.Context, runID string) (string, error) {
	var run struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/runs/"+runID, &run); err != nil {
		return "", fmt.Errorf("fetching status of run %s: %w", runID, err)
	}
	return run.Status, nil
}

// RunOutputs implements Client.
func (c *HTTPClient) RunOutputs(ctx context.Context, runID string) (Outputs, error) {
	var outputs Outputs
	if err := c.get(ctx, "/runs/"+runID+"/results", &outputs); err != nil {
		return nil, fmt.Errorf("fetching outputs of run %s: %w", runID, err)
	}
	return outputs, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
