package simulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"simbridge/internal/cloud"
	"simbridge/pkg/logging"

	"github.com/google/uuid"
)

// Run status values tracked by the store. These are the service's own
// lifecycle states, distinct from the cloud's run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	metadataFileName = "metadata.json"
	outputsFileName  = "outputs.json"
)

// ErrRunNotFound is returned when a simulation id is not in the registry.
var ErrRunNotFound = errors.New("simulation not found")

// Run is the metadata tracked for one simulation run. It is what gets
// persisted to metadata.json so runs survive restarts.
type Run struct {
	ID         string         `json:"sim_id"`
	ModelName  string         `json:"model_name"`
	Parameters map[string]any `json:"parameters"`
	Status     string         `json:"status"`
	Created    time.Time      `json:"created"`
	Completed  *time.Time     `json:"completed,omitempty"`

	// CloudRunID links the record to the provider-side run. Empty for runs
	// loaded from disk after a restart, which can only serve cached outputs.
	CloudRunID string `json:"cloud_run_id,omitempty"`
}

// Store is the registry of simulation runs, backed by per-run directories
// under <dir>/results. All methods are safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*Run

	resultsDir string
	exportsDir string

	now func() time.Time
}

// NewStore creates the storage directory layout and loads any runs persisted
// by previous invocations.
func NewStore(dir string) (*Store, error) {
	s := &Store{
		runs:       make(map[string]*Run),
		resultsDir: filepath.Join(dir, "results"),
		exportsDir: filepath.Join(dir, "exports"),
		now:        time.Now,
	}

	for _, sub := range []string{
		s.resultsDir,
		filepath.Join(s.exportsDir, "csv"),
		filepath.Join(s.exportsDir, "json"),
	} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory %s: %w", sub, err)
		}
	}

	if err := s.loadExisting(); err != nil {
		return nil, err
	}
	return s, nil
}

// loadExisting restores run metadata from disk. Unreadable entries are
// skipped with a warning rather than failing startup.
func (s *Store) loadExisting() error {
	entries, err := os.ReadDir(s.resultsDir)
	if err != nil {
		return fmt.Errorf("reading results directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "sim_") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.resultsDir, entry.Name(), metadataFileName))
		if err != nil {
			logging.Warn("Store", "Skipping %s: %v", entry.Name(), err)
			continue
		}
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			logging.Warn("Store", "Skipping %s: malformed metadata: %v", entry.Name(), err)
			continue
		}
		if run.ID == "" {
			run.ID = entry.Name()
		}
		s.runs[run.ID] = &run
		loaded++
	}

	logging.Info("Store", "Loaded %d existing simulations", loaded)
	return nil
}

// NewRunID generates a simulation id. The timestamp keeps ids sortable and
// human-readable; the random suffix prevents collisions for runs started
// within the same second.
func (s *Store) NewRunID() string {
	return fmt.Sprintf("sim_%s_%s", s.now().Format("20060102_150405"), uuid.NewString()[:8])
}

// Create registers a new running simulation and persists its metadata.
func (s *Store) Create(id, modelName string, parameters map[string]any, cloudRunID string) (*Run, error) {
	run := &Run{
		ID:         id,
		ModelName:  modelName,
		Parameters: parameters,
		Status:     StatusRunning,
		Created:    s.now(),
		CloudRunID: cloudRunID,
	}

	s.mu.Lock()
	s.runs[id] = run
	s.mu.Unlock()

	if err := s.saveMetadata(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Get returns the run with the given id.
func (s *Store) Get(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	copied := *run
	return &copied, nil
}

// List returns all runs, newest first, optionally filtered by status.
// An empty or "all" filter returns everything.
func (s *Store) List(statusFilter string) []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*Run
	for _, run := range s.runs {
		if statusFilter != "" && statusFilter != "all" && run.Status != statusFilter {
			continue
		}
		copied := *run
		runs = append(runs, &copied)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Created.After(runs[j].Created)
	})
	return runs
}

// SetStatus records a status transition and persists it. Completed and
// failed transitions stamp the completion time.
func (s *Store) SetStatus(id, status string) error {
	s.mu.Lock()
	run, ok := s.runs[id]
	if ok {
		run.Status = status
		if status == StatusCompleted || status == StatusFailed {
			completed := s.now()
			run.Completed = &completed
		}
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return s.saveMetadata(run)
}

// SaveOutputs persists run outputs alongside the metadata.
func (s *Store) SaveOutputs(id string, outputs cloud.Outputs) error {
	data, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding outputs for %s: %w", id, err)
	}
	path := filepath.Join(s.resultsDir, id, outputsFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadOutputs reads previously persisted outputs. The boolean reports
// whether an outputs file exists.
func (s *Store) LoadOutputs(id string) (cloud.Outputs, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.resultsDir, id, outputsFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var outputs cloud.Outputs
	if err := json.Unmarshal(data, &outputs); err != nil {
		return nil, false, fmt.Errorf("decoding outputs of %s: %w", id, err)
	}
	return outputs, true, nil
}

// Cleanup removes runs created more than maxAge ago whose status matches the
// filter ("all" matches any status). It returns the number of runs removed
// from both the registry and disk.
func (s *Store) Cleanup(maxAge time.Duration, statusFilter string) (int, error) {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	var doomed []string
	for id, run := range s.runs {
		if !run.Created.Before(cutoff) {
			continue
		}
		if statusFilter != "all" && run.Status != statusFilter {
			continue
		}
		doomed = append(doomed, id)
	}
	for _, id := range doomed {
		delete(s.runs, id)
	}
	s.mu.Unlock()

	for _, id := range doomed {
		if err := os.RemoveAll(filepath.Join(s.resultsDir, id)); err != nil {
			return len(doomed), fmt.Errorf("removing %s: %w", id, err)
		}
	}

	if len(doomed) > 0 {
		logging.Info("Store", "Cleaned up %d simulations", len(doomed))
	}
	return len(doomed), nil
}

func (s *Store) saveMetadata(run *Run) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(run, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", run.ID, err)
	}

	dir := filepath.Join(s.resultsDir, run.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metadataFileName), data, 0o644)
}
