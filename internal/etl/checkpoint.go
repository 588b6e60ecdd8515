package etl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/opendata-br/govetl/internal/config"
	"github.com/opendata-br/govetl/internal/storage"
)

// Checkpoint records which endpoint units a run has completed, so an
// interrupted run can resume without re-downloading finished units.
type Checkpoint struct {
	Completed map[string]time.Time `json:"completed"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// CheckpointManager persists run progress.
type CheckpointManager interface {
	// Done reports whether the unit was already completed.
	Done(ref storage.UnitRef) bool

	// MarkDone records a completed unit and persists the state.
	MarkDone(ref storage.UnitRef) error
}

// NewCheckpointManager creates a checkpoint manager based on configuration.
func NewCheckpointManager(cfg config.CheckpointConfig) (CheckpointManager, error) {
	if !cfg.Enabled {
		return &noopCheckpoint{}, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory %s: %w", cfg.Dir, err)
	}

	m := &fileCheckpoint{
		path:  filepath.Join(cfg.Dir, "checkpoint.json"),
		state: Checkpoint{Completed: map[string]time.Time{}},
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// fileCheckpoint persists the checkpoint to a local JSON file.
type fileCheckpoint struct {
	path string

	mu    sync.Mutex
	state Checkpoint
}

// load reads any existing checkpoint file. A missing file is a fresh run.
func (m *fileCheckpoint) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("parse checkpoint file: %w", err)
	}
	if cp.Completed == nil {
		cp.Completed = map[string]time.Time{}
	}
	m.state = cp
	return nil
}

func (m *fileCheckpoint) Done(ref storage.UnitRef) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.state.Completed[ref.String()]
	return ok
}

func (m *fileCheckpoint) MarkDone(ref storage.UnitRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Completed[ref.String()] = time.Now().UTC()
	m.state.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// Write atomically
	tempPath := m.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename checkpoint file: %w", err)
	}
	return nil
}

// noopCheckpoint is used when checkpointing is disabled.
type noopCheckpoint struct{}

func (noopCheckpoint) Done(storage.UnitRef) bool      { return false }
func (noopCheckpoint) MarkDone(storage.UnitRef) error { return nil }
