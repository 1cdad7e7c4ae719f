package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/domini04/bluestar/runtime/workflow"
)

// MemoryStore keeps checkpoints in process memory. Checkpoints are stored as
// JSON, so every Load returns an independent copy.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]memoryEntry
}

type memoryEntry struct {
	summary Summary
	data    []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]memoryEntry)}
}

// Load retrieves a checkpoint by run ID.
func (s *MemoryStore) Load(_ context.Context, runID string) (*workflow.Checkpoint, error) {
	if runID == "" {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	e, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return decode(e.data)
}

// Save stores or replaces a checkpoint.
func (s *MemoryStore) Save(_ context.Context, cp *workflow.Checkpoint) error {
	if err := checkSave(cp); err != nil {
		return err
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[cp.RunID] = memoryEntry{summary: summarize(cp), data: data}
	return nil
}

// Delete removes a run.
func (s *MemoryStore) Delete(_ context.Context, runID string) error {
	if runID == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	delete(s.runs, runID)
	return nil
}

// List returns run summaries, most recently updated first.
func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]Summary, error) {
	s.mu.RLock()
	out := make([]Summary, 0, len(s.runs))
	for _, e := range s.runs {
		if opts.Status == "" || e.summary.Status == opts.Status {
			out = append(out, e.summary)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return paginate(out, opts), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func decode(data []byte) (*workflow.Checkpoint, error) {
	var cp workflow.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}
