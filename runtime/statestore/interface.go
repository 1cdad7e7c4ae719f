// Package statestore persists workflow checkpoints so a suspended run can be
// resumed by a later process.
package statestore

import (
	"context"
	"errors"
	"time"

	"github.com/domini04/bluestar/runtime/workflow"
)

var (
	// ErrNotFound is returned when no checkpoint exists for a run ID.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrInvalidID is returned for an empty run ID.
	ErrInvalidID = errors.New("invalid run ID")
	// ErrInvalidCheckpoint is returned when saving a nil or incomplete checkpoint.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
)

// Store is a workflow.CheckpointStore that can also list and delete runs.
type Store interface {
	workflow.CheckpointStore

	// Delete removes a run. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, runID string) error

	// List returns run summaries, most recently updated first.
	List(ctx context.Context, opts ListOptions) ([]Summary, error)

	// Close releases the store's connections.
	Close() error
}

// ListOptions filters and paginates List.
type ListOptions struct {
	// Status keeps only runs in this status when set.
	Status workflow.Status
	// Limit defaults to DefaultListLimit.
	Limit  int
	Offset int
}

// DefaultListLimit applies when ListOptions.Limit is zero.
const DefaultListLimit = 100

// Summary describes a stored run without its full state.
type Summary struct {
	RunID     string          `json:"run_id"`
	Status    workflow.Status `json:"status"`
	Awaiting  string          `json:"awaiting,omitempty"`
	Repo      string          `json:"repo"`
	Commit    string          `json:"commit"`
	Iteration int             `json:"iteration"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func summarize(cp *workflow.Checkpoint) Summary {
	return Summary{
		RunID:     cp.RunID,
		Status:    cp.Status,
		Awaiting:  cp.Awaiting,
		Repo:      cp.State.Repo,
		Commit:    cp.State.Commit,
		Iteration: cp.State.Iteration,
		UpdatedAt: cp.UpdatedAt,
	}
}

func checkSave(cp *workflow.Checkpoint) error {
	if cp == nil || cp.State == nil {
		return ErrInvalidCheckpoint
	}
	if cp.RunID == "" {
		return ErrInvalidID
	}
	return nil
}

func paginate[T any](items []T, opts ListOptions) []T {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if opts.Offset >= len(items) {
		return []T{}
	}
	end := min(opts.Offset+limit, len(items))
	return items[opts.Offset:end]
}
