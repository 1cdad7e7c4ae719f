package workflow

import (
	"context"
	"errors"
)

// ErrAwaitingInput is returned by a stage that cannot proceed until a host
// delivers input. The runner checkpoints the run and suspends it.
var ErrAwaitingInput = errors.New("awaiting input")

// Stage is one pipeline step. Failures of the stage's own work are recorded
// as diagnostics on s; a non-nil error other than ErrAwaitingInput means a
// broken invariant and aborts the run.
type Stage interface {
	Run(ctx context.Context, s *State) error
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(ctx context.Context, s *State) error

// Run calls f.
func (f StageFunc) Run(ctx context.Context, s *State) error {
	return f(ctx, s)
}

// Middleware wraps the execution of a single node. Implementations must call
// next exactly once and return its error.
type Middleware func(ctx context.Context, node string, s *State, next func(context.Context) error) error
