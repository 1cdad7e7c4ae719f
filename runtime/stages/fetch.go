package stages

import (
	"context"
	"time"

	"github.com/domini04/bluestar/runtime/workflow"
)

const opFetch = "fetching the commit"

// rateLimitWaiter is implemented by fetchers that may pause for a quota
// reset before retrying.
type rateLimitWaiter interface {
	MaxRateLimitWait() time.Duration
}

// FetchStage retrieves the change record. A missing record ends the run.
type FetchStage struct {
	base
	fetcher ChangeFetcher
	timeout time.Duration
}

// NewFetchStage creates a FetchStage.
func NewFetchStage(b base, fetcher ChangeFetcher, timeout time.Duration) *FetchStage {
	return &FetchStage{base: b, fetcher: fetcher, timeout: timeout}
}

// Run implements workflow.Stage.
func (f *FetchStage) Run(ctx context.Context, s *workflow.State) error {
	defer f.complete(s)

	if !s.IsComplete(workflow.NodeValidate) {
		f.fail(ctx, s, opFetch, precondition("Fetch", "the repository and commit were not validated"))
		return nil
	}
	if f.fetcher == nil {
		f.fail(ctx, s, opFetch, configuration("Fetch", "no commit fetcher is configured"))
		return nil
	}

	callCtx, cancel := withTimeout(ctx, f.callTimeout())
	defer cancel()
	change, err := f.fetcher.FetchChange(callCtx, s.Repo, s.Commit)
	if err != nil {
		f.fail(ctx, s, opFetch, err)
		return nil
	}
	s.Change = change
	f.log.InfoContext(ctx, "commit fetched",
		"files", len(change.Files), "truncated", change.Truncated, "project_context", change.Project != nil)
	return nil
}

// callTimeout extends the stage timeout by the fetcher's rate-limit wait so a
// permitted wait always gets its retry.
func (f *FetchStage) callTimeout() time.Duration {
	if w, ok := f.fetcher.(rateLimitWaiter); ok && f.timeout > 0 {
		return f.timeout + w.MaxRateLimitWait()
	}
	return f.timeout
}
