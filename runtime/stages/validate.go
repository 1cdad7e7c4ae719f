package stages

import (
	"context"

	"github.com/domini04/bluestar/runtime/workflow"
)

// ValidateStage normalizes the repository and commit identifiers in place.
// Completion is recorded only when both are valid, which the fetch stage
// checks before calling out.
type ValidateStage struct {
	base
}

// Run implements workflow.Stage.
func (v *ValidateStage) Run(ctx context.Context, s *workflow.State) error {
	repo, repoErr := workflow.NormalizeRepo(s.Repo)
	if repoErr != nil {
		v.fail(ctx, s, "validating the repository "+quote(s.Repo), invalidInput("NormalizeRepo", repoErr))
	}
	commit, commitErr := workflow.ValidateCommit(s.Commit)
	if commitErr != nil {
		v.fail(ctx, s, "validating the commit SHA "+quote(s.Commit), invalidInput("ValidateCommit", commitErr))
	}
	if repoErr != nil || commitErr != nil {
		return nil
	}

	s.Repo, s.Commit = repo, commit
	v.complete(s)
	v.log.DebugContext(ctx, "input validated", "repo", repo, "commit", workflow.ShortSHA(commit))
	return nil
}

func quote(s string) string { return "'" + s + "'" }
