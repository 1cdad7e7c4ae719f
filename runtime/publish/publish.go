// Package publish delivers a finished document to its destination: a Ghost
// blog, a Notion database or page, or a local HTML file.
package publish

import (
	"context"
	"time"

	"github.com/domini04/bluestar/runtime/types"
)

// Target identifies the change a document was written about.
type Target struct {
	Repo   string
	Commit string
	// Now stamps file names and tokens; zero means time.Now.
	Now time.Time
}

func (t Target) now() time.Time {
	if t.Now.IsZero() {
		return time.Now()
	}
	return t.Now
}

// Sink publishes a document and returns where it ended up (a URL or a path).
// Failures are *pkgerrors.ContextualError values; most carry KindPublishing.
type Sink interface {
	Name() string
	Publish(ctx context.Context, doc *types.Document, target Target) (string, error)
}
