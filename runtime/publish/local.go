package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/render"
	"github.com/domini04/bluestar/runtime/types"
)

const (
	localComponent   = "local"
	DefaultOutputDir = "output"
)

// Local writes a standalone HTML page to a directory.
type Local struct {
	dir string
	log *slog.Logger
}

// NewLocal returns a sink writing under dir (DefaultOutputDir when empty).
func NewLocal(dir string, log *slog.Logger) *Local {
	if dir == "" {
		dir = DefaultOutputDir
	}
	return &Local{dir: dir, log: logger.OrDefault(log)}
}

// Name returns "local".
func (l *Local) Name() string { return localComponent }

// FileName is {YYYY-MM-DD}_{sha7}_{slug}.html.
func FileName(doc *types.Document, target Target) string {
	sha := target.Commit
	if len(sha) > 7 {
		sha = sha[:7]
	}
	return fmt.Sprintf("%s_%s_%s.html", target.now().Format(types.DateLayout), sha, render.Slug(doc.Title))
}

// Publish writes the page and returns its path.
func (l *Local) Publish(ctx context.Context, doc *types.Document, target Target) (string, error) {
	ctx = logger.WithSink(ctx, localComponent)

	page, err := render.Page(doc)
	if err != nil {
		return "", pkgerrors.New(localComponent, "Publish", err).WithKind(pkgerrors.KindPublishing)
	}
	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return "", pkgerrors.New(localComponent, "Publish", fmt.Errorf("create output directory: %w", err)).
			WithKind(pkgerrors.KindPublishing)
	}
	path := filepath.Join(l.dir, FileName(doc, target))
	if err := os.WriteFile(path, page, 0o600); err != nil {
		return "", pkgerrors.New(localComponent, "Publish", fmt.Errorf("write draft: %w", err)).
			WithKind(pkgerrors.KindPublishing)
	}

	l.log.InfoContext(ctx, "Saved local draft", "path", path, "bytes", len(page))
	return path, nil
}
