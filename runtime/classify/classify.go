// Package classify turns failures into short, actionable messages for the
// run's diagnostics list.
//
// Classification looks at the error kind carried by pkg/errors first, then at
// well-known sentinel errors, then at the error text. It has no side effects
// and does not depend on which stage is calling it.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
)

// Category is the taxonomy bucket a failure falls into.
type Category string

// Categories, in classification order.
const (
	CategoryConfiguration Category = "configuration"
	CategoryInvalidInput  Category = "invalid_input"
	CategoryPrecondition  Category = "precondition"
	CategoryNotFound      Category = "not_found"
	CategoryAccess        Category = "access"
	CategorySchema        Category = "schema_validation"
	CategoryRateLimit     Category = "rate_limited"
	CategoryTimeout       Category = "timeout"
	CategoryPublishing    Category = "publishing"
	CategoryProvider      Category = "provider"
	CategoryUnclassified  Category = "unclassified"
)

// Context identifies what was being done when the failure happened.
type Context struct {
	Repo   string
	Commit string
	// Operation is a present-participle phrase such as "analyzing" or
	// "publishing to Ghost".
	Operation string
}

var (
	rateLimitMarkers = []string{"rate limit", "ratelimit", "rate-limit", "too many requests", "quota exceeded"}
	timeoutMarkers   = []string{"timeout", "timed out", "deadline exceeded"}
)

// Categorize returns the category of err. A nil error is unclassified.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnclassified
	}
	kind := pkgerrors.KindOf(err)
	text := strings.ToLower(err.Error())

	switch {
	case kind == pkgerrors.KindConfiguration:
		return CategoryConfiguration
	case kind == pkgerrors.KindInvalidInput:
		return CategoryInvalidInput
	case kind == pkgerrors.KindPrecondition:
		return CategoryPrecondition
	case kind == pkgerrors.KindNotFound:
		return CategoryNotFound
	case kind == pkgerrors.KindAccess:
		return CategoryAccess
	case kind == pkgerrors.KindSchemaValidation:
		return CategorySchema
	case kind == pkgerrors.KindRateLimited || containsAny(text, rateLimitMarkers):
		return CategoryRateLimit
	case kind == pkgerrors.KindTimeout || isTimeout(err) || containsAny(text, timeoutMarkers):
		return CategoryTimeout
	case kind == pkgerrors.KindPublishing:
		return CategoryPublishing
	case kind == pkgerrors.KindProvider:
		return CategoryProvider
	default:
		return CategoryUnclassified
	}
}

// Message classifies err and renders the user-facing diagnostic for it.
func Message(err error, c Context) string {
	if err == nil {
		return ""
	}
	target := c.target()
	op := c.Operation
	if op == "" {
		op = "processing"
	}

	switch Categorize(err) {
	case CategoryConfiguration:
		return fmt.Sprintf("Configuration error while %s %s: %s. Check your API keys and configuration.",
			op, target, cause(err))
	case CategoryInvalidInput:
		return fmt.Sprintf("Invalid input while %s: %s. "+
			"Give the repository as owner/repo and the full 40-character commit SHA.", op, cause(err))
	case CategoryPrecondition:
		return fmt.Sprintf("Cannot continue %s %s: %s. Re-run once the earlier step succeeds.",
			op, target, cause(err))
	case CategoryNotFound:
		return fmt.Sprintf("Repository '%s' or commit '%s' not found while %s. "+
			"Check the repository name and commit SHA.", c.Repo, short(c.Commit), op)
	case CategoryAccess:
		return fmt.Sprintf("Access denied while %s %s. Check that your credentials have permission for this resource.",
			op, target)
	case CategorySchema:
		return fmt.Sprintf("The model returned output that does not match the expected format while %s %s: %s. "+
			"This is usually temporary; please try again.", op, target, cause(err))
	case CategoryRateLimit:
		return fmt.Sprintf("Rate limit reached while %s %s. Please wait a few minutes and try again.", op, target)
	case CategoryTimeout:
		return fmt.Sprintf("Request timed out while %s %s. Please try again; if it persists the service may be degraded.",
			op, target)
	case CategoryPublishing:
		return fmt.Sprintf("Publishing failed while %s %s: %s. Check the destination settings and try again.",
			op, target, cause(err))
	case CategoryProvider:
		return fmt.Sprintf("Upstream service error while %s %s. This may be temporary; please try again in a few moments.",
			op, target)
	default:
		return fmt.Sprintf("Unexpected error while %s %s: %s. Re-run with --verbose and check the logs.",
			op, target, cause(err))
	}
}

func (c Context) target() string {
	sha := short(c.Commit)
	switch {
	case c.Repo != "" && sha != "":
		return c.Repo + "@" + sha
	case sha != "":
		return "commit " + sha
	case c.Repo != "":
		return c.Repo
	default:
		return "the request"
	}
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

// cause returns the innermost message, so component prefixes added on the
// way up do not repeat in the diagnostic.
func cause(err error) string {
	var ce *pkgerrors.ContextualError
	for errors.As(err, &ce) && ce.Cause != nil {
		err = ce.Cause
	}
	return strings.TrimSuffix(strings.TrimSpace(err.Error()), ".")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
