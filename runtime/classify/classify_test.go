package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
)

const sha = "e64997b24625a4e90c39d019d4fd25a37a4b3185"

var ctx = Context{Repo: "domini04/bluestar", Commit: sha, Operation: "analyzing"}

func kindErr(kind pkgerrors.Kind, msg string) error {
	return pkgerrors.Newf("test", "Op", "%s", msg).WithKind(kind)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o wait exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"configuration kind", kindErr(pkgerrors.KindConfiguration, "missing OPENAI_API_KEY"), CategoryConfiguration},
		{"invalid input kind", kindErr(pkgerrors.KindInvalidInput, "not owner/repo"), CategoryInvalidInput},
		{"precondition kind", kindErr(pkgerrors.KindPrecondition, "no analysis"), CategoryPrecondition},
		{"not found kind", kindErr(pkgerrors.KindNotFound, "404"), CategoryNotFound},
		{"access kind", kindErr(pkgerrors.KindAccess, "bad credentials"), CategoryAccess},
		{"schema kind", kindErr(pkgerrors.KindSchemaValidation, "title is required"), CategorySchema},
		{"rate limit kind", kindErr(pkgerrors.KindRateLimited, "slow down"), CategoryRateLimit},
		{"rate limit text", errors.New("API Rate Limit exceeded for user"), CategoryRateLimit},
		{"timeout kind", kindErr(pkgerrors.KindTimeout, "gateway"), CategoryTimeout},
		{"deadline", fmt.Errorf("call model: %w", context.DeadlineExceeded), CategoryTimeout},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), CategoryTimeout},
		{"timeout text", errors.New("request timed out"), CategoryTimeout},
		{"publishing kind", kindErr(pkgerrors.KindPublishing, "missing url"), CategoryPublishing},
		{"provider kind", kindErr(pkgerrors.KindProvider, "502 bad gateway"), CategoryProvider},
		{"unclassified", errors.New("boom"), CategoryUnclassified},
		{"nil", nil, CategoryUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.err))
		})
	}
}

func TestCategorize_Order(t *testing.T) {
	// Configuration outranks everything, including rate-limit text.
	assert.Equal(t, CategoryConfiguration,
		Categorize(kindErr(pkgerrors.KindConfiguration, "rate limit config missing")))
	// Schema outranks timeout text.
	assert.Equal(t, CategorySchema,
		Categorize(kindErr(pkgerrors.KindSchemaValidation, "field timeout must be a number")))
	// Rate-limit text outranks a provider kind.
	assert.Equal(t, CategoryRateLimit,
		Categorize(kindErr(pkgerrors.KindProvider, "too many requests")))
	// Timeout outranks publishing.
	assert.Equal(t, CategoryTimeout,
		Categorize(pkgerrors.New("ghost", "Publish", context.DeadlineExceeded).WithKind(pkgerrors.KindPublishing)))
}

func TestMessage_NamesShortSHAAndAction(t *testing.T) {
	tests := []struct {
		err    error
		action string
	}{
		{kindErr(pkgerrors.KindConfiguration, "missing OPENAI_API_KEY"), "Check your API keys"},
		{kindErr(pkgerrors.KindRateLimited, "x"), "wait a few minutes"},
		{context.DeadlineExceeded, "try again"},
		{kindErr(pkgerrors.KindProvider, "x"), "try again in a few moments"},
		{errors.New("boom"), "--verbose"},
	}
	for _, tt := range tests {
		msg := Message(tt.err, ctx)
		assert.Contains(t, msg, "e64997b2", msg)
		assert.NotContains(t, msg, sha, "full SHA must be shortened")
		assert.Contains(t, msg, tt.action)
		assert.Contains(t, msg, "analyzing")
	}
}

func TestMessage_NotFound(t *testing.T) {
	msg := Message(kindErr(pkgerrors.KindNotFound, "404"), Context{Repo: "o/r", Commit: sha, Operation: "fetching"})
	assert.Equal(t, "Repository 'o/r' or commit 'e64997b2' not found while fetching. "+
		"Check the repository name and commit SHA.", msg)
}

func TestMessage_InvalidInput(t *testing.T) {
	err := pkgerrors.New("stages", "ValidateCommit", errors.New("commit SHA must be 40 hex characters")).
		WithKind(pkgerrors.KindInvalidInput)

	msg := Message(err, Context{Repo: "o/r", Commit: "abc", Operation: "validating the commit SHA 'abc'"})
	assert.Equal(t, "Invalid input while validating the commit SHA 'abc': commit SHA must be 40 hex characters. "+
		"Give the repository as owner/repo and the full 40-character commit SHA.", msg)
}

func TestMessage_UsesInnermostCause(t *testing.T) {
	inner := errors.New("posts[0].url missing from response")
	err := pkgerrors.New("ghost", "Publish", pkgerrors.New("ghost", "decode", inner)).
		WithKind(pkgerrors.KindPublishing)

	msg := Message(err, Context{Commit: sha, Operation: "publishing to Ghost"})
	assert.Equal(t, "Publishing failed while publishing to Ghost commit e64997b2: "+
		"posts[0].url missing from response. Check the destination settings and try again.", msg)
}

func TestMessage_Nil(t *testing.T) {
	assert.Empty(t, Message(nil, ctx))
}

func TestMessage_Pure(t *testing.T) {
	err := kindErr(pkgerrors.KindSchemaValidation, "title is required")
	assert.Equal(t, Message(err, ctx), Message(err, ctx))
}
