package workflow

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidRepo is returned for a repository identifier that is not owner/repo.
	ErrInvalidRepo = errors.New("invalid repository identifier")
	// ErrInvalidCommit is returned for a commit identifier that is not a full SHA.
	ErrInvalidCommit = errors.New("invalid commit SHA")
	// ErrInvalidInvocation is returned when a raw invocation cannot be split.
	ErrInvalidInvocation = errors.New("invalid invocation")
	// ErrInvalidRunID is returned for a run ID that is not a UUID.
	ErrInvalidRunID = errors.New("invalid run ID")
)

var (
	repoRe   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,38}/[A-Za-z0-9._-]{1,100}$`)
	commitRe = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
)

var repoPrefixes = []string{
	"https://www.github.com/",
	"http://www.github.com/",
	"https://github.com/",
	"http://github.com/",
	"www.github.com/",
	"github.com/",
	"git@github.com:",
}

// NormalizeRepo accepts owner/repo or a GitHub URL and returns owner/repo.
func NormalizeRepo(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: repository identifier is required", ErrInvalidRepo)
	}
	for _, p := range repoPrefixes {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			s = s[len(p):]
			break
		}
	}
	s = strings.TrimSuffix(strings.Trim(s, "/"), ".git")
	s = strings.Trim(s, "/")

	if !repoRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q (expected owner/repo or https://github.com/owner/repo)", ErrInvalidRepo, raw)
	}
	return s, nil
}

// ValidateCommit requires a full 40-character hexadecimal SHA and returns it
// lowercased.
func ValidateCommit(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return "", fmt.Errorf("%w: commit SHA is required", ErrInvalidCommit)
	case len(s) != 40:
		return "", fmt.Errorf("%w: must be exactly 40 characters (got %d)", ErrInvalidCommit, len(s))
	case !commitRe.MatchString(s):
		return "", fmt.Errorf("%w: must contain only hexadecimal characters", ErrInvalidCommit)
	}
	return strings.ToLower(s), nil
}

// Invocation is the parsed form of a raw "owner/repo sha | instructions" request.
type Invocation struct {
	Repo         string
	Commit       string
	Instructions string
}

// ParseInvocation splits a raw request of the form
// "owner/repo <sha> [| instructions]". Identifiers are returned as written;
// the validate stage normalizes them.
func ParseInvocation(raw string) (Invocation, error) {
	head, instructions, _ := strings.Cut(raw, "|")
	fields := strings.Fields(head)
	if len(fields) != 2 {
		return Invocation{}, fmt.Errorf(
			"%w: expected \"owner/repo <commit-sha> [| instructions]\", got %d argument(s)",
			ErrInvalidInvocation, len(fields))
	}
	return Invocation{
		Repo:         fields[0],
		Commit:       fields[1],
		Instructions: strings.TrimSpace(instructions),
	}, nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// ValidateRunID checks that id is a UUID.
func ValidateRunID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}
	return nil
}
