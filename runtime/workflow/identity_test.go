package workflow

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/domini04/bluestar/runtime/types"
)

func TestNormalizeRepo(t *testing.T) {
	tests := map[string]string{
		"microsoft/vscode":                       "microsoft/vscode",
		"  https://github.com/user/repo  ":       "user/repo",
		"http://github.com/user/repo/":           "user/repo",
		"github.com/user/repo.git":               "user/repo",
		"git@github.com:user/my.repo.git":        "user/my.repo",
		"https://www.github.com/Org-1/tool_kit/": "Org-1/tool_kit",
	}
	for in, want := range tests {
		got, err := NormalizeRepo(in)
		if err != nil {
			t.Errorf("NormalizeRepo(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("NormalizeRepo(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeRepo_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "invalid", "a/b/c", "-owner/repo", "owner/", "https://gitlab.com/a/b"} {
		if _, err := NormalizeRepo(in); !errors.Is(err, ErrInvalidRepo) {
			t.Errorf("NormalizeRepo(%q) error = %v, want ErrInvalidRepo", in, err)
		}
	}
}

func TestValidateCommit(t *testing.T) {
	got, err := ValidateCommit("  " + strings.ToUpper(testSHA) + "\n")
	if err != nil {
		t.Fatal(err)
	}
	if got != testSHA {
		t.Errorf("ValidateCommit = %q, want %q", got, testSHA)
	}

	tests := map[string]string{
		"":                      "required",
		"abc123":                "exactly 40 characters (got 6)",
		strings.Repeat("z", 40): "hexadecimal",
	}
	for in, want := range tests {
		_, err := ValidateCommit(in)
		if !errors.Is(err, ErrInvalidCommit) || !strings.Contains(err.Error(), want) {
			t.Errorf("ValidateCommit(%q) error = %v, want it to mention %q", in, err, want)
		}
	}
}

func TestParseInvocation(t *testing.T) {
	inv, err := ParseInvocation("domini04/bluestar " + testSHA + " | focus on the retry logic | and tests")
	if err != nil {
		t.Fatal(err)
	}
	if inv.Repo != "domini04/bluestar" || inv.Commit != testSHA {
		t.Errorf("unexpected identity: %+v", inv)
	}
	if inv.Instructions != "focus on the retry logic | and tests" {
		t.Errorf("Instructions = %q", inv.Instructions)
	}

	inv, err = ParseInvocation("o/r " + testSHA)
	if err != nil || inv.Instructions != "" {
		t.Errorf("without instructions: %+v, %v", inv, err)
	}

	if _, err := ParseInvocation("o/r"); !errors.Is(err, ErrInvalidInvocation) {
		t.Errorf("expected ErrInvalidInvocation, got %v", err)
	}
}

func TestRunIDs(t *testing.T) {
	id := NewRunID()
	if err := ValidateRunID(id); err != nil {
		t.Errorf("ValidateRunID(%q): %v", id, err)
	}
	if NewRunID() == id {
		t.Error("run IDs should be unique")
	}
	if err := ValidateRunID("../etc/passwd"); !errors.Is(err, ErrInvalidRunID) {
		t.Errorf("expected ErrInvalidRunID, got %v", err)
	}
}

func TestInputValidate(t *testing.T) {
	valid := []Input{
		ReviewInput(0, true, ""),
		ReviewInput(2, false, "add a diagram"),
		ChoiceInput(1, types.PublishNotion),
	}
	for _, in := range valid {
		if err := in.Validate(); err != nil {
			t.Errorf("Validate(%+v): %v", in, err)
		}
	}

	invalid := []Input{
		{Stage: NodeReview},
		ReviewInput(0, false, " "),
		ChoiceInput(0, "medium"),
		{Stage: NodeAnalyze},
		ReviewInput(-1, true, ""),
	}
	for _, in := range invalid {
		if err := in.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidInput", in, err)
		}
	}

	in := ChoiceInput(0, " NOTION ")
	if err := in.Validate(); err != nil || in.Choice != types.PublishNotion {
		t.Errorf("choice not normalized: %q, %v", in.Choice, err)
	}
}

func TestState(t *testing.T) {
	s := NewState("o/r", testSHA, "", 3)
	s.AddDiagnostic("")
	s.AddDiagnostic("first")
	s.AddDiagnostic("second")
	if got := s.Diagnostics(); len(got) != 2 || got[0] != "first" {
		t.Errorf("Diagnostics = %v", got)
	}

	s.MarkComplete(NodeAnalyze, time.Now())
	if !s.IsComplete(NodeAnalyze) || s.IsComplete(NodeSynthesize) {
		t.Error("completion tracking is wrong")
	}

	s.SetSatisfied(false, "more")
	if s.Satisfied == nil || *s.Satisfied || s.Feedback != "more" {
		t.Errorf("unsatisfied review not recorded: %v %q", s.Satisfied, s.Feedback)
	}
	s.SetSatisfied(true, "ignored")
	if !*s.Satisfied || s.Feedback != "" {
		t.Errorf("satisfied review must clear feedback, got %q", s.Feedback)
	}

	in := ChoiceInput(0, types.PublishLocal)
	s.Inbox = &in
	if s.TakeInput(NodeReview) != nil {
		t.Error("input addressed to decide must not be consumed by review")
	}
	if s.TakeInput(NodeDecide) == nil || s.Inbox != nil {
		t.Error("TakeInput should consume the inbox")
	}

	clone := s.Clone()
	clone.AddDiagnostic("only on clone")
	*clone.Satisfied = false
	if len(s.Errors) != 2 || !*s.Satisfied {
		t.Error("Clone shares loop or diagnostic fields with the original")
	}

	if ShortSHA(testSHA) != "e64997b2" || ShortSHA("abc") != "abc" {
		t.Error("ShortSHA")
	}
}
