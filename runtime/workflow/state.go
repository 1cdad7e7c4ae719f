package workflow

import (
	"maps"
	"time"

	"github.com/domini04/bluestar/runtime/types"
)

// State is the single record threaded through every stage. Stages mutate it
// in place; it is JSON-serializable so a Checkpoint can carry it.
type State struct {
	RunID string `json:"run_id,omitempty"`

	// Identity, set once at creation.
	Repo         string `json:"repo"`
	Commit       string `json:"commit"`
	Instructions string `json:"instructions,omitempty"`

	Change   *types.ChangeRecord `json:"change,omitempty"`
	Analysis *types.Analysis     `json:"analysis,omitempty"`
	Document *types.Document     `json:"document,omitempty"`

	Iteration     int    `json:"iteration"`
	MaxIterations int    `json:"max_iterations"`
	Satisfied     *bool  `json:"satisfied,omitempty"`
	Feedback      string `json:"feedback,omitempty"`

	// Publishing is the terminal decision. It may be pre-supplied at creation,
	// in which case the decide stage does not prompt.
	Publishing        types.PublishChoice `json:"publishing,omitempty"`
	PublishedLocation string              `json:"published_location,omitempty"`

	Errors       []string             `json:"errors"`
	Completed    map[string]time.Time `json:"completed"`
	CurrentStage string               `json:"current_stage,omitempty"`
	Done         bool                 `json:"done"`
	StartedAt    time.Time            `json:"started_at"`

	// Inbox carries host input delivered on resume until the stage it
	// answers consumes it.
	Inbox *Input `json:"inbox,omitempty"`
}

// NewState creates a State for one invocation.
func NewState(repo, commit, instructions string, maxIterations int) *State {
	return &State{
		Repo:          repo,
		Commit:        commit,
		Instructions:  instructions,
		MaxIterations: maxIterations,
		Errors:        []string{},
		Completed:     map[string]time.Time{},
		StartedAt:     time.Now().UTC(),
	}
}

// AddDiagnostic appends a user-facing message. Empty messages are ignored.
func (s *State) AddDiagnostic(msg string) {
	if msg == "" {
		return
	}
	s.Errors = append(s.Errors, msg)
}

// Diagnostics returns a copy of the accumulated messages in order.
func (s *State) Diagnostics() []string {
	out := make([]string, len(s.Errors))
	copy(out, s.Errors)
	return out
}

// MarkComplete records when stage finished.
func (s *State) MarkComplete(stage string, at time.Time) {
	if s.Completed == nil {
		s.Completed = map[string]time.Time{}
	}
	s.Completed[stage] = at
}

// IsComplete reports whether stage has recorded a completion time.
func (s *State) IsComplete(stage string) bool {
	_, ok := s.Completed[stage]
	return ok
}

// SetSatisfied records the review outcome. A satisfied review clears feedback.
func (s *State) SetSatisfied(satisfied bool, feedback string) {
	s.Satisfied = &satisfied
	if satisfied {
		s.Feedback = ""
		return
	}
	s.Feedback = feedback
}

// TakeInput consumes the inbox when it answers stage. It returns nil when the
// inbox is empty or addressed to another stage.
func (s *State) TakeInput(stage string) *Input {
	if s.Inbox == nil || s.Inbox.Stage != stage {
		return nil
	}
	in := s.Inbox
	s.Inbox = nil
	return in
}

// Clone returns a copy that shares artifact pointers but not the loop,
// diagnostic or completion fields.
func (s *State) Clone() *State {
	out := *s
	out.Errors = s.Diagnostics()
	out.Completed = maps.Clone(s.Completed)
	if s.Satisfied != nil {
		v := *s.Satisfied
		out.Satisfied = &v
	}
	if s.Inbox != nil {
		in := *s.Inbox
		out.Inbox = &in
	}
	return &out
}

// ShortSHA returns the first eight characters of sha.
func ShortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
