package mock

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ResponseParams identifies one generation call.
type ResponseParams struct {
	Schema string
	// Call is the 1-based count of calls made for Schema so far.
	Call  int
	Model string
}

// Turn is a scripted reply: either content or an error.
type Turn struct {
	Content string `yaml:"content,omitempty"`
	// Error makes the call fail; Kind selects the error kind
	// ("rate_limited", "timeout", "provider", ...).
	Error string `yaml:"error,omitempty"`
	Kind  string `yaml:"kind,omitempty"`
}

// Repository is the source of scripted replies.
type Repository interface {
	Turn(ctx context.Context, params ResponseParams) (*Turn, error)
}

// Script is the layout of a mock responses file:
//
//	default:
//	  analysis: '{"change_type": "feature", ...}'
//	schemas:
//	  document:
//	    1: {content: '{"title": ...}'}
//	    2: {error: "upstream unavailable", kind: provider}
type Script struct {
	Default map[string]string        `yaml:"default,omitempty"`
	Schemas map[string]map[int]*Turn `yaml:"schemas,omitempty"`
}

// ScriptRepository answers from a Script, falling back to the canned
// responses when neither a per-call turn nor a schema default exists.
type ScriptRepository struct {
	script Script
}

// NewScriptRepository wraps an in-memory script.
func NewScriptRepository(script Script) *ScriptRepository {
	return &ScriptRepository{script: script}
}

// LoadScript reads a YAML responses file.
func LoadScript(path string) (*ScriptRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mock responses %s: %w", path, err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse mock responses %s: %w", path, err)
	}
	return NewScriptRepository(s), nil
}

// Turn implements Repository.
func (r *ScriptRepository) Turn(_ context.Context, params ResponseParams) (*Turn, error) {
	if turns, ok := r.script.Schemas[params.Schema]; ok {
		if t, ok := turns[params.Call]; ok && t != nil {
			return t, nil
		}
	}
	if c, ok := r.script.Default[params.Schema]; ok {
		return &Turn{Content: c}, nil
	}
	return cannedTurn(params.Schema)
}

// QueueRepository replays turns in order regardless of schema. Once the
// queue is drained it falls back to the canned responses.
type QueueRepository struct {
	mu    sync.Mutex
	turns []Turn
}

// NewQueueRepository returns a repository replaying turns in order.
func NewQueueRepository(turns ...Turn) *QueueRepository {
	return &QueueRepository{turns: turns}
}

// Push appends more turns.
func (q *QueueRepository) Push(turns ...Turn) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.turns = append(q.turns, turns...)
}

// Turn implements Repository.
func (q *QueueRepository) Turn(_ context.Context, params ResponseParams) (*Turn, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.turns) == 0 {
		return cannedTurn(params.Schema)
	}
	t := q.turns[0]
	q.turns = q.turns[1:]
	return &t, nil
}

func cannedTurn(schema string) (*Turn, error) {
	c, ok := canned[schema]
	if !ok {
		return nil, fmt.Errorf("no mock response for schema %q", schema)
	}
	return &Turn{Content: c}, nil
}
