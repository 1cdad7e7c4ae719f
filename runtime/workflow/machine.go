package workflow

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	// ErrInvalidEvent is returned when an event is not defined for the current node.
	ErrInvalidEvent = errors.New("invalid event for current node")
	// ErrTerminalState is returned when an event is processed at a terminal node.
	ErrTerminalState = errors.New("current node is terminal (no outgoing transitions)")
)

// TimeFunc returns the current time. Override for deterministic tests.
type TimeFunc func() time.Time

// StateMachine walks a Spec one event at a time.
type StateMachine struct {
	spec    *Spec
	context *Context
	now     TimeFunc
}

// NewContext creates a Context positioned at entry.
func NewContext(entry string, now time.Time) *Context {
	return &Context{
		Current:   entry,
		History:   []Transition{},
		StartedAt: now,
		UpdatedAt: now,
	}
}

// RecordTransition appends a transition and moves to its target.
func (c *Context) RecordTransition(from, to, event string, ts time.Time) {
	c.History = append(c.History, Transition{From: from, To: to, Event: event, Timestamp: ts})
	c.Current = to
	c.UpdatedAt = ts
}

// Clone returns a deep copy of the Context.
func (c *Context) Clone() *Context {
	out := *c
	if c.History != nil {
		out.History = slices.Clone(c.History)
	}
	return &out
}

// LastTransition returns the most recent transition, or nil if none.
func (c *Context) LastTransition() *Transition {
	if len(c.History) == 0 {
		return nil
	}
	t := c.History[len(c.History)-1]
	return &t
}

// Visits counts how many times the machine has entered node.
func (c *Context) Visits(node string) int {
	n := 0
	for _, t := range c.History {
		if t.To == node {
			n++
		}
	}
	return n
}

// NewStateMachine creates a machine positioned at the spec's entry node.
func NewStateMachine(spec *Spec) *StateMachine {
	return &StateMachine{
		spec:    spec,
		context: NewContext(spec.Entry, time.Now()),
		now:     time.Now,
	}
}

// NewStateMachineFromContext restores a machine from a persisted context.
func NewStateMachineFromContext(spec *Spec, ctx *Context) *StateMachine {
	return &StateMachine{
		spec:    spec,
		context: ctx.Clone(),
		now:     time.Now,
	}
}

// WithTimeFunc sets a custom time function for deterministic tests.
func (sm *StateMachine) WithTimeFunc(fn TimeFunc) *StateMachine {
	sm.now = fn
	return sm
}

// Current returns the name of the current node.
func (sm *StateMachine) Current() string {
	return sm.context.Current
}

// ProcessEvent applies an event and moves to its target node.
func (sm *StateMachine) ProcessEvent(event string) error {
	node := sm.spec.Nodes[sm.context.Current]
	if node == nil {
		return fmt.Errorf("%w: node %q not found in spec", ErrInvalidEvent, sm.context.Current)
	}
	if len(node.OnEvent) == 0 {
		return fmt.Errorf("%w: node %q has no transitions", ErrTerminalState, sm.context.Current)
	}

	target, ok := node.OnEvent[event]
	if !ok {
		return fmt.Errorf("%w: event %q not defined for node %q (available: %v)",
			ErrInvalidEvent, event, sm.context.Current, sm.AvailableEvents())
	}

	sm.context.RecordTransition(sm.context.Current, target, event, sm.now())
	return nil
}

// MoveTo finds the event leading from the current node to target and applies it.
func (sm *StateMachine) MoveTo(target string) error {
	node := sm.spec.Nodes[sm.context.Current]
	if node == nil {
		return fmt.Errorf("%w: node %q not found in spec", ErrInvalidEvent, sm.context.Current)
	}
	for _, event := range sm.AvailableEvents() {
		if node.OnEvent[event] == target {
			return sm.ProcessEvent(event)
		}
	}
	if len(node.OnEvent) == 0 {
		return fmt.Errorf("%w: node %q has no transitions", ErrTerminalState, sm.context.Current)
	}
	return fmt.Errorf("%w: no edge from %q to %q", ErrInvalidEvent, sm.context.Current, target)
}

// IsTerminal reports whether the current node has no outgoing transitions.
func (sm *StateMachine) IsTerminal() bool {
	node := sm.spec.Nodes[sm.context.Current]
	return node == nil || len(node.OnEvent) == 0
}

// AvailableEvents returns the valid events for the current node, sorted.
func (sm *StateMachine) AvailableEvents() []string {
	node := sm.spec.Nodes[sm.context.Current]
	if node == nil || len(node.OnEvent) == 0 {
		return nil
	}
	events := make([]string, 0, len(node.OnEvent))
	for e := range node.OnEvent {
		events = append(events, e)
	}
	slices.Sort(events)
	return events
}

// Context returns a snapshot of the machine's context for persistence.
func (sm *StateMachine) Context() *Context {
	return sm.context.Clone()
}
