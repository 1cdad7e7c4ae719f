// Package workflow is the orchestration engine that turns a commit into a
// publishable document.
//
// The graph is declared as data (Spec) and executed by an event-driven state
// machine that records every transition. Each non-terminal node is backed by a
// Stage. Conditional edges are pure functions of the State; the review node is
// the one suspension point, and a Runner persists a Checkpoint so a host can
// resume the run once input arrives.
package workflow

import "time"

// Node names of the default graph.
const (
	NodeValidate      = "validate"
	NodeFetch         = "fetch"
	NodeAnalyze       = "analyze"
	NodeSynthesize    = "synthesize"
	NodeReview        = "review"
	NodeDecide        = "decide"
	NodePublishGhost  = "publish_ghost"
	NodePublishNotion = "publish_notion"
	NodeSaveLocal     = "save_local"
	NodeEnd           = "end"
)

// Events of the default graph.
const (
	EventNext      = "Next"
	EventFetched   = "Fetched"
	EventHalt      = "Halt"
	EventRefine    = "Refine"
	EventProceed   = "Proceed"
	EventGhost     = "Ghost"
	EventNotion    = "Notion"
	EventLocal     = "Local"
	EventTerminate = "Terminate"
)

// Spec is the declarative definition of a workflow graph.
type Spec struct {
	Version int              `json:"version"`
	Entry   string           `json:"entry"`
	Nodes   map[string]*Node `json:"nodes"`
	// Loop names the nodes allowed to form a cycle.
	Loop []string `json:"loop,omitempty"`
}

// Node is a single vertex of the graph.
type Node struct {
	Description string `json:"description,omitempty"`
	// Edge names the conditional edge that picks the next node. Empty means
	// the node has at most one outgoing event, taken unconditionally.
	Edge    string            `json:"edge,omitempty"`
	OnEvent map[string]string `json:"on_event,omitempty"`
}

// Context holds the runtime position of a workflow execution.
type Context struct {
	Current   string       `json:"current"`
	History   []Transition `json:"history"`
	StartedAt time.Time    `json:"started_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Transition records a single edge taken by the machine.
type Transition struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}
