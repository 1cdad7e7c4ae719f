package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidGraph is returned by NewGraph when the spec or its stages fail validation.
var ErrInvalidGraph = errors.New("invalid workflow graph")

// DefaultSpec returns the commit-to-post graph.
func DefaultSpec() *Spec {
	return &Spec{
		Version: 1,
		Entry:   NodeValidate,
		Loop:    []string{NodeSynthesize, NodeReview},
		Nodes: map[string]*Node{
			NodeValidate: {
				Description: "Normalize and check the repository and commit identifiers",
				OnEvent:     map[string]string{EventNext: NodeFetch},
			},
			NodeFetch: {
				Description: "Retrieve the change record and project context",
				Edge:        EdgeFetch,
				OnEvent:     map[string]string{EventFetched: NodeAnalyze, EventHalt: NodeEnd},
			},
			NodeAnalyze: {
				Description: "Extract a structured analysis of the change",
				OnEvent:     map[string]string{EventNext: NodeSynthesize},
			},
			NodeSynthesize: {
				Description: "Draft or refine the document",
				OnEvent:     map[string]string{EventNext: NodeReview},
			},
			NodeReview: {
				Description: "Collect reviewer satisfaction and feedback",
				Edge:        EdgeIteration,
				OnEvent:     map[string]string{EventRefine: NodeSynthesize, EventProceed: NodeDecide},
			},
			NodeDecide: {
				Description: "Choose where to publish",
				Edge:        EdgePublishing,
				OnEvent: map[string]string{
					EventGhost:     NodePublishGhost,
					EventNotion:    NodePublishNotion,
					EventLocal:     NodeSaveLocal,
					EventTerminate: NodeEnd,
				},
			},
			NodePublishGhost: {
				Description: "Create a draft post on Ghost",
				OnEvent:     map[string]string{EventNext: NodeEnd},
			},
			NodePublishNotion: {
				Description: "Create a page in a Notion database",
				OnEvent:     map[string]string{EventNext: NodeEnd},
			},
			NodeSaveLocal: {
				Description: "Write a standalone HTML file",
				OnEvent:     map[string]string{EventNext: NodeEnd},
			},
			NodeEnd: {Description: "Terminal node"},
		},
	}
}

// Graph binds a validated Spec to the stages that implement its nodes.
type Graph struct {
	spec   *Spec
	stages map[string]Stage
}

// NewGraph validates spec against stages and returns the bound graph.
// Validation warnings are returned alongside a usable graph.
func NewGraph(spec *Spec, stages map[string]Stage) (*Graph, []string, error) {
	names := make([]string, 0, len(stages))
	for name, st := range stages {
		if st != nil {
			names = append(names, name)
		}
	}
	r := Validate(spec, names)
	if r.HasErrors() {
		return nil, r.Warnings, fmt.Errorf("%w: %s", ErrInvalidGraph, strings.Join(r.Errors, "; "))
	}
	return &Graph{spec: spec, stages: stages}, r.Warnings, nil
}

// Spec returns the graph's definition.
func (g *Graph) Spec() *Spec {
	return g.spec
}

// Stage returns the stage bound to node.
func (g *Graph) Stage(node string) (Stage, bool) {
	st, ok := g.stages[node]
	return st, ok && st != nil
}

// Next returns the node that follows node for the given state. Nodes without
// a conditional edge take their single outgoing event.
func (g *Graph) Next(node string, s *State) (string, error) {
	n := g.spec.Nodes[node]
	if n == nil {
		return "", fmt.Errorf("%w: node %q not found in spec", ErrInvalidEvent, node)
	}
	if n.Edge != "" {
		edge, ok := edges[n.Edge]
		if !ok {
			return "", fmt.Errorf("%w: unknown edge %q on node %q", ErrInvalidGraph, n.Edge, node)
		}
		return edge(s), nil
	}
	for _, target := range n.OnEvent {
		return target, nil
	}
	return "", fmt.Errorf("%w: node %q has no transitions", ErrTerminalState, node)
}

// Describe lists every transition as "from --Event--> to", sorted.
func (g *Graph) Describe() []string {
	return describe(g.spec)
}
