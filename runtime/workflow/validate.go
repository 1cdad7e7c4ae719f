package workflow

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
)

var pascalCaseRe = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)

// ValidationResult holds errors and warnings from graph validation.
type ValidationResult struct {
	Errors   []string // Blocking: dangling references, unbound nodes, unbounded cycles
	Warnings []string // Non-blocking: naming
}

// HasErrors returns true if there are blocking validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Validate checks spec against the names of the available stages:
//   - version is 1 and the node set is non-empty
//   - entry and every event target exist
//   - every non-terminal node has a stage
//   - conditional edges are known, unconditional nodes have one event
//   - every node can reach a terminal node
//   - cycles only run through the nodes listed in Loop
func Validate(spec *Spec, stageNames []string) *ValidationResult {
	r := &ValidationResult{}
	if spec.Version != 1 {
		r.Errors = append(r.Errors, fmt.Sprintf("workflow.version must be 1, got %d", spec.Version))
	}
	if len(spec.Nodes) == 0 {
		r.Errors = append(r.Errors, "workflow.nodes must be non-empty")
		return r
	}
	if _, ok := spec.Nodes[spec.Entry]; !ok {
		r.Errors = append(r.Errors, fmt.Sprintf("workflow.entry %q does not reference a node", spec.Entry))
	}

	for _, name := range sortedNodes(spec) {
		validateNode(spec, name, stageNames, r)
	}
	validateReachability(spec, r)
	validateCycles(spec, r)
	return r
}

func validateNode(spec *Spec, name string, stageNames []string, r *ValidationResult) {
	node := spec.Nodes[name]
	if node == nil {
		r.Errors = append(r.Errors, fmt.Sprintf("workflow.nodes[%q] is nil", name))
		return
	}

	terminal := len(node.OnEvent) == 0
	if !terminal && !slices.Contains(stageNames, name) {
		r.Errors = append(r.Errors, fmt.Sprintf("workflow.nodes[%q] has no stage", name))
	}

	switch {
	case node.Edge != "":
		if _, ok := edges[node.Edge]; !ok {
			r.Errors = append(r.Errors, fmt.Sprintf("workflow.nodes[%q].edge %q is not a known edge", name, node.Edge))
		}
	case len(node.OnEvent) > 1:
		r.Errors = append(r.Errors, fmt.Sprintf(
			"workflow.nodes[%q] has %d events but no conditional edge", name, len(node.OnEvent)))
	}

	for event, target := range node.OnEvent {
		if _, ok := spec.Nodes[target]; !ok {
			r.Errors = append(r.Errors, fmt.Sprintf(
				"workflow.nodes[%q].on_event[%q] target %q does not exist", name, event, target))
		}
		if !pascalCaseRe.MatchString(event) {
			r.Warnings = append(r.Warnings, fmt.Sprintf(
				"workflow.nodes[%q].on_event[%q]: event name should be PascalCase", name, event))
		}
	}
}

// validateReachability walks edges backwards from every terminal node.
func validateReachability(spec *Spec, r *ValidationResult) {
	reverse := make(map[string][]string, len(spec.Nodes))
	var queue []string
	for name, node := range spec.Nodes {
		if node == nil {
			continue
		}
		if len(node.OnEvent) == 0 {
			queue = append(queue, name)
		}
		for _, target := range node.OnEvent {
			reverse[target] = append(reverse[target], name)
		}
	}

	seen := make(map[string]bool, len(spec.Nodes))
	for _, n := range queue {
		seen[n] = true
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, prev := range reverse[n] {
			if !seen[prev] {
				seen[prev] = true
				queue = append(queue, prev)
			}
		}
	}

	for _, name := range sortedNodes(spec) {
		if !seen[name] {
			r.Errors = append(r.Errors, fmt.Sprintf("workflow.nodes[%q] cannot reach a terminal node", name))
		}
	}
}

// validateCycles reports every back edge whose endpoints are not both in Loop.
func validateCycles(spec *Spec, r *ValidationResult) {
	for _, edge := range detectCycles(spec) {
		if slices.Contains(spec.Loop, edge[0]) && slices.Contains(spec.Loop, edge[1]) {
			continue
		}
		r.Errors = append(r.Errors, fmt.Sprintf("workflow contains an unbounded cycle: %s -> %s", edge[0], edge[1]))
	}
}

// detectCycles uses DFS to find back edges in the node graph.
func detectCycles(spec *Spec) [][2]string {
	const (
		white = iota // unvisited
		gray         // in current DFS path
		black        // fully explored
	)

	color := make(map[string]int, len(spec.Nodes))
	var cycles [][2]string

	var dfs func(name string)
	dfs = func(name string) {
		color[name] = gray
		node := spec.Nodes[name]
		if node != nil {
			for _, event := range sortedEvents(node) {
				target := node.OnEvent[event]
				switch color[target] {
				case gray:
					cycles = append(cycles, [2]string{name, target})
				case white:
					dfs(target)
				}
			}
		}
		color[name] = black
	}

	if _, ok := spec.Nodes[spec.Entry]; ok {
		dfs(spec.Entry)
	}
	for _, name := range sortedNodes(spec) {
		if color[name] == white {
			dfs(name)
		}
	}
	return cycles
}

func sortedNodes(spec *Spec) []string {
	names := make([]string, 0, len(spec.Nodes))
	for name := range spec.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedEvents(node *Node) []string {
	events := make([]string, 0, len(node.OnEvent))
	for e := range node.OnEvent {
		events = append(events, e)
	}
	sort.Strings(events)
	return events
}

// describe renders every transition, sorted by source node then event.
func describe(spec *Spec) []string {
	var lines []string
	for _, name := range sortedNodes(spec) {
		node := spec.Nodes[name]
		if node == nil {
			continue
		}
		for _, event := range sortedEvents(node) {
			lines = append(lines, fmt.Sprintf("%s --%s--> %s", name, event, node.OnEvent[event]))
		}
	}
	return lines
}
