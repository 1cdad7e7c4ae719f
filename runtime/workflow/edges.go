package workflow

import "github.com/domini04/bluestar/runtime/types"

// Edge picks the next node from the current State. Edges must be pure.
type Edge func(s *State) string

// Names of the conditional edges a Node may reference.
const (
	EdgeFetch      = "fetch"
	EdgeIteration  = "iteration"
	EdgePublishing = "publishing"
)

// edges is the registry consulted by Graph and Validate.
var edges = map[string]Edge{
	EdgeFetch:      func(s *State) string { return RouteFetch(s.Change) },
	EdgeIteration:  func(s *State) string { return RouteIteration(s.Iteration, s.MaxIterations, s.Satisfied) },
	EdgePublishing: func(s *State) string { return RoutePublishing(s.Publishing) },
}

// RouteFetch continues to analysis when a change record was fetched and
// ends the run otherwise.
func RouteFetch(change *types.ChangeRecord) string {
	if change == nil {
		return NodeEnd
	}
	return NodeAnalyze
}

// RouteIteration decides whether the refinement loop continues.
//
// Precedence: the bound wins over satisfaction, an explicit true proceeds,
// an explicit false below the bound loops back, and anything else proceeds.
func RouteIteration(counter, maxIterations int, satisfied *bool) string {
	switch {
	case counter >= maxIterations:
		return NodeDecide
	case satisfied == nil:
		return NodeDecide
	case *satisfied:
		return NodeDecide
	default:
		return NodeSynthesize
	}
}

// RoutePublishing maps a publishing choice to its sink. Discard and any
// unrecognized value end the run without publishing.
func RoutePublishing(choice types.PublishChoice) string {
	switch choice {
	case types.PublishGhost:
		return NodePublishGhost
	case types.PublishNotion:
		return NodePublishNotion
	case types.PublishLocal:
		return NodeSaveLocal
	default:
		return NodeEnd
	}
}
