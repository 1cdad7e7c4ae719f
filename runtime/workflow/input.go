package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/domini04/bluestar/runtime/types"
)

// ErrInvalidInput is returned when host input cannot answer any suspended stage.
var ErrInvalidInput = errors.New("invalid input")

// Input is what a host delivers to a suspended run. Stage and Iteration
// address the pass being answered so that a re-delivery is recognized.
type Input struct {
	Stage     string `json:"stage"`
	Iteration int    `json:"iteration"`

	// Review answers.
	Satisfied *bool  `json:"satisfied,omitempty"`
	Feedback  string `json:"feedback,omitempty"`

	// Decide answer.
	Choice types.PublishChoice `json:"choice,omitempty"`
}

// ReviewInput builds the answer to a review pass.
func ReviewInput(iteration int, satisfied bool, feedback string) Input {
	return Input{Stage: NodeReview, Iteration: iteration, Satisfied: &satisfied, Feedback: feedback}
}

// ChoiceInput builds the answer to a publishing decision.
func ChoiceInput(iteration int, choice types.PublishChoice) Input {
	return Input{Stage: NodeDecide, Iteration: iteration, Choice: choice}
}

// Validate checks that the input is complete for the stage it addresses and
// normalizes the choice token.
func (in *Input) Validate() error {
	switch in.Stage {
	case NodeReview:
		if in.Satisfied == nil {
			return fmt.Errorf("%w: review input needs a satisfaction answer", ErrInvalidInput)
		}
		if !*in.Satisfied && strings.TrimSpace(in.Feedback) == "" {
			return fmt.Errorf("%w: feedback is required when not satisfied", ErrInvalidInput)
		}
	case NodeDecide:
		c, err := types.ParsePublishChoice(string(in.Choice))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		in.Choice = c
	default:
		return fmt.Errorf("%w: stage %q does not accept input", ErrInvalidInput, in.Stage)
	}
	if in.Iteration < 0 {
		return fmt.Errorf("%w: iteration must not be negative", ErrInvalidInput)
	}
	return nil
}
