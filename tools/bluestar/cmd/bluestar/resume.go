package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/domini04/bluestar/runtime/stages"
	"github.com/domini04/bluestar/runtime/types"
	"github.com/domini04/bluestar/runtime/workflow"
)

const (
	flagSatisfied = "satisfied"
	flagFeedback  = "feedback"
	flagChoice    = "choice"
)

var resumeCmd = &cobra.Command{
	Use:   "resume RUN_ID",
	Short: "Answer a suspended run and continue it",
	Long: `Continue a run that stopped at the review or publishing step.

  bluestar resume RUN_ID --satisfied
  bluestar resume RUN_ID --feedback "explain the benchmark"
  bluestar resume RUN_ID --choice local

Without an answer flag the question is asked in the terminal. Answering a
question the run is no longer waiting for changes nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: resumeWorkflow,
}

func init() {
	rootCmd.AddCommand(resumeCmd)

	f := resumeCmd.Flags()
	f.Bool(flagSatisfied, false, "approve the draft")
	f.String(flagFeedback, "", "ask for another draft with this feedback")
	f.String(flagChoice, "", "publishing choice: ghost, notion, local or discard")
	f.Bool(flagNonInteractive, false, "never prompt; suspend again at the next question")
	resumeCmd.MarkFlagsMutuallyExclusive(flagSatisfied, flagFeedback, flagChoice)
}

func resumeWorkflow(cmd *cobra.Command, args []string) error {
	runID := args[0]
	ctx, sess, err := openSession(cmd.Context(), cmd, interactive(cmd))
	if err != nil {
		return err
	}
	defer sess.close()

	current, err := sess.engine.Status(ctx, runID)
	if err != nil {
		return err
	}
	if current.Status != workflow.StatusAwaitingInput {
		fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("The run is not waiting for input."))
		printResult(cmd.OutOrStdout(), current)
		return nil
	}

	in, err := resumeInput(ctx, cmd, current, sess.console)
	if err != nil {
		return err
	}
	res, err := sess.engine.Resume(ctx, runID, in)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

// resumeInput builds the answer for the question the run is waiting on,
// from the flags or, failing that, from the console.
func resumeInput(ctx context.Context, cmd *cobra.Command, res *workflow.Result, console *Console) (workflow.Input, error) {
	f := cmd.Flags()
	satisfied, _ := f.GetBool(flagSatisfied)
	feedback, _ := f.GetString(flagFeedback)
	choice, _ := f.GetString(flagChoice)
	s := res.State

	switch res.Awaiting {
	case workflow.NodeReview:
		switch {
		case choice != "":
			return workflow.Input{}, errors.New("the run is waiting for a review; use --satisfied or --feedback")
		case satisfied:
			return workflow.ReviewInput(s.Iteration, true, ""), nil
		case feedback != "":
			return workflow.ReviewInput(s.Iteration, false, feedback), nil
		case console != nil && s.Document != nil:
			v, err := console.Review(ctx, s.Document, s.Iteration, s.MaxIterations)
			if err != nil {
				return workflow.Input{}, err
			}
			return workflow.ReviewInput(s.Iteration, v.Satisfied, v.Feedback), nil
		}
		return workflow.Input{}, errors.New("the run is waiting for a review; use --satisfied or --feedback")

	case workflow.NodeDecide:
		switch {
		case satisfied || feedback != "":
			return workflow.Input{}, errors.New("the run is waiting for a publishing choice; use --choice")
		case choice != "":
			c, err := types.ParsePublishChoice(choice)
			if err != nil {
				return workflow.Input{}, err
			}
			return workflow.ChoiceInput(s.Iteration, c), nil
		case console != nil && s.Document != nil:
			c, err := askChoice(ctx, console, s.Document)
			if err != nil {
				return workflow.Input{}, err
			}
			return workflow.ChoiceInput(s.Iteration, c), nil
		}
		return workflow.Input{}, errors.New("the run is waiting for a publishing choice; use --choice")
	}
	return workflow.Input{}, fmt.Errorf("the run is waiting at %q, which takes no input", res.Awaiting)
}

// askChoice repeats the menu until a valid choice is given.
func askChoice(ctx context.Context, c stages.Chooser, doc *types.Document) (types.PublishChoice, error) {
	rejected := ""
	for {
		answer, err := c.Choose(ctx, doc, rejected)
		if err != nil {
			return types.PublishNone, err
		}
		choice, perr := types.ParsePublishChoice(answer)
		if perr == nil {
			return choice, nil
		}
		rejected = answer
	}
}
