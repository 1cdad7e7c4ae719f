package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/domini04/bluestar/runtime/statestore"
	"github.com/domini04/bluestar/runtime/types"
	"github.com/domini04/bluestar/runtime/workflow"
)

// Color constants
const (
	colorBlue   = "#3B82F6"
	colorGreen  = "#10B981"
	colorYellow = "#F59E0B"
	colorRed    = "#EF4444"
	colorGray   = "#6B7280"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorBlue))
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorGreen))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray))
)

// printResult reports how a run segment ended. Diagnostics come last, in
// the order they occurred.
func printResult(w io.Writer, res *workflow.Result) {
	s := res.State
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", dimStyle.Render("Run:"), res.RunID)
	if s != nil {
		fmt.Fprintf(w, "%s %s@%s\n", dimStyle.Render("Commit:"), s.Repo, workflow.ShortSHA(s.Commit))
		if s.Document != nil {
			fmt.Fprintf(w, "%s %s\n", dimStyle.Render("Title:"), s.Document.Title)
		}
		fmt.Fprintf(w, "%s %d of %d\n", dimStyle.Render("Review passes:"), s.Iteration, s.MaxIterations)
	}

	switch res.Status {
	case workflow.StatusAwaitingInput:
		fmt.Fprintln(w, warnStyle.Render("Waiting for "+awaitingLabel(res.Awaiting)+"."))
		fmt.Fprintln(w, dimStyle.Render("Continue with: "+resumeHint(res)))
	case workflow.StatusHalted:
		fmt.Fprintln(w, errStyle.Render("The run stopped before a draft could be written."))
	default:
		fmt.Fprintln(w, okStyle.Render(completionLine(s)))
	}

	if len(res.Diagnostics) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, errStyle.Render(fmt.Sprintf("%d problem(s):", len(res.Diagnostics))))
		for i, d := range res.Diagnostics {
			fmt.Fprintf(w, "  %d. %s\n", i+1, d)
		}
	}
}

func completionLine(s *workflow.State) string {
	if s == nil {
		return "Done."
	}
	switch {
	case s.PublishedLocation != "":
		return "Published: " + s.PublishedLocation
	case s.Publishing == types.PublishDiscard:
		return "Draft discarded."
	case s.Publishing.Valid():
		return "Done, but the draft was not published."
	case s.Publishing != types.PublishNone:
		return fmt.Sprintf("Done. %q is not a publishing option, so nothing was published.", s.Publishing)
	default:
		return "Done. Nothing was published."
	}
}

func awaitingLabel(node string) string {
	switch node {
	case workflow.NodeReview:
		return "your review of the draft"
	case workflow.NodeDecide:
		return "a publishing choice"
	default:
		return node
	}
}

func resumeHint(res *workflow.Result) string {
	switch res.Awaiting {
	case workflow.NodeReview:
		return fmt.Sprintf("bluestar resume %s --satisfied | --feedback \"...\"", res.RunID)
	case workflow.NodeDecide:
		return fmt.Sprintf("bluestar resume %s --choice ghost|notion|local|discard", res.RunID)
	default:
		return "bluestar resume " + res.RunID
	}
}

// printRuns lists stored runs, one per line.
func printRuns(w io.Writer, runs []statestore.Summary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No runs stored."))
		return
	}
	for _, r := range runs {
		status := string(r.Status)
		if r.Awaiting != "" {
			status += " (" + r.Awaiting + ")"
		}
		fmt.Fprintf(w, "%s  %-28s %s@%s  %s\n",
			r.RunID, status, r.Repo, workflow.ShortSHA(r.Commit),
			dimStyle.Render(r.UpdatedAt.Local().Format(time.DateTime)))
	}
}
