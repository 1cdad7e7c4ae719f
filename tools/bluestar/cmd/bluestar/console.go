package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/manifoldco/promptui"

	"github.com/domini04/bluestar/runtime/render"
	"github.com/domini04/bluestar/runtime/stages"
	"github.com/domini04/bluestar/runtime/types"
)

const (
	defaultWidth = 100
	maxWidth     = 120
)

// prompter asks single questions. The terminal implementation uses promptui.
type prompter interface {
	Confirm(label string) (bool, error)
	Input(label string, validate promptui.ValidateFunc) (string, error)
	Select(label string, items []string) (int, error)
}

// Console is the terminal reviewer and publishing chooser.
type Console struct {
	prompts prompter
	out     io.Writer
	width   int
}

// NewConsole returns a Console asking questions on in and writing to out.
// Drafts are word-wrapped at width.
func NewConsole(in io.Reader, out io.Writer, width int) *Console {
	if width <= 0 {
		width = defaultWidth
	}
	return &Console{
		prompts: &terminalPrompter{in: io.NopCloser(in), out: nopWriteCloser{out}},
		out:     out,
		width:   width,
	}
}

// Review shows the draft and asks whether it is good enough. Feedback is
// required when the answer is no.
func (c *Console) Review(ctx context.Context, doc *types.Document, iteration, maxIterations int) (stages.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return stages.Verdict{}, err
	}
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, headingStyle.Render(fmt.Sprintf("Draft %d of at most %d", iteration+1, maxIterations)))
	fmt.Fprintln(c.out, c.renderDraft(doc))

	satisfied, err := c.prompts.Confirm("Are you satisfied with this draft")
	if err != nil {
		return stages.Verdict{}, promptError(err)
	}
	if satisfied {
		return stages.Verdict{Satisfied: true}, nil
	}

	if err := ctx.Err(); err != nil {
		return stages.Verdict{}, err
	}
	feedback, err := c.prompts.Input("What should change", requireFeedback)
	if err != nil {
		return stages.Verdict{}, promptError(err)
	}
	return stages.Verdict{Feedback: strings.TrimSpace(feedback)}, nil
}

// Choose shows the publishing menu and returns the selected token.
func (c *Console) Choose(ctx context.Context, doc *types.Document, rejected string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if rejected != "" {
		fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("%q is not a publishing option.", rejected)))
	}

	items := make([]string, len(types.PublishChoices))
	for i, choice := range types.PublishChoices {
		items[i] = string(choice)
	}
	i, err := c.prompts.Select(fmt.Sprintf("Where should %q go?", doc.Title), items)
	if err != nil {
		return "", promptError(err)
	}
	if i < 0 || i >= len(items) {
		return "", fmt.Errorf("menu returned option %d of %d", i+1, len(items))
	}
	return items[i], nil
}

func requireFeedback(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("feedback is required to refine the draft")
	}
	return nil
}

// promptError turns an interrupted or closed prompt into ErrNoInput so the
// run suspends instead of failing.
func promptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", stages.ErrNoInput, err)
	}
	return err
}

// renderDraft formats the draft as terminal markdown, falling back to the
// raw markdown when styling fails.
func (c *Console) renderDraft(doc *types.Document) string {
	md, err := render.DocumentMarkdown(doc)
	if err != nil {
		return fmt.Sprintf("(draft cannot be displayed: %v)", err)
	}
	if len(doc.Tags) > 0 {
		md += "\n\n---\n\nTags: " + strings.Join(doc.Tags, ", ")
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(c.width))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

type terminalPrompter struct {
	in  io.ReadCloser
	out io.WriteCloser
}

func (p *terminalPrompter) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     p.in,
		Stdout:    p.out,
	}
	_, err := prompt.Run()
	if err != nil && err != promptui.ErrAbort {
		return false, err
	}
	return err != promptui.ErrAbort, nil
}

func (p *terminalPrompter) Input(label string, validate promptui.ValidateFunc) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Validate: validate,
		Stdin:    p.in,
		Stdout:   p.out,
	}
	return prompt.Run()
}

func (p *terminalPrompter) Select(label string, items []string) (int, error) {
	prompt := promptui.Select{
		Label:  label,
		Items:  items,
		Stdin:  p.in,
		Stdout: p.out,
	}
	i, _, err := prompt.Run()
	return i, err
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
