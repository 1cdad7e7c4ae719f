// Package render turns a types.Document into the formats its consumers need:
// Markdown for review and refinement, sanitized HTML for Ghost and local
// drafts, and Notion block payloads.
//
// Every renderer is a types.BlockVisitor, so adding a block kind fails to
// compile until each format handles it.
package render

import (
	"fmt"
	"strings"

	"github.com/domini04/bluestar/runtime/types"
)

type markdownWriter struct {
	parts []string
}

var _ types.BlockVisitor = (*markdownWriter)(nil)

func (w *markdownWriter) Paragraph(content string) error {
	w.parts = append(w.parts, content)
	return nil
}

func (w *markdownWriter) Heading(level int, content string) error {
	w.parts = append(w.parts, strings.Repeat("#", clampLevel(level, 6))+" "+content)
	return nil
}

func (w *markdownWriter) List(items []string) error {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	w.parts = append(w.parts, strings.Join(lines, "\n"))
	return nil
}

func (w *markdownWriter) Code(language, content string) error {
	w.parts = append(w.parts, fmt.Sprintf("```%s\n%s\n```", language, strings.TrimRight(content, "\n")))
	return nil
}

// Markdown renders body blocks separated by blank lines.
func Markdown(blocks []types.ContentBlock) (string, error) {
	w := &markdownWriter{}
	if err := types.Walk(blocks, w); err != nil {
		return "", err
	}
	return strings.Join(w.parts, "\n\n"), nil
}

// DocumentMarkdown renders the whole document: title, italic summary, body.
func DocumentMarkdown(doc *types.Document) (string, error) {
	body, err := Markdown(doc.Body)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("# " + doc.Title + "\n\n")
	if s := strings.TrimSpace(doc.Summary); s != "" {
		b.WriteString("*" + s + "*\n\n")
	}
	b.WriteString(body)
	return b.String(), nil
}

func clampLevel(level, maxLevel int) int {
	return max(1, min(maxLevel, level))
}
