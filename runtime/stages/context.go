package stages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/domini04/bluestar/runtime/render"
	"github.com/domini04/bluestar/runtime/types"
	"github.com/domini04/bluestar/runtime/workflow"
)

// AnalysisVars projects the state into the analysis prompt's variables.
func AnalysisVars(s *workflow.State) map[string]string {
	c := s.Change
	vars := map[string]string{
		"repo":            s.Repo,
		"commit":          s.Commit,
		"message":         c.Message,
		"author":          c.Author,
		"files":           fileList(c.Files),
		"diff":            c.Diff,
		"project_context": projectContext(s.Repo, c.Project),
		"instructions":    s.Instructions,
	}
	if !c.Date.IsZero() {
		vars["date"] = c.Date.Format("2006-01-02T15:04:05Z07:00")
	}
	return vars
}

// InitialVars projects the state into the first-draft prompt's variables.
func InitialVars(s *workflow.State) map[string]string {
	a := s.Analysis
	vars := map[string]string{
		"change_type":         string(a.ChangeType),
		"technical_summary":   a.TechnicalSummary,
		"business_impact":     a.BusinessImpact,
		"key_changes":         bullets(a.KeyChanges),
		"technical_details":   bullets(a.TechnicalDetails),
		"affected_components": strings.Join(a.AffectedComponents, ", "),
		"narrative_angle":     a.NarrativeAngle,
		"instructions":        s.Instructions,
	}
	if c := s.Change; c != nil {
		vars["project_context"] = projectContext(s.Repo, c.Project)
		vars["author"] = c.Author
		vars["message"] = c.Message
		if !c.Date.IsZero() {
			vars["date"] = c.Date.Format(types.DateLayout)
		}
	}
	return vars
}

// RefinementVars projects the state into the refinement prompt's variables.
// The previous draft is rendered to Markdown.
func RefinementVars(s *workflow.State) (map[string]string, error) {
	draft, err := render.DocumentMarkdown(s.Document)
	if err != nil {
		return nil, err
	}
	vars := map[string]string{
		"draft":        draft,
		"feedback":     s.Feedback,
		"instructions": s.Instructions,
	}
	if s.Analysis != nil {
		vars["technical_summary"] = s.Analysis.TechnicalSummary
	}
	return vars, nil
}

func fileList(files []types.FileDiff) string {
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "- %s (%s, +%d/-%d)\n", f.Filename, f.Status, f.Additions, f.Deletions)
	}
	return strings.TrimRight(b.String(), "\n")
}

func bullets(items []string) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func projectContext(repo string, p *types.ProjectContext) string {
	if p == nil {
		return ""
	}
	var lines []string
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, label+": "+value)
		}
	}
	add("Repository", repo)
	add("Description", p.Description)
	add("Language", p.Language)
	add("Topics", strings.Join(p.Topics, ", "))
	if p.Stars > 0 {
		add("Stars", strconv.Itoa(p.Stars))
	}
	add("Project type", p.ProjectType)
	if p.ConfigFile != "" {
		add("Config file", p.ConfigFile)
		add("Config excerpt", "\n"+p.ConfigContent)
	}
	add("README summary", p.ReadmeSummary)
	return strings.Join(lines, "\n")
}
