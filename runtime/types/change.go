// Package types defines the artifacts that flow through a BlueStar workflow:
// the fetched change record, the model's analysis of it, and the synthesized
// document built from that analysis.
package types

import "time"

// ChangeRecord is a single commit as returned by the record-fetch collaborator.
type ChangeRecord struct {
	SHA         string          `json:"sha"`
	Message     string          `json:"message"`
	Author      string          `json:"author"`
	AuthorEmail string          `json:"author_email,omitempty"`
	Date        time.Time       `json:"date"`
	URL         string          `json:"url,omitempty"`
	Parents     []string        `json:"parents,omitempty"`
	Files       []FileDiff      `json:"files"`
	Stats       ChangeStats     `json:"stats"`
	Diff        string          `json:"diff"`
	Truncated   bool            `json:"truncated,omitempty"`
	Project     *ProjectContext `json:"project,omitempty"`
}

// FileDiff is the per-file portion of a change.
type FileDiff struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// ChangeStats summarizes line counts for a change.
type ChangeStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Total     int `json:"total"`
}

// ProjectContext is the optional, best-effort bundle describing the repository
// a change belongs to. Any field may be empty when its fetch failed.
type ProjectContext struct {
	Description   string   `json:"description,omitempty"`
	Language      string   `json:"language,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	Stars         int      `json:"stars,omitempty"`
	ReadmeSummary string   `json:"readme_summary,omitempty"`
	ConfigFile    string   `json:"config_file,omitempty"`
	ConfigContent string   `json:"config_content,omitempty"`
	ProjectType   string   `json:"project_type,omitempty"`
}

// FileNames returns the changed file names in order.
func (c *ChangeRecord) FileNames() []string {
	names := make([]string, 0, len(c.Files))
	for _, f := range c.Files {
		names = append(names, f.Filename)
	}
	return names
}
