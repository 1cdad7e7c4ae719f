package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/domini04/bluestar/runtime/types"
)

// Excerpt sizes, in characters.
const (
	ReadmeExcerptChars = 1000
	ConfigExcerptChars = 2000
)

// configFiles are probed in order; the first one present wins.
var configFiles = []struct {
	name, projectType string
}{
	{"package.json", "javascript/node"},
	{"pyproject.toml", "python"},
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
	{"pom.xml", "java/maven"},
	{"build.gradle", "java/gradle"},
	{"requirements.txt", "python"},
}

type repoResponse struct {
	Description string   `json:"description"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	Stars       int      `json:"stargazers_count"`
}

type contentResponse struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// ProjectContext gathers repository metadata, a README excerpt and the
// primary build file at sha. The three lookups run in parallel and each one
// is best-effort: a failure only leaves its fields empty. It returns nil
// when nothing could be fetched.
func (c *Client) ProjectContext(ctx context.Context, owner, name, sha string) *types.ProjectContext {
	var (
		meta                 *repoResponse
		readme               string
		cfgName, cfgBody, pt string
	)
	repoPath := fmt.Sprintf("/repos/%s/%s", owner, name)
	ref := "?ref=" + url.QueryEscape(sha)

	// Each goroutine writes only its own variables; errors are logged, not returned.
	var g errgroup.Group
	g.Go(func() error {
		var r repoResponse
		if err := c.get(ctx, "get repository", repoPath, &r); err != nil {
			c.log.DebugContext(ctx, "Repository metadata unavailable", "error", err)
			return nil
		}
		meta = &r
		return nil
	})
	g.Go(func() error {
		text, err := c.file(ctx, repoPath+"/readme"+ref)
		if err != nil {
			c.log.DebugContext(ctx, "README unavailable", "error", err)
			return nil
		}
		readme = truncateChars(text, ReadmeExcerptChars)
		return nil
	})
	g.Go(func() error {
		for _, f := range configFiles {
			if ctx.Err() != nil {
				return nil
			}
			text, err := c.file(ctx, repoPath+"/contents/"+f.name+ref)
			if err != nil {
				continue
			}
			cfgName, cfgBody, pt = f.name, truncateChars(text, ConfigExcerptChars), f.projectType
			return nil
		}
		c.log.DebugContext(ctx, "No primary config file found")
		return nil
	})
	_ = g.Wait()

	if meta == nil && readme == "" && cfgName == "" {
		return nil
	}
	p := &types.ProjectContext{
		ReadmeSummary: readme,
		ConfigFile:    cfgName,
		ConfigContent: cfgBody,
		ProjectType:   pt,
	}
	if meta != nil {
		p.Description = meta.Description
		p.Language = meta.Language
		p.Topics = meta.Topics
		p.Stars = meta.Stars
	}
	if p.ProjectType == "" {
		p.ProjectType = "unknown"
	}
	return p
}

// file fetches a contents-API file and decodes it.
func (c *Client) file(ctx context.Context, path string) (string, error) {
	var r contentResponse
	if err := c.get(ctx, "get file", path, &r); err != nil {
		return "", err
	}
	if r.Type != "file" {
		return "", fmt.Errorf("%s is a %s, not a file", path, r.Type)
	}
	if r.Encoding != "" && r.Encoding != "base64" {
		return "", fmt.Errorf("%s: unsupported encoding %q", path, r.Encoding)
	}
	// The API wraps base64 content at 60 columns.
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(r.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return string(data), nil
}

func truncateChars(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
