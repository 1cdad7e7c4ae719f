// Package github fetches commit records and best-effort project context from
// the GitHub REST API.
//
// Requests are paced by a token-bucket limiter and authenticated through an
// oauth2 transport when a token is configured. When GitHub reports an
// exhausted quota the client waits for the advertised reset once, provided
// the reset falls within MaxRateLimitWait, and otherwise fails with a
// rate_limited error.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
	"github.com/domini04/bluestar/pkg/httputil"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/types"
	"github.com/domini04/bluestar/runtime/workflow"
)

const (
	component = "github"

	// DefaultBaseURL is the public GitHub REST endpoint.
	DefaultBaseURL = "https://api.github.com"

	// DefaultMaxRateLimitWait bounds the single wait for a quota reset.
	DefaultMaxRateLimitWait = 300 * time.Second

	// DefaultRequestsPerSecond paces calls well below the secondary limits.
	DefaultRequestsPerSecond = 10

	// MaxDiffChars caps the concatenated diff handed to the analysis prompt.
	MaxDiffChars = 50000

	diffTruncatedNote = "\n... (remaining diffs truncated)"
	mediaTypeJSON     = "application/vnd.github+json"
	apiVersion        = "2022-11-28"
)

// Config configures a Client.
type Config struct {
	// Token is a personal access token. Anonymous access works for public
	// repositories at a much lower quota.
	Token             string
	BaseURL           string
	Timeout           time.Duration
	MaxRateLimitWait  time.Duration
	RequestsPerSecond float64
	Logger            *slog.Logger
}

// Client is a GitHub REST client. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
	maxWait time.Duration
	log     *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu        sync.Mutex
	exhausted time.Time // quota reset time while the last response reported zero remaining
}

// New creates a Client with defaults applied.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = httputil.DefaultAPITimeout
	}
	if cfg.MaxRateLimitWait <= 0 {
		cfg.MaxRateLimitWait = DefaultMaxRateLimitWait
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	hc := httputil.NewHTTPClient(cfg.Timeout)
	if cfg.Token != "" {
		hc.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
			Base:   hc.Transport,
		}
	}

	return &Client{
		http:    hc,
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		maxWait: cfg.MaxRateLimitWait,
		log:     logger.OrDefault(cfg.Logger),
		sleep:   sleepContext,
		now:     time.Now,
	}
}

// MaxRateLimitWait is the longest single pause for a quota reset. Each HTTP
// request is bounded separately by the client timeout.
func (c *Client) MaxRateLimitWait() time.Duration { return c.maxWait }

// FetchChange fetches the commit sha of repo (owner/name) together with its
// project context. Project context failures never fail the fetch.
func (c *Client) FetchChange(ctx context.Context, repo, sha string) (*types.ChangeRecord, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	change, err := c.Commit(ctx, owner, name, sha)
	if err != nil {
		return nil, err
	}
	change.Project = c.ProjectContext(ctx, owner, name, sha)
	return change, nil
}

type commitResponse struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Parents []struct {
		SHA string `json:"sha"`
	} `json:"parents"`
	Stats types.ChangeStats `json:"stats"`
	Files []types.FileDiff  `json:"files"`
}

// Commit fetches a single commit and its per-file patches.
func (c *Client) Commit(ctx context.Context, owner, name, sha string) (*types.ChangeRecord, error) {
	var resp commitResponse
	path := fmt.Sprintf("/repos/%s/%s/commits/%s", owner, name, sha)
	if err := c.get(ctx, "get commit", path, &resp); err != nil {
		return nil, err
	}

	change := &types.ChangeRecord{
		SHA:         resp.SHA,
		Message:     resp.Commit.Message,
		Author:      resp.Commit.Author.Name,
		AuthorEmail: resp.Commit.Author.Email,
		Date:        resp.Commit.Author.Date,
		URL:         resp.HTMLURL,
		Files:       resp.Files,
		Stats:       resp.Stats,
	}
	if change.SHA == "" {
		change.SHA = sha
	}
	for _, p := range resp.Parents {
		change.Parents = append(change.Parents, p.SHA)
	}
	change.Diff, change.Truncated = BuildDiff(resp.Files, MaxDiffChars)

	c.log.DebugContext(ctx, "Fetched commit",
		"repo", owner+"/"+name, "commit", workflow.ShortSHA(sha),
		"files", len(change.Files), "truncated", change.Truncated)
	return change, nil
}

// BuildDiff concatenates the per-file patches under a header per file and
// cuts the result at limit characters. Binary files carry no patch and are
// listed with an empty section.
func BuildDiff(files []types.FileDiff, limit int) (string, bool) {
	var b strings.Builder
	for i, f := range files {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- File: %s (%s) ---\n", f.Filename, f.Status)
		if f.Patch == "" {
			b.WriteString("(no textual diff)")
			continue
		}
		b.WriteString(f.Patch)
	}
	diff := b.String()
	if limit <= 0 || len(diff) <= limit {
		return diff, false
	}
	cut := limit
	// Back off to a rune boundary.
	for cut > 0 && !isRuneStart(diff[cut]) {
		cut--
	}
	return diff[:cut] + diffTruncatedNote, true
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// get performs a paced GET and decodes the JSON reply into out.
func (c *Client) get(ctx context.Context, op, path string, out any) error {
	if err := c.waitForQuota(ctx, op); err != nil {
		return err
	}

	resp, err := c.do(ctx, op, path)
	if err != nil {
		return err
	}
	if wait, limited := c.rateLimited(resp); limited {
		resp.Body.Close()
		if err := c.waitOnce(ctx, op, wait); err != nil {
			return err
		}
		if resp, err = c.do(ctx, op, path); err != nil {
			return err
		}
		if _, limited := c.rateLimited(resp); limited {
			resp.Body.Close()
			return pkgerrors.Newf(component, op, "rate limit still exceeded after waiting for reset").
				WithStatusCode(resp.StatusCode).
				WithKind(pkgerrors.KindRateLimited)
		}
	}
	defer resp.Body.Close()

	if !httputil.IsSuccess(resp.StatusCode) {
		return statusError(op, path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.New(component, op, fmt.Errorf("decode response: %w", err)).
			WithKind(pkgerrors.KindProvider)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, path string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, httputil.TransportError(component, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, http.NoBody)
	if err != nil {
		return nil, pkgerrors.New(component, op, err).WithKind(pkgerrors.KindConfiguration)
	}
	req.Header.Set("Accept", mediaTypeJSON)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, httputil.TransportError(component, op, err)
	}
	c.track(resp)
	return resp, nil
}

// track remembers an exhausted quota so the next call waits up front.
func (c *Client) track(resp *http.Response) {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if remaining == "0" {
		c.exhausted = resetTime(resp.Header)
	} else {
		c.exhausted = time.Time{}
	}
}

func (c *Client) waitForQuota(ctx context.Context, op string) error {
	c.mu.Lock()
	reset := c.exhausted
	c.mu.Unlock()
	if reset.IsZero() {
		return nil
	}
	wait := reset.Sub(c.now()) + time.Second
	if wait <= 0 {
		return nil
	}
	return c.waitOnce(ctx, op, wait)
}

// rateLimited reports whether resp is a quota rejection and how long to wait.
func (c *Client) rateLimited(resp *http.Response) (time.Duration, bool) {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
	case http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") != "0" && resp.Header.Get("Retry-After") == "" {
			return 0, false
		}
	default:
		return 0, false
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			return time.Duration(secs) * time.Second, true
		}
	}
	if reset := resetTime(resp.Header); !reset.IsZero() {
		return max(reset.Sub(c.now())+time.Second, 0), true
	}
	return time.Second, true
}

func (c *Client) waitOnce(ctx context.Context, op string, wait time.Duration) error {
	if wait > c.maxWait {
		return pkgerrors.Newf(component, op, "rate limit exceeded; quota resets in %s", wait.Round(time.Second)).
			WithKind(pkgerrors.KindRateLimited).
			WithDetails(map[string]any{"reset_in_seconds": int(wait.Seconds())})
	}
	c.log.WarnContext(ctx, "GitHub rate limit reached, waiting for reset", "wait", wait.Round(time.Second))
	if err := c.sleep(ctx, wait); err != nil {
		return httputil.TransportError(component, op, err)
	}
	c.mu.Lock()
	c.exhausted = time.Time{}
	c.mu.Unlock()
	return nil
}

func statusError(op, path string, resp *http.Response) error {
	cause := httputil.StatusError(resp)
	kind := pkgerrors.KindForStatus(resp.StatusCode)
	switch kind {
	case pkgerrors.KindNotFound:
		cause = fmt.Errorf("repository or commit not found (%s): %w", path, cause)
	case pkgerrors.KindAccess:
		cause = fmt.Errorf("access denied; check the token's permissions: %w", cause)
	}
	return pkgerrors.New(component, op, cause).
		WithStatusCode(resp.StatusCode).
		WithKind(kind)
}

func resetTime(h http.Header) time.Time {
	v := h.Get("X-RateLimit-Reset")
	if v == "" {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

func splitRepo(repo string) (owner, name string, err error) {
	norm, err := workflow.NormalizeRepo(repo)
	if err != nil {
		return "", "", pkgerrors.New(component, "parse repository", err).WithKind(pkgerrors.KindInvalidInput)
	}
	owner, name, _ = strings.Cut(norm, "/")
	return owner, name, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
