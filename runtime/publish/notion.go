package publish

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
	"github.com/domini04/bluestar/pkg/httputil"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/render"
	"github.com/domini04/bluestar/runtime/types"
)

const (
	notionComponent      = "notion"
	notionDefaultBaseURL = "https://api.notion.com"
	notionVersion        = "2022-06-28"
	notionChildrenLimit  = 100
	notionMaxRetryAfter  = 60 * time.Second
)

// NotionConfig configures the Notion sink. DatabaseID takes precedence over
// ParentPageID.
type NotionConfig struct {
	APIKey       string
	DatabaseID   string
	ParentPageID string
	BaseURL      string
	Timeout      time.Duration
	Logger       *slog.Logger
}

// Notion creates a page in a database, or under a parent page.
type Notion struct {
	cfg    NotionConfig
	client *http.Client
	log    *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewNotion validates cfg and returns a Notion sink.
func NewNotion(cfg NotionConfig) (*Notion, error) {
	if cfg.APIKey == "" {
		return nil, pkgerrors.Newf(notionComponent, "New", "Notion API key is required (NOTION_API_KEY)").
			WithKind(pkgerrors.KindConfiguration)
	}
	if cfg.DatabaseID == "" && cfg.ParentPageID == "" {
		return nil, pkgerrors.Newf(notionComponent, "New",
			"a Notion database ID or parent page ID is required (NOTION_DATABASE_ID or NOTION_PARENT_PAGE_ID)").
			WithKind(pkgerrors.KindConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = notionDefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = httputil.DefaultAPITimeout
	}
	return &Notion{
		cfg:    cfg,
		client: httputil.NewHTTPClient(timeout),
		log:    logger.OrDefault(cfg.Logger),
		sleep:  sleepContext,
	}, nil
}

// Name returns "notion".
func (n *Notion) Name() string { return notionComponent }

type notionProperty struct {
	Type string `json:"type"`
}

type notionDatabase struct {
	Properties map[string]notionProperty `json:"properties"`
}

type notionPage struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type notionCreate struct {
	Parent     map[string]string    `json:"parent"`
	Properties map[string]any       `json:"properties"`
	Children   []render.NotionBlock `json:"children,omitempty"`
}

type notionAppend struct {
	Children []render.NotionBlock `json:"children"`
}

// Publish creates the page and returns its URL.
func (n *Notion) Publish(ctx context.Context, doc *types.Document, _ Target) (string, error) {
	ctx = logger.WithSink(ctx, notionComponent)

	blocks, err := render.NotionBlocks(doc.Body)
	if err != nil {
		return "", pkgerrors.New(notionComponent, "Publish", err).WithKind(pkgerrors.KindPublishing)
	}

	create := notionCreate{}
	if n.cfg.DatabaseID != "" {
		var db notionDatabase
		if err := n.call(ctx, "GetDatabase", http.MethodGet, "/v1/databases/"+n.cfg.DatabaseID, nil, &db); err != nil {
			return "", err
		}
		props, err := databaseProperties(doc, db.Properties)
		if err != nil {
			return "", err
		}
		create.Parent = map[string]string{"database_id": n.cfg.DatabaseID}
		create.Properties = props
	} else {
		create.Parent = map[string]string{"page_id": n.cfg.ParentPageID}
		create.Properties = map[string]any{"title": titleValue(doc.Title)}
	}

	first, rest := splitChildren(blocks)
	create.Children = first

	var page notionPage
	if err := n.call(ctx, "CreatePage", http.MethodPost, "/v1/pages", create, &page); err != nil {
		return "", err
	}
	for len(rest) > 0 {
		var chunk []render.NotionBlock
		chunk, rest = splitChildren(rest)
		if err := n.call(ctx, "AppendChildren", http.MethodPatch, "/v1/blocks/"+page.ID+"/children",
			notionAppend{Children: chunk}, nil); err != nil {
			return "", err
		}
	}
	if page.URL == "" {
		return "", pkgerrors.Newf(notionComponent, "Publish", "malformed response: no page URL").
			WithKind(pkgerrors.KindPublishing)
	}

	n.log.InfoContext(ctx, "Published Notion page", "url", page.URL, "blocks", len(blocks))
	return page.URL, nil
}

// databaseProperties maps doc onto a database schema. The title goes to
// whichever property has type title; Summary, Tags, Author and Status are
// set only when the database defines them with the expected type.
func databaseProperties(doc *types.Document, schema map[string]notionProperty) (map[string]any, error) {
	titleProp := ""
	for name, p := range schema {
		if p.Type == "title" {
			titleProp = name
			break
		}
	}
	if titleProp == "" {
		return nil, pkgerrors.Newf(notionComponent, "Publish", "database has no title property").
			WithKind(pkgerrors.KindPublishing)
	}

	props := map[string]any{titleProp: titleValue(doc.Title)}
	has := func(name, typ string) bool {
		p, ok := schema[name]
		return ok && p.Type == typ
	}
	if has("Summary", "rich_text") {
		props["Summary"] = map[string]any{"rich_text": render.NewRichText(doc.Summary)}
	}
	if has("Tags", "multi_select") {
		tags := make([]map[string]string, 0, len(doc.Tags))
		for _, t := range doc.Tags {
			// Notion rejects commas in option names.
			tags = append(tags, map[string]string{"name": strings.ReplaceAll(t, ",", " ")})
		}
		props["Tags"] = map[string]any{"multi_select": tags}
	}
	if has("Author", "rich_text") {
		props["Author"] = map[string]any{"rich_text": render.NewRichText(doc.Author)}
	}
	if has("Status", "select") {
		props["Status"] = map[string]any{"select": map[string]string{"name": "Draft"}}
	}
	return props, nil
}

func titleValue(title string) map[string]any {
	return map[string]any{"title": render.NewRichText(title)}
}

func splitChildren(blocks []render.NotionBlock) (head, tail []render.NotionBlock) {
	if len(blocks) <= notionChildrenLimit {
		return blocks, nil
	}
	return blocks[:notionChildrenLimit], blocks[notionChildrenLimit:]
}

// call performs one API request, waiting out a single 429 when the server
// says how long to wait.
func (n *Notion) call(ctx context.Context, op, method, path string, body, out any) error {
	c := httputil.Call{
		Component: notionComponent,
		Operation: op,
		Method:    method,
		URL:       n.cfg.BaseURL + path,
		Headers: map[string]string{
			"Authorization":  "Bearer " + n.cfg.APIKey,
			"Notion-Version": notionVersion,
		},
		Body: body,
	}
	err := httputil.DoJSON(ctx, n.client, c, out)
	if wait, ok := retryAfter(err); ok {
		n.log.WarnContext(ctx, "Notion rate limited, retrying once", "wait", wait)
		if serr := n.sleep(ctx, wait); serr != nil {
			return asPublishing(err)
		}
		err = httputil.DoJSON(ctx, n.client, c, out)
	}
	if err != nil {
		return asPublishing(err)
	}
	return nil
}

func retryAfter(err error) (time.Duration, bool) {
	if !pkgerrors.IsKind(err, pkgerrors.KindRateLimited) {
		return 0, false
	}
	var ce *pkgerrors.ContextualError
	if !errors.As(err, &ce) {
		return 0, false
	}
	raw, _ := ce.Details["retry_after"].(string)
	secs, perr := strconv.Atoi(strings.TrimSpace(raw))
	if perr != nil || secs < 0 {
		return 0, false
	}
	return min(time.Duration(secs)*time.Second, notionMaxRetryAfter), true
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
