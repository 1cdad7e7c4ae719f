package publish

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/domini04/bluestar/pkg/errors"
	"github.com/domini04/bluestar/pkg/httputil"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/render"
	"github.com/domini04/bluestar/runtime/types"
)

const (
	ghostComponent   = "ghost"
	ghostTokenTTL    = 5 * time.Minute
	ghostAudience    = "/admin/"
	ghostExcerptMax  = 300
	ghostPostsPath   = "/ghost/api/admin/posts/?source=html"
	ghostAuthScheme  = "Ghost "
	ghostPostDrafted = "draft"
)

// GhostConfig configures the Ghost Admin API sink.
type GhostConfig struct {
	// URL is the site root, e.g. https://blog.example.com.
	URL string
	// AdminAPIKey is the "id:secret" key of a Ghost custom integration.
	AdminAPIKey string
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Ghost creates draft posts through the Ghost Admin API.
type Ghost struct {
	url    string
	keyID  string
	secret []byte
	client *http.Client
	log    *slog.Logger
}

// NewGhost validates cfg and returns a Ghost sink.
func NewGhost(cfg GhostConfig) (*Ghost, error) {
	if cfg.URL == "" || cfg.AdminAPIKey == "" {
		return nil, pkgerrors.Newf(ghostComponent, "New", "Ghost API URL and Admin API key are required").
			WithKind(pkgerrors.KindConfiguration)
	}
	id, secretHex, ok := strings.Cut(cfg.AdminAPIKey, ":")
	if !ok || id == "" || secretHex == "" {
		return nil, pkgerrors.Newf(ghostComponent, "New", "invalid Ghost Admin API key format, want id:secret").
			WithKind(pkgerrors.KindConfiguration)
	}
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, pkgerrors.Newf(ghostComponent, "New", "Ghost Admin API key secret is not hex: %v", err).
			WithKind(pkgerrors.KindConfiguration)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = httputil.DefaultAPITimeout
	}
	return &Ghost{
		url:    strings.TrimSuffix(cfg.URL, "/"),
		keyID:  id,
		secret: secret,
		client: httputil.NewHTTPClient(timeout),
		log:    logger.OrDefault(cfg.Logger),
	}, nil
}

// Name returns "ghost".
func (g *Ghost) Name() string { return ghostComponent }

// Token signs a short-lived Admin API token.
func (g *Ghost) Token(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ghostTokenTTL)),
		Audience:  jwt.ClaimStrings{ghostAudience},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = g.keyID
	return tok.SignedString(g.secret)
}

type ghostTag struct {
	Name string `json:"name"`
}

type ghostPost struct {
	Title         string     `json:"title"`
	HTML          string     `json:"html"`
	Tags          []ghostTag `json:"tags,omitempty"`
	CustomExcerpt string     `json:"custom_excerpt,omitempty"`
	Status        string     `json:"status"`
	URL           string     `json:"url,omitempty"`
}

type ghostEnvelope struct {
	Posts []ghostPost `json:"posts"`
}

// Publish creates a draft post and returns its URL.
func (g *Ghost) Publish(ctx context.Context, doc *types.Document, target Target) (string, error) {
	ctx = logger.WithSink(ctx, ghostComponent)

	body, err := render.HTML(doc.Body)
	if err != nil {
		return "", pkgerrors.New(ghostComponent, "Publish", err).WithKind(pkgerrors.KindPublishing)
	}
	token, err := g.Token(target.now())
	if err != nil {
		return "", pkgerrors.New(ghostComponent, "Publish", fmt.Errorf("sign token: %w", err)).
			WithKind(pkgerrors.KindConfiguration)
	}

	post := ghostPost{
		Title:         doc.Title,
		HTML:          body,
		CustomExcerpt: truncate(doc.Summary, ghostExcerptMax),
		Status:        ghostPostDrafted,
	}
	for _, t := range doc.Tags {
		post.Tags = append(post.Tags, ghostTag{Name: t})
	}

	var out ghostEnvelope
	err = httputil.DoJSON(ctx, g.client, httputil.Call{
		Component: ghostComponent,
		Operation: "Publish",
		Method:    http.MethodPost,
		URL:       g.url + ghostPostsPath,
		Headers:   map[string]string{"Authorization": ghostAuthScheme + token},
		Body:      ghostEnvelope{Posts: []ghostPost{post}},
	}, &out)
	if err != nil {
		return "", asPublishing(err)
	}
	if len(out.Posts) == 0 || out.Posts[0].URL == "" {
		return "", pkgerrors.Newf(ghostComponent, "Publish", "malformed response: no post URL").
			WithKind(pkgerrors.KindPublishing)
	}

	g.log.InfoContext(ctx, "Published Ghost draft", "url", out.Posts[0].URL)
	return out.Posts[0].URL, nil
}

// asPublishing keeps access, timeout and rate-limit kinds and files every
// other failure under publishing.
func asPublishing(err error) error {
	switch pkgerrors.KindOf(err) {
	case pkgerrors.KindAccess, pkgerrors.KindTimeout, pkgerrors.KindRateLimited, pkgerrors.KindConfiguration:
		return err
	}
	var ce *pkgerrors.ContextualError
	if errors.As(err, &ce) {
		ce.Kind = pkgerrors.KindPublishing
		return err
	}
	return pkgerrors.New("publish", "Publish", err).WithKind(pkgerrors.KindPublishing)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
