// Package backend is the HTTP adapter for the remote skills API that performs
// document generation, conversion and intent parsing.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"

	"github.com/skilldeck/skilldeck/internal/core"
	"github.com/skilldeck/skilldeck/internal/domain/assistant"
	"github.com/skilldeck/skilldeck/internal/domain/job"
	"github.com/skilldeck/skilldeck/internal/domain/skill"
)

const (
	defaultUserAgent        = "skilldeck/1.0"
	defaultMaxResponseBytes = 256 << 20
	// maxErrorBodyBytes bounds how much of a non-2xx body is read for a message.
	maxErrorBodyBytes = 64 << 10
)

// DefaultErrorExpressions pull a message from the error bodies the backend produces.
var DefaultErrorExpressions = []string{"detail", "error.detail", "error.message", "error", "message"}

var _ core.SkillsBackend = (*Client)(nil)

// Config configures a Client.
type Config struct {
	BaseURL          string
	UserAgent        string
	ErrorExpressions []string
	IntentPath       string
	QuickActionsPath string
	HealthPath       string
	MaxResponseBytes int64
	// HTTPClient is copied; a cookie jar is attached when it has none.
	HTTPClient *http.Client
	// TokenSource, when set, authorizes every request with a bearer token.
	TokenSource oauth2.TokenSource
}

// Client talks to the skills backend. It never applies its own timeout; the
// caller's context carries the deadline.
type Client struct {
	base         *url.URL
	userAgent    string
	errorExprs   []string
	intentPath   string
	actionsPath  string
	healthPath   string
	maxBodyBytes int64
	http         *http.Client
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute http(s)", cfg.BaseURL)
	}

	exprs := cfg.ErrorExpressions
	if len(exprs) == 0 {
		exprs = DefaultErrorExpressions
	}
	for _, e := range exprs {
		if _, err := jmespath.Compile(e); err != nil {
			return nil, fmt.Errorf("error expression %q: %w", e, err)
		}
	}

	hc := &http.Client{}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		hc = &copied
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		hc.Jar = jar
	}
	if cfg.TokenSource != nil {
		transport := hc.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		hc.Transport = &oauth2.Transport{Source: cfg.TokenSource, Base: transport}
	}

	c := &Client{
		base:         base,
		userAgent:    fallback(cfg.UserAgent, defaultUserAgent),
		errorExprs:   exprs,
		intentPath:   fallback(cfg.IntentPath, "/api/ai/parse"),
		actionsPath:  fallback(cfg.QuickActionsPath, "/api/ai/quick-actions"),
		healthPath:   fallback(cfg.HealthPath, "/health"),
		maxBodyBytes: cfg.MaxResponseBytes,
		http:         hc,
	}
	if c.maxBodyBytes <= 0 {
		c.maxBodyBytes = defaultMaxResponseBytes
	}
	return c, nil
}

// Submit sends one job request for op.
func (c *Client) Submit(ctx context.Context, op *skill.Operation, cfg job.Config) (*core.BackendResponse, error) {
	if op == nil {
		return nil, errors.New("operation is required")
	}
	target, err := c.resolve(op.Endpoint)
	if err != nil {
		return nil, err
	}

	var (
		body        io.Reader
		contentType string
	)
	if op.Method == http.MethodGet {
		q := target.Query()
		for k, v := range cfg.Params {
			for _, s := range formValues(v) {
				q.Add(k, s)
			}
		}
		target.RawQuery = q.Encode()
	} else {
		buf, ct, err := encodeBody(op.Encoding, cfg)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", op.ID, err)
		}
		body, contentType = buf, ct
	}

	req, err := http.NewRequestWithContext(ctx, op.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "*/*")
	return c.do(req)
}

// FetchJSON GETs endpoint and decodes the JSON body.
func (c *Client) FetchJSON(ctx context.Context, endpoint string) (any, error) {
	var doc any
	if err := c.getJSON(ctx, endpoint, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseIntent asks the backend to classify a chat message.
func (c *Client) ParseIntent(ctx context.Context, in assistant.ParseRequest) (*assistant.ParseResponse, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode parse request: %w", err)
	}
	target, err := c.resolve(c.intentPath)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var out assistant.ParseResponse
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QuickActions returns the backend's one-click prompts.
func (c *Client) QuickActions(ctx context.Context) ([]assistant.QuickAction, error) {
	var out struct {
		Actions []assistant.QuickAction `json:"actions"`
	}
	if err := c.getJSON(ctx, c.actionsPath, &out); err != nil {
		return nil, err
	}
	return out.Actions, nil
}

// Health checks that the backend answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	target, err := c.resolve(c.healthPath)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("backend health: %w", err)
	}
	return nil
}

// ErrorMessage extracts a human readable message from a non-2xx body. It
// returns "" when no configured expression yields one.
func (c *Client) ErrorMessage(body []byte) string {
	return ErrorMessage(c.errorExprs, body)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dst any) error {
	target, err := c.resolve(endpoint)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	return decodeJSON(resp.Body, dst)
}

// resolve joins a catalog endpoint onto the base URL. Absolute URLs are
// rejected so a catalog entry can never point the client elsewhere.
func (c *Client) resolve(endpoint string) (*url.URL, error) {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if ref.Scheme != "" || ref.Host != "" {
		return nil, fmt.Errorf("endpoint %q must be a path", endpoint)
	}
	u := c.base.JoinPath(ref.Path)
	u.RawQuery = ref.RawQuery
	return u, nil
}

func (c *Client) do(req *http.Request) (*core.BackendResponse, error) {
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportFailure(req.Context(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &job.Failure{
			Kind:    job.FailureServer,
			Status:  resp.StatusCode,
			Message: c.ErrorMessage(body),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, transportFailure(req.Context(), err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes",
			&job.Failure{Kind: job.FailureMalformed, Message: job.MessageMalformed}, c.maxBodyBytes)
	}

	return &core.BackendResponse{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    dispositionFilename(resp.Header.Get("Content-Disposition")),
		Body:        body,
	}, nil
}

func decodeJSON(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %w", &job.Failure{Kind: job.FailureMalformed, Message: job.MessageMalformed}, err)
	}
	return nil
}

func fallback(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
