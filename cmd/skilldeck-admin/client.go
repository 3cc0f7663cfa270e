package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultRequestTimeout = 3 * time.Minute

// apiClient calls the dashboard's JSON API.
type apiClient struct {
	base *url.URL
	http *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) (*apiClient, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid dashboard url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &apiClient{base: u, http: &http.Client{Timeout: timeout}}, nil
}

// apiError is the dashboard's JSON error envelope.
type apiError struct {
	Status  int               `json:"-"`
	Code    string            `json:"error"`
	Message string            `json:"message"`
	Kind    string            `json:"kind,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	for field, problem := range e.Fields {
		msg += fmt.Sprintf("\n  %s: %s", field, problem)
	}
	return msg
}

func (c *apiClient) url(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// absolute resolves a server-relative link such as "/tools/pdf?intent=x".
func (c *apiClient) absolute(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.base.ResolveReference(u).String()
}

func (c *apiClient) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path, query), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, dst)
}

func (c *apiClient) postJSON(ctx context.Context, path string, body, dst any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path, nil), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, dst)
}

func (c *apiClient) doJSON(req *http.Request, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &apiError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(body, apiErr) != nil || apiErr.Code == "" {
		apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// submission is what a submit request carries.
type submission struct {
	Params map[string]string
	// Files maps a field name to local paths.
	Files    map[string][]string
	Instance string
	AsLink   bool
}

// submitResponse holds either a streamed file or a JSON outcome.
type submitResponse struct {
	Filename    string
	ContentType string
	Body        []byte
	Outcome     map[string]any
}

func (c *apiClient) submit(ctx context.Context, skillID, opID string, s submission) (*submitResponse, error) {
	body, contentType, err := encodeSubmission(s)
	if err != nil {
		return nil, err
	}
	var query url.Values
	if s.AsLink {
		query = url.Values{"as": {"link"}}
	}
	path := "/api/skills/" + url.PathEscape(skillID) + "/" + url.PathEscape(opID) + "/submit"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path, query), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if s.Instance != "" {
		req.Header.Set("X-Instance-Id", s.Instance)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit %s/%s: %w", skillID, opID, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	out := &submitResponse{ContentType: resp.Header.Get("Content-Type")}
	// Files always come back as attachments, whatever their content type.
	if disposition, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && disposition == "attachment" {
		out.Filename = params["filename"]
		if out.Body, err = io.ReadAll(resp.Body); err != nil {
			return nil, fmt.Errorf("read result: %w", err)
		}
		return out, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(&out.Outcome); err != nil {
		return nil, fmt.Errorf("decode outcome: %w", err)
	}
	if out.Outcome == nil {
		return nil, errNoResult
	}
	return out, nil
}

// encodeSubmission posts multipart when files are attached and a JSON object
// otherwise.
func encodeSubmission(s submission) (io.Reader, string, error) {
	if len(s.Files) == 0 {
		params := make(map[string]any, len(s.Params))
		for k, v := range s.Params {
			params[k] = v
		}
		b, err := json.Marshal(params)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range s.Params {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for field, paths := range s.Files {
		for _, p := range paths {
			if err := attachFile(w, field, p); err != nil {
				return nil, "", err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

var errNoResult = errors.New("dashboard returned neither a file nor an outcome")
