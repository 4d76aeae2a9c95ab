// Package lethe is a client for the Lethe text-anonymization HTTP service.
//
// The service detects personal data in (Polish) text, replaces each span with
// a label token such as [name] or [pesel], and can optionally produce a
// synthetic version of the text with fictional values. This package only
// shapes requests and decodes responses; all detection happens server-side.
//
// Usage:
//
//	c := lethe.New("http://localhost:3001")
//	res, err := c.Anonymize(ctx, "Nazywam się Jan Kowalski.", true)
package lethe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// DefaultBaseURL is where a locally started Lethe service listens.
const DefaultBaseURL = "http://localhost:3001"

const (
	pathAnonymize = "/api/anonymize"
	pathBatch     = "/api/anonymize/batch"
	pathFile      = "/api/anonymize/file"
	pathHealth    = "/api/health"
	pathSynthetic = "/api/synthetic"
)

// Client talks to one Lethe service. It holds no mutable state and can be
// shared between goroutines as long as its http.Client can.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for per-request debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Client for baseURL. An empty baseURL selects DefaultBaseURL.
// Trailing slashes are removed so endpoint paths can be appended as-is.
//
// The default http.Client has no timeout; bound calls through ctx.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized service URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Anonymize sends a single text. text is not validated locally; the service
// decides what to do with an empty string. If the response omits "original",
// the input text is used.
func (c *Client) Anonymize(ctx context.Context, text string, generateSynthetic bool) (*Result, error) {
	var w resultWire
	err := c.postJSON(ctx, pathAnonymize, anonymizeRequest{
		Text:              text,
		GenerateSynthetic: generateSynthetic,
	}, &w)
	if err != nil {
		return nil, fmt.Errorf("lethe: anonymize: %w", err)
	}
	res := w.result(text)
	return &res, nil
}

// AnonymizeBatch sends all texts in one request and returns one Result per
// element of the service's "results" list, in that order. A response without
// "results" yields an empty slice. Any failure fails the whole batch.
func (c *Client) AnonymizeBatch(ctx context.Context, texts []string, generateSynthetic bool) ([]Result, error) {
	if texts == nil {
		texts = []string{}
	}
	var resp batchResponse
	err := c.postJSON(ctx, pathBatch, batchRequest{
		Texts:             texts,
		GenerateSynthetic: generateSynthetic,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("lethe: anonymize batch: %w", err)
	}
	c.log.Debug("lethe batch done", "sent", len(texts), "received", len(resp.Results))
	return lo.Map(resp.Results, func(w resultWire, _ int) Result {
		return w.result("")
	}), nil
}

// AnonymizeFile uploads the file at path as multipart/form-data. The file is
// read and closed before the request goes out, so an unreadable path fails
// without any network traffic; such errors wrap the *fs.PathError.
func (c *Client) AnonymizeFile(ctx context.Context, path string, generateSynthetic bool) (*Result, error) {
	body, contentType, err := buildUpload(path, generateSynthetic)
	if err != nil {
		return nil, fmt.Errorf("lethe: anonymize file: %w", err)
	}
	var w resultWire
	if err := c.do(ctx, http.MethodPost, pathFile, contentType, body, &w); err != nil {
		return nil, fmt.Errorf("lethe: anonymize file: %w", err)
	}
	res := w.result("")
	return &res, nil
}

// Synthesize asks the service for a synthetic version of text in which the
// given entities are swapped for fictional values. Entities are usually the
// ones returned by an earlier Anonymize call.
func (c *Client) Synthesize(ctx context.Context, text string, entities []Entity) (*SynthesisResult, error) {
	if entities == nil {
		entities = []Entity{}
	}
	var out SynthesisResult
	err := c.postJSON(ctx, pathSynthetic, synthesizeRequest{Text: text, Entities: entities}, &out)
	if err != nil {
		return nil, fmt.Errorf("lethe: synthesize: %w", err)
	}
	return &out, nil
}

// Health queries the service's health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.do(ctx, http.MethodGet, pathHealth, "", nil, &out); err != nil {
		return nil, fmt.Errorf("lethe: health: %w", err)
	}
	return &out, nil
}

// Anonymize is a shortcut for New(baseURL).Anonymize(ctx, text, generateSynthetic).
func Anonymize(ctx context.Context, text string, generateSynthetic bool, baseURL string) (*Result, error) {
	return New(baseURL).Anonymize(ctx, text, generateSynthetic)
}

// ---------- transport ----------

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(b), out)
}

// do sends one request and decodes a 2xx body into out. Non-2xx statuses
// become *StatusError, undecodable bodies *DecodeError.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.log.Debug("lethe request", "method", method, "url", url)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Debug("lethe error status", "url", url, "code", resp.StatusCode)
		return newStatusError(resp.StatusCode, b)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// buildUpload reads the file into a multipart body with the form field
// generateSynthetic ("true"/"false") and the file part "file".
// The file is closed before returning.
func buildUpload(path string, generateSynthetic bool) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("generateSynthetic", strconv.FormatBool(generateSynthetic)); err != nil {
		return nil, "", err
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
