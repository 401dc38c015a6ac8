package parser

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"resume-formatter/internal/shared/telemetry"
)

// DefaultTimeout bounds a parse call when none is configured.
const DefaultTimeout = 60 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 32 << 20

// Request is one parse call. Endpoint and APIKey are passed per call so a
// session can override the configured values.
type Request struct {
	Filename string
	PDF      []byte
	Endpoint string
	APIKey   string
}

type requestBody struct {
	ResumeFilename      string `json:"resume_filename"`
	ResumeBase64Encoded string `json:"resume_base64_encoded"`
}

// Client posts resumes to the external parsing endpoint. It never retries.
type Client struct {
	timeout time.Duration
	base    http.RoundTripper
}

// Option configures a Client.
type Option func(*Client)

// WithTransport overrides the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.base = rt
		}
	}
}

// NewClient constructs a Client with the given request timeout.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{timeout: timeout, base: http.DefaultTransport}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Parse sends the PDF to req.Endpoint and returns the top-level data object.
// Every failure is a *ParseError.
func (c *Client) Parse(ctx context.Context, req Request) (map[string]any, error) {
	payload, err := json.Marshal(requestBody{
		ResumeFilename:      req.Filename,
		ResumeBase64Encoded: base64.StdEncoding.EncodeToString(req.PDF),
	})
	if err != nil {
		return nil, &ParseError{Kind: KindTransport, Detail: "encode request: " + err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(req.Endpoint), bytes.NewReader(payload))
	if err != nil {
		return nil, &ParseError{Kind: KindTransport, Detail: "build request: " + err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient(req.APIKey).Do(httpReq)
	if err != nil {
		telemetry.Warn("parser.transport_error", map[string]any{
			"endpoint":    endpointHost(req.Endpoint),
			"duration_ms": time.Since(start).Milliseconds(),
			"error":       err.Error(),
		})
		return nil, &ParseError{Kind: KindTransport, Detail: transportDetail(err, c.timeout)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &ParseError{Kind: KindTransport, Detail: "read response: " + err.Error()}
	}

	telemetry.Info("parser.response", map[string]any{
		"endpoint":    endpointHost(req.Endpoint),
		"status":      resp.StatusCode,
		"bytes":       len(body),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ParseError{Kind: KindHTTP, Status: resp.StatusCode, BodyExcerpt: excerpt(body)}
	}
	return decodeData(body)
}

// httpClient attaches the key as a bearer token. Without a key no
// Authorization header is sent.
func (c *Client) httpClient(apiKey string) *http.Client {
	transport := c.base
	if key := strings.TrimSpace(apiKey); key != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: key, TokenType: "Bearer"}),
			Base:   c.base,
		}
	}
	return &http.Client{Timeout: c.timeout, Transport: transport}
}

func decodeData(body []byte) (map[string]any, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ParseError{Kind: KindMalformed, Detail: "response is not a JSON object: " + err.Error()}
	}
	raw, ok := envelope["data"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, &ParseError{Kind: KindMalformed, Detail: "response has no data field"}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, &ParseError{Kind: KindMalformed, Detail: "decode data: " + err.Error()}
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return nil, &ParseError{Kind: KindMalformed, Detail: fmt.Sprintf("data field is %T, want an object", data)}
	}
	return obj, nil
}

func transportDetail(err error, timeout time.Duration) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Sprintf("request timed out after %s", timeout)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}

func endpointHost(endpoint string) string {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return ""
	}
	return u.Host
}
