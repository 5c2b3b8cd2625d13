package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tdnguyen/outcall/internal/core/resilience"
)

// Client is an outbound HTTP API client. Every request runs through the
// shared call executor, which handles retry, circuit breaking and metrics;
// the client itself only knows how to perform one attempt.
type Client struct {
	baseURL string
	headers map[string]string
	http    *http.Client
	exec    *resilience.Executor
	policy  resilience.Policy
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHeaders sets default headers sent with every request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) { c.headers = h }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithPolicy sets the default retry policy for this client.
func WithPolicy(p resilience.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the client logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client for the given base URL.
func New(baseURL string, exec *resilience.Executor, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		exec:    exec,
		policy:  resilience.DefaultPolicy(),
		log:     slog.Default(),
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CallOption configures a single request.
type CallOption func(*callConfig)

type callConfig struct {
	headers map[string]string
	query   url.Values
	policy  *resilience.Policy
	key     string
}

// WithQuery sets URL query parameters.
func WithQuery(q url.Values) CallOption {
	return func(c *callConfig) { c.query = q }
}

// WithHeader adds a header to this request only.
func WithHeader(k, v string) CallOption {
	return func(c *callConfig) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[k] = v
	}
}

// WithCallPolicy overrides the client's retry policy for this request.
func WithCallPolicy(p resilience.Policy) CallOption {
	return func(c *callConfig) { c.policy = &p }
}

// WithBreakerKey overrides the breaker key for this request. The default
// key is derived from the request host.
func WithBreakerKey(key string) CallOption {
	return func(c *callConfig) { c.key = key }
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, endpoint string, opts ...CallOption) (*Result, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil, opts...)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any, opts ...CallOption) (*Result, error) {
	return c.do(ctx, http.MethodPost, endpoint, body, opts...)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body any, opts ...CallOption) (*Result, error) {
	return c.do(ctx, http.MethodPut, endpoint, body, opts...)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, endpoint string, body any, opts ...CallOption) (*Result, error) {
	return c.do(ctx, http.MethodPatch, endpoint, body, opts...)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...CallOption) (*Result, error) {
	return c.do(ctx, http.MethodDelete, endpoint, nil, opts...)
}

// HealthCheck probes the /health endpoint with the fail-fast policy and
// reports whether the service answered 200.
func (c *Client) HealthCheck(ctx context.Context) bool {
	res, err := c.Get(ctx, "/health", WithCallPolicy(resilience.NoRetry()))
	if err != nil {
		c.log.Warn("health check failed", "base_url", c.baseURL, "error", err)
		return false
	}
	return res.Status == http.StatusOK
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, opts ...CallOption) (*Result, error) {
	var cc callConfig
	for _, opt := range opts {
		opt(&cc)
	}

	reqURL := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	parsed, err := url.Parse(reqURL)
	if err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", reqURL, err)
	}
	if cc.query != nil {
		parsed.RawQuery = cc.query.Encode()
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	key := cc.key
	if key == "" {
		key = "api:" + parsed.Host
	}
	policy := c.policy
	if cc.policy != nil {
		policy = *cc.policy
	}

	traceID := uuid.NewString()

	var result *Result
	attempt := func(ctx context.Context) resilience.Outcome {
		// Drop any response from an earlier attempt so a trailing
		// connection failure is not reported under a stale status.
		result = nil

		req, err := http.NewRequestWithContext(ctx, method, parsed.String(), bytes.NewReader(payload))
		if err != nil {
			return resilience.Outcome{Err: err}
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}
		for k, v := range cc.headers {
			req.Header.Set(k, v)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("X-Trace-Id", traceID)

		resp, err := c.http.Do(req)
		if err != nil {
			return resilience.Outcome{Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return resilience.Outcome{Err: fmt.Errorf("failed to read response body: %w", err)}
		}

		result = &Result{
			Status: resp.StatusCode,
			Header: resp.Header,
			Body:   data,
		}

		// A 2xx response can still carry a structured application error;
		// surface its code for classification.
		if resp.StatusCode < 400 {
			if code := appErrorCode(resp, data); code != "" {
				return resilience.Outcome{AppErrorCode: code}
			}
		}
		return resilience.Outcome{Status: resp.StatusCode}
	}

	call := resilience.Call{
		Key:       key,
		Component: "api",
		Operation: method,
		Target:    strings.TrimLeft(endpoint, "/"),
	}

	c.log.Debug("api request", "method", method, "url", parsed.String(), "trace_id", traceID)

	if _, err := c.exec.Execute(ctx, call, attempt, policy); err != nil {
		c.log.Warn("api request failed",
			"method", method, "url", parsed.String(), "trace_id", traceID, "error", err)
		if result != nil && result.Status >= 400 {
			return nil, &StatusError{Code: result.Status, Body: result.Body, err: err}
		}
		return nil, err
	}
	return result, nil
}

// appErrorCode extracts a structured application error code from a JSON
// response body, if one is present.
func appErrorCode(resp *http.Response, data []byte) string {
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return ""
	}
	var envelope struct {
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	return envelope.ErrorCode
}
