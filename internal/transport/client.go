// Package transport executes remote CRM calls with bounded retry, backoff
// and rate-limit handling. Calls are strictly sequential; a retry sleep
// blocks the calling flow. The call counter increments once per attempt,
// including attempts that fail, and is the single source of API-call
// telemetry for a run.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/crestline/pipelink/pkg/errors"
)

// DefaultTimeout is the per-request timeout for remote CRM calls.
const DefaultTimeout = 30 * time.Second

// maxAttempts is the total attempt budget per logical call.
const maxAttempts = 3

// Counter tracks the number of remote call attempts made. Single writer,
// single reader; the run loop is sequential so no locking is needed.
type Counter struct {
	n int64
}

// Add records one call attempt.
func (c *Counter) Add() {
	c.n++
}

// Total returns the number of call attempts recorded so far.
func (c *Counter) Total() int64 {
	return c.n
}

// Client is an authenticated HTTP client with retry and backoff.
type Client struct {
	http   *http.Client
	auth   Authenticator
	apiKey string
	sleep  func(time.Duration)
	calls  *Counter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithSleep replaces the backoff sleep function. Tests use this to observe
// backoff without waiting.
func WithSleep(fn func(time.Duration)) Option {
	return func(c *Client) { c.sleep = fn }
}

// New creates a transport client that authenticates every request with the
// given authenticator and credential.
func New(auth Authenticator, apiKey string, opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{Timeout: DefaultTimeout},
		auth:   auth,
		apiKey: apiKey,
		sleep:  time.Sleep,
		calls:  &Counter{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calls returns the client's call counter.
func (c *Client) Calls() *Counter {
	return c.calls
}

// outcome classifies a single attempt so the retry driver below can decide
// without inspecting errors itself.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRetryRateLimit
	outcomeRetryTransient
	outcomeFatal
)

// attempt is the result of one request attempt.
type attempt struct {
	outcome outcome
	resp    *http.Response
	err     error
}

// Do performs one logical remote call: it attaches the credential, issues
// the request, and retries within the attempt budget. On HTTP 429 the
// backoff is exponential (1s, 2s, 4s); on timeouts and transient transport
// errors it is linear (1s × attempt number). Any other 4xx or 5xx fails
// immediately, wrapped with endpoint and status context. The successful
// response body is the caller's to close.
func (c *Client) Do(ctx context.Context, method, rawURL string, query url.Values, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, errors.WrapResource("encode", "request body", method+" "+rawURL, err)
		}
	}

	endpoint := endpointLabel(method, rawURL)

	for n := 0; n < maxAttempts; n++ {
		res := c.attempt(ctx, method, rawURL, query, payload)

		switch res.outcome {
		case outcomeSuccess:
			return res.resp, nil

		case outcomeRetryRateLimit:
			if n == maxAttempts-1 {
				return nil, errors.NewAPIError(endpoint, http.StatusTooManyRequests, "rate limit exceeded after retries")
			}
			c.sleep(time.Duration(1<<n) * time.Second)

		case outcomeRetryTransient:
			if n == maxAttempts-1 {
				return nil, &errors.TimeoutError{
					Operation: endpoint,
					Message:   "request failed after retries: " + res.err.Error(),
				}
			}
			c.sleep(time.Duration(n+1) * time.Second)

		case outcomeFatal:
			return nil, res.err
		}
	}

	return nil, errors.NewAPIError(endpoint, 0, "unexpected retry exhaustion")
}

// attempt issues a single request attempt and classifies the result.
func (c *Client) attempt(ctx context.Context, method, rawURL string, query url.Values, payload []byte) attempt {
	endpoint := endpointLabel(method, rawURL)

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return attempt{outcome: outcomeFatal, err: errors.WrapResource("create", "request", endpoint, err)}
	}

	if len(query) > 0 {
		q := req.URL.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	c.auth.Apply(req, c.apiKey)

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.calls.Add()

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and transport-level failures are both retryable with
		// linear backoff; context cancellation is not.
		if ctx.Err() != nil {
			return attempt{outcome: outcomeFatal, err: ctx.Err()}
		}
		return attempt{outcome: outcomeRetryTransient, err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		drain(resp)
		return attempt{outcome: outcomeRetryRateLimit, err: errors.NewAPIError(endpoint, resp.StatusCode, "rate limited")}

	case resp.StatusCode >= 400:
		msg := readBodySnippet(resp)
		return attempt{outcome: outcomeFatal, err: errors.NewAPIError(endpoint, resp.StatusCode, msg)}
	}

	return attempt{outcome: outcomeSuccess, resp: resp}
}

// DecodeJSON decodes a successful response body into target and closes it.
func DecodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close() //nolint:errcheck // read side only

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapResource("read", "response body", "", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapResource("decode", "response body", "", err)
	}
	return nil
}

// readBodySnippet consumes up to 512 bytes of an error response body for
// diagnostics and closes it.
func readBodySnippet(resp *http.Response) string {
	defer resp.Body.Close() //nolint:errcheck // read side only
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return string(bytes.TrimSpace(snippet))
}

// drain discards a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

func endpointLabel(method, rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return method + " " + u.Path
	}
	return method + " " + rawURL
}
