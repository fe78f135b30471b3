// Package remote is the HTTP client for the soundprints API.
//
// Every request is signed with a bearer token from an injected TokenSource,
// rate limited, and tagged with a request id. A 401 triggers exactly one
// token refresh and retry.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/abelbrown/soundprints/internal/logging"
)

// DefaultBaseURL is used when Options.BaseURL is empty.
const DefaultBaseURL = "https://api.soundprints.app/v1/"

// Options configures a Client.
type Options struct {
	BaseURL           string
	Provider          string // sent as the Provider header, e.g. "facebook"
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxRetries        int // retries on 429 and 5xx
	HTTPClient        *http.Client
}

// Client talks to the soundprints API. Safe for concurrent use.
type Client struct {
	base     *url.URL
	provider string
	tokens   TokenSource
	http     *http.Client
	limiter  *rate.Limiter

	maxRetries int
	backoffs   []time.Duration
}

// request describes one API call. body is rebuilt for every attempt.
type request struct {
	method      string
	path        string // relative and already escaped
	query       url.Values
	body        []byte
	contentType string
}

// New creates a Client. tokens must not be nil.
func New(tokens TokenSource, opts Options) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("remote: nil token source")
	}
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		base:       base,
		provider:   opts.Provider,
		tokens:     tokens,
		http:       hc,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: retries,
		backoffs:   []time.Duration{500 * time.Millisecond, 1 * time.Second, 2 * time.Second},
	}, nil
}

// do performs req and decodes a 2xx JSON body into out (nil to discard).
func (c *Client) do(ctx context.Context, req request, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}

	refreshed := false
	for attempt := 0; ; attempt++ {
		status, body, header, err := c.send(ctx, req, token)
		if err != nil {
			return err
		}

		switch {
		case status >= 200 && status < 300:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("%w: %s %s: %v", ErrParseFailure, req.method, req.path, err)
			}
			return nil

		case status == http.StatusUnauthorized && !refreshed:
			refreshed = true
			logging.Debug("Token rejected, refreshing", "path", req.path)
			token, err = c.tokens.Refresh(ctx)
			if err != nil {
				return fmt.Errorf("%w: refresh: %v", ErrAuthFailure, err)
			}
			attempt--
			continue

		case status == http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthFailure, parseAPIError(status, body))
		}

		apiErr := parseAPIError(status, body)
		if !apiErr.Temporary() || attempt >= c.maxRetries {
			return apiErr
		}

		delay := c.backoff(attempt, header)
		logging.Debug("Retrying request", "path", req.path, "status", status, "delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("remote: request cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (c *Client) send(ctx context.Context, req request, token string) (int, []byte, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, nil, fmt.Errorf("remote: rate limiter wait failed: %w", err)
	}

	ref, err := url.Parse(req.path)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("remote: bad path %q: %w", req.path, err)
	}
	u := c.base.ResolveReference(ref)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("remote: create request: %w", err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if c.provider != "" {
		httpReq.Header.Set("Provider", c.provider)
	}
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, nil, fmt.Errorf("remote: request cancelled: %w", ctx.Err())
		}
		return 0, nil, nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: read body: %v", ErrNetworkUnavailable, err)
	}
	return resp.StatusCode, data, resp.Header, nil
}

func (c *Client) backoff(attempt int, header http.Header) time.Duration {
	delay := c.backoffs[len(c.backoffs)-1]
	if attempt < len(c.backoffs) {
		delay = c.backoffs[attempt]
	}
	if ra := header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
			delay = time.Duration(seconds) * time.Second
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}
		}
	}
	return delay
}

type errorEnvelope struct {
	Error struct {
		ErrorCode        string `json:"errorCode"`
		DeveloperMessage string `json:"developerMessage"`
	} `json:"error"`
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.ErrorKey = env.Error.ErrorCode
		apiErr.DeveloperMessage = env.Error.DeveloperMessage
	}
	return apiErr
}
