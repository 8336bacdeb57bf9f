// Package proxy talks to the search/inventory proxy that fronts both grocery
// chains. The proxy URL is supplied per call so a cycle never reads a global.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"stockwatch/pkg/models"
)

// Request is a chain adapter's description of one proxy call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Client is shared by every cycle. The limiter caps the total request rate
// the daemon puts on the proxy regardless of how many chains run at once.
type Client struct {
	HTTP    *http.Client
	Limiter *rate.Limiter
	BaseURL string
}

type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &Client{
		HTTP:    &http.Client{Timeout: opts.Timeout},
		Limiter: lim,
	}
}

// WithBaseURL returns a copy bound to baseURL. The HTTP client and limiter
// are shared with the receiver.
func (c *Client) WithBaseURL(baseURL string) *Client {
	cp := *c
	cp.BaseURL = strings.TrimRight(baseURL, "/")
	return &cp
}

// Do sends req and returns the raw response body. Every failure, including
// a non-2xx status, is a *models.NetworkError.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	op := req.Method + " " + req.Path
	if c.BaseURL == "" {
		return nil, &models.NetworkError{Op: op, Err: errors.New("proxy url not set")}
	}

	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, &models.NetworkError{Op: op, Err: err}
	}

	u := c.BaseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &models.NetworkError{Op: op, Err: fmt.Errorf("encode body: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, &models.NetworkError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, &models.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(snippet(raw))}
	}
	return raw, nil
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		s = s[:max] + "..."
	}
	if s == "" {
		s = "empty response"
	}
	return s
}
