// Package api is the HTTP/JSON boundary to the remote commerce API.
//
// Every call returns either its decoded result or an *apperr.Error. Non-2xx
// answers carrying {"message": "..."} keep that message verbatim; anything
// else (transport failures, unreadable bodies, an open circuit) becomes a
// network error with the generic fallback message.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodyBytes = 4 << 20

type response struct {
	status int
	body   []byte
}

// serverError marks a 5xx answer so the breaker counts it as a failure.
type serverError struct {
	resp *response
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server answered %d", e.resp.status)
}

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[*response]
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithBreaker replaces the default circuit breaker settings.
func WithBreaker(st gobreaker.Settings) Option {
	return func(c *Client) { c.breaker = newBreaker(st) }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: timeout,
		breaker: newBreaker(gobreaker.Settings{
			Name:        "commerce-api",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.OrDefault(c.logger)
	return c
}

func newBreaker(st gobreaker.Settings) *gobreaker.CircuitBreaker[*response] {
	// 4xx answers are the API working as intended
	st.IsSuccessful = func(err error) bool { return err == nil }
	return gobreaker.NewCircuitBreaker[*response](st)
}

// doJSON sends body as JSON and decodes a 2xx answer into out.
func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out any, header http.Header) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	if header == nil {
		header = http.Header{}
	}
	if body != nil {
		header.Set("Content-Type", "application/json")
	}

	resp, err := c.send(ctx, method, path, token, reader, header)
	if err != nil {
		return err
	}
	if out == nil || len(resp.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		c.logger.WarnContext(ctx, "undecodable api response", "method", method, "path", path, "error", err)
		return apperr.Network(fmt.Errorf("decode %s %s response: %w", method, path, err))
	}
	return nil
}

// send performs one request through the circuit breaker. It returns the
// response only for 2xx answers.
func (c *Client) send(ctx context.Context, method, path, token string, body io.Reader, header http.Header) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, apperr.Network(fmt.Errorf("build %s %s request: %w", method, path, err))
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.roundTrip(req)
	})
	elapsed := time.Since(start)

	var se *serverError
	switch {
	case errors.As(err, &se):
		resp = se.resp
	case err != nil:
		c.logger.WarnContext(ctx, "api request failed",
			"method", method, "path", path, "duration", elapsed, "error", err)
		return nil, apperr.Network(fmt.Errorf("%s %s: %w", method, path, err))
	}

	if resp.status >= 200 && resp.status < 300 {
		c.logger.DebugContext(ctx, "api request succeeded",
			"method", method, "path", path, "status", resp.status, "duration", elapsed)
		return resp, nil
	}

	apiErr := decodeError(resp)
	c.logger.WarnContext(ctx, "api request rejected",
		"method", method, "path", path, "status", resp.status, "duration", elapsed, "kind", apiErr.Kind.String())
	return nil, apiErr
}

func (c *Client) roundTrip(req *http.Request) (*response, error) {
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	resp := &response{status: httpResp.StatusCode, body: data}
	if resp.status >= 500 {
		return nil, &serverError{resp: resp}
	}
	return resp, nil
}

type messageResponse struct {
	Message string `json:"message"`
}

func decodeError(resp *response) *apperr.Error {
	var m messageResponse
	if err := json.Unmarshal(resp.body, &m); err != nil || strings.TrimSpace(m.Message) == "" {
		cause := fmt.Errorf("unexpected status %d", resp.status)
		if resp.status >= 500 {
			return apperr.Network(cause)
		}
		// the status still decides the kind; only the message falls back
		e := apperr.FromStatus(resp.status, apperr.GenericNetworkMessage)
		e.Err = cause
		return e
	}
	return apperr.FromStatus(resp.status, m.Message)
}
