package backend

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

	"github.com/sony/gobreaker/v2"

	"github.com/smesmis/pos-checkout/pkg/config"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
)

const (
	breakerName                 = "mis-backend"
	responseBodyReadLimit int64 = 1 << 20
	errorBodyReadLimit    int64 = 4096
)

var errBaseURLRequired = errors.New("backend base url is required")

// TokenSource yields the bearer token forwarded on every backend call.
type TokenSource interface {
	AuthToken(ctx context.Context) string
}

// StateObserver is notified when the circuit breaker changes state.
type StateObserver func(name string, from, to gobreaker.State)

// Client talks to the MIS REST backend that owns products, discounts, sales
// and the M-Pesa gateway integration.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	breaker    *gobreaker.CircuitBreaker[*rawResponse]
	observer   StateObserver
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTokenSource sets where bearer tokens are read from.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithStateObserver registers a breaker state change callback.
func WithStateObserver(fn StateObserver) Option {
	return func(c *Client) {
		c.observer = fn
	}
}

// NewClient builds the backend client.
func NewClient(cfg config.BackendConfig, breakerCfg config.BreakerConfig, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	client.breaker = gobreaker.NewCircuitBreaker[*rawResponse](breakerSettings(breakerCfg, client.onStateChange))
	return client, nil
}

func breakerSettings(cfg config.BreakerConfig, onChange func(string, gobreaker.State, gobreaker.State)) gobreaker.Settings {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: onChange,
	}
}

func (c *Client) onStateChange(name string, from, to gobreaker.State) {
	if c.observer != nil {
		c.observer(name, from, to)
	}
}

// BreakerState reports the current breaker state.
func (c *Client) BreakerState() gobreaker.State {
	if c == nil || c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}

type rawResponse struct {
	status int
	body   []byte
}

// serverError marks 5xx answers so the breaker counts them as failures.
type serverError struct {
	resp *rawResponse
}

func (e *serverError) Error() string {
	return fmt.Sprintf("backend status %d", e.resp.status)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "backend client not configured")
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal backend request")
		}
		body = bytes.NewReader(encoded)
	}

	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build backend request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.AuthToken(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.breaker.Execute(func() (*rawResponse, error) {
		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = httpResp.Body.Close() }()

		limit := responseBodyReadLimit
		if httpResp.StatusCode >= http.StatusBadRequest {
			limit = errorBodyReadLimit
		}
		data, err := io.ReadAll(io.LimitReader(httpResp.Body, limit))
		if err != nil {
			return nil, err
		}
		raw := &rawResponse{status: httpResp.StatusCode, body: data}
		if raw.status >= http.StatusInternalServerError {
			return nil, &serverError{resp: raw}
		}
		return raw, nil
	})
	if err != nil {
		var se *serverError
		if errors.As(err, &se) {
			return statusError(method, path, se.resp)
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backend temporarily unavailable")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s failed", method, path))
	}

	if resp.status < 200 || resp.status >= 300 {
		return statusError(method, path, resp)
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s response", path))
	}
	return nil
}

func statusError(method, path string, resp *rawResponse) error {
	upstream := &HTTPError{
		Method:  method,
		Path:    path,
		Status:  resp.status,
		Message: extractMessage(resp.body),
	}
	switch resp.status {
	case http.StatusUnauthorized:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, upstream, "session expired")
	case http.StatusForbidden:
		return pkgerrors.Wrap(pkgerrors.CodeForbidden, upstream, upstream.messageOr("access denied"))
	case http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, upstream, upstream.messageOr("resource not found"))
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, upstream, upstream.messageOr(fmt.Sprintf("backend returned status %d", resp.status)))
	}
}

// extractMessage pulls a human message from a JSON error body, falling back
// to the raw text the backend sent.
func extractMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if trimmed[0] == '{' && json.Unmarshal(trimmed, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		return payload.Error
	}
	if trimmed[0] == '<' {
		return ""
	}
	return string(trimmed)
}
