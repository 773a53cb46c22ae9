package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"bellavista/internal/models"
)

// DefaultTimeout bounds a single call to the AI service.
const DefaultTimeout = 30 * time.Second

// Service is what the session controller needs from the AI service.
type Service interface {
	Send(ctx context.Context, req Request) (models.Reply, error)
	ClearSession(ctx context.Context, sessionID string) (string, error)
	Health(ctx context.Context) (Status, error)
}

// Client is the HTTP client of the AI chatbot service.
type Client struct {
	http     *resty.Client
	baseURL  string
	observer func(endpoint string, err error, elapsed time.Duration)
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithHTTPClient makes the client send through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = resty.NewWithClient(hc).
			SetBaseURL(c.baseURL).
			SetHeader("Content-Type", "application/json")
	}
}

// WithObserver registers a callback invoked after every request.
func WithObserver(fn func(endpoint string, err error, elapsed time.Duration)) Option {
	return func(c *Client) { c.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(DefaultTimeout).
			SetHeader("Content-Type", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send posts a chat turn. Transport errors, timeouts, non-2xx answers and success=false all
// wrap ErrUnavailable.
func (c *Client) Send(ctx context.Context, req Request) (reply models.Reply, err error) {
	defer c.observe("chat", time.Now(), &err)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(NewChatRequest(req)).
		Post("/chat")
	if err != nil {
		return models.Reply{}, fmt.Errorf("%w: chat request failed: %w", ErrUnavailable, err)
	}
	if resp.IsError() {
		return models.Reply{}, fmt.Errorf("%w: chat returned status %d", ErrUnavailable, resp.StatusCode())
	}

	var out ChatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return models.Reply{}, fmt.Errorf("%w: failed to decode chat response: %w", ErrUnavailable, err)
	}
	if !out.Success {
		reason := out.Error
		if reason == "" {
			reason = "service reported failure"
		}
		return models.Reply{}, fmt.Errorf("%w: %s", ErrUnavailable, reason)
	}

	reply = NormalizeReply(out)
	c.logger.Debug("chat reply",
		zap.String("session", req.SessionID),
		zap.String("action", reply.Action.Name()))
	return reply, nil
}

// ClearSession asks the service to forget a session's history.
func (c *Client) ClearSession(ctx context.Context, sessionID string) (msg string, err error) {
	defer c.observe("clear_session", time.Now(), &err)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(ClearSessionRequest{SessionID: sessionID}).
		Post("/clear_session")
	if err != nil {
		return "", fmt.Errorf("%w: clear session failed: %w", ErrUnavailable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: clear session returned status %d", ErrUnavailable, resp.StatusCode())
	}

	var out ClearSessionResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", nil
	}
	return out.Message, nil
}

// Health reports the service status. Any failure means disconnected.
func (c *Client) Health(ctx context.Context) (status Status, err error) {
	defer c.observe("health", time.Now(), &err)

	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return StatusDisconnected, fmt.Errorf("%w: health check failed: %w", ErrUnavailable, err)
	}
	if resp.IsError() {
		return StatusDisconnected, fmt.Errorf("%w: health returned status %d", ErrUnavailable, resp.StatusCode())
	}

	var out HealthResponse
	if err := json.Unmarshal(resp.Body(), &out); err == nil && out.AIStatus == string(StatusRateLimited) {
		return StatusRateLimited, nil
	}
	return StatusConnected, nil
}

func (c *Client) observe(endpoint string, start time.Time, err *error) {
	if c.observer != nil {
		c.observer(endpoint, *err, time.Since(start))
	}
}
