// Package agentclient provides transport clients for reaching agents: an
// HTTP client for remote endpoints, a local client for in-process handlers,
// and a circuit breaker decorator for either.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"agentmesh/internal/domain"
)

const (
	defaultSendTimeout  = 30 * time.Second
	defaultProbeTimeout = 2 * time.Second
	maxResponseBytes    = 1 << 20
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// HTTPClient reaches one agent over HTTP. The endpoint is the agent's base
// URL; messages go to <endpoint>/a2a and the card is served at the base.
type HTTPClient struct {
	name     string
	endpoint string
	send     *http.Client
	probe    *http.Client
	logger   *slog.Logger
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout bounds each Send call.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.send.Timeout = d }
}

// WithProbeTimeout bounds each reachability probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.probe.Timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *HTTPClient) { c.logger = logger }
}

// NewHTTPClient creates a client for the agent at endpoint.
func NewHTTPClient(name, endpoint string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		name:     name,
		endpoint: endpoint,
		send:     &http.Client{Timeout: defaultSendTimeout},
		probe:    &http.Client{Timeout: defaultProbeTimeout},
		logger:   discardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send POSTs the message to the agent's a2a endpoint and decodes the
// response message. Non-2xx statuses and malformed bodies are transport
// failures.
func (c *HTTPClient) Send(ctx context.Context, msg domain.Message) (domain.Message, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, domain.WrapOp("marshal message", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/a2a", bytes.NewReader(body))
	if err != nil {
		return domain.Message{}, domain.WrapOp("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.send.Do(req)
	if err != nil {
		return domain.Message{}, domain.NewDomainError("HTTPClient.Send", domain.ErrTransport,
			fmt.Sprintf("%s: %v", c.name, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Message{}, domain.NewDomainError("HTTPClient.Send", domain.ErrTransport,
			fmt.Sprintf("%s: HTTP %d", c.name, resp.StatusCode))
	}

	var response domain.Message
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Message{}, domain.NewDomainError("HTTPClient.Send", domain.ErrTransport,
			fmt.Sprintf("%s: read body: %v", c.name, err))
	}
	if err := json.Unmarshal(data, &response); err != nil {
		return domain.Message{}, domain.NewDomainError("HTTPClient.Send", domain.ErrInvalidResponse,
			fmt.Sprintf("%s: %v", c.name, err))
	}
	return response, nil
}

// TestReachable GETs the agent's base URL. Any status below 400 counts as
// reachable; some hosts answer probes with redirects rather than 200s.
func (c *HTTPClient) TestReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return resp.StatusCode < 400
}

// Card fetches the agent's capability card from its base URL.
func (c *HTTPClient) Card(ctx context.Context) (*domain.AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, domain.WrapOp("create request", err)
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return nil, domain.NewDomainError("HTTPClient.Card", domain.ErrTransport,
			fmt.Sprintf("%s: %v", c.name, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewDomainError("HTTPClient.Card", domain.ErrTransport,
			fmt.Sprintf("%s: HTTP %d", c.name, resp.StatusCode))
	}

	var card domain.AgentCard
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&card); err != nil {
		return nil, domain.NewDomainError("HTTPClient.Card", domain.ErrInvalidResponse,
			fmt.Sprintf("%s: %v", c.name, err))
	}
	return &card, nil
}
