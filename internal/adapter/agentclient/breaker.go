package agentclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"agentmesh/internal/domain"
	"agentmesh/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerClient wraps an AgentClient with circuit breaker protection. When
// the agent fails repeatedly, the circuit opens and subsequent sends fail
// fast without touching the network, preventing retry storms against an
// agent that is down.
type BreakerClient struct {
	name    string
	inner   domain.AgentClient
	breaker *gobreaker.CircuitBreaker[domain.Message]
	logger  *slog.Logger
}

// NewBreakerClient wraps inner with a circuit breaker named after the agent.
// Zero-valued config fields fall back to defaults.
func NewBreakerClient(name string, inner domain.AgentClient, cfg config.BreakerConfig, logger *slog.Logger) *BreakerClient {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}
	if logger == nil {
		logger = discardLogger()
	}

	cb := gobreaker.NewCircuitBreaker[domain.Message](gobreaker.Settings{
		Name:        "agent:" + name,
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &BreakerClient{
		name:    name,
		inner:   inner,
		breaker: cb,
		logger:  logger,
	}
}

// Send routes the call through the circuit breaker.
func (c *BreakerClient) Send(ctx context.Context, msg domain.Message) (domain.Message, error) {
	resp, err := c.breaker.Execute(func() (domain.Message, error) {
		return c.inner.Send(ctx, msg)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return domain.Message{}, fmt.Errorf("agent %q circuit open: %w", c.name, err)
		}
		return domain.Message{}, err
	}
	return resp, nil
}

// TestReachable bypasses the breaker. Probes are how the mesh learns that an
// agent recovered, so they must run even while the circuit is open.
func (c *BreakerClient) TestReachable(ctx context.Context) bool {
	return c.inner.TestReachable(ctx)
}

// Card bypasses the breaker. Card fetches happen on index rebuilds, not on
// the query path.
func (c *BreakerClient) Card(ctx context.Context) (*domain.AgentCard, error) {
	return c.inner.Card(ctx)
}

// State returns the current circuit breaker state for monitoring.
func (c *BreakerClient) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the current circuit breaker failure/success counts.
func (c *BreakerClient) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

var _ domain.AgentClient = (*BreakerClient)(nil)
