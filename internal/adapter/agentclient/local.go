package agentclient

import (
	"context"

	"agentmesh/internal/domain"
)

// LocalClient adapts an in-process handler to the AgentClient interface.
// Agents hosted by the gateway use it so the mesh dispatches to them
// without a network round trip.
type LocalClient struct {
	card    *domain.AgentCard
	handler domain.Handler
}

// NewLocalClient wraps handler with its capability card.
func NewLocalClient(card *domain.AgentCard, handler domain.Handler) *LocalClient {
	return &LocalClient{card: card, handler: handler}
}

// Send invokes the handler directly.
func (c *LocalClient) Send(ctx context.Context, msg domain.Message) (domain.Message, error) {
	return c.handler.Handle(ctx, msg)
}

// TestReachable always reports true for in-process agents.
func (c *LocalClient) TestReachable(ctx context.Context) bool { return true }

// Card returns the wrapped card.
func (c *LocalClient) Card(ctx context.Context) (*domain.AgentCard, error) {
	return c.card, nil
}

var _ domain.AgentClient = (*LocalClient)(nil)
