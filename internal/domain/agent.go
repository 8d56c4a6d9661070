package domain

import (
	"context"
	"time"
)

// AgentSkill describes one capability an agent advertises on its card.
type AgentSkill struct {
	Name        string   `json:"name"            yaml:"name"`
	Description string   `json:"description"     yaml:"description"`
	Tags        []string `json:"tags,omitempty"  yaml:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// AgentCard is the identity and routing metadata one agent publishes.
type AgentCard struct {
	Name        string       `json:"name"        yaml:"name"`
	Description string       `json:"description" yaml:"description"`
	URL         string       `json:"url"         yaml:"url"`
	Version     string       `json:"version"     yaml:"version"`
	Skills      []AgentSkill `json:"skills,omitempty" yaml:"skills,omitempty"`
}

// AgentClient is the transport-side view of one registered agent.
type AgentClient interface {
	// Send dispatches a message and waits for the agent's response.
	Send(ctx context.Context, msg Message) (Message, error)
	// TestReachable is a lightweight liveness probe. It is tolerant of
	// non-2xx-but-non-error responses.
	TestReachable(ctx context.Context) bool
	// Card fetches the agent's capability card.
	Card(ctx context.Context) (*AgentCard, error)
}

// Handler is the capability interface an in-process agent implements.
// Decorators wrap a Handler to add tool-calling or inter-agent behavior.
type Handler interface {
	Handle(ctx context.Context, msg Message) (Message, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg Message) (Message, error)

func (f HandlerFunc) Handle(ctx context.Context, msg Message) (Message, error) {
	return f(ctx, msg)
}

// AgentCapability pairs an agent's registry key with its card. A nil card
// means capability metadata could not be fetched; the agent then contributes
// no routing keywords, which is not an error.
type AgentCapability struct {
	Name string
	Card *AgentCard
}

// AgentStatus is a reachability snapshot of one registered agent.
type AgentStatus struct {
	Name      string    `json:"name"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Reachable bool      `json:"reachable"`
	CheckedAt time.Time `json:"checked_at"`
}
