package domain

import "context"

// Decision is the result of routing one query. An empty Agent with
// confidence 0.0 signals that no agent is available.
type Decision struct {
	Agent      string  `json:"agent"`
	Confidence float64 `json:"confidence"`
}

// Router maps a query to an agent name with a confidence score. Routers
// never fail: degraded outcomes are expressed through the Decision itself,
// so keyword and AI strategies are interchangeable for callers.
type Router interface {
	Route(ctx context.Context, query string) Decision
	// Rebuild re-indexes the router from the current agent set. Must be
	// called whenever the agent set changes; a stale index is a bug.
	Rebuild(caps []AgentCapability)
}

// Classifier is an external text-classification capability used by the AI
// routing strategy. The capability context is the serialized card metadata
// of every registered agent.
type Classifier interface {
	Classify(ctx context.Context, query, capabilityContext string) (Decision, error)
}
