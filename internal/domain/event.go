package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies a mesh event.
type EventType string

const (
	EventAgentRegistered       EventType = "agent.registered"
	EventAgentRemoved          EventType = "agent.removed"
	EventAgentUnreachable      EventType = "agent.unreachable"
	EventQueryRouted           EventType = "query.routed"
	EventQueryFailed           EventType = "query.failed"
	EventConversationStarted   EventType = "conversation.started"
	EventConversationStep      EventType = "conversation.step"
	EventConversationCompleted EventType = "conversation.completed"
	EventConversationFailed    EventType = "conversation.failed"
)

// Event is a single mesh event with a JSON payload.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler processes one event.
type EventHandler func(ctx context.Context, event Event)

// EventBus fans events out to subscribers.
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType EventType, handler EventHandler) (unsubscribe func())
	SubscribeAll(handler EventHandler) (unsubscribe func())
}
