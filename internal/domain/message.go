package domain

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Role constants for message roles.
const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleSystem = "system"
)

// ContentKind tags the variant held by a ResponseContent.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentError ContentKind = "error"
	ContentOther ContentKind = "other"
)

// ResponseContent is a tagged variant for message payloads. It replaces
// shape-probing on arbitrary content with a single extraction path.
type ResponseContent struct {
	Kind ContentKind `json:"kind"`
	Text string      `json:"text,omitempty"`
}

// TextContent builds a plain text payload.
func TextContent(text string) ResponseContent {
	return ResponseContent{Kind: ContentText, Text: text}
}

// ErrorContent builds an error payload.
func ErrorContent(text string) ResponseContent {
	return ResponseContent{Kind: ContentError, Text: text}
}

// ExtractText returns the textual form of the content and whether the
// content is recognizable. An empty kind is not recognizable.
func (c ResponseContent) ExtractText() (string, bool) {
	switch c.Kind {
	case ContentText, ContentError, ContentOther:
		return c.Text, true
	default:
		return "", false
	}
}

// IsError reports whether the content carries an error payload.
func (c ResponseContent) IsError() bool { return c.Kind == ContentError }

// Message is one unit of agent communication. Messages are immutable once
// sent; a response is always a new Message referencing the request through
// ParentID and ConversationID.
type Message struct {
	ID             string          `json:"id"`
	ParentID       string          `json:"parent_id,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Role           string          `json:"role"`
	Content        ResponseContent `json:"content"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewUserMessage builds a user-role message carrying text.
func NewUserMessage(text, conversationID string) Message {
	return Message{
		ID:             NewID(),
		ConversationID: conversationID,
		Role:           RoleUser,
		Content:        TextContent(text),
		Timestamp:      time.Now(),
	}
}

// NewAgentReply builds an agent-role response to request.
func NewAgentReply(request Message, content ResponseContent) Message {
	return Message{
		ID:             NewID(),
		ParentID:       request.ID,
		ConversationID: request.ConversationID,
		Role:           RoleAgent,
		Content:        content,
		Timestamp:      time.Now(),
	}
}

// NewID generates a ULID suitable for message and conversation IDs.
func NewID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
