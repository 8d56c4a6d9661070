// Package conversation drives ordered multi-agent workflows: each agent's
// output becomes the next agent's input, every exchange lands in a
// transcript, and the first failing step terminates the whole run.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"agentmesh/internal/domain"
	"agentmesh/internal/infra/tracer"
	"agentmesh/internal/usecase/network"
)

// Entry is one transcript line. Role is "user" for the initial input and
// the producing agent's name for everything after.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is one stateful execution of a workflow. It is owned by the
// Orchestrator; callers only observe it through accessors.
type Conversation struct {
	ID          string   `json:"id"`
	Workflow    []string `json:"workflow"`
	CurrentStep int      `json:"current_step"`
	Transcript  []Entry  `json:"transcript"`
	Complete    bool     `json:"complete"`
	Result      string   `json:"result,omitempty"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Orchestrator runs conversations against the agent directory. Steps of a
// single conversation are strictly sequential; independent conversations
// may run concurrently.
type Orchestrator struct {
	dir    *network.Directory
	bus    domain.EventBus
	logger *slog.Logger

	mu            sync.Mutex
	conversations map[string]*Conversation
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(dir *network.Directory, bus domain.EventBus, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = discardLogger()
	}
	return &Orchestrator{
		dir:           dir,
		bus:           bus,
		logger:        logger,
		conversations: make(map[string]*Conversation),
	}
}

// Start validates the workflow, creates the conversation, and synchronously
// drives it to completion or first failure. There is no handle to a
// not-yet-started workflow: by the time Start returns, the conversation is
// complete.
//
// The pre-flight check is a rejection, not a result: an unknown workflow
// agent means the conversation never starts.
func (o *Orchestrator) Start(ctx context.Context, initialQuery string, workflow []string) (string, error) {
	if len(workflow) == 0 {
		return "", domain.NewDomainError("Orchestrator.Start", domain.ErrInvalidInput,
			"workflow must contain at least one agent")
	}
	for _, name := range workflow {
		if _, err := o.dir.Resolve(name); err != nil {
			return "", domain.NewDomainError("Orchestrator.Start", domain.ErrAgentNotFound, name)
		}
	}

	id := domain.NewID()
	conv := &Conversation{
		ID:       id,
		Workflow: append([]string(nil), workflow...),
	}

	o.mu.Lock()
	o.conversations[id] = conv
	o.mu.Unlock()

	o.logger.Info("conversation started", "conversation", id, "workflow", workflow)
	o.publish(ctx, domain.EventConversationStarted, map[string]any{"conversation": id, "workflow": workflow})

	o.processStep(ctx, id, initialQuery)
	return id, nil
}

// ProcessStep advances the named conversation with the given input. Calls
// against unknown or completed conversations are logged no-ops:
// conversations are never auto-recreated and terminal states are immutable.
func (o *Orchestrator) ProcessStep(ctx context.Context, conversationID, input string) {
	o.processStep(ctx, conversationID, input)
}

// Result returns the final output of a completed conversation. The bool is
// false while the conversation is unknown or still running.
func (o *Orchestrator) Result(conversationID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	conv, ok := o.conversations[conversationID]
	if !ok || !conv.Complete {
		return "", false
	}
	return conv.Result, true
}

// Snapshot returns a copy of the conversation's current state.
func (o *Orchestrator) Snapshot(conversationID string) (Conversation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	conv, ok := o.conversations[conversationID]
	if !ok {
		return Conversation{}, false
	}
	out := *conv
	out.Workflow = append([]string(nil), conv.Workflow...)
	out.Transcript = append([]Entry(nil), conv.Transcript...)
	return out, true
}

// History returns the transcript so far. Unknown conversations yield nil.
func (o *Orchestrator) History(conversationID string) []Entry {
	o.mu.Lock()
	defer o.mu.Unlock()

	conv, ok := o.conversations[conversationID]
	if !ok {
		return nil
	}
	out := make([]Entry, len(conv.Transcript))
	copy(out, conv.Transcript)
	return out
}

func (o *Orchestrator) processStep(ctx context.Context, conversationID, currentInput string) {
	for {
		o.mu.Lock()
		conv, ok := o.conversations[conversationID]
		if !ok {
			o.mu.Unlock()
			o.logger.Error("conversation not found", "conversation", conversationID)
			return
		}
		if conv.Complete {
			o.mu.Unlock()
			o.logger.Warn("conversation already complete", "conversation", conversationID)
			return
		}

		if conv.CurrentStep >= len(conv.Workflow) {
			// Workflow exhausted: the only success exit.
			conv.Complete = true
			conv.Result = currentInput
			o.mu.Unlock()
			o.logger.Info("conversation completed", "conversation", conversationID)
			o.publish(ctx, domain.EventConversationCompleted, map[string]string{"conversation": conversationID})
			return
		}

		step := conv.CurrentStep
		currentAgent := conv.Workflow[step]

		// The transcript records who produced the input, not who receives it.
		producer := domain.RoleUser
		if step > 0 {
			producer = conv.Workflow[step-1]
		}
		conv.Transcript = append(conv.Transcript, Entry{Role: producer, Content: currentInput})
		o.mu.Unlock()

		responseText, err := o.dispatch(ctx, conversationID, currentAgent, currentInput)
		if err != nil {
			o.logger.Error("conversation step failed",
				"conversation", conversationID,
				"agent", currentAgent,
				"error", err,
			)
			o.mu.Lock()
			conv.Complete = true
			conv.Result = fmt.Sprintf("Error in conversation with agent %s: %v", currentAgent, err)
			o.mu.Unlock()
			o.publish(ctx, domain.EventConversationFailed, map[string]string{
				"conversation": conversationID,
				"agent":        currentAgent,
				"error":        err.Error(),
			})
			return
		}

		o.mu.Lock()
		conv.Transcript = append(conv.Transcript, Entry{Role: currentAgent, Content: responseText})
		conv.CurrentStep++
		o.mu.Unlock()

		o.publish(ctx, domain.EventConversationStep, map[string]any{
			"conversation": conversationID,
			"agent":        currentAgent,
			"step":         step,
		})

		currentInput = responseText
	}
}

// dispatch sends one step's input to its agent. Anything that goes wrong —
// transport failures included — is returned as an error that fails the
// whole conversation; there is no retry and no skip-and-continue.
func (o *Orchestrator) dispatch(ctx context.Context, conversationID, agent, input string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "conversation.step",
		trace.WithAttributes(tracer.StringAttr("agent.name", agent)),
	)
	defer span.End()

	client, err := o.dir.Resolve(agent)
	if err != nil {
		tracer.RecordError(span, err)
		return "", err
	}

	o.logger.Info("sending message to agent", "conversation", conversationID, "agent", agent)
	msg := domain.NewUserMessage(input, conversationID)
	response, err := client.Send(ctx, msg)
	if err != nil {
		tracer.RecordError(span, err)
		return "", err
	}

	text, recognized := response.Content.ExtractText()
	if !recognized {
		err := domain.NewDomainError("Orchestrator.dispatch", domain.ErrInvalidResponse, agent)
		tracer.RecordError(span, err)
		return "", err
	}
	tracer.SetOK(span)
	return text, nil
}

func (o *Orchestrator) publish(ctx context.Context, eventType domain.EventType, payload any) {
	if o.bus == nil {
		return
	}
	data, _ := json.Marshal(payload)
	o.bus.Publish(ctx, domain.Event{Type: eventType, Timestamp: time.Now(), Payload: data})
}
