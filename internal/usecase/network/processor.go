package network

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"agentmesh/internal/domain"
	"agentmesh/internal/infra/tracer"
)

// Fixed error texts the processor returns for expected failure modes.
// Callers receive these as ordinary results, never as errors.
const (
	msgNoAgents        = "Error: No agents available in the network"
	msgRoutingFailed   = "Error: Failed to route query to an agent"
	errAgentNotFound   = "Error: Agent '%s' not found in network"
	errDispatchFailed  = "Error: Failed to process query with agent %s: %v"
	errInvalidResponse = "Error: Received invalid response from %s"
)

// AuditLog records routing and dispatch outcomes for operator diagnostics.
type AuditLog interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// AuditRecord is one processed query.
type AuditRecord struct {
	Query      string
	Agent      string
	Confidence float64
	Explicit   bool // true when the caller named the target agent
	Outcome    string
	Detail     string
	At         time.Time
}

// Processor resolves a query to an agent — through the configured router or
// an explicit target — dispatches it, and normalizes the response to plain
// text. No expected failure mode crosses this boundary as an error.
type Processor struct {
	dir    *Directory
	router domain.Router
	bus    domain.EventBus
	audit  AuditLog
	logger *slog.Logger
}

// NewProcessor creates a Processor. The audit log may be nil.
func NewProcessor(dir *Directory, router domain.Router, bus domain.EventBus, audit AuditLog, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = discardLogger()
	}
	return &Processor{dir: dir, router: router, bus: bus, audit: audit, logger: logger}
}

// Process routes and dispatches one query. When target is non-empty that
// agent is used directly with confidence 1.0 and the router is never
// consulted. The returned string is either the agent's text or a
// descriptive error text of the same shape.
func (p *Processor) Process(ctx context.Context, query, target string) string {
	ctx, span := tracer.StartSpan(ctx, "network.process",
		trace.WithAttributes(tracer.StringAttr("query.target", target)),
	)
	defer span.End()

	if p.dir.Len() == 0 {
		p.logger.Warn("no agents in network to route query to")
		p.record(ctx, AuditRecord{Query: query, Outcome: "rejected", Detail: msgNoAgents})
		return msgNoAgents
	}

	var decision domain.Decision
	switch {
	case target != "":
		if _, err := p.dir.Resolve(target); err != nil {
			p.record(ctx, AuditRecord{Query: query, Agent: target, Explicit: true, Outcome: "rejected", Detail: "unknown target"})
			return fmt.Sprintf(errAgentNotFound, target)
		}
		decision = domain.Decision{Agent: target, Confidence: 1.0}
	default:
		decision = p.router.Route(ctx, query)
		if decision.Agent == "" {
			p.record(ctx, AuditRecord{Query: query, Outcome: "rejected", Detail: msgRoutingFailed})
			return msgRoutingFailed
		}
	}

	p.logger.Info("routing query",
		"agent", decision.Agent,
		"confidence", fmt.Sprintf("%.2f", decision.Confidence),
	)
	p.publish(ctx, domain.EventQueryRouted, map[string]any{
		"agent":      decision.Agent,
		"confidence": decision.Confidence,
	})

	result, ok := p.dispatch(ctx, query, decision)
	rec := AuditRecord{
		Query:      query,
		Agent:      decision.Agent,
		Confidence: decision.Confidence,
		Explicit:   target != "",
		Outcome:    "ok",
	}
	if !ok {
		rec.Outcome = "failed"
		rec.Detail = result
		tracer.RecordError(span, fmt.Errorf("%s", result))
		p.publish(ctx, domain.EventQueryFailed, map[string]string{"agent": decision.Agent, "error": result})
	} else {
		tracer.SetOK(span)
	}
	p.record(ctx, rec)
	return result
}

// dispatch sends the query to the resolved agent and extracts the response
// text. The bool result reports success; failures are already rendered as
// caller-facing text.
func (p *Processor) dispatch(ctx context.Context, query string, decision domain.Decision) (string, bool) {
	client, err := p.dir.Resolve(decision.Agent)
	if err != nil {
		// The agent vanished between routing and dispatch.
		return fmt.Sprintf(errAgentNotFound, decision.Agent), false
	}

	msg := domain.NewUserMessage(query, domain.NewID())
	response, err := client.Send(ctx, msg)
	if err != nil {
		p.logger.Error("dispatch failed", "agent", decision.Agent, "error", err)
		return fmt.Sprintf(errDispatchFailed, decision.Agent, err), false
	}

	text, recognized := response.Content.ExtractText()
	if !recognized {
		return fmt.Sprintf(errInvalidResponse, decision.Agent), false
	}
	return text, true
}

func (p *Processor) record(ctx context.Context, rec AuditRecord) {
	if p.audit == nil {
		return
	}
	rec.At = time.Now()
	if err := p.audit.Record(ctx, rec); err != nil {
		p.logger.Warn("audit record failed", "error", err)
	}
}

func (p *Processor) publish(ctx context.Context, eventType domain.EventType, payload any) {
	if p.bus == nil {
		return
	}
	data, _ := json.Marshal(payload)
	p.bus.Publish(ctx, domain.Event{Type: eventType, Timestamp: time.Now(), Payload: data})
}
