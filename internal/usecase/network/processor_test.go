package network

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentmesh/internal/domain"
)

// staticRouter returns a fixed decision.
type staticRouter struct {
	decision domain.Decision
	calls    int
}

func (r *staticRouter) Route(context.Context, string) domain.Decision {
	r.calls++
	return r.decision
}

func (r *staticRouter) Rebuild([]domain.AgentCapability) {}

// memoryAudit captures audit records in memory.
type memoryAudit struct {
	records []AuditRecord
}

func (a *memoryAudit) Record(_ context.Context, rec AuditRecord) error {
	a.records = append(a.records, rec)
	return nil
}

func newProcessorWithAgent(t *testing.T, name string, client *scriptedClient, router domain.Router) (*Processor, *memoryAudit) {
	t.Helper()
	dir := NewDirectory(nil, nil)
	require.NoError(t, dir.Add(name, "", client))
	audit := &memoryAudit{}
	return NewProcessor(dir, router, nil, audit, nil), audit
}

func TestProcessorRoutesAndDispatches(t *testing.T) {
	client := &scriptedClient{reply: "It is sunny."}
	router := &staticRouter{decision: domain.Decision{Agent: "weather", Confidence: 0.7}}
	proc, audit := newProcessorWithAgent(t, "weather", client, router)

	result := proc.Process(context.Background(), "weather in London", "")

	assert.Equal(t, "It is sunny.", result)
	assert.Equal(t, 1, client.sends)
	require.Len(t, audit.records, 1)
	assert.Equal(t, "ok", audit.records[0].Outcome)
	assert.Equal(t, "weather", audit.records[0].Agent)
	assert.False(t, audit.records[0].Explicit)
	assert.Equal(t, 0.7, audit.records[0].Confidence)
}

func TestProcessorNoAgents(t *testing.T) {
	dir := NewDirectory(nil, nil)
	router := &staticRouter{}
	proc := NewProcessor(dir, router, nil, nil, nil)

	result := proc.Process(context.Background(), "hello", "")

	assert.Equal(t, "Error: No agents available in the network", result)
	assert.Zero(t, router.calls)
}

func TestProcessorExplicitTargetSkipsRouter(t *testing.T) {
	client := &scriptedClient{reply: "42"}
	router := &staticRouter{decision: domain.Decision{Agent: "weather", Confidence: 0.9}}
	proc, audit := newProcessorWithAgent(t, "math", client, router)

	result := proc.Process(context.Background(), "what is 6 * 7", "math")

	assert.Equal(t, "42", result)
	assert.Zero(t, router.calls)
	require.Len(t, audit.records, 1)
	assert.True(t, audit.records[0].Explicit)
	assert.Equal(t, 1.0, audit.records[0].Confidence)
}

func TestProcessorExplicitTargetUnknown(t *testing.T) {
	proc, audit := newProcessorWithAgent(t, "math", &scriptedClient{}, &staticRouter{})

	result := proc.Process(context.Background(), "hello", "ghost")

	assert.Equal(t, "Error: Agent 'ghost' not found in network", result)
	require.Len(t, audit.records, 1)
	assert.Equal(t, "rejected", audit.records[0].Outcome)
}

func TestProcessorRoutingFailure(t *testing.T) {
	router := &staticRouter{} // zero decision: no agent available
	proc, _ := newProcessorWithAgent(t, "math", &scriptedClient{}, router)

	result := proc.Process(context.Background(), "hello", "")
	assert.Equal(t, "Error: Failed to route query to an agent", result)
}

func TestProcessorDispatchFailure(t *testing.T) {
	client := &scriptedClient{sendErr: errors.New("connection refused")}
	router := &staticRouter{decision: domain.Decision{Agent: "weather", Confidence: 0.5}}
	proc, audit := newProcessorWithAgent(t, "weather", client, router)

	result := proc.Process(context.Background(), "weather", "")

	assert.Equal(t, "Error: Failed to process query with agent weather: connection refused", result)
	require.Len(t, audit.records, 1)
	assert.Equal(t, "failed", audit.records[0].Outcome)
}

func TestProcessorInvalidResponse(t *testing.T) {
	// A reply whose content kind is unknown cannot be rendered as text.
	client := &scriptedClient{rawReply: &domain.Message{Role: domain.RoleAgent}}
	router := &staticRouter{decision: domain.Decision{Agent: "weather", Confidence: 0.5}}
	proc, _ := newProcessorWithAgent(t, "weather", client, router)

	result := proc.Process(context.Background(), "weather", "")
	assert.Equal(t, "Error: Received invalid response from weather", result)
}

func TestProcessorRouterNamesVanishedAgent(t *testing.T) {
	router := &staticRouter{decision: domain.Decision{Agent: "gone", Confidence: 0.9}}
	proc, _ := newProcessorWithAgent(t, "math", &scriptedClient{}, router)

	result := proc.Process(context.Background(), "hello", "")
	assert.Equal(t, "Error: Agent 'gone' not found in network", result)
}
