package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentmesh/internal/domain"
)

type stubClassifier struct {
	decision domain.Decision
	err      error
	calls    int
	context  string
}

func (s *stubClassifier) Classify(_ context.Context, _ string, capabilityContext string) (domain.Decision, error) {
	s.calls++
	s.context = capabilityContext
	return s.decision, s.err
}

func TestAIRouterUsesClassifier(t *testing.T) {
	cls := &stubClassifier{decision: domain.Decision{Agent: "weather", Confidence: 0.9}}
	r := NewAIRouter(cls, nil)
	r.Rebuild(demoCapabilities())

	d := r.Route(context.Background(), "will it rain tomorrow")
	assert.Equal(t, "weather", d.Agent)
	assert.Equal(t, 0.9, d.Confidence)
	assert.Equal(t, 1, cls.calls)

	// The classifier sees the serialized card metadata.
	assert.Contains(t, cls.context, `"weather"`)
	assert.Contains(t, cls.context, "forecasts")
}

func TestAIRouterCachesDecisions(t *testing.T) {
	cls := &stubClassifier{decision: domain.Decision{Agent: "math", Confidence: 0.8}}
	r := NewAIRouter(cls, nil)
	r.Rebuild(demoCapabilities())

	first := r.Route(context.Background(), "what is 2 + 2")
	second := r.Route(context.Background(), "what is 2 + 2")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, cls.calls)

	// A different query misses the cache.
	r.Route(context.Background(), "what is 3 + 3")
	assert.Equal(t, 2, cls.calls)
}

func TestAIRouterRebuildResetsCache(t *testing.T) {
	cls := &stubClassifier{decision: domain.Decision{Agent: "math", Confidence: 0.8}}
	r := NewAIRouter(cls, nil)
	r.Rebuild(demoCapabilities())

	r.Route(context.Background(), "what is 2 + 2")
	require.Equal(t, 1, cls.calls)

	r.Rebuild(demoCapabilities())

	r.Route(context.Background(), "what is 2 + 2")
	assert.Equal(t, 2, cls.calls)
}

func TestAIRouterClassifierErrorFallsBackRandomly(t *testing.T) {
	cls := &stubClassifier{err: errors.New("throttled")}
	r := newAIRouterWithPick(cls, nil, func(n int) int { return 0 })
	r.Rebuild(demoCapabilities())

	d := r.Route(context.Background(), "anything at all")
	assert.Equal(t, "weather", d.Agent)
	assert.Equal(t, guessConfidence, d.Confidence)
}

func TestAIRouterUnknownAgentFallsBackToFirst(t *testing.T) {
	cls := &stubClassifier{decision: domain.Decision{Agent: "nonexistent", Confidence: 0.95}}
	// pick would select index 1; the unknown-agent branch must not use it.
	r := newAIRouterWithPick(cls, nil, func(n int) int { return 1 })
	r.Rebuild(demoCapabilities())

	d := r.Route(context.Background(), "who handles this")
	assert.Equal(t, "weather", d.Agent)
	assert.Equal(t, guessConfidence, d.Confidence)
}

func TestAIRouterNilClassifier(t *testing.T) {
	r := newAIRouterWithPick(nil, nil, func(n int) int { return 1 })
	r.Rebuild(demoCapabilities())

	d := r.Route(context.Background(), "hello")
	assert.Equal(t, "math", d.Agent)
	assert.Equal(t, guessConfidence, d.Confidence)
}

func TestAIRouterNoAgents(t *testing.T) {
	cls := &stubClassifier{decision: domain.Decision{Agent: "weather", Confidence: 0.9}}
	r := NewAIRouter(cls, nil)

	d := r.Route(context.Background(), "hello")
	assert.Equal(t, domain.Decision{}, d)
	assert.Zero(t, cls.calls)
}

func TestSerializeCapabilities(t *testing.T) {
	out := serializeCapabilities(demoCapabilities())
	assert.Contains(t, out, `"name":"weather"`)
	assert.Contains(t, out, `"name":"math"`)
	assert.Contains(t, out, `"tags":["math","calculate","equation"]`)

	assert.Equal(t, "[]", serializeCapabilities(nil))
}
