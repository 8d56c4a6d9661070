package routing

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"agentmesh/internal/domain"
)

// Confidence normalization constants. Fixed, not adaptive.
const (
	scoreDivisor    = 10.0
	guessConfidence = 0.1 // deliberately low, non-zero: "this is a guess"
	minKeywordLen   = 4   // description tokens of length <= 3 are dropped
)

// stopWords are description tokens that never become routing keywords.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "with": true,
	"about": true,
}

// discardLogger returns a no-op logger for routers created without one.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// keywordIndex is an immutable snapshot of the keyword -> agents inversion.
// It is swapped atomically on rebuild so lookups never observe a partial index.
type keywordIndex struct {
	keywords map[string][]string // keyword -> agent names
	agents   []string            // registration order, for deterministic ties
}

// KeywordRouter scores a query by keyword overlap against each agent's
// declared capabilities and picks the highest-scoring agent.
type KeywordRouter struct {
	index  atomic.Value // *keywordIndex
	pick   func(n int) int
	logger *slog.Logger
}

// NewKeywordRouter creates a KeywordRouter with an empty index.
// Call Rebuild whenever the agent set changes.
func NewKeywordRouter(logger *slog.Logger) *KeywordRouter {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return newKeywordRouterWithPick(logger, rng.Intn)
}

// newKeywordRouterWithPick injects the random fallback selection (for tests).
func newKeywordRouterWithPick(logger *slog.Logger, pick func(n int) int) *KeywordRouter {
	if logger == nil {
		logger = discardLogger()
	}
	r := &KeywordRouter{pick: pick, logger: logger}
	r.index.Store(&keywordIndex{keywords: map[string][]string{}})
	return r
}

// Rebuild re-indexes the router from the given capability snapshot. The new
// index replaces the old one atomically.
func (r *KeywordRouter) Rebuild(caps []domain.AgentCapability) {
	idx := &keywordIndex{
		keywords: make(map[string][]string),
		agents:   make([]string, 0, len(caps)),
	}

	for _, ac := range caps {
		idx.agents = append(idx.agents, ac.Name)
		for keyword := range agentKeywords(ac) {
			idx.keywords[keyword] = append(idx.keywords[keyword], ac.Name)
		}
	}

	r.index.Store(idx)
	r.logger.Debug("keyword index rebuilt", "agents", len(idx.agents), "keywords", len(idx.keywords))
}

// Route scores the query against the keyword index. With no keyword match it
// falls back to a uniformly random agent with a low fixed confidence; with no
// agents at all it returns the zero Decision.
func (r *KeywordRouter) Route(_ context.Context, query string) domain.Decision {
	idx := r.index.Load().(*keywordIndex)

	queryLower := strings.ToLower(query)
	scores := make(map[string]int)
	for keyword, agents := range idx.keywords {
		if strings.Contains(queryLower, keyword) {
			for _, agent := range agents {
				scores[agent]++
			}
		}
	}

	if len(scores) > 0 {
		// Registration order breaks ties deterministically.
		best := ""
		bestScore := 0
		for _, agent := range idx.agents {
			if s := scores[agent]; s > bestScore {
				best = agent
				bestScore = s
			}
		}
		confidence := float64(bestScore) / scoreDivisor
		if confidence > 1.0 {
			confidence = 1.0
		}
		r.logger.Debug("keyword match", "agent", best, "score", bestScore, "confidence", confidence)
		return domain.Decision{Agent: best, Confidence: confidence}
	}

	if len(idx.agents) == 0 {
		return domain.Decision{}
	}

	guess := idx.agents[r.pick(len(idx.agents))]
	r.logger.Debug("no keyword match, guessing", "agent", guess)
	return domain.Decision{Agent: guess, Confidence: guessConfidence}
}

// agentKeywords collects the deduplicated keyword set for one agent: its
// registry key, display-name tokens, filtered description tokens, and every
// skill's tags and name tokens. A nil card contributes only the registry key.
func agentKeywords(ac domain.AgentCapability) map[string]bool {
	keywords := map[string]bool{strings.ToLower(ac.Name): true}
	if ac.Card == nil {
		return keywords
	}

	for _, tok := range strings.Fields(strings.ToLower(ac.Card.Name)) {
		keywords[tok] = true
	}
	for _, tok := range strings.Fields(strings.ToLower(ac.Card.Description)) {
		if stopWords[tok] || len(tok) < minKeywordLen {
			continue
		}
		keywords[tok] = true
	}
	for _, skill := range ac.Card.Skills {
		for _, tag := range skill.Tags {
			keywords[strings.ToLower(tag)] = true
		}
		for _, tok := range strings.Fields(strings.ToLower(skill.Name)) {
			keywords[tok] = true
		}
	}
	return keywords
}
