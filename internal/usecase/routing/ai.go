package routing

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"agentmesh/internal/domain"
)

// AIRouter delegates routing to an external text-classification capability,
// passing the same per-agent card metadata the keyword strategy indexes.
// It shares the KeywordRouter contract so either can be substituted
// transparently: every failure mode degrades to a Decision, never an error.
//
// Decisions are cached per raw query string. The cache is append-only and
// unbounded for the process lifetime; acceptable for the short-lived
// processes this mesh targets, a growth concern for anything long-lived.
type AIRouter struct {
	classifier domain.Classifier

	mu      sync.RWMutex
	agents  []string // registration order
	context string   // serialized capability metadata for the classifier
	cache   map[string]domain.Decision

	pick   func(n int) int
	logger *slog.Logger
}

// NewAIRouter creates an AIRouter. A nil classifier is tolerated: every
// route then takes the random-fallback branch, mirroring an unavailable
// external service.
func NewAIRouter(classifier domain.Classifier, logger *slog.Logger) *AIRouter {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return newAIRouterWithPick(classifier, logger, rng.Intn)
}

func newAIRouterWithPick(classifier domain.Classifier, logger *slog.Logger, pick func(n int) int) *AIRouter {
	if logger == nil {
		logger = discardLogger()
	}
	return &AIRouter{
		classifier: classifier,
		cache:      make(map[string]domain.Decision),
		pick:       pick,
		logger:     logger,
	}
}

// Rebuild re-serializes the capability context and resets the cache: cached
// decisions may name agents that no longer exist.
func (r *AIRouter) Rebuild(caps []domain.AgentCapability) {
	agents := make([]string, 0, len(caps))
	for _, ac := range caps {
		agents = append(agents, ac.Name)
	}
	ctx := serializeCapabilities(caps)

	r.mu.Lock()
	r.agents = agents
	r.context = ctx
	r.cache = make(map[string]domain.Decision)
	r.mu.Unlock()

	r.logger.Debug("ai router rebuilt", "agents", len(agents))
}

// Route returns the cached decision for a repeated query, otherwise asks the
// classifier. An unavailable or failing classifier degrades to a uniformly
// random agent with low confidence — identical to the keyword no-match
// branch. A classifier answer naming an unknown agent degrades to the first
// registered agent instead: a deliberately narrower fallback than the
// unavailable case.
func (r *AIRouter) Route(ctx context.Context, query string) domain.Decision {
	r.mu.RLock()
	agents := r.agents
	capContext := r.context
	cached, hit := r.cache[query]
	r.mu.RUnlock()

	if hit {
		r.logger.Debug("routing cache hit", "query", query, "agent", cached.Agent)
		return cached
	}
	if len(agents) == 0 {
		return domain.Decision{}
	}

	decision := r.classify(ctx, query, capContext, agents)

	r.mu.Lock()
	r.cache[query] = decision
	size := len(r.cache)
	r.mu.Unlock()
	r.logger.Debug("routing decision cached", "agent", decision.Agent, "cache_size", size)

	return decision
}

func (r *AIRouter) classify(ctx context.Context, query, capContext string, agents []string) domain.Decision {
	if r.classifier == nil {
		return r.randomFallback(agents, "classifier unavailable")
	}

	decision, err := r.classifier.Classify(ctx, query, capContext)
	if err != nil {
		return r.randomFallback(agents, err.Error())
	}

	if !containsAgent(agents, decision.Agent) {
		// Invalid classification, not an outage: fall back to the first
		// registered agent rather than a random one.
		r.logger.Warn("classifier named unknown agent, using first registered",
			"classified", decision.Agent, "fallback", agents[0])
		return domain.Decision{Agent: agents[0], Confidence: guessConfidence}
	}

	return decision
}

func (r *AIRouter) randomFallback(agents []string, cause string) domain.Decision {
	guess := agents[r.pick(len(agents))]
	r.logger.Warn("classifier failed, guessing random agent", "agent", guess, "cause", cause)
	return domain.Decision{Agent: guess, Confidence: guessConfidence}
}

func containsAgent(agents []string, name string) bool {
	for _, a := range agents {
		if a == name {
			return true
		}
	}
	return false
}

// serializeCapabilities renders agent cards as the routing context handed to
// the classifier: one JSON object per agent with name, description, and
// skill metadata.
func serializeCapabilities(caps []domain.AgentCapability) string {
	type skillInfo struct {
		Name string   `json:"name"`
		Tags []string `json:"tags,omitempty"`
	}
	type agentInfo struct {
		Name        string      `json:"name"`
		Description string      `json:"description,omitempty"`
		Skills      []skillInfo `json:"skills,omitempty"`
	}

	infos := make([]agentInfo, 0, len(caps))
	for _, ac := range caps {
		info := agentInfo{Name: ac.Name}
		if ac.Card != nil {
			info.Description = ac.Card.Description
			for _, s := range ac.Card.Skills {
				info.Skills = append(info.Skills, skillInfo{Name: s.Name, Tags: s.Tags})
			}
		}
		infos = append(infos, info)
	}

	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	if err := enc.Encode(infos); err != nil {
		return "[]"
	}
	return strings.TrimSpace(sb.String())
}
