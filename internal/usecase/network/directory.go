package network

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"agentmesh/internal/domain"
)

// cardFetchTimeout bounds the capability fetch during a directory change.
const cardFetchTimeout = 5 * time.Second

// discardLogger returns a no-op logger for components created without one.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type entry struct {
	name     string
	endpoint string
	client   domain.AgentClient
}

// Directory is the registry mapping agent names to their clients. It is an
// explicit, injected service object: routers and processors receive it as a
// dependency instead of consulting ambient global state.
//
// Registration order is retained; lookups observe either the agent set
// before or after a mutation, never a partial one.
type Directory struct {
	mu       sync.RWMutex
	agents   map[string]*entry
	order    []string // first-seen registration order
	onChange []func()
	bus      domain.EventBus
	logger   *slog.Logger
}

// NewDirectory creates an empty Directory.
func NewDirectory(bus domain.EventBus, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = discardLogger()
	}
	return &Directory{
		agents: make(map[string]*entry),
		bus:    bus,
		logger: logger,
	}
}

// OnChange registers a callback invoked after every agent-set mutation.
// Callbacks run outside the directory lock, in registration order.
func (d *Directory) OnChange(fn func()) {
	d.mu.Lock()
	d.onChange = append(d.onChange, fn)
	d.mu.Unlock()
}

// Add registers an agent. Returns ErrAgentDuplicate if the name is taken.
func (d *Directory) Add(name, endpoint string, client domain.AgentClient) error {
	d.mu.Lock()
	if _, exists := d.agents[name]; exists {
		d.mu.Unlock()
		return domain.NewDomainError("Directory.Add", domain.ErrAgentDuplicate, name)
	}
	d.agents[name] = &entry{name: name, endpoint: endpoint, client: client}
	d.order = append(d.order, name)
	d.mu.Unlock()

	d.logger.Info("agent registered", "agent", name, "endpoint", endpoint)
	d.publish(domain.EventAgentRegistered, map[string]string{"agent": name, "endpoint": endpoint})
	d.notify()
	return nil
}

// Remove unregisters an agent. Returns ErrAgentNotFound if not present.
func (d *Directory) Remove(name string) error {
	d.mu.Lock()
	if _, ok := d.agents[name]; !ok {
		d.mu.Unlock()
		return domain.NewDomainError("Directory.Remove", domain.ErrAgentNotFound, name)
	}
	delete(d.agents, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.mu.Unlock()

	d.logger.Info("agent removed", "agent", name)
	d.publish(domain.EventAgentRemoved, map[string]string{"agent": name})
	d.notify()
	return nil
}

// Resolve returns the client for the given agent name.
func (d *Directory) Resolve(name string) (domain.AgentClient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.agents[name]
	if !ok {
		return nil, domain.NewDomainError("Directory.Resolve", domain.ErrAgentNotFound, name)
	}
	return e.client, nil
}

// Endpoint returns the registered endpoint for the given agent name.
func (d *Directory) Endpoint(name string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.agents[name]
	if !ok {
		return "", domain.NewDomainError("Directory.Endpoint", domain.ErrAgentNotFound, name)
	}
	return e.endpoint, nil
}

// Names returns agent names in first-seen registration order.
func (d *Directory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, len(d.order))
	copy(names, d.order)
	return names
}

// Len returns the number of registered agents.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.agents)
}

// Capabilities fetches every agent's card, in registration order. A fetch
// failure yields a nil card for that agent (logged, not an error): the
// agent then contributes no routing keywords.
func (d *Directory) Capabilities(ctx context.Context) []domain.AgentCapability {
	d.mu.RLock()
	entries := make([]*entry, 0, len(d.order))
	for _, name := range d.order {
		entries = append(entries, d.agents[name])
	}
	d.mu.RUnlock()

	caps := make([]domain.AgentCapability, 0, len(entries))
	for _, e := range entries {
		fetchCtx, cancel := context.WithTimeout(ctx, cardFetchTimeout)
		card, err := e.client.Card(fetchCtx)
		cancel()
		if err != nil {
			d.logger.Warn("agent card fetch failed", "agent", e.name, "error", err)
			card = nil
		}
		caps = append(caps, domain.AgentCapability{Name: e.name, Card: card})
	}
	return caps
}

// Statuses probes every agent's reachability, in registration order.
func (d *Directory) Statuses(ctx context.Context) []domain.AgentStatus {
	d.mu.RLock()
	entries := make([]*entry, 0, len(d.order))
	for _, name := range d.order {
		entries = append(entries, d.agents[name])
	}
	d.mu.RUnlock()

	statuses := make([]domain.AgentStatus, 0, len(entries))
	for _, e := range entries {
		statuses = append(statuses, domain.AgentStatus{
			Name:      e.name,
			Endpoint:  e.endpoint,
			Reachable: e.client.TestReachable(ctx),
			CheckedAt: time.Now(),
		})
	}
	return statuses
}

func (d *Directory) notify() {
	d.mu.RLock()
	callbacks := make([]func(), len(d.onChange))
	copy(callbacks, d.onChange)
	d.mu.RUnlock()

	for _, fn := range callbacks {
		fn()
	}
}

func (d *Directory) publish(eventType domain.EventType, payload any) {
	if d.bus == nil {
		return
	}
	data, _ := json.Marshal(payload)
	d.bus.Publish(context.Background(), domain.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   data,
	})
}
