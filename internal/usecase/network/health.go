package network

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"agentmesh/internal/domain"
)

// Monitor periodically probes every registered agent's reachability and
// keeps the latest snapshot. An unreachable agent is reported, not removed:
// the directory stays authoritative for membership.
type Monitor struct {
	dir      *Directory
	bus      domain.EventBus
	logger   *slog.Logger
	schedule string

	cron *cron.Cron

	mu       sync.RWMutex
	statuses []domain.AgentStatus
}

// NewMonitor creates a Monitor with a cron schedule (e.g. "@every 30s").
func NewMonitor(dir *Directory, bus domain.EventBus, schedule string, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = discardLogger()
	}
	return &Monitor{dir: dir, bus: bus, schedule: schedule, logger: logger}
}

// Start schedules the probe sweep and runs one immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.cron = cron.New()
	if _, err := m.cron.AddFunc(m.schedule, func() { m.sweep(ctx) }); err != nil {
		return domain.WrapOp("schedule health sweep", err)
	}
	m.cron.Start()
	m.sweep(ctx)
	return nil
}

// Stop halts the scheduled sweeps and waits for a running one to finish.
func (m *Monitor) Stop() {
	if m.cron == nil {
		return
	}
	stopCtx := m.cron.Stop()
	<-stopCtx.Done()
}

// Statuses returns the latest reachability snapshot.
func (m *Monitor) Statuses() []domain.AgentStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.AgentStatus, len(m.statuses))
	copy(out, m.statuses)
	return out
}

func (m *Monitor) sweep(ctx context.Context) {
	statuses := m.dir.Statuses(ctx)

	for _, st := range statuses {
		if st.Reachable {
			continue
		}
		m.logger.Warn("agent unreachable", "agent", st.Name, "endpoint", st.Endpoint)
		if m.bus != nil {
			data, _ := json.Marshal(map[string]string{"agent": st.Name, "endpoint": st.Endpoint})
			m.bus.Publish(ctx, domain.Event{
				Type:      domain.EventAgentUnreachable,
				Timestamp: time.Now(),
				Payload:   data,
			})
		}
	}

	m.mu.Lock()
	m.statuses = statuses
	m.mu.Unlock()
}
