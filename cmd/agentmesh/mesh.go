package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"agentmesh/internal/adapter/agentclient"
	"agentmesh/internal/adapter/audit"
	"agentmesh/internal/adapter/classifier"
	"agentmesh/internal/adapter/gateway"
	"agentmesh/internal/adapter/mcptool"
	"agentmesh/internal/adapter/skill"
	"agentmesh/internal/domain"
	"agentmesh/internal/infra/config"
	"agentmesh/internal/usecase/conversation"
	"agentmesh/internal/usecase/eventbus"
	"agentmesh/internal/usecase/network"
	"agentmesh/internal/usecase/routing"
)

// mesh wires the full agent network: directory, router, processor,
// orchestrator, and the supporting adapters the config enables.
type mesh struct {
	cfg     config.Config
	logger  *slog.Logger
	bus     *eventbus.Bus
	dir     *network.Directory
	router  domain.Router
	proc    *network.Processor
	orch    *conversation.Orchestrator
	monitor *network.Monitor
	gateway *gateway.Server

	auditLog *audit.SQLiteLog
	bridge   *mcptool.Bridge
}

func buildMesh(ctx context.Context, cfg config.Config, logger *slog.Logger) (*mesh, error) {
	m := &mesh{
		cfg:    cfg,
		logger: logger,
		bus:    eventbus.New(logger),
	}
	m.dir = network.NewDirectory(m.bus, logger)

	// Tool backend for the weather agent. A failed connection degrades to
	// fixture data rather than blocking startup.
	if len(cfg.MCPServers) > 0 {
		bridge, err := mcptool.NewBridge(ctx, cfg.MCPServers, logger)
		if err != nil {
			logger.Warn("mcp bridge unavailable, agents fall back to fixtures", "error", err)
		} else {
			m.bridge = bridge
		}
	}

	builtins := m.builtinAgents()
	if err := m.registerBuiltinAgents(builtins); err != nil {
		m.Close()
		return nil, err
	}
	if err := m.registerRemoteAgents(); err != nil {
		m.Close()
		return nil, err
	}

	router, err := m.buildRouter()
	if err != nil {
		m.Close()
		return nil, err
	}
	m.router = router

	// The routing index follows directory membership.
	rebuild := func() { m.router.Rebuild(m.dir.Capabilities(ctx)) }
	m.dir.OnChange(rebuild)
	rebuild()

	if cfg.Audit.Enabled {
		log, err := audit.NewSQLiteLog(cfg.Audit.Path)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		m.auditLog = log
	}

	var auditLog network.AuditLog
	if m.auditLog != nil {
		auditLog = m.auditLog
	}
	m.proc = network.NewProcessor(m.dir, m.router, m.bus, auditLog, logger)
	m.orch = conversation.NewOrchestrator(m.dir, m.bus, logger)

	if cfg.Health.Enabled {
		m.monitor = network.NewMonitor(m.dir, m.bus, cfg.Health.Schedule, logger)
	}

	m.gateway = gateway.NewServer(m.dir, m.proc, m.orch, m.bus, cfg.Gateway, logger)
	for name, agent := range builtins {
		m.gateway.HostAgent(name, agent.card, agent.handler)
	}

	return m, nil
}

type builtinAgent struct {
	card    *domain.AgentCard
	handler domain.Handler
}

// builtinAgents constructs the demonstration agents the mesh always carries.
func (m *mesh) builtinAgents() map[string]builtinAgent {
	weatherOpts := []skill.WeatherOption{skill.WithWeatherLogger(m.logger)}
	if m.bridge != nil {
		weatherOpts = append(weatherOpts, skill.WithToolCaller(m.bridge))
	}
	weather := skill.NewWeatherAgent(weatherOpts...)
	mathAgent := skill.NewMathAgent()
	knowledge := skill.NewKnowledgeAgent()
	travel := skill.NewTravelAgent(
		agentclient.NewLocalClient(weather.Card(), weather), m.logger)

	return map[string]builtinAgent{
		"weather":   {weather.Card(), weather},
		"math":      {mathAgent.Card(), mathAgent},
		"knowledge": {knowledge.Card(), knowledge},
		"travel":    {travel.Card(), travel},
	}
}

// builtinOrder fixes registration order; routing tie-breaks depend on it.
var builtinOrder = []string{"weather", "math", "knowledge", "travel"}

func (m *mesh) registerBuiltinAgents(builtins map[string]builtinAgent) error {
	for _, name := range builtinOrder {
		agent := builtins[name]
		client := agentclient.NewLocalClient(agent.card, agent.handler)
		if err := m.dir.Add(name, "", client); err != nil {
			return fmt.Errorf("register agent %q: %w", name, err)
		}
	}
	return nil
}

func (m *mesh) registerRemoteAgents() error {
	for _, a := range m.cfg.Network.Agents {
		var client domain.AgentClient = agentclient.NewHTTPClient(a.Name, a.Endpoint,
			agentclient.WithTimeout(m.cfg.Client.Timeout),
			agentclient.WithProbeTimeout(m.cfg.Client.ProbeTimeout),
			agentclient.WithLogger(m.logger),
		)
		if m.cfg.Client.Breaker.Enabled {
			client = agentclient.NewBreakerClient(a.Name, client, m.cfg.Client.Breaker, m.logger)
		}
		if err := m.dir.Add(a.Name, a.Endpoint, client); err != nil {
			return fmt.Errorf("register agent %q: %w", a.Name, err)
		}
	}
	return nil
}

func (m *mesh) buildRouter() (domain.Router, error) {
	switch strings.ToLower(m.cfg.Network.Router) {
	case "", "keyword":
		return routing.NewKeywordRouter(m.logger), nil
	case "ai":
		cls, err := classifier.NewBedrockClassifier(m.cfg.Classifier, m.logger)
		if err != nil {
			return nil, fmt.Errorf("bedrock classifier: %w", err)
		}
		return routing.NewAIRouter(cls, m.logger), nil
	default:
		return nil, fmt.Errorf("unknown router %q", m.cfg.Network.Router)
	}
}

// Close releases everything buildMesh opened.
func (m *mesh) Close() {
	if m.monitor != nil {
		m.monitor.Stop()
	}
	if m.bridge != nil {
		m.bridge.Close()
	}
	if m.auditLog != nil {
		m.auditLog.Close()
	}
	m.bus.Close()
}
