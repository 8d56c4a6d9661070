package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"agentmesh/internal/domain"
)

// AgentEndpointConfig names one remote agent and where to reach it.
type AgentEndpointConfig struct {
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
}

// NetworkConfig holds the agent set and routing strategy.
type NetworkConfig struct {
	Router string                `yaml:"router"` // "keyword" (default) or "ai"
	Agents []AgentEndpointConfig `yaml:"agents,omitempty"`
}

// ClientConfig bounds the per-agent transport client.
type ClientConfig struct {
	Timeout      time.Duration `yaml:"timeout"`       // per-dispatch bound (default 30s)
	ProbeTimeout time.Duration `yaml:"probe_timeout"` // reachability probe bound (default 2s)
	Breaker      BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the per-agent circuit breaker.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"` // consecutive failures before the circuit opens
	Timeout     time.Duration `yaml:"timeout"`      // open -> half-open delay
	Interval    time.Duration `yaml:"interval"`     // closed-state counter reset period
}

// GatewayConfig holds the HTTP/WebSocket gateway settings.
type GatewayConfig struct {
	Addr           string  `yaml:"addr"`
	RequestsPerMin float64 `yaml:"requests_per_min"` // 0 disables rate limiting
	BurstSize      int     `yaml:"burst_size"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// TracerConfig holds OpenTelemetry settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// ClassifierConfig configures the AI router's external classifier.
type ClassifierConfig struct {
	Region string `yaml:"region"`
	Model  string `yaml:"model"`
}

// DiscoveryConfig holds mDNS discovery settings.
type DiscoveryConfig struct {
	MDNS bool `yaml:"mdns"`
}

// HealthConfig holds the reachability sweep settings.
type HealthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron spec, e.g. "@every 30s"
}

// AuditConfig holds the routing audit trail settings.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // sqlite database path
}

// MCPServerConfig names one MCP tool server and its transport.
type MCPServerConfig struct {
	Name      string   `yaml:"name"`
	Transport string   `yaml:"transport"` // "stdio" or "http"
	URL       string   `yaml:"url,omitempty"`
	Command   string   `yaml:"command,omitempty"`
	Args      []string `yaml:"args,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	Network    NetworkConfig     `yaml:"network"`
	Client     ClientConfig      `yaml:"client"`
	Gateway    GatewayConfig     `yaml:"gateway"`
	Logger     LoggerConfig      `yaml:"logger"`
	Tracer     TracerConfig      `yaml:"tracer"`
	Classifier ClassifierConfig  `yaml:"classifier"`
	Discovery  DiscoveryConfig   `yaml:"discovery"`
	Health     HealthConfig      `yaml:"health"`
	Audit      AuditConfig       `yaml:"audit"`
	MCPServers []MCPServerConfig `yaml:"mcp_servers,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Network: NetworkConfig{Router: "keyword"},
		Client: ClientConfig{
			Timeout:      30 * time.Second,
			ProbeTimeout: 2 * time.Second,
			Breaker: BreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Gateway: GatewayConfig{Addr: "127.0.0.1:8700"},
		Logger:  LoggerConfig{Level: "info", Format: "text", Output: "stderr"},
		Health:  HealthConfig{Enabled: true, Schedule: "@every 30s"},
	}
}

// Load reads a YAML config file, applies defaults, and validates. An empty
// path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, domain.NewDomainError("config.Load", domain.ErrConfigLoad, err.Error())
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, domain.NewDomainError("config.Load", domain.ErrConfigLoad,
			fmt.Sprintf("parse %s: %v", path, err))
	}

	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Network.Router == "" {
		cfg.Network.Router = def.Network.Router
	}
	if cfg.Client.Timeout <= 0 {
		cfg.Client.Timeout = def.Client.Timeout
	}
	if cfg.Client.ProbeTimeout <= 0 {
		cfg.Client.ProbeTimeout = def.Client.ProbeTimeout
	}
	if cfg.Gateway.Addr == "" {
		cfg.Gateway.Addr = def.Gateway.Addr
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = def.Logger.Level
	}
	if cfg.Health.Schedule == "" {
		cfg.Health.Schedule = def.Health.Schedule
	}
}
