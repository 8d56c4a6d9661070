package config

import (
	"fmt"
	"strings"

	"agentmesh/internal/domain"
)

// Validate checks cross-field constraints. Called by Load; exported so the
// CLI can validate explicit configs before starting anything.
func Validate(cfg Config) error {
	switch cfg.Network.Router {
	case "keyword", "ai":
	default:
		return invalid(fmt.Sprintf("network.router must be \"keyword\" or \"ai\", got %q", cfg.Network.Router))
	}

	seen := make(map[string]bool, len(cfg.Network.Agents))
	for i, a := range cfg.Network.Agents {
		if a.Name == "" {
			return invalid(fmt.Sprintf("network.agents[%d] has no name", i))
		}
		if seen[a.Name] {
			return invalid(fmt.Sprintf("duplicate agent name %q", a.Name))
		}
		seen[a.Name] = true
		if a.Endpoint == "" {
			return invalid(fmt.Sprintf("agent %q has no endpoint", a.Name))
		}
		if !strings.HasPrefix(a.Endpoint, "http://") && !strings.HasPrefix(a.Endpoint, "https://") {
			return invalid(fmt.Sprintf("agent %q endpoint must be an http(s) URL", a.Name))
		}
	}

	if cfg.Network.Router == "ai" && cfg.Classifier.Model == "" {
		return invalid("network.router \"ai\" requires classifier.model")
	}

	if cfg.Gateway.RequestsPerMin < 0 {
		return invalid("gateway.requests_per_min must not be negative")
	}
	if cfg.Audit.Enabled && cfg.Audit.Path == "" {
		return invalid("audit.enabled requires audit.path")
	}

	for i, srv := range cfg.MCPServers {
		if srv.Name == "" {
			return invalid(fmt.Sprintf("mcp_servers[%d] has no name", i))
		}
		switch srv.Transport {
		case "stdio":
			if srv.Command == "" {
				return invalid(fmt.Sprintf("mcp server %q (stdio) requires command", srv.Name))
			}
		case "http":
			if srv.URL == "" {
				return invalid(fmt.Sprintf("mcp server %q (http) requires url", srv.Name))
			}
		default:
			return invalid(fmt.Sprintf("mcp server %q has unsupported transport %q", srv.Name, srv.Transport))
		}
	}

	return nil
}

func invalid(detail string) error {
	return domain.NewDomainError("config.Validate", domain.ErrInvalidInput, detail)
}
