package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentmesh/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "keyword", cfg.Network.Router)
	assert.Equal(t, "127.0.0.1:8700", cfg.Gateway.Addr)
	assert.Equal(t, 30*time.Second, cfg.Client.Timeout)
	assert.True(t, cfg.Client.Breaker.Enabled)
	assert.Equal(t, "@every 30s", cfg.Health.Schedule)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
network:
  router: ai
  agents:
    - name: remote-math
      endpoint: http://192.168.1.20:8701
classifier:
  model: anthropic.claude-3-haiku-20240307-v1:0
gateway:
  addr: 0.0.0.0:9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ai", cfg.Network.Router)
	assert.Equal(t, "0.0.0.0:9000", cfg.Gateway.Addr)
	require.Len(t, cfg.Network.Agents, 1)
	assert.Equal(t, "remote-math", cfg.Network.Agents[0].Name)
	// Unset fields keep their defaults.
	assert.Equal(t, 2*time.Second, cfg.Client.ProbeTimeout)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, domain.ErrConfigLoad)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "network: [broken")
	_, err := Load(path)
	assert.ErrorIs(t, err, domain.ErrConfigLoad)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown router",
			mutate:  func(c *Config) { c.Network.Router = "dice" },
			wantErr: "network.router",
		},
		{
			name: "agent without name",
			mutate: func(c *Config) {
				c.Network.Agents = []AgentEndpointConfig{{Endpoint: "http://a"}}
			},
			wantErr: "has no name",
		},
		{
			name: "duplicate agent names",
			mutate: func(c *Config) {
				c.Network.Agents = []AgentEndpointConfig{
					{Name: "a", Endpoint: "http://x"},
					{Name: "a", Endpoint: "http://y"},
				}
			},
			wantErr: "duplicate agent name",
		},
		{
			name: "non-http endpoint",
			mutate: func(c *Config) {
				c.Network.Agents = []AgentEndpointConfig{{Name: "a", Endpoint: "ftp://x"}}
			},
			wantErr: "http(s)",
		},
		{
			name: "ai router without model",
			mutate: func(c *Config) {
				c.Network.Router = "ai"
				c.Classifier.Model = ""
			},
			wantErr: "classifier.model",
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.Gateway.RequestsPerMin = -1 },
			wantErr: "requests_per_min",
		},
		{
			name:    "audit without path",
			mutate:  func(c *Config) { c.Audit.Enabled = true },
			wantErr: "audit.path",
		},
		{
			name: "stdio mcp server without command",
			mutate: func(c *Config) {
				c.MCPServers = []MCPServerConfig{{Name: "weather", Transport: "stdio"}}
			},
			wantErr: "requires command",
		},
		{
			name: "http mcp server without url",
			mutate: func(c *Config) {
				c.MCPServers = []MCPServerConfig{{Name: "weather", Transport: "http"}}
			},
			wantErr: "requires url",
		},
		{
			name: "unsupported mcp transport",
			mutate: func(c *Config) {
				c.MCPServers = []MCPServerConfig{{Name: "weather", Transport: "grpc"}}
			},
			wantErr: "unsupported transport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
