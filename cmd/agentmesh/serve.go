package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"agentmesh/internal/adapter/discovery"
	"agentmesh/internal/infra/config"
	"agentmesh/internal/infra/logger"
	"agentmesh/internal/infra/tracer"
)

// loadConfig resolves the effective configuration for a command. A missing
// config file at the default path is not an error; the built-in defaults
// carry a fully working demonstration mesh.
func loadConfig() (config.Config, error) {
	path := configPath()
	if _, err := os.Stat(path); os.IsNotExist(err) && flagValue("config") == "" {
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if router := flagValue("router"); router != "" {
		cfg.Network.Router = router
	}
	return cfg, nil
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	m, err := buildMesh(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("mesh: %w", err)
	}
	defer m.Close()

	if m.monitor != nil {
		if err := m.monitor.Start(ctx); err != nil {
			return fmt.Errorf("health monitor: %w", err)
		}
	}

	if cfg.Discovery.MDNS {
		go advertiseMDNS(ctx, cfg, log)
	}

	log.Info("agentmesh starting",
		"router", cfg.Network.Router,
		"agents", m.dir.Len(),
		"addr", cfg.Gateway.Addr,
		"audit", m.auditLog != nil,
		"mcp", m.bridge != nil,
	)

	return m.gateway.Start(ctx)
}

// advertiseMDNS announces the gateway on the local network. Advertising is
// best effort; a failure never takes the mesh down.
func advertiseMDNS(ctx context.Context, cfg config.Config, log *slog.Logger) {
	_, portStr, err := net.SplitHostPort(cfg.Gateway.Addr)
	if err != nil {
		log.Warn("mdns disabled, cannot parse gateway addr", "addr", cfg.Gateway.Addr, "error", err)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		log.Warn("mdns disabled, gateway port not fixed", "addr", cfg.Gateway.Addr)
		return
	}

	mdns := discovery.NewMDNS(log)
	meta := map[string]string{"router": cfg.Network.Router}
	if err := mdns.Advertise(ctx, "agentmesh", port, meta); err != nil {
		log.Warn("mdns advertise failed", "error", err)
	}
}
