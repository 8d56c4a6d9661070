package main

import (
	"context"
	"fmt"
	"strings"

	"agentmesh/internal/adapter/discovery"
	"agentmesh/internal/adapter/mcptool"
	"agentmesh/internal/infra/logger"
)

func runAgents() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.Logger.Level = "warn"

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	m, err := buildMesh(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("mesh: %w", err)
	}
	defer m.Close()

	for _, ac := range m.dir.Capabilities(ctx) {
		if ac.Card == nil {
			fmt.Printf("%s (card unavailable)\n", ac.Name)
			continue
		}
		fmt.Printf("%s - %s\n", ac.Name, ac.Card.Description)
		for _, skill := range ac.Card.Skills {
			fmt.Printf("    %s: %s\n", skill.Name, skill.Description)
			if len(skill.Tags) > 0 {
				fmt.Printf("        tags: %s\n", strings.Join(skill.Tags, ", "))
			}
		}
	}
	return nil
}

func runScan() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.Logger.Level = "warn"

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	fmt.Println("Scanning for agentmesh peers...")
	peers, err := discovery.NewMDNS(log).Scan(context.Background())
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		fmt.Println("No peers found.")
		return nil
	}
	for _, p := range peers {
		fmt.Printf("%s at %s\n", p.Name, p.Endpoint)
		for k, v := range p.Metadata {
			fmt.Printf("    %s=%s\n", k, v)
		}
	}
	return nil
}

func runWeatherServer() error {
	srv := mcptool.NewWeatherServer()
	if hasFlag("stdio") {
		return srv.ServeStdio()
	}

	addr := flagValue("addr")
	if addr == "" {
		addr = "127.0.0.1:8710"
	}
	fmt.Printf("Weather MCP server listening on %s\n", addr)
	return srv.ServeHTTP(addr)
}
