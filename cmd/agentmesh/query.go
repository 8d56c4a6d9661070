package main

import (
	"context"
	"fmt"
	"strings"

	"agentmesh/internal/infra/logger"
)

func runQuery() error {
	args := positionalArgs()
	if len(args) == 0 {
		return fmt.Errorf("usage: agentmesh query [--agent NAME] [--router keyword|ai] \"your question\"")
	}
	query := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	// One-shot commands keep the log out of the answer.
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

	response := m.proc.Process(ctx, query, flagValue("agent"))
	fmt.Println(response)
	return nil
}
