package main

import (
	"context"
	"fmt"
	"strings"

	"agentmesh/internal/infra/logger"
)

func runConversation() error {
	args := positionalArgs()
	workflowFlag := flagValue("workflow")
	if len(args) == 0 || workflowFlag == "" {
		return fmt.Errorf("usage: agentmesh conversation --workflow agent1,agent2 \"your question\"")
	}
	query := strings.Join(args, " ")

	var workflow []string
	for _, name := range strings.Split(workflowFlag, ",") {
		if name = strings.TrimSpace(name); name != "" {
			workflow = append(workflow, name)
		}
	}

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

	id, err := m.orch.Start(ctx, query, workflow)
	if err != nil {
		return err
	}

	conv, ok := m.orch.Snapshot(id)
	if !ok {
		return fmt.Errorf("conversation %s not found", id)
	}

	fmt.Printf("Conversation %s (workflow: %s)\n\n", conv.ID, strings.Join(conv.Workflow, " -> "))
	for _, entry := range conv.Transcript {
		fmt.Printf("[%s]\n%s\n\n", entry.Role, entry.Content)
	}
	if conv.Complete {
		fmt.Printf("Final result:\n%s\n", conv.Result)
	}
	return nil
}
