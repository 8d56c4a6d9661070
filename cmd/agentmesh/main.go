package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	// Handle help flag first
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "serve: %v\n", err)
			os.Exit(1)
		}
	case "query":
		if err := runQuery(); err != nil {
			fmt.Fprintf(os.Stderr, "query: %v\n", err)
			os.Exit(1)
		}
	case "conversation":
		if err := runConversation(); err != nil {
			fmt.Fprintf(os.Stderr, "conversation: %v\n", err)
			os.Exit(1)
		}
	case "agents":
		if err := runAgents(); err != nil {
			fmt.Fprintf(os.Stderr, "agents: %v\n", err)
			os.Exit(1)
		}
	case "scan":
		if err := runScan(); err != nil {
			fmt.Fprintf(os.Stderr, "scan: %v\n", err)
			os.Exit(1)
		}
	case "mcp-weather":
		if err := runWeatherServer(); err != nil {
			fmt.Fprintf(os.Stderr, "mcp-weather: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'agentmesh --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`agentmesh - Multi-agent network with query routing

USAGE:
    agentmesh [COMMAND] [FLAGS]

COMMANDS:
    serve         Run the full mesh: agents, router, gateway
    query         Route a single query through the mesh and print the answer
    conversation  Run a sequential multi-agent workflow over a query
    agents        List registered agents and their capabilities
    scan          Browse the local network for agentmesh peers (mDNS)
    mcp-weather   Run the demo weather MCP server (stdio or HTTP)

    (no command) - Same as 'serve'

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./config.yaml)
    --router NAME      Routing strategy: keyword or ai (overrides config)
    --agent NAME       Send the query to a specific agent, skipping the router
    --workflow LIST    Comma-separated agent names for 'conversation'
    --addr ADDR        Listen address for 'mcp-weather' HTTP mode
    --stdio            Serve 'mcp-weather' over stdio instead of HTTP

CONFIGURATION:
    Config file: ./config.yaml (optional; built-in defaults apply without it)

EXAMPLES:
    agentmesh serve                              # Run the mesh on 127.0.0.1:8700
    agentmesh query "what is the weather in Paris"
    agentmesh query --agent math "25 * 4"
    agentmesh query --router ai "plan a trip to London"
    agentmesh conversation --workflow weather,travel "3 day trip to Paris"
    agentmesh scan                               # Find peers on the LAN
    agentmesh mcp-weather --stdio                # Weather tools over stdio`)
}

// configPath checks --config in os.Args, then the environment, then falls
// back to ./config.yaml.
func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("AGENTMESH_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// flagValue extracts a --name VALUE or --name=VALUE flag from os.Args.
func flagValue(name string) string {
	long := "--" + name
	for i, arg := range os.Args {
		if arg == long && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, long+"=") {
			return strings.TrimPrefix(arg, long+"=")
		}
	}
	return ""
}

func hasFlag(name string) bool {
	long := "--" + name
	for _, arg := range os.Args {
		if arg == long {
			return true
		}
	}
	return false
}

// positionalArgs returns everything after the command that is not a flag or
// a flag value.
func positionalArgs() []string {
	valueFlags := map[string]bool{
		"--config": true, "--router": true, "--agent": true,
		"--workflow": true, "--addr": true,
	}

	var out []string
	for i := 2; i < len(os.Args); i++ {
		arg := os.Args[i]
		if strings.HasPrefix(arg, "-") {
			if valueFlags[arg] {
				i++
			}
			continue
		}
		out = append(out, arg)
	}
	return out
}
