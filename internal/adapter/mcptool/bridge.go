package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"agentmesh/internal/domain"
	"agentmesh/internal/infra/config"
)

// toolCallTimeout bounds each remote tool execution.
const toolCallTimeout = 30 * time.Second

// Bridge connects to configured MCP servers and exposes their discovered
// tools to agents through CallTool. Arguments are validated against each
// tool's input schema before the call goes out.
type Bridge struct {
	servers []serverConn
	logger  *slog.Logger

	mu    sync.RWMutex
	tools map[string]toolRef
}

type serverConn struct {
	name   string
	client rpcClient
}

type toolRef struct {
	server string
	client rpcClient
	tool   mcp.Tool
	schema *argSchema
}

// rpcClient abstracts the MCP client for testability.
type rpcClient interface {
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// NewBridge connects to every configured server and discovers its tools.
// Discovery failures on individual servers are logged and skipped; the
// bridge errors only when every server fails.
func NewBridge(ctx context.Context, servers []config.MCPServerConfig, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{
		logger: logger,
		tools:  make(map[string]toolRef),
	}

	for _, srv := range servers {
		conn, err := b.connect(ctx, srv)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("mcp server %q: %w", srv.Name, err)
		}
		b.servers = append(b.servers, *conn)
	}

	if err := b.discover(ctx); err != nil {
		b.Close()
		return nil, fmt.Errorf("discover tools: %w", err)
	}
	return b, nil
}

// newBridgeWithClients builds a Bridge from pre-built clients (for testing).
func newBridgeWithClients(ctx context.Context, servers []serverConn, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{
		servers: servers,
		logger:  logger,
		tools:   make(map[string]toolRef),
	}
	if err := b.discover(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bridge) connect(ctx context.Context, srv config.MCPServerConfig) (*serverConn, error) {
	var c rpcClient
	var err error

	switch srv.Transport {
	case "stdio":
		c, err = mcpclient.NewStdioMCPClient(srv.Command, nil, srv.Args...)
		if err != nil {
			return nil, fmt.Errorf("create stdio client: %w", err)
		}
	case "http":
		t, tErr := transport.NewStreamableHTTP(srv.URL)
		if tErr != nil {
			return nil, fmt.Errorf("create http transport: %w", tErr)
		}
		httpClient := mcpclient.NewClient(t)
		if err = httpClient.Start(ctx); err != nil {
			return nil, fmt.Errorf("start http client: %w", err)
		}
		c = httpClient
	default:
		return nil, fmt.Errorf("unsupported transport %q", srv.Transport)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "agentmesh",
		Version: "1.0.0",
	}

	if ic, ok := c.(interface {
		Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	}); ok {
		if _, err = ic.Initialize(ctx, initReq); err != nil {
			c.Close()
			return nil, domain.WrapOp("initialize", err)
		}
	}

	b.logger.Info("mcp server connected", "name", srv.Name, "transport", srv.Transport)
	return &serverConn{name: srv.Name, client: c}, nil
}

func (b *Bridge) discover(ctx context.Context) error {
	var errs []string
	successCount := 0

	for _, srv := range b.servers {
		result, err := srv.client.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			b.logger.Warn("mcp server discovery failed, skipping",
				"server", srv.name,
				"error", err,
			)
			errs = append(errs, fmt.Sprintf("%s: %v", srv.name, err))
			continue
		}

		for _, t := range result.Tools {
			schema, err := compileArgSchema(t)
			if err != nil {
				b.logger.Warn("mcp tool schema rejected, skipping tool",
					"server", srv.name,
					"tool", t.Name,
					"error", err,
				)
				continue
			}
			b.tools[t.Name] = toolRef{
				server: srv.name,
				client: srv.client,
				tool:   t,
				schema: schema,
			}
			b.logger.Debug("mcp tool discovered", "server", srv.name, "tool", t.Name)
		}

		b.logger.Info("mcp tools discovered", "server", srv.name, "count", len(result.Tools))
		successCount++
	}

	if successCount == 0 && len(errs) > 0 {
		return fmt.Errorf("all mcp servers failed discovery: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ToolNames lists the discovered tools.
func (b *Bridge) ToolNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.tools))
	for name := range b.tools {
		names = append(names, name)
	}
	return names
}

// CallTool validates args against the tool's input schema and invokes it.
// The tool's text output is returned verbatim; tool-reported errors come
// back as ErrToolFailure.
func (b *Bridge) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	b.mu.RLock()
	ref, ok := b.tools[name]
	b.mu.RUnlock()
	if !ok {
		return "", domain.NewDomainError("Bridge.CallTool", domain.ErrToolNotFound, name)
	}

	if err := ref.schema.validate(args); err != nil {
		return "", domain.NewDomainError("Bridge.CallTool", domain.ErrInvalidInput,
			fmt.Sprintf("%s: %v", name, err))
	}

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = ref.tool.Name
	callReq.Params.Arguments = args

	callCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
	defer cancel()

	result, err := ref.client.CallTool(callCtx, callReq)
	if err != nil {
		return "", domain.NewDomainError("Bridge.CallTool", domain.ErrToolFailure,
			fmt.Sprintf("%s: %v", name, err))
	}

	text := extractContent(result)
	if result.IsError {
		return "", domain.NewDomainError("Bridge.CallTool", domain.ErrToolFailure,
			fmt.Sprintf("%s: %s", name, text))
	}
	return text, nil
}

// Close shuts down all server connections.
func (b *Bridge) Close() {
	for _, srv := range b.servers {
		if err := srv.client.Close(); err != nil {
			b.logger.Warn("mcp server close error", "server", srv.name, "error", err)
		}
	}
}

// extractContent flattens a CallToolResult to text. Non-text content is
// rendered as JSON.
func extractContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}
