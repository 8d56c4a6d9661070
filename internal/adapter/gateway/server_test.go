package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"agentmesh/internal/domain"
	"agentmesh/internal/infra/config"
	"agentmesh/internal/usecase/conversation"
	"agentmesh/internal/usecase/eventbus"
	"agentmesh/internal/usecase/network"
	"agentmesh/internal/usecase/routing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type localClient struct {
	card    *domain.AgentCard
	handler domain.Handler
}

func (c *localClient) Send(ctx context.Context, msg domain.Message) (domain.Message, error) {
	return c.handler.Handle(ctx, msg)
}

func (c *localClient) TestReachable(ctx context.Context) bool { return true }

func (c *localClient) Card(ctx context.Context) (*domain.AgentCard, error) { return c.card, nil }

func echoHandler(prefix string) domain.Handler {
	return domain.HandlerFunc(func(ctx context.Context, msg domain.Message) (domain.Message, error) {
		text, _ := msg.Content.ExtractText()
		return domain.NewAgentReply(msg, domain.TextContent(prefix+text)), nil
	})
}

func startTestServer(t *testing.T) *Server {
	t.Helper()
	logger := testLogger()
	bus := eventbus.New(logger)
	t.Cleanup(bus.Close)

	dir := network.NewDirectory(bus, logger)
	card := &domain.AgentCard{
		Name:        "Echo Agent",
		Description: "echoes queries back",
		Skills: []domain.AgentSkill{
			{Name: "Echo", Tags: []string{"echo", "repeat"}},
		},
	}
	handler := echoHandler("echo: ")
	require.NoError(t, dir.Add("echo", "", &localClient{card: card, handler: handler}))

	router := routing.NewKeywordRouter(logger)
	router.Rebuild(dir.Capabilities(context.Background()))
	dir.OnChange(func() { router.Rebuild(dir.Capabilities(context.Background())) })

	proc := network.NewProcessor(dir, router, bus, nil, logger)
	orch := conversation.NewOrchestrator(dir, bus, logger)

	srv := NewServer(dir, proc, orch, bus, config.GatewayConfig{Addr: "127.0.0.1:0"}, logger)
	srv.HostAgent("echo", card, handler)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	started := make(chan struct{})
	go func() {
		go func() {
			for srv.BoundAddr() == "" {
				time.Sleep(5 * time.Millisecond)
			}
			close(started)
		}()
		_ = srv.Start(ctx)
	}()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("server did not start in time")
	}

	t.Cleanup(func() { srv.Stop(context.Background()) })
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGatewayHealthz(t *testing.T) {
	srv := startTestServer(t)

	resp, err := http.Get("http://" + srv.BoundAddr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		Agents int    `json:"agents"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Agents)
}

func TestGatewayQuery(t *testing.T) {
	srv := startTestServer(t)

	resp := postJSON(t, "http://"+srv.BoundAddr()+"/query", map[string]string{
		"query": "echo hello world",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Response string `json:"response"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "echo: echo hello world", body.Response)
}

func TestGatewayHostedAgentMessage(t *testing.T) {
	srv := startTestServer(t)

	msg := domain.NewUserMessage("ping", "conv-1")
	resp := postJSON(t, "http://"+srv.BoundAddr()+"/agents/echo/a2a", msg)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var reply domain.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	text, ok := reply.Content.ExtractText()
	require.True(t, ok)
	assert.Equal(t, "echo: ping", text)
	assert.Equal(t, msg.ID, reply.ParentID)
}

func TestGatewayAgentCard(t *testing.T) {
	srv := startTestServer(t)

	resp, err := http.Get("http://" + srv.BoundAddr() + "/agents/echo")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var card domain.AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	assert.Equal(t, "Echo Agent", card.Name)
	assert.Equal(t, srv.AgentEndpoint("echo"), card.URL)
}

func TestGatewayUnknownAgent(t *testing.T) {
	srv := startTestServer(t)

	resp, err := http.Get("http://" + srv.BoundAddr() + "/agents/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGatewayConversationLifecycle(t *testing.T) {
	srv := startTestServer(t)

	resp := postJSON(t, "http://"+srv.BoundAddr()+"/conversations", map[string]any{
		"query":    "hello",
		"workflow": []string{"echo", "echo"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var conv conversation.Conversation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conv))
	assert.True(t, conv.Complete)
	assert.Equal(t, "echo: echo: hello", conv.Result)

	// Fetch it back by ID.
	getResp, err := http.Get("http://" + srv.BoundAddr() + "/conversations/" + conv.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestGatewayConversationRejectsUnknownAgent(t *testing.T) {
	srv := startTestServer(t)

	resp := postJSON(t, "http://"+srv.BoundAddr()+"/conversations", map[string]any{
		"query":    "hello",
		"workflow": []string{"echo", "ghost"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func dialWS(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

func TestGatewayWebSocketRPC(t *testing.T) {
	srv := startTestServer(t)
	ws := dialWS(t, srv.BoundAddr())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	payload, _ := json.Marshal(map[string]string{"query": "echo hi"})
	require.NoError(t, wsjson.Write(ctx, ws, Frame{
		Type:    FrameTypeRequest,
		ID:      1,
		Method:  "network.query",
		Payload: payload,
	}))

	// Events may interleave with the response; read until the matching frame.
	for {
		var frame Frame
		require.NoError(t, wsjson.Read(ctx, ws, &frame))
		if frame.Type != FrameTypeResponse || frame.ID != 1 {
			continue
		}
		require.Empty(t, frame.Error)
		var body struct {
			Response string `json:"response"`
		}
		require.NoError(t, json.Unmarshal(frame.Payload, &body))
		assert.Equal(t, "echo: echo hi", body.Response)
		return
	}
}

func TestGatewayWebSocketUnknownMethod(t *testing.T) {
	srv := startTestServer(t)
	ws := dialWS(t, srv.BoundAddr())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	require.NoError(t, wsjson.Write(ctx, ws, Frame{
		Type:   FrameTypeRequest,
		ID:     7,
		Method: "nope",
	}))

	for {
		var frame Frame
		require.NoError(t, wsjson.Read(ctx, ws, &frame))
		if frame.Type != FrameTypeResponse || frame.ID != 7 {
			continue
		}
		assert.Contains(t, frame.Error, "unknown method")
		return
	}
}

func TestGatewayWebSocketEventFeed(t *testing.T) {
	srv := startTestServer(t)
	ws := dialWS(t, srv.BoundAddr())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Trigger a routed query; the bus event should reach the socket.
	resp := postJSON(t, "http://"+srv.BoundAddr()+"/query", map[string]string{
		"query": "echo event test",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for {
		var frame Frame
		require.NoError(t, wsjson.Read(ctx, ws, &frame))
		if frame.Type != FrameTypeEvent {
			continue
		}
		var event domain.Event
		require.NoError(t, json.Unmarshal(frame.Payload, &event))
		if event.Type == domain.EventQueryRouted {
			return
		}
	}
}

func TestGatewayRateLimit(t *testing.T) {
	logger := testLogger()
	bus := eventbus.New(logger)
	t.Cleanup(bus.Close)

	dir := network.NewDirectory(bus, logger)
	router := routing.NewKeywordRouter(logger)
	proc := network.NewProcessor(dir, router, bus, nil, logger)
	orch := conversation.NewOrchestrator(dir, bus, logger)

	srv := NewServer(dir, proc, orch, bus, config.GatewayConfig{
		Addr:           "127.0.0.1:0",
		RequestsPerMin: 60,
		BurstSize:      2,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Start(ctx)
	for srv.BoundAddr() == "" {
		time.Sleep(5 * time.Millisecond)
	}
	t.Cleanup(func() { srv.Stop(context.Background()) })

	url := fmt.Sprintf("http://%s/healthz", srv.BoundAddr())
	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		resp, err := http.Get(url)
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Contains(t, codes, http.StatusTooManyRequests)
}
