package agentclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentmesh/internal/domain"
	"agentmesh/internal/infra/config"
)

func echoAgent(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /a2a", func(w http.ResponseWriter, r *http.Request) {
		var msg domain.Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		text, _ := msg.Content.ExtractText()
		reply := domain.NewAgentReply(msg, domain.TextContent("echo: "+text))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	})
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(domain.AgentCard{Name: "echo", Description: "echoes input"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClientSend(t *testing.T) {
	srv := echoAgent(t)
	client := NewHTTPClient("echo", srv.URL)

	msg := domain.NewUserMessage("hello", "conv-1")
	resp, err := client.Send(context.Background(), msg)
	require.NoError(t, err)

	text, ok := resp.Content.ExtractText()
	require.True(t, ok)
	assert.Equal(t, "echo: hello", text)
	assert.Equal(t, msg.ID, resp.ParentID)
	assert.Equal(t, "conv-1", resp.ConversationID)
}

func TestHTTPClientSendTransportError(t *testing.T) {
	srv := echoAgent(t)
	srv.Close()

	client := NewHTTPClient("echo", srv.URL, WithTimeout(500*time.Millisecond))
	_, err := client.Send(context.Background(), domain.NewUserMessage("hi", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestHTTPClientSendNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient("broken", srv.URL)
	_, err := client.Send(context.Background(), domain.NewUserMessage("hi", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestHTTPClientSendMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewHTTPClient("garbled", srv.URL)
	_, err := client.Send(context.Background(), domain.NewUserMessage("hi", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidResponse)
}

func TestHTTPClientTestReachable(t *testing.T) {
	srv := echoAgent(t)
	client := NewHTTPClient("echo", srv.URL)
	assert.True(t, client.TestReachable(context.Background()))

	srv.Close()
	assert.False(t, client.TestReachable(context.Background()))
}

func TestHTTPClientCard(t *testing.T) {
	srv := echoAgent(t)
	client := NewHTTPClient("echo", srv.URL)

	card, err := client.Card(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "echo", card.Name)
	assert.Equal(t, "echoes input", card.Description)
}

type flakyClient struct {
	fail  bool
	calls int
}

func (c *flakyClient) Send(ctx context.Context, msg domain.Message) (domain.Message, error) {
	c.calls++
	if c.fail {
		return domain.Message{}, errors.New("agent down")
	}
	return domain.NewAgentReply(msg, domain.TextContent("ok")), nil
}

func (c *flakyClient) TestReachable(ctx context.Context) bool { return !c.fail }

func (c *flakyClient) Card(ctx context.Context) (*domain.AgentCard, error) {
	return &domain.AgentCard{Name: "flaky"}, nil
}

func TestBreakerClientOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyClient{fail: true}
	cb := NewBreakerClient("flaky", inner, config.BreakerConfig{
		MaxFailures: 3,
		Timeout:     time.Minute,
	}, nil)

	for i := 0; i < 3; i++ {
		_, err := cb.Send(context.Background(), domain.Message{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "agent down")
	}
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	// Open circuit fails fast without touching the agent.
	_, err := cb.Send(context.Background(), domain.Message{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerClientRecoversThroughHalfOpen(t *testing.T) {
	inner := &flakyClient{fail: true}
	cb := NewBreakerClient("flaky", inner, config.BreakerConfig{
		MaxFailures: 2,
		Timeout:     50 * time.Millisecond,
	}, nil)

	for i := 0; i < 2; i++ {
		cb.Send(context.Background(), domain.Message{})
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

	inner.fail = false
	resp, err := cb.Send(context.Background(), domain.NewUserMessage("hi", ""))
	require.NoError(t, err)
	text, _ := resp.Content.ExtractText()
	assert.Equal(t, "ok", text)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestBreakerClientProbesBypassBreaker(t *testing.T) {
	inner := &flakyClient{fail: true}
	cb := NewBreakerClient("flaky", inner, config.BreakerConfig{MaxFailures: 1}, nil)

	cb.Send(context.Background(), domain.Message{})
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	// Probes still reach the agent while the circuit is open.
	inner.fail = false
	assert.True(t, cb.TestReachable(context.Background()))
}

func TestLocalClient(t *testing.T) {
	card := &domain.AgentCard{Name: "local"}
	client := NewLocalClient(card, domain.HandlerFunc(func(ctx context.Context, msg domain.Message) (domain.Message, error) {
		return domain.NewAgentReply(msg, domain.TextContent("handled")), nil
	}))

	resp, err := client.Send(context.Background(), domain.NewUserMessage("hi", ""))
	require.NoError(t, err)
	text, _ := resp.Content.ExtractText()
	assert.Equal(t, "handled", text)

	assert.True(t, client.TestReachable(context.Background()))
	got, err := client.Card(context.Background())
	require.NoError(t, err)
	assert.Same(t, card, got)
}
