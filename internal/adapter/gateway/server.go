// Package gateway exposes the mesh over HTTP and WebSocket: hosted agent
// endpoints, query and conversation APIs, and an event feed.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"agentmesh/internal/domain"
	"agentmesh/internal/infra/config"
	"agentmesh/internal/infra/middleware"
	"agentmesh/internal/usecase/conversation"
	"agentmesh/internal/usecase/network"
)

// RPCHandler handles a single RPC method call.
type RPCHandler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// clientConn tracks a single WebSocket connection.
type clientConn struct {
	ws        *websocket.Conn
	sendCh    chan Frame // buffered outbound queue
	done      chan struct{}
	closeOnce sync.Once
}

type hostedAgent struct {
	card    *domain.AgentCard
	handler domain.Handler
}

// Server hosts local agents and exposes the mesh's query and conversation
// operations over HTTP, plus an RPC/event channel over WebSocket.
type Server struct {
	dir    *network.Directory
	proc   *network.Processor
	orch   *conversation.Orchestrator
	bus    domain.EventBus
	cfg    config.GatewayConfig
	logger *slog.Logger

	agentsMu sync.RWMutex
	agents   map[string]hostedAgent

	handlersMu sync.RWMutex
	handlers   map[string]RPCHandler

	clients   sync.Map // connID (uint64) -> *clientConn
	nextID    atomic.Uint64
	httpSrv   *http.Server
	boundAddr string
	unsubAll  func()
}

// NewServer creates a gateway server and registers the built-in RPC methods.
func NewServer(dir *network.Directory, proc *network.Processor, orch *conversation.Orchestrator, bus domain.EventBus, cfg config.GatewayConfig, logger *slog.Logger) *Server {
	s := &Server{
		dir:      dir,
		proc:     proc,
		orch:     orch,
		bus:      bus,
		cfg:      cfg,
		logger:   logger,
		agents:   make(map[string]hostedAgent),
		handlers: make(map[string]RPCHandler),
	}
	s.registerBuiltins()
	return s
}

// HostAgent serves handler at /agents/<name>/a2a with its card at
// /agents/<name>. Hosting is registration with the HTTP surface only; the
// caller still adds the agent to the directory.
func (s *Server) HostAgent(name string, card *domain.AgentCard, handler domain.Handler) {
	s.agentsMu.Lock()
	s.agents[name] = hostedAgent{card: card, handler: handler}
	s.agentsMu.Unlock()
}

// AgentEndpoint returns the URL a hosted agent is reachable at. Only valid
// after Start.
func (s *Server) AgentEndpoint(name string) string {
	return fmt.Sprintf("http://%s/agents/%s", s.boundAddr, name)
}

// RegisterHandler adds an RPC handler for the given method name.
// Safe to call concurrently with active connections.
func (s *Server) RegisterHandler(method string, handler RPCHandler) {
	s.handlersMu.Lock()
	s.handlers[method] = handler
	s.handlersMu.Unlock()
}

// Start begins serving. Blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /conversations", s.handleStartConversation)
	mux.HandleFunc("GET /conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("GET /agents", s.handleListAgents)
	mux.HandleFunc("GET /agents/{name}", s.handleAgentCard)
	mux.HandleFunc("POST /agents/{name}/a2a", s.handleAgentMessage)
	mux.HandleFunc("/ws", s.handleUpgrade)

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()

	limit := middleware.RateLimit(ctx, s.cfg.RequestsPerMin, s.cfg.BurstSize)
	s.httpSrv = &http.Server{Handler: limit(mux)}

	// Forward every bus event to connected WebSocket clients.
	s.unsubAll = s.bus.SubscribeAll(func(_ context.Context, event domain.Event) {
		payload, err := json.Marshal(event)
		if err != nil {
			return
		}
		frame := Frame{Type: FrameTypeEvent, Payload: payload}
		s.clients.Range(func(_, value any) bool {
			cc := value.(*clientConn)
			select {
			case cc.sendCh <- frame:
			default:
				s.logger.Warn("gateway: dropped event for slow client")
			}
			return true
		})
	})

	s.logger.Info("gateway started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the gateway server.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsubAll != nil {
		s.unsubAll()
	}

	s.clients.Range(func(key, value any) bool {
		cc := value.(*clientConn)
		cc.closeOnce.Do(func() { close(cc.done) })
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.clients.Delete(key)
		return true
	})

	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// BoundAddr returns the actual address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }

// --- HTTP handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"agents": s.dir.Len(),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Agent string `json:"agent,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	response := s.proc.Process(r.Context(), req.Query, req.Agent)
	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query    string   `json:"query"`
		Workflow []string `json:"workflow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	id, err := s.orch.Start(r.Context(), req.Query, req.Workflow)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrAgentNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	conv, _ := s.orch.Snapshot(id)
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.orch.Snapshot(r.PathValue("id"))
	if !ok {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dir.Statuses(r.Context()))
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.agentsMu.RLock()
	hosted, ok := s.agents[name]
	s.agentsMu.RUnlock()
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	card := *hosted.card
	card.URL = s.AgentEndpoint(name)
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleAgentMessage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.agentsMu.RLock()
	hosted, ok := s.agents[name]
	s.agentsMu.RUnlock()
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	var msg domain.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	reply, err := hosted.handler.Handle(r.Context(), msg)
	if err != nil {
		s.logger.Error("hosted agent failed", "agent", name, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// --- WebSocket ---

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	connID := s.nextID.Add(1)
	cc := &clientConn{
		ws:     ws,
		sendCh: make(chan Frame, 64),
		done:   make(chan struct{}),
	}
	s.clients.Store(connID, cc)

	s.logger.Info("gateway client connected", "conn_id", connID)

	go s.writeLoop(cc)
	s.readLoop(r.Context(), cc)

	cc.closeOnce.Do(func() { close(cc.done) })
	s.clients.Delete(connID)
	ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("gateway client disconnected", "conn_id", connID)
}

func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		default:
		}

		var frame Frame
		if err := wsjson.Read(ctx, cc.ws, &frame); err != nil {
			return
		}
		if frame.Type != FrameTypeRequest {
			continue
		}
		go s.dispatchRPC(ctx, cc, frame)
	}
}

func (s *Server) writeLoop(cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case frame := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(ctx, cc.ws, frame)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) dispatchRPC(ctx context.Context, cc *clientConn, req Frame) {
	s.handlersMu.RLock()
	handler, ok := s.handlers[req.Method]
	s.handlersMu.RUnlock()
	if !ok {
		s.sendResponse(cc, req.ID, nil, fmt.Errorf("unknown method %q", req.Method))
		return
	}

	result, err := handler(ctx, req.Payload)
	s.sendResponse(cc, req.ID, result, err)
}

func (s *Server) sendResponse(cc *clientConn, id uint64, result json.RawMessage, err error) {
	resp := Frame{
		Type:    FrameTypeResponse,
		ID:      id,
		Payload: result,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	select {
	case cc.sendCh <- resp:
	default:
		s.logger.Warn("gateway: dropped RPC response for slow client", "frame_id", id)
	}
}

// --- Built-in RPC methods ---

func (s *Server) registerBuiltins() {
	s.RegisterHandler("network.query", func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req struct {
			Query string `json:"query"`
			Agent string `json:"agent,omitempty"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
		response := s.proc.Process(ctx, req.Query, req.Agent)
		return json.Marshal(map[string]string{"response": response})
	})

	s.RegisterHandler("conversation.start", func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req struct {
			Query    string   `json:"query"`
			Workflow []string `json:"workflow"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
		id, err := s.orch.Start(ctx, req.Query, req.Workflow)
		if err != nil {
			return nil, err
		}
		conv, _ := s.orch.Snapshot(id)
		return json.Marshal(conv)
	})

	s.RegisterHandler("conversation.get", func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
		conv, ok := s.orch.Snapshot(req.ID)
		if !ok {
			return nil, domain.NewDomainError("gateway.conversation.get", domain.ErrConversationNotFound, req.ID)
		}
		return json.Marshal(conv)
	})

	s.RegisterHandler("agents.list", func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(s.dir.Statuses(ctx))
	})
}
