package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/drorm/vmpilot/pkg/message"
	"github.com/drorm/vmpilot/pkg/orchestrator"
	"github.com/drorm/vmpilot/pkg/stream"
)

// Runner executes one conversation turn and streams its output.
// *orchestrator.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) <-chan stream.Unit
}

// Config holds server configuration
type Config struct {
	Host   string
	Port   int
	Runner Runner
	Logger zerolog.Logger
}

// Server exposes conversation turns over WebSocket. Output units are
// pushed to all connected clients in production order with sequence
// numbers.
type Server struct {
	host        string
	port        int
	runner      Runner
	logger      zerolog.Logger
	server      *http.Server
	upgrader    websocket.Upgrader
	clients     *ClientRegistry
	broadcaster *UnitBroadcaster

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlight       sync.WaitGroup
}

// NewServer creates a gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}

	clients := NewClientRegistry()

	return &Server{
		host:        cfg.Host,
		port:        cfg.Port,
		runner:      cfg.Runner,
		logger:      cfg.Logger,
		clients:     clients,
		broadcaster: NewUnitBroadcaster(clients, cfg.Logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

// Handler returns the HTTP handler serving the gateway endpoints
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start starts the gateway server without blocking
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.Handler(),
	}

	s.logger.Info().Str("host", s.host).Int("port", s.port).Msg("Starting gateway")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server, waiting for in-flight turns
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway")

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	for _, client := range s.clients.GetAll() {
		client.Conn.Close()
	}

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	client := &Client{
		ID:          clientID,
		Conn:        conn,
		ConnectedAt: time.Now(),
		IPAddress:   r.RemoteAddr,
	}
	s.clients.Add(client)

	s.logger.Info().
		Str("clientId", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	go s.handleClient(client)
}

func (s *Server) handleClient(client *Client) {
	defer func() {
		client.Conn.Close()
		s.clients.Remove(client.ID)
		s.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
	}()

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("clientId", client.ID).Msg("WebSocket error")
			}
			return
		}

		var req TurnRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			s.sendError(client, "", fmt.Sprintf("invalid request: %v", err))
			continue
		}
		if req.Content == "" {
			s.sendError(client, req.ID, "content is required")
			continue
		}

		s.inFlight.Add(1)
		go func() {
			defer s.inFlight.Done()
			s.runTurn(req)
		}()
	}
}

// runTurn streams one turn's output units to all connected clients
func (s *Server) runTurn(req TurnRequest) {
	units := s.runner.Run(context.Background(), orchestrator.Request{
		Messages: []message.Message{message.NewText(message.RoleUser, req.Content)},
		ChatID:   req.ChatID,
	})

	for unit := range units {
		s.broadcaster.BroadcastUnit(req.ID, unit)
	}
	s.broadcaster.BroadcastEvent(EventDone, req.ID, "")
}

func (s *Server) sendError(client *Client, requestID, text string) {
	msg := EventMessage{
		Type:      EventError,
		RequestID: requestID,
		Message:   text,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := client.WriteJSON(msg); err != nil {
		s.logger.Warn().Err(err).Str("clientId", client.ID).Msg("Failed to send error")
	}
}
