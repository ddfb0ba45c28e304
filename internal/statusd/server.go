// Package statusd provides the local HTTP and WebSocket surface of the
// sync daemon.
//
// Clients poll GET /api/status or subscribe on /ws for live status
// transitions, trigger drains with POST /api/sync, and read and write
// logs through /api/logs. Log routes authenticate with a Firebase
// bearer token when a verifier is configured.
package statusd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/faceyourself/faceyourself/internal/auth"
	"github.com/faceyourself/faceyourself/internal/connectivity"
	"github.com/faceyourself/faceyourself/internal/engine"
	"github.com/faceyourself/faceyourself/internal/logs"
)

// Message is a WebSocket status broadcast.
type Message struct {
	Type      string        `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Status    engine.Status `json:"status"`
	Online    bool          `json:"online"`
	Pending   int           `json:"pending"`
}

// TokenVerifier validates bearer tokens. Satisfied by auth.FirebaseVerifier.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*auth.User, error)
}

// Config holds server configuration.
type Config struct {
	// Addr to listen on (default: localhost:7450).
	Addr string

	// Verifier validates bearer tokens on log routes. When nil,
	// requests run as DefaultUser instead.
	Verifier TokenVerifier

	// DefaultUser is the identity applied when no verifier is
	// configured, for single-user local deployments.
	DefaultUser *auth.User

	// Logger for server activity (default: stderr logger).
	Logger *log.Logger
}

// Server manages the HTTP listener and WebSocket status broadcasts.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	engine  *engine.Engine
	monitor *connectivity.Monitor
	repo    *logs.Repository

	verifier    TokenVerifier
	defaultUser *auth.User

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewServer creates a status server.
func NewServer(e *engine.Engine, monitor *connectivity.Monitor, repo *logs.Repository, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:7450"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:        addr,
		engine:      e,
		monitor:     monitor,
		repo:        repo,
		verifier:    cfg.Verifier,
		defaultUser: cfg.DefaultUser,
		clients:     make(map[*websocket.Conn]bool),
		broadcast:   make(chan Message, 100),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Start begins listening and subscribes to engine status transitions.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go s.statusLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Status server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.logger.Println("Stopping status server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()

	s.logger.Println("Status server stopped")
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// statusMessage snapshots the engine for broadcast or the status route.
func (s *Server) statusMessage(status engine.Status) Message {
	return Message{
		Type:      "status",
		Timestamp: time.Now(),
		Status:    status,
		Online:    s.monitor.Online(),
		Pending:   s.engine.Pending(),
	}
}

// statusLoop forwards engine status transitions to connected clients.
func (s *Server) statusLoop() {
	defer s.wg.Done()

	ch, cancel := s.engine.Subscribe()
	defer cancel()

	for {
		select {
		case <-s.ctx.Done():
			return
		case status := <-ch:
			select {
			case s.broadcast <- s.statusMessage(status):
			default:
				s.logger.Println("Warning: broadcast channel full, dropping message")
			}
		}
	}
}

// broadcastLoop sends queued messages to all connected clients.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	// Send the current status so clients need not wait for a transition.
	welcome, _ := json.Marshal(s.statusMessage(s.engine.Status()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, welcome)
	cancel()

	go s.readLoop(conn)
}

// readLoop keeps the connection alive and handles client disconnects.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
		// Client messages are not processed.
	}
}

// removeClient safely removes a client connection.
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}
