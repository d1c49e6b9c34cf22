package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/chaintiles/internal/config"
	"github.com/lawnchairsociety/chaintiles/internal/game"
	"github.com/lawnchairsociety/chaintiles/internal/gametime"
	"github.com/lawnchairsociety/chaintiles/internal/logger"
)

// SessionFactory builds the game session for a new connection. Steps of its
// resolution cycle must go through sched.
type SessionFactory func(sched gametime.Scheduler) (*game.Session, error)

// Option configures a Server
type Option func(*Server)

// WithSessionFactory replaces the default board setup, mainly for tests
func WithSessionFactory(f SessionFactory) Option {
	return func(s *Server) { s.newSession = f }
}

// Server hosts one game session per WebSocket connection.
type Server struct {
	cfg          *config.ServerConfig
	connLimiter  *ConnLimiter
	violations   *ViolationLimiter
	newSession   SessionFactory
	upgrader     websocket.Upgrader
	conns        map[string]*gameConn
	mu           sync.RWMutex
	wg           sync.WaitGroup
	httpServer   *http.Server
	shutdown     chan struct{}
	shutdownOnce sync.Once
	StartTime    time.Time
}

// NewServer creates a server. A nil cfg means config.DefaultConfig().
func NewServer(cfg *config.ServerConfig, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s := &Server{
		cfg:         cfg,
		connLimiter: NewConnLimiter(cfg.Connections),
		violations:  NewViolationLimiter(cfg.RateLimit),
		conns:       make(map[string]*gameConn),
		shutdown:    make(chan struct{}),
		StartTime:   time.Now(),
	}
	s.newSession = func(sched gametime.Scheduler) (*game.Session, error) {
		return game.NewSession(cfg.Game, sched)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the server configuration
func (s *Server) Config() *config.ServerConfig {
	return s.cfg
}

// Handler returns the HTTP routes: the game socket and a health probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocketUpgrade)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// StartWebSocket serves Handler on address until Shutdown.
func (s *Server) StartWebSocket(address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	logger.Info("WebSocket server listening", "address", address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ActiveSessions returns the number of connected players
func (s *Server) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// GetUptime returns how long the server has been running
func (s *Server) GetUptime() time.Duration {
	return time.Since(s.StartTime)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.ActiveSessions(),
		"uptime":   s.GetUptime().Round(time.Second).String(),
	})
}

// handleWebSocketUpgrade upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.shutdown:
		http.Error(w, "Server is shutting down.", http.StatusServiceUnavailable)
		return
	default:
	}

	clientIP := getRealIP(r, s.cfg.Connections.TrustProxy)

	if locked, remaining := s.violations.IsLocked(clientIP); locked {
		logger.Warning("WebSocket connection rejected - IP locked out",
			"client_ip", clientIP,
			"remaining", remaining.Round(time.Second).String())
		http.Error(w, "Too many protocol violations. Please try again later.", http.StatusTooManyRequests)
		return
	}

	if !s.connLimiter.TryAcquire(clientIP) {
		logger.Warning("WebSocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", clientIP)
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", "error", err)
		s.connLimiter.Release(clientIP)
		return
	}

	s.wg.Add(1)
	go s.handleWebSocketConnection(wsConn, clientIP)
}

// handleWebSocketConnection plays one game session over wsConn.
func (s *Server) handleWebSocketConnection(wsConn *websocket.Conn, clientIP string) {
	defer s.wg.Done()
	defer s.connLimiter.Release(clientIP)

	client := NewWebSocketClient(wsConn, s.cfg.WebSocket.MaxMessageSize)
	defer client.Close()

	sched := gametime.NewTimerScheduler()
	defer sched.Stop()

	session, err := s.newSession(sched)
	if err != nil {
		logger.Error("Failed to create session", "client_ip", clientIP, "error", err)
		client.WriteJSON(errorMessage("could not start a game"))
		return
	}
	defer session.Close()

	gc := newGameConn(s, client, clientIP, session)
	if !s.register(gc) {
		return
	}
	defer s.unregister(gc)

	logger.Always("Session opened", "session", session.ID(), "client_ip", clientIP)
	gc.run()
	logger.Always("Session closed", "session", session.ID(), "client_ip", clientIP,
		"dropped", gc.limiter.Dropped())
}

func (s *Server) register(gc *gameConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.shutdown:
		return false
	default:
	}
	s.conns[gc.session.ID()] = gc
	return true
}

func (s *Server) unregister(gc *gameConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, gc.session.ID())
}

// getRealIP returns the client address. Proxy headers are honoured only
// when trustProxy is set; X-Forwarded-For wins over X-Real-IP.
func getRealIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// "client, proxy1, proxy2": the first entry is the client
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	return extractIP(r.RemoteAddr)
}

// Shutdown closes every connection and stops the HTTP listener.
// Safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		s.violations.Stop()

		s.mu.Lock()
		srv := s.httpServer
		conns := make([]*gameConn, 0, len(s.conns))
		for _, gc := range s.conns {
			conns = append(conns, gc)
		}
		s.mu.Unlock()

		for _, gc := range conns {
			gc.client.Close()
		}

		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("HTTP server shutdown failed", "error", err)
			}
		}

		s.wg.Wait()
		logger.Info("Server shutdown complete", "sessions_closed", len(conns))
	})
}
