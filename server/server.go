// Package server implements the task ledger HTTP server: REST API, JWT
// identity, and SSE event streaming.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GoCodeAlone/taskledger/comms"
	"github.com/GoCodeAlone/taskledger/config"
	"github.com/GoCodeAlone/taskledger/server/api"
	"github.com/GoCodeAlone/taskledger/server/ws"
	"github.com/GoCodeAlone/taskledger/task"
)

// Server is the task ledger HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	ledger   api.TaskLedger
	bus      comms.Bus
	hub      *ws.Hub
	handlers *api.Handlers

	// API key hashes by owner
	keys map[task.Owner]string

	routesOnce sync.Once

	// JWT secret caching
	secretOnce      sync.Once
	generatedSecret string

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and logger.
func New(cfg config.Config, ver string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		keys:      make(map[task.Owner]string, len(cfg.Auth.Keys)),
		startTime: time.Now(),
		version:   ver,
	}
	for _, k := range cfg.Auth.Keys {
		owner, err := task.ParseOwner(k.Owner)
		if err != nil {
			logger.Warn("skipping api key with invalid owner", slog.String("owner", k.Owner))
			continue
		}
		s.keys[owner] = k.KeyHash
	}
	return s
}

// SetLedger attaches the task ledger to the server.
func (s *Server) SetLedger(l api.TaskLedger) {
	s.ledger = l
}

// SetBus attaches an event bus to the server.
func (s *Server) SetBus(bus comms.Bus) {
	s.bus = bus
}

// SetHub attaches the SSE hub serving GET /events.
func (s *Server) SetHub(hub *ws.Hub) {
	s.hub = hub
}

// Handler returns the fully routed HTTP handler. Setters must be called
// first.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.registerRoutes)
	return s.mux
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":9090"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Uptime reports how long ago the server was created.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	h := &api.Handlers{
		Tasks:   s.ledger,
		Bus:     s.bus,
		Logger:  s.logger,
		Version: s.version,
	}
	s.handlers = h

	// Public routes (no auth required)
	s.mux.HandleFunc("POST /api/auth/token", s.handleToken)
	s.mux.HandleFunc("GET /api/status", h.StatusHandler())
	s.mux.HandleFunc("GET /api/version", h.VersionHandler())

	// SSE: auth via query param because EventSource can't set headers
	s.mux.HandleFunc("GET /events", s.handleSSE)

	// Protected API
	apiMux := http.NewServeMux()
	h.RegisterRoutes(apiMux)
	apiMux.HandleFunc("GET /api/auth/me", s.handleMe)

	s.mux.Handle("/api/", s.authMiddleware(apiMux))
}

// handleSSE streams the token holder's events.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	owner, err := s.verifyToken(r.URL.Query().Get("token"))
	if err != nil {
		api.WriteError(w, http.StatusUnauthorized, api.CodeUnauthorized, "invalid token: "+err.Error())
		return
	}
	if s.hub == nil {
		api.WriteError(w, http.StatusServiceUnavailable, api.CodeInternal, "event stream not configured")
		return
	}
	s.hub.ServeSSE(w, r, owner.String())
}
