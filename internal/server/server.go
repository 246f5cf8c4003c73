package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/filipexyz/orchestrator/internal/config"
	"github.com/filipexyz/orchestrator/internal/db"
	"github.com/filipexyz/orchestrator/internal/hub"
	"github.com/filipexyz/orchestrator/internal/middleware"
	"github.com/filipexyz/orchestrator/internal/proxybridge"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Server is the HTTP server fronting one process's worth of per-user
// Hubs: the WebSocket upgrade endpoint (internal/hub.Acceptor), the
// HTTP/WS proxy surface (internal/proxybridge.Bridge), and the small
// dashboard-facing RPC read surface.
type Server struct {
	cfg         *config.Config
	db          *pgxpool.Pool
	manager     *hub.Manager
	acceptor    *hub.Acceptor
	bridge      *proxybridge.Bridge
	sessions    *middleware.SessionVerifier
	rateLimiter *middleware.RateLimiter
	server      *http.Server

	sweepCancel context.CancelFunc
}

// New wires a Server for the given config and database pool: a Manager
// of per-user Hubs, the Acceptor that classifies and routes inbound
// WebSocket upgrades, the Proxy Bridge serving the HTTP/WS external
// surface, and the session verifier and rate limiter guarding the
// non-client-token HTTP routes.
func New(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*Server, error) {
	queries := db.New(pool)

	sessions, err := middleware.NewSessionVerifier(cfg, queries)
	if err != nil {
		return nil, err
	}

	manager := hub.NewManager(cfg, log)
	acceptor := hub.NewAcceptor(queries, sessions, manager, cfg, log)
	bridge := proxybridge.NewBridge(cfg.ProxyTimeout, log)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RatePerSecond:   cfg.ConnRatePerSecond,
		Burst:           cfg.ConnRateBurst,
		CleanupInterval: cfg.HibernateAfter,
		MaxAge:          cfg.HibernateAfter * 10,
	})

	s := &Server{
		cfg:         cfg,
		db:          pool,
		manager:     manager,
		acceptor:    acceptor,
		bridge:      bridge,
		sessions:    sessions,
		rateLimiter: rateLimiter,
	}

	s.server = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: s.routes(),
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	s.sweepCancel = sweepCancel
	go manager.RunHibernationSweeper(sweepCtx)

	return s, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Serve starts the HTTP server on the given listener.
func (s *Server) Serve(l net.Listener) error {
	return s.server.Serve(l)
}

// Shutdown gracefully shuts down the server: stop accepting new HTTP
// work, then stop the hibernation sweeper and the rate limiter's cleanup
// goroutine. Open Hubs are left running — a Shutdown is a process
// restart, not a request to drop every in-flight client connection.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if s.sweepCancel != nil {
		s.sweepCancel()
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	return err
}
