package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/filipexyz/orchestrator/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	// WebSocket upgrade: the Acceptor itself classifies client-token vs.
	// browser-session connections (spec.md §4.1), so it sits behind the
	// per-IP connection limiter only, not RequireSession.
	r.Group(func(r chi.Router) {
		r.Use(middleware.ConnectionRateLimit(s.rateLimiter))
		r.Get("/ws/connect", s.acceptor.ServeHTTP)
	})

	// Proxy Bridge: browser-session-gated HTTP/WS surface onto a
	// registered client (spec.md §4.4).
	r.Route("/clients/{client_id}/proxy", func(r chi.Router) {
		r.Use(middleware.RequireSession(s.sessions))
		r.Use(middleware.ConnectionRateLimit(s.rateLimiter))
		r.HandleFunc("/*", s.proxy)
	})

	// Dashboard-facing RPC read surface: a snapshot of one user's hub
	// without opening a WebSocket (spec.md §2's "surrounding HTTP layer
	// consults the Registry indirectly").
	r.Route("/internal/hubs/{user_id}", func(r chi.Router) {
		r.Use(middleware.RequireSession(s.sessions))
		r.Get("/clients", s.listClients)
		r.Post("/clients/{client_id}/disconnect", s.disconnectClient)
	})

	return r
}

func (s *Server) proxy(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	tail := chi.URLParam(r, "*")
	userID := middleware.UserID(r.Context())

	h, err := s.manager.Acquire(r.Context(), userID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "hub unavailable")
		return
	}

	// A session only ever proxies to clients registered on its own
	// hub — there is no cross-user client lookup, so this Acquire call
	// doubles as the authorization check.
	if _, ok := h.FindClient(clientID); !ok {
		writeJSONError(w, http.StatusNotFound, "client not found")
		return
	}

	s.bridge.ServeHTTP(w, r, h, clientID, tail, proxyPrefixFor(clientID))
}

func proxyPrefixFor(clientID string) string {
	return "/clients/" + clientID + "/proxy"
}

func (s *Server) listClients(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID != middleware.UserID(r.Context()) {
		writeJSONError(w, http.StatusForbidden, "forbidden")
		return
	}

	h, err := s.manager.Acquire(r.Context(), userID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "hub unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"clients": h.Snapshot()})
}

func (s *Server) disconnectClient(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID != middleware.UserID(r.Context()) {
		writeJSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	clientID := chi.URLParam(r, "client_id")

	h, err := s.manager.Acquire(r.Context(), userID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "hub unavailable")
		return
	}

	if !h.Evict(clientID, "disconnected by operator") {
		writeJSONError(w, http.StatusNotFound, "client not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "not_ready",
			"database": "disconnected",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"database": "connected",
		"hubs":     s.manager.HubCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
