// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wingedpig/aicompanion/internal/api/handlers"
	"github.com/wingedpig/aicompanion/internal/api/middleware"
	"github.com/wingedpig/aicompanion/internal/broadcast"
	"github.com/wingedpig/aicompanion/internal/connection"
	"github.com/wingedpig/aicompanion/internal/events"
	"github.com/wingedpig/aicompanion/internal/orchestrator"
	"github.com/wingedpig/aicompanion/internal/session"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host    string
	Port    int
	TLSCert string // Path to TLS certificate file
	TLSKey  string // Path to TLS private key file
}

// Dependencies holds every collaborator the companion's handlers need.
type Dependencies struct {
	EventBus     events.EventBus
	Sessions     *session.Manager
	Connections  *connection.Manager
	Broadcaster  *broadcast.Broadcaster
	Orchestrator *orchestrator.Orchestrator
	Version      string
}

// NewRouter creates the companion's router. The HTTP surface is
// deliberately narrow: the /ws upgrade endpoint, /healthz for liveness
// probes, and /notify so the push collaborator (or any external tool) can
// raise a notification without holding a socket open.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)

	ws := handlers.NewWSHandler(deps.Orchestrator, deps.Sessions, deps.Connections, deps.Broadcaster)
	r.Handle("/ws", ws).Methods(http.MethodGet)

	notify := handlers.NewNotifyHandler(deps.EventBus)
	r.HandleFunc("/notify", notify.Notify).Methods(http.MethodPost)

	r.HandleFunc("/healthz", healthzHandler(deps)).Methods(http.MethodGet)

	return r
}

func healthzHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states := make(map[string]int)
		for _, s := range deps.Sessions.List() {
			states[string(s.State)]++
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":        "ok",
			"version":       deps.Version,
			"sessions":      deps.Sessions.Count(),
			"sessionStates": states,
			"clients":       deps.Connections.Count(),
		})
	}
}

// Server represents the API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{
		router: NewRouter(deps),
		cfg:    cfg,
	}
}

// ListenAndServe starts the server.
// If TLS is configured (tls_cert and tls_key), uses HTTPS.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	tlsEnabled, err := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	if tlsEnabled {
		certPath := expandPath(s.cfg.TLSCert)
		keyPath := expandPath(s.cfg.TLSKey)
		log.Printf("companion API server listening on https://%s (TLS enabled)", addr)
		return s.server.ListenAndServeTLS(certPath, keyPath)
	}

	log.Printf("companion API server listening on http://%s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Println("shutting down companion API server...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
