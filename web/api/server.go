// Package api exposes the queue over HTTP: status and task queries,
// manual sweep and check triggers, the GitHub webhook receiver, and
// live event streams over SSE and WebSocket.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/julesqueue/julesq/internal/batch"
	"github.com/julesqueue/julesq/internal/config"
	"github.com/julesqueue/julesq/internal/sweep"
	"github.com/julesqueue/julesq/internal/taskstore"
	"github.com/julesqueue/julesq/internal/webhook"
)

// Server is the HTTP API server.
type Server struct {
	store   *taskstore.Store
	sweeper *sweep.Runner
	hook    *webhook.Processor
	deps    batch.Deps
	secret  string
	addr    string
	mux     *http.ServeMux
	hub     *Hub
}

// NewServer creates the API server.
func NewServer(store *taskstore.Store, sweeper *sweep.Runner, hook *webhook.Processor, deps batch.Deps, cfg config.WebConfig) *Server {
	s := &Server{
		store:   store,
		sweeper: sweeper,
		hook:    hook,
		deps:    deps,
		secret:  cfg.WebhookSecret,
		addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		mux:     http.NewServeMux(),
		hub:     NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/status", s.statusHandler())
	s.mux.HandleFunc("/api/tasks", s.listTasksHandler())
	s.mux.HandleFunc("/api/tasks/", s.getTaskHandler())
	s.mux.HandleFunc("/api/log", s.eventLogHandler())
	s.mux.HandleFunc("/api/sweep", s.sweepHandler())
	s.mux.HandleFunc("/api/check", s.checkHandler())
	s.mux.HandleFunc("/api/events", s.sseHandler())
	s.mux.HandleFunc("/api/ws", s.wsHandler())
	s.mux.HandleFunc("/webhooks/github", s.webhookHandler())
}

// Handler returns the server's routing handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start blocks serving HTTP.
func (s *Server) Start() error {
	return http.ListenAndServe(s.addr, s.mux)
}

// Broadcast sends an event to all connected SSE and WebSocket clients.
func (s *Server) Broadcast(event Event) {
	s.hub.Broadcast(event)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
