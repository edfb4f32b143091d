// Package server implements the WebSocket session coordinator: it pairs
// connecting participants into two-player sessions, drives the round state
// machine, and hands finished sessions to the results writer.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/rpsmatch/protocol"
)

// Server owns the HTTP listener and upgrades participant connections.
type Server struct {
	cfg         Config
	coordinator *Coordinator
	registry    *Registry
	logger      zerolog.Logger
	upgrader    websocket.Upgrader
	httpServer  *http.Server
}

// NewServer creates the server around an existing coordinator and registry.
func NewServer(cfg Config, coordinator *Coordinator, registry *Registry, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		coordinator: coordinator,
		registry:    registry,
		logger:      logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	s.httpServer = &http.Server{Addr: cfg.Addr, Handler: mux}
	return s
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	isTest := false
	if v := r.URL.Query().Get("istest"); v != "" {
		isTest, _ = strconv.ParseBool(v)
	}

	id := uuid.NewString()
	p := NewParticipant(s.logger, id, conn)
	s.logger.Info().
		Str("participant_id", id).
		Str("remote_addr", r.RemoteAddr).
		Bool("istest", isTest).
		Msg("participant connected")

	go p.WritePump()

	msg, err := protocol.NewMessage(protocol.MessageTypeConnected, protocol.ConnectedData{ParticipantID: id})
	if err == nil {
		_ = p.SendMessage(msg)
	}

	s.coordinator.HandleConnect(p, isTest)
	go p.ReadPump(s.coordinator)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.registry.Count(),
	})
}
