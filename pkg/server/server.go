// Package server exposes turns over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/germanamz/assistant/pkg/chats/message"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/retrieval"
	"github.com/germanamz/assistant/pkg/turn"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Backend runs turns and reads history. *engine.Engine satisfies it.
type Backend interface {
	ProcessTurn(ctx context.Context, req turn.Request) (turn.Result, error)
	History(ctx context.Context, platform, model, chatID string) ([]message.Message, error)
	Models() []models.Descriptor
}

// Options configure a Server.
type Options struct {
	Logger *slog.Logger
	// ShutdownTimeout bounds graceful shutdown. Defaults to 10s.
	ShutdownTimeout time.Duration
	// Knowledge enables POST /knowledge/documents.
	Knowledge retrieval.Ingester
}

// Server routes HTTP requests to a Backend.
type Server struct {
	backend   Backend
	knowledge retrieval.Ingester
	logger    *slog.Logger
	shutdown  time.Duration
	router    chi.Router
}

// New creates a Server and wires its routes.
func New(backend Backend, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	shutdown := opts.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}

	s := &Server{backend: backend, knowledge: opts.Knowledge, logger: logger, shutdown: shutdown}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/status", s.handleStatus)
	r.Post("/chat", s.handleChat)
	r.Get("/chat/{chatID}", s.handleHistory)
	r.Get("/ws", s.handleWS)
	if s.knowledge != nil {
		r.Post("/knowledge/documents", s.handleIngest)
	}

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("server listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	descs := s.backend.Models()
	ids := make([]string, len(descs))
	for i, d := range descs {
		ids[i] = d.ID
	}

	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "models": ids})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, status := s.runTurn(r.Context(), payload)
	respondJSON(w, status, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	model := r.URL.Query().Get("model")
	if model == "" {
		respondError(w, http.StatusBadRequest, "model query parameter is required")
		return
	}

	msgs, err := s.backend.History(r.Context(), r.URL.Query().Get("platform"), model, chatID)
	if err != nil {
		respondError(w, turn.HTTPStatus(err), err.Error())
		return
	}
	if msgs == nil {
		msgs = []message.Message{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"chatId": chatID, "messages": msgs})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var doc retrieval.IngestDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := s.knowledge.Ingest(r.Context(), doc)
	if err != nil {
		status := ingestStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("ingest failed", "id", doc.ID, "status", status, "error", err)
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": out})
}

func ingestStatus(err error) int {
	switch {
	case errors.Is(err, retrieval.ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, retrieval.ErrIngestDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return turn.StatusClientClosedRequest
	default:
		return http.StatusBadGateway
	}
}

// runTurn converts a payload into a turn and its result into a response.
// The returned status is the HTTP status of the outcome.
func (s *Server) runTurn(ctx context.Context, payload TurnRequest) (TurnResponse, int) {
	req, err := payload.toTurn()
	if err != nil {
		return TurnResponse{ChatID: payload.ChatID, Error: err.Error()}, http.StatusBadRequest
	}

	res, err := s.backend.ProcessTurn(ctx, req)
	if err != nil {
		status := turn.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("turn failed", "chat", payload.ChatID, "status", status, "error", err)
		}
		return TurnResponse{ChatID: payload.ChatID, Error: err.Error()}, status
	}

	return newTurnResponse(payload.ChatID, res), http.StatusOK
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs one line per request with its status and latency.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
