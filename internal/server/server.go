// Package server exposes the pipeline over HTTP: a single ask endpoint plus
// health. The pipeline is a process-wide singleton shared by concurrent
// requests; it is read-only after initialization, so no request-level
// locking is needed.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbit-labs/kbassist/internal/config"
	"github.com/orbit-labs/kbassist/internal/pipeline"
)

// Asker is the pipeline surface the server needs. Satisfied by
// *pipeline.Pipeline.
type Asker interface {
	Query(ctx context.Context, question string) pipeline.Result
}

// Server wraps the HTTP handler and its dependencies.
type Server struct {
	pipeline Asker
	cfg      *config.Config
	logger   *zap.Logger
	router   chi.Router
}

// AskRequest is the ask endpoint's JSON body.
type AskRequest struct {
	Question string `json:"question"`
}

// SourceRef describes one chunk used for the answer.
type SourceRef struct {
	File    string `json:"file"`
	ChunkID int    `json:"chunk_id"`
	Preview string `json:"preview"`
}

// AskResponse is the ask endpoint's JSON response.
type AskResponse struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}

// New creates a Server routing to the given pipeline.
func New(p Asker, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		pipeline: p,
		cfg:      cfg,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(s.requestID)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/ask", s.handleAsk)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the HTTP server until the context is cancelled.
// Generation latency is unbounded, so requests carry an external timeout
// from the configuration.
func (s *Server) ListenAndServe(ctx context.Context) error {
	timeout := time.Duration(s.cfg.Server.RequestTimeoutSecs) * time.Second

	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           http.TimeoutHandler(s.router, timeout, `{"error":"request timed out"}`),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("http server listening", zap.String("addr", s.cfg.Server.Addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	result := s.pipeline.Query(r.Context(), req.Question)

	resp := AskResponse{
		Answer:  result.Answer,
		Sources: []SourceRef{},
	}
	for _, ch := range result.UsedChunks {
		resp.Sources = append(resp.Sources, SourceRef{
			File:    filepath.Base(ch.Source),
			ChunkID: ch.ChunkID,
			Preview: previewContent(ch.Content),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// requestID attaches a fresh ID to each request for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request handled",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type ctxKey int

const requestIDKey ctxKey = 0

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func previewContent(content string) string {
	const max = 300
	if len(content) <= max {
		return content
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}
