// Package httpapi exposes the practice service over HTTP: the exercise
// catalog, session lifecycle, attempt submission (typed, uploaded, or
// server-captured audio), live audio streaming, and spoken prompts.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shlokhq/versecoach/internal/capture"
	"github.com/shlokhq/versecoach/internal/catalog"
	"github.com/shlokhq/versecoach/internal/health"
	"github.com/shlokhq/versecoach/internal/observe"
	"github.com/shlokhq/versecoach/internal/practice"
)

// Announcer requests fire-and-forget playback of a word. May be nil when no
// TTS provider is configured.
type Announcer interface {
	Announce(word string)
}

// Config wires the server's collaborators.
type Config struct {
	Catalog   *catalog.Catalog
	Sessions  *practice.Store
	Capture   *capture.Orchestrator
	Announcer Announcer         // optional
	Health    *health.Handler   // optional; defaults to a checker-less handler
	Metrics   *observe.Metrics  // optional; defaults to observe.DefaultMetrics
}

// Server is the HTTP surface of the practice service.
type Server struct {
	catalog   *catalog.Catalog
	sessions  *practice.Store
	capture   *capture.Orchestrator
	announcer Announcer
	health    *health.Handler
	metrics   *observe.Metrics
}

// New creates a Server. Catalog, Sessions, and Capture are required.
func New(cfg Config) (*Server, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("httpapi: catalog is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("httpapi: session store is required")
	}
	if cfg.Capture == nil {
		return nil, errors.New("httpapi: capture orchestrator is required")
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Server{
		catalog:   cfg.Catalog,
		sessions:  cfg.Sessions,
		capture:   cfg.Capture,
		announcer: cfg.Announcer,
		health:    cfg.Health,
		metrics:   cfg.Metrics,
	}, nil
}

// Handler returns the fully routed handler, wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /exercises", s.listExercises)
	mux.HandleFunc("GET /exercises/{id}", s.getExercise)

	mux.HandleFunc("POST /sessions/{exercise_id}", s.createSession)
	mux.HandleFunc("GET /sessions/{session_id}/progress", s.getProgress)
	mux.HandleFunc("POST /sessions/{session_id}/attempts", s.submitAttempt)
	mux.HandleFunc("POST /sessions/{session_id}/reset", s.resetSession)
	mux.HandleFunc("DELETE /sessions/{session_id}", s.deleteSession)
	mux.HandleFunc("GET /sessions/{session_id}/live", s.liveSession)

	mux.HandleFunc("POST /pronounce/{word}", s.pronounce)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// errorResponse is the JSON body for all error statuses.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses: unknown exercises and
// sessions are 404, no-speech is 408, capture timeout is 504, everything
// else is 500. Server-side failures get a fixed body; the underlying error
// goes to the log only, so collaborator internals never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, practice.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, capture.ErrNoSpeech):
		status = http.StatusRequestTimeout
	case errors.Is(err, capture.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed",
			slog.String("path", r.URL.Path), slog.Any("err", err))
		msg = internalErrorMessage
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// internalErrorMessage is the only body a client sees for 5xx responses.
const internalErrorMessage = "internal error"

// errBadRequest marks malformed client input.
var errBadRequest = errors.New("httpapi: bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}
