package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/shlokhq/versecoach/internal/practice"
)

// maxUploadBytes caps uploaded WAV attempt bodies (~5 min of 16 kHz mono).
const maxUploadBytes = 10 << 20

type exerciseResponse struct {
	ID    string   `json:"id"`
	Words []string `json:"words"`
	Total int      `json:"total"`
}

type progressResponse struct {
	SessionID   string `json:"session_id"`
	ExerciseID  string `json:"exercise_id"`
	Cursor      int    `json:"cursor"`
	Total       int    `json:"total"`
	Completed   bool   `json:"completed"`
	CurrentWord string `json:"current_word,omitempty"`
}

type attemptResponse struct {
	Recognized string           `json:"recognized"`
	Expected   string           `json:"expected"`
	Similarity float64          `json:"similarity"`
	Outcome    practice.Outcome `json:"outcome"`
	Progress   progressResponse `json:"progress"`
}

func toProgressResponse(p practice.Progress) progressResponse {
	return progressResponse{
		SessionID:   p.SessionID,
		ExerciseID:  p.ExerciseID,
		Cursor:      p.Cursor,
		Total:       p.Total,
		Completed:   p.Completed,
		CurrentWord: p.CurrentWord,
	}
}

func toAttemptResponse(res practice.Result) attemptResponse {
	return attemptResponse{
		Recognized: res.Attempt.Recognized,
		Expected:   res.Attempt.Expected,
		Similarity: res.Attempt.Similarity,
		Outcome:    res.Attempt.Outcome,
		Progress:   toProgressResponse(res.Progress),
	}
}

func (s *Server) listExercises(w http.ResponseWriter, r *http.Request) {
	ids := s.catalog.IDs()
	out := make([]exerciseResponse, 0, len(ids))
	for _, id := range ids {
		words, err := s.catalog.Get(id)
		if err != nil {
			continue
		}
		out = append(out, exerciseResponse{ID: id, Words: words, Total: len(words)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getExercise(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	words, err := s.catalog.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exerciseResponse{ID: id, Words: words, Total: len(words)})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	prog, err := s.sessions.Create(r.Context(), r.PathValue("exercise_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.ActiveSessions.Add(r.Context(), 1)
	writeJSON(w, http.StatusCreated, toProgressResponse(prog))
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	prog, err := s.sessions.Progress(r.Context(), r.PathValue("session_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressResponse(prog))
}

// submitAttempt verifies one word. The recognized text comes from one of
// three inputs: a JSON body with a "recognized" field, an uploaded WAV
// recording, or, with an empty body, live server-side capture.
func (s *Server) submitAttempt(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	start := time.Now()

	// Reject unknown sessions before any audio work.
	if _, err := s.sessions.Progress(r.Context(), sessionID); err != nil {
		writeError(w, r, err)
		return
	}

	recognized, err := s.recognizedText(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.sessions.Submit(r.Context(), sessionID, recognized)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.metrics.RecordAttempt(r.Context(), string(res.Attempt.Outcome))
	s.metrics.AttemptDuration.Record(r.Context(), time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, toAttemptResponse(res))
}

// recognizedText resolves the candidate text for an attempt from the request
// body.
func (s *Server) recognizedText(r *http.Request) (string, error) {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			ct = parsed
		}
	}

	switch {
	case ct == "application/json":
		var body struct {
			Recognized *string `json:"recognized"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
			return "", fmt.Errorf("%w: invalid json: %v", errBadRequest, err)
		}
		if body.Recognized == nil {
			return "", fmt.Errorf("%w: missing field %q", errBadRequest, "recognized")
		}
		return *body.Recognized, nil

	case ct == "audio/wav" || ct == "audio/x-wav" || ct == "audio/wave":
		wav, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
		if err != nil {
			return "", fmt.Errorf("%w: read body: %v", errBadRequest, err)
		}
		if len(wav) == 0 {
			return "", fmt.Errorf("%w: empty audio body", errBadRequest)
		}
		return s.capture.TranscribeWAV(r.Context(), wav)

	case r.ContentLength == 0:
		return s.capture.Capture(r.Context())

	default:
		return "", fmt.Errorf("%w: unsupported content type %q", errBadRequest, ct)
	}
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.Reset(r.Context(), r.PathValue("session_id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Remove(r.Context(), r.PathValue("session_id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.ActiveSessions.Add(r.Context(), -1)
	w.WriteHeader(http.StatusNoContent)
}

// pronounce queues a spoken rendition of the word. The request is accepted
// as soon as it is enqueued; playback happens in the background.
func (s *Server) pronounce(w http.ResponseWriter, r *http.Request) {
	if s.announcer == nil {
		writeJSON(w, http.StatusServiceUnavailable,
			errorResponse{Error: "no speech synthesis configured"})
		return
	}
	word := strings.TrimSpace(r.PathValue("word"))
	if word == "" {
		writeError(w, r, fmt.Errorf("%w: empty word", errBadRequest))
		return
	}
	s.announcer.Announce(word)
	w.WriteHeader(http.StatusAccepted)
}
