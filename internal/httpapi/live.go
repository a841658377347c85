package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/shlokhq/versecoach/internal/capture"
	"github.com/shlokhq/versecoach/internal/observe"
)

const (
	// maxLivePCMBytes caps buffered live audio per attempt (~2.5 min of
	// 16 kHz mono PCM).
	maxLivePCMBytes = 5 << 20

	// liveReadTimeout bounds one WebSocket read so an idle client cannot
	// hold the connection forever.
	liveReadTimeout = 60 * time.Second
)

// doneMarker is the text frame that ends one live attempt's audio.
const doneMarker = "done"

// liveSession streams attempts over a WebSocket. The client sends raw 16-bit
// mono 16 kHz PCM as binary frames, then a "done" text frame; the server
// transcribes the buffered audio, scores it against the current word, and
// replies with the attempt result as a JSON text frame. The cycle repeats
// until the session completes or the client disconnects.
func (s *Server) liveSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if _, err := s.sessions.Progress(r.Context(), sessionID); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", slog.Any("err", err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	logger := observe.Logger(r.Context()).With(slog.String("session_id", sessionID))
	logger.Info("live session opened")

	// Cap one frame at the attempt buffer size plus slack.
	conn.SetReadLimit(maxLivePCMBytes + 1024)

	if err := s.liveLoop(r.Context(), conn, sessionID, logger); err != nil {
		var closeErr websocket.CloseError
		if errors.As(err, &closeErr) || errors.Is(err, context.Canceled) {
			logger.Info("live session closed", slog.Any("reason", err))
			return
		}
		logger.Warn("live session failed", slog.Any("err", err))
		return
	}

	conn.Close(websocket.StatusNormalClosure, "session completed")
	logger.Info("live session completed")
}

// liveLoop runs attempt cycles until the session completes or the peer goes
// away. A nil return means the exercise finished.
func (s *Server) liveLoop(ctx context.Context, conn *websocket.Conn, sessionID string, logger *slog.Logger) error {
	var pcm []byte

	for {
		rctx, cancel := context.WithTimeout(ctx, liveReadTimeout)
		typ, data, err := conn.Read(rctx)
		cancel()
		if err != nil {
			return err
		}

		switch typ {
		case websocket.MessageBinary:
			if len(pcm)+len(data) > maxLivePCMBytes {
				_ = sendLiveError(ctx, conn, "audio buffer limit exceeded")
				return errors.New("httpapi: live audio buffer limit exceeded")
			}
			pcm = append(pcm, data...)

		case websocket.MessageText:
			if strings.TrimSpace(string(data)) != doneMarker {
				_ = sendLiveError(ctx, conn, fmt.Sprintf("unexpected text frame %q", data))
				return fmt.Errorf("httpapi: unexpected live text frame %q", data)
			}
			completed, err := s.liveAttempt(ctx, conn, sessionID, pcm)
			if err != nil {
				return err
			}
			if completed {
				return nil
			}
			pcm = pcm[:0]
		}
	}
}

// liveAttempt transcribes one buffered utterance, submits it, and reports
// the result to the peer. Recoverable capture errors are reported in-band so
// the client can retry without reconnecting.
func (s *Server) liveAttempt(ctx context.Context, conn *websocket.Conn, sessionID string, pcm []byte) (completed bool, err error) {
	start := time.Now()

	recognized, err := s.capture.TranscribePCM(ctx, pcm)
	if err != nil {
		observe.Logger(ctx).Error("live transcription failed",
			slog.String("session_id", sessionID), slog.Any("err", err))
		return false, sendLiveError(ctx, conn, liveErrorMessage(err))
	}

	res, err := s.sessions.Submit(ctx, sessionID, recognized)
	if err != nil {
		return false, err
	}

	s.metrics.RecordAttempt(ctx, string(res.Attempt.Outcome))
	s.metrics.AttemptDuration.Record(ctx, time.Since(start).Seconds())

	payload, err := json.Marshal(toAttemptResponse(res))
	if err != nil {
		return false, err
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return false, err
	}
	return res.Progress.Completed, nil
}

// liveErrorMessage classifies a capture failure into a short client-facing
// message; backend detail stays in the server log.
func liveErrorMessage(err error) string {
	switch {
	case errors.Is(err, capture.ErrNoSpeech):
		return "no speech detected"
	case errors.Is(err, capture.ErrTimeout):
		return "capture timed out"
	default:
		return internalErrorMessage
	}
}

// sendLiveError reports a recoverable failure as a JSON text frame. The
// connection stays open.
func sendLiveError(ctx context.Context, conn *websocket.Conn, msg string) error {
	payload, err := json.Marshal(errorResponse{Error: msg})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}
