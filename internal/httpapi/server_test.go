package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/shlokhq/versecoach/internal/capture"
	"github.com/shlokhq/versecoach/internal/catalog"
	"github.com/shlokhq/versecoach/internal/health"
	"github.com/shlokhq/versecoach/internal/observe"
	"github.com/shlokhq/versecoach/internal/practice"
	"github.com/shlokhq/versecoach/pkg/audio"
	audiomock "github.com/shlokhq/versecoach/pkg/audio/mock"
	"github.com/shlokhq/versecoach/pkg/provider/stt"
	sttmock "github.com/shlokhq/versecoach/pkg/provider/stt/mock"
)

// exactScorer accepts only case-insensitive exact matches.
type exactScorer struct{}

func (exactScorer) Score(expected, recognized string) float64 {
	if strings.EqualFold(expected, recognized) {
		return 1
	}
	return 0
}

// announcerSpy records every word handed to Announce.
type announcerSpy struct {
	mu    sync.Mutex
	words []string
}

func (a *announcerSpy) Announce(word string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.words = append(a.words, word)
}

func (a *announcerSpy) Words() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.words))
	copy(out, a.words)
	return out
}

// envOptions tweaks the collaborators behind a test server.
type envOptions struct {
	recorder    audio.Recorder
	transcriber stt.Transcriber
	announcer   Announcer
	captureOpts []capture.Option
}

// newTestServer builds a fully wired Server around a two-word exercise and
// serves it via httptest. Metrics go to a private meter provider so tests do
// not pollute global state.
func newTestServer(t *testing.T, opts envOptions) *httptest.Server {
	t.Helper()

	cat, err := catalog.New([]catalog.Exercise{
		{ID: "abc", Words: []string{"alpha", "beta"}},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	store, err := practice.NewStore(practice.StoreConfig{
		Catalog: cat,
		Scorer:  exactScorer{},
	})
	if err != nil {
		t.Fatalf("practice.NewStore: %v", err)
	}

	if opts.transcriber == nil {
		opts.transcriber = sttmock.New()
	}
	captureOpts := append([]capture.Option{
		capture.WithTempDir(t.TempDir()),
	}, opts.captureOpts...)
	orch, err := capture.New(opts.recorder, opts.transcriber, captureOpts...)
	if err != nil {
		t.Fatalf("capture.New: %v", err)
	}

	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("observe.NewMetrics: %v", err)
	}

	srv, err := New(Config{
		Catalog:   cat,
		Sessions:  store,
		Capture:   orch,
		Announcer: opts.announcer,
		Health:    health.New(),
		Metrics:   metrics,
	})
	if err != nil {
		t.Fatalf("httpapi.New: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, method, url, contentType string, body []byte) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// createSession starts a session for the "abc" exercise and returns its id.
func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := doRequest(t, http.MethodPost, ts.URL+"/sessions/abc", "", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d, want 201", resp.StatusCode)
	}
	prog := decodeBody[progressResponse](t, resp)
	if prog.SessionID == "" {
		t.Fatal("create session returned empty session_id")
	}
	return prog.SessionID
}

func submitJSON(t *testing.T, ts *httptest.Server, sessionID, recognized string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"recognized": recognized})
	return doRequest(t, http.MethodPost,
		ts.URL+"/sessions/"+sessionID+"/attempts", "application/json", body)
}

func TestListExercises(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})

	resp := doRequest(t, http.MethodGet, ts.URL+"/exercises", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	list := decodeBody[[]exerciseResponse](t, resp)
	if len(list) != 1 {
		t.Fatalf("got %d exercises, want 1", len(list))
	}
	if list[0].ID != "abc" || list[0].Total != 2 {
		t.Errorf("exercise = %+v", list[0])
	}
}

func TestGetExercise(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})

	resp := doRequest(t, http.MethodGet, ts.URL+"/exercises/abc", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	ex := decodeBody[exerciseResponse](t, resp)
	if ex.ID != "abc" || len(ex.Words) != 2 || ex.Words[0] != "alpha" {
		t.Errorf("exercise = %+v", ex)
	}
}

func TestGetExercise_NotFound(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})

	resp := doRequest(t, http.MethodGet, ts.URL+"/exercises/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	body := decodeBody[errorResponse](t, resp)
	if body.Error == "" {
		t.Error("error body is empty")
	}
}

func TestCreateSession(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})

	resp := doRequest(t, http.MethodPost, ts.URL+"/sessions/abc", "", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	prog := decodeBody[progressResponse](t, resp)
	if prog.ExerciseID != "abc" || prog.Cursor != 0 || prog.Total != 2 ||
		prog.Completed || prog.CurrentWord != "alpha" {
		t.Errorf("progress = %+v", prog)
	}
}

func TestCreateSession_UnknownExercise(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})

	resp := doRequest(t, http.MethodPost, ts.URL+"/sessions/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetProgress(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})
	id := createSession(t, ts)

	resp := doRequest(t, http.MethodGet, ts.URL+"/sessions/"+id+"/progress", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	prog := decodeBody[progressResponse](t, resp)
	if prog.SessionID != id || prog.Cursor != 0 {
		t.Errorf("progress = %+v", prog)
	}
}

func TestGetProgress_UnknownSession(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})

	resp := doRequest(t, http.MethodGet, ts.URL+"/sessions/missing/progress", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSubmitAttempt_JSONFlow(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})
	id := createSession(t, ts)

	// Incorrect attempt repeats the word.
	resp := submitJSON(t, ts, id, "omega")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	att := decodeBody[attemptResponse](t, resp)
	if att.Outcome != practice.OutcomeIncorrect || att.Progress.Cursor != 0 {
		t.Errorf("incorrect attempt = %+v", att)
	}

	// Correct attempt advances.
	att = decodeBody[attemptResponse](t, submitJSON(t, ts, id, "Alpha"))
	if att.Outcome != practice.OutcomeCorrect || att.Progress.Cursor != 1 ||
		att.Progress.CurrentWord != "beta" {
		t.Errorf("correct attempt = %+v", att)
	}

	// Final word completes the session.
	att = decodeBody[attemptResponse](t, submitJSON(t, ts, id, "beta"))
	if att.Outcome != practice.OutcomeCorrect || !att.Progress.Completed {
		t.Errorf("final attempt = %+v", att)
	}

	// Further attempts are reported as already completed.
	att = decodeBody[attemptResponse](t, submitJSON(t, ts, id, "anything"))
	if att.Outcome != practice.OutcomeAlreadyCompleted {
		t.Errorf("post-completion outcome = %q", att.Outcome)
	}
}

func TestSubmitAttempt_UnknownSession(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})

	resp := submitJSON(t, ts, "missing", "alpha")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSubmitAttempt_BadRequests(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})
	id := createSession(t, ts)

	tests := []struct {
		name        string
		contentType string
		body        []byte
	}{
		{"invalid json", "application/json", []byte("{nope")},
		{"missing recognized field", "application/json", []byte(`{"other": 1}`)},
		{"empty audio body", "audio/wav", []byte{}},
		{"unsupported content type", "text/plain", []byte("alpha")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodPost,
				ts.URL+"/sessions/"+id+"/attempts", tt.contentType, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestSubmitAttempt_WAVUpload(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{
		transcriber: sttmock.New(sttmock.Result{Text: "alpha"}),
	})
	id := createSession(t, ts)

	wav := audio.EncodeWAV(bytes.Repeat([]byte{0x10, 0x02}, 1600), 16000, 1)
	resp := doRequest(t, http.MethodPost,
		ts.URL+"/sessions/"+id+"/attempts", "audio/wav", wav)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	att := decodeBody[attemptResponse](t, resp)
	if att.Recognized != "alpha" || att.Outcome != practice.OutcomeCorrect {
		t.Errorf("attempt = %+v", att)
	}
}

func TestSubmitAttempt_WAVTranscriptionFails(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{
		transcriber: sttmock.New(sttmock.Result{Err: errors.New("model crashed")}),
	})
	id := createSession(t, ts)

	wav := audio.EncodeWAV(bytes.Repeat([]byte{0x10, 0x02}, 1600), 16000, 1)
	resp := doRequest(t, http.MethodPost,
		ts.URL+"/sessions/"+id+"/attempts", "audio/wav", wav)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	// The backend's failure detail must not reach the client.
	body := decodeBody[errorResponse](t, resp)
	if body.Error != internalErrorMessage {
		t.Errorf("error body = %q, want %q", body.Error, internalErrorMessage)
	}
}

func TestSubmitAttempt_ServerCapture(t *testing.T) {
	t.Parallel()
	rec := audiomock.NewRecorder(audiomock.RecordResult{
		PCM: bytes.Repeat([]byte{0x10, 0x02}, 1600),
	})
	ts := newTestServer(t, envOptions{
		recorder:    rec,
		transcriber: sttmock.New(sttmock.Result{Text: "alpha"}),
	})
	id := createSession(t, ts)

	resp := doRequest(t, http.MethodPost, ts.URL+"/sessions/"+id+"/attempts", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	att := decodeBody[attemptResponse](t, resp)
	if att.Recognized != "alpha" || att.Outcome != practice.OutcomeCorrect {
		t.Errorf("attempt = %+v", att)
	}
}

func TestSubmitAttempt_NoSpeechIs408(t *testing.T) {
	t.Parallel()
	// A zero-script recorder reports no speech on every call.
	ts := newTestServer(t, envOptions{recorder: audiomock.NewRecorder()})
	id := createSession(t, ts)

	resp := doRequest(t, http.MethodPost, ts.URL+"/sessions/"+id+"/attempts", "", nil)
	if resp.StatusCode != http.StatusRequestTimeout {
		t.Fatalf("status = %d, want 408", resp.StatusCode)
	}
}

func TestSubmitAttempt_CaptureTimeoutIs504(t *testing.T) {
	t.Parallel()
	rec := audiomock.NewRecorder()
	rec.Block()
	ts := newTestServer(t, envOptions{
		recorder:    rec,
		captureOpts: []capture.Option{capture.WithTimeout(50 * time.Millisecond)},
	})
	id := createSession(t, ts)

	resp := doRequest(t, http.MethodPost, ts.URL+"/sessions/"+id+"/attempts", "", nil)
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", resp.StatusCode)
	}
}

func TestResetSession(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})
	id := createSession(t, ts)

	// Advance past the first word, then reset.
	submitJSON(t, ts, id, "alpha")
	resp := doRequest(t, http.MethodPost, ts.URL+"/sessions/"+id+"/reset", "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reset status = %d, want 204", resp.StatusCode)
	}

	prog := decodeBody[progressResponse](t,
		doRequest(t, http.MethodGet, ts.URL+"/sessions/"+id+"/progress", "", nil))
	if prog.Cursor != 0 || prog.Completed || prog.CurrentWord != "alpha" {
		t.Errorf("progress after reset = %+v", prog)
	}
}

func TestResetSession_Unknown(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})

	resp := doRequest(t, http.MethodPost, ts.URL+"/sessions/missing/reset", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})
	id := createSession(t, ts)

	resp := doRequest(t, http.MethodDelete, ts.URL+"/sessions/"+id, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/sessions/"+id+"/progress", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("progress after delete = %d, want 404", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodDelete, ts.URL+"/sessions/"+id, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete = %d, want 404", resp.StatusCode)
	}
}

func TestPronounce(t *testing.T) {
	t.Parallel()
	spy := &announcerSpy{}
	ts := newTestServer(t, envOptions{announcer: spy})

	resp := doRequest(t, http.MethodPost, ts.URL+"/pronounce/hello", "", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	words := spy.Words()
	if len(words) != 1 || words[0] != "hello" {
		t.Errorf("announced = %v, want [hello]", words)
	}
}

func TestPronounce_NoAnnouncer(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})

	resp := doRequest(t, http.MethodPost, ts.URL+"/pronounce/hello", "", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestPronounce_BlankWord(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{announcer: &announcerSpy{}})

	resp := doRequest(t, http.MethodPost, ts.URL+"/pronounce/%20", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, envOptions{})

	for _, path := range []string{"/healthz", "/readyz", "/health", "/metrics"} {
		resp := doRequest(t, http.MethodGet, ts.URL+path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}
