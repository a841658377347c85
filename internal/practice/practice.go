// Package practice implements the session store and the progress state
// machine at the core of the service.
//
// A session tracks one user's cursor through one exercise. It starts at
// Active(0) and reaches the terminal Completed state only by an accepted
// attempt at the final word. The single invariant maintained after every
// operation is: completed == true iff cursor == len(words).
//
// All state mutation goes through the [Store]. Submissions are serialised
// per session — a second concurrent submission for the same id waits for the
// first, then observes the post-transition state — while sessions with
// different ids proceed fully in parallel.
package practice

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/shlokhq/versecoach/internal/catalog"
	"github.com/shlokhq/versecoach/internal/match"
)

// ErrSessionNotFound is returned when the requested session id is unknown.
var ErrSessionNotFound = errors.New("practice: session not found")

// Outcome classifies the result of one submitted attempt.
type Outcome string

const (
	// OutcomeCorrect means the attempt met the acceptance threshold and the
	// cursor advanced.
	OutcomeCorrect Outcome = "correct"

	// OutcomeIncorrect means the attempt scored below the threshold; the
	// cursor is unchanged and the expected word is announced again.
	OutcomeIncorrect Outcome = "incorrect"

	// OutcomeAlreadyCompleted means the session had already finished; the
	// attempt was not scored and nothing changed.
	OutcomeAlreadyCompleted Outcome = "already_completed"
)

// Attempt is the transient record of one verification: what was heard, what
// was expected at the cursor, and how it scored. It is produced per request
// and not persisted.
type Attempt struct {
	Recognized string
	Expected   string
	Similarity float64
	Outcome    Outcome
}

// Progress is a point-in-time snapshot of a session's state.
type Progress struct {
	SessionID   string
	ExerciseID  string
	Cursor      int
	Total       int
	Completed   bool
	CurrentWord string // empty when completed
}

// Result couples an attempt with the session state after the transition.
type Result struct {
	Attempt  Attempt
	Progress Progress
}

// Scorer computes the similarity of a recognized string against the expected
// word. Implemented by [match.Scorer].
type Scorer interface {
	Score(expected, recognized string) float64
}

// Announcer requests fire-and-forget playback of a word. Implementations
// must never block the caller.
type Announcer interface {
	Announce(word string)
}

// session is one user's progress through one exercise. The embedded mutex
// serialises state transitions for this session only.
type session struct {
	mu         sync.Mutex
	exerciseID string
	words      []string
	cursor     int
	completed  bool
}

// snapshot builds a Progress from the current state. Caller must hold s.mu.
func (s *session) snapshot(id string) Progress {
	p := Progress{
		SessionID:  id,
		ExerciseID: s.exerciseID,
		Cursor:     s.cursor,
		Total:      len(s.words),
		Completed:  s.completed,
	}
	if !s.completed {
		p.CurrentWord = s.words[s.cursor]
	}
	return p
}

// StoreConfig holds the dependencies and tuning for a [Store].
type StoreConfig struct {
	// Catalog resolves exercise ids to word lists. Required.
	Catalog *catalog.Catalog

	// Scorer computes attempt similarity. Required.
	Scorer Scorer

	// Announcer re-announces the expected word after an incorrect attempt.
	// Optional; nil disables re-announcement.
	Announcer Announcer

	// AcceptanceThreshold is the minimum similarity for a correct attempt.
	// Zero means [match.DefaultAcceptanceThreshold].
	AcceptanceThreshold float64
}

// Store owns every session record. It is the only mutable shared structure
// in the service; all methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	catalog   *catalog.Catalog
	scorer    Scorer
	announcer Announcer
	threshold float64
}

// NewStore creates a Store with the given configuration.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("practice: catalog is required")
	}
	if cfg.Scorer == nil {
		return nil, errors.New("practice: scorer is required")
	}
	threshold := cfg.AcceptanceThreshold
	if threshold == 0 {
		threshold = match.DefaultAcceptanceThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("practice: acceptance threshold %.2f is out of range (0, 1]", threshold)
	}
	return &Store{
		sessions:  make(map[string]*session),
		catalog:   cfg.Catalog,
		scorer:    cfg.Scorer,
		announcer: cfg.Announcer,
		threshold: threshold,
	}, nil
}

// Create starts a new session for exerciseID at Active(0) and returns its
// initial progress. Fails with [catalog.ErrNotFound] when the exercise is
// unknown.
func (st *Store) Create(ctx context.Context, exerciseID string) (Progress, error) {
	words, err := st.catalog.Get(exerciseID)
	if err != nil {
		return Progress{}, err
	}

	id, err := generateID()
	if err != nil {
		return Progress{}, fmt.Errorf("practice: generate session id: %w", err)
	}

	s := &session{exerciseID: exerciseID, words: words}

	st.mu.Lock()
	st.sessions[id] = s
	st.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(id), nil
}

// Progress returns a snapshot of the session's current state.
func (st *Store) Progress(ctx context.Context, sessionID string) (Progress, error) {
	s, err := st.lookup(sessionID)
	if err != nil {
		return Progress{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(sessionID), nil
}

// CurrentWord returns the word the session must pronounce next. For a
// completed session it returns ("", true, nil) — there is nothing left to
// say.
func (st *Store) CurrentWord(ctx context.Context, sessionID string) (word string, completed bool, err error) {
	p, err := st.Progress(ctx, sessionID)
	if err != nil {
		return "", false, err
	}
	return p.CurrentWord, p.Completed, nil
}

// Submit scores recognized against the session's current word and applies
// the state transition:
//
//   - completed session: idempotent no-op, outcome "already_completed";
//   - score ≥ threshold: cursor advances, completing the session when the
//     final word was just accepted;
//   - score < threshold: cursor unchanged, the expected word is re-announced.
//
// An empty recognized string is scored like any other text (it simply scores
// low). Submissions for the same session are serialised; the loser of a race
// observes the state left by the winner.
func (st *Store) Submit(ctx context.Context, sessionID, recognized string) (Result, error) {
	s, err := st.lookup(sessionID)
	if err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		return Result{
			Attempt:  Attempt{Recognized: recognized, Outcome: OutcomeAlreadyCompleted},
			Progress: s.snapshot(sessionID),
		}, nil
	}

	expected := s.words[s.cursor]
	score := st.scorer.Score(expected, recognized)

	att := Attempt{
		Recognized: recognized,
		Expected:   expected,
		Similarity: score,
	}

	if score >= st.threshold {
		att.Outcome = OutcomeCorrect
		s.cursor++
		if s.cursor == len(s.words) {
			s.completed = true
		}
	} else {
		att.Outcome = OutcomeIncorrect
		if st.announcer != nil {
			st.announcer.Announce(expected)
		}
	}

	return Result{Attempt: att, Progress: s.snapshot(sessionID)}, nil
}

// Reset returns the session to Active(0). The session id survives a reset —
// clients hold it — so the record is re-initialised in place rather than
// removed. Works on both active and completed sessions.
func (st *Store) Reset(ctx context.Context, sessionID string) (Progress, error) {
	s, err := st.lookup(sessionID)
	if err != nil {
		return Progress{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = 0
	s.completed = false
	return s.snapshot(sessionID), nil
}

// Remove deletes the session record outright. A submission already holding
// the record completes against the orphaned copy; its result is discarded
// with the record.
func (st *Store) Remove(ctx context.Context, sessionID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	delete(st.sessions, sessionID)
	return nil
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// lookup fetches the session record without touching its state.
func (st *Store) lookup(sessionID string) (*session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

// generateID produces a random 16-byte hex string using crypto/rand.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
