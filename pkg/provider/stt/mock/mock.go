// Package mock provides a scriptable in-memory [stt.Transcriber] for tests.
package mock

import (
	"context"
	"os"
	"sync"

	"github.com/shlokhq/versecoach/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Transcriber = (*Transcriber)(nil)

// Result is one scripted outcome for a TranscribeFile call.
type Result struct {
	Text string
	Err  error
}

// Transcriber replays scripted results in order; once exhausted the last
// entry repeats. It records every artifact path it was handed along with
// whether the file existed at call time, so tests can assert the scoped
// artifact contract (present during transcription, removed afterwards).
type Transcriber struct {
	mu     sync.Mutex
	script []Result
	calls  int
	paths  []string
	seen   []bool
}

// New creates a Transcriber that replays results in order. With no results
// every call returns ("", nil).
func New(results ...Result) *Transcriber {
	return &Transcriber{script: results}
}

// TranscribeFile implements [stt.Transcriber.TranscribeFile].
func (t *Transcriber) TranscribeFile(_ context.Context, path string) (string, error) {
	_, statErr := os.Stat(path)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, path)
	t.seen = append(t.seen, statErr == nil)

	idx := t.calls
	t.calls++
	if len(t.script) == 0 {
		return "", nil
	}
	if idx >= len(t.script) {
		idx = len(t.script) - 1
	}
	return t.script[idx].Text, t.script[idx].Err
}

// Calls reports how many times TranscribeFile has been invoked.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Paths returns the artifact paths passed to TranscribeFile, in order.
func (t *Transcriber) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.paths))
	copy(out, t.paths)
	return out
}

// ArtifactExisted reports whether the artifact for call i existed on disk
// when TranscribeFile was invoked.
func (t *Transcriber) ArtifactExisted(i int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.seen) {
		return false
	}
	return t.seen[i]
}
