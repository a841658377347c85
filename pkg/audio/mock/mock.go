// Package mock provides scriptable in-memory implementations of
// [audio.Recorder] and [audio.Player] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/shlokhq/versecoach/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Recorder = (*Recorder)(nil)
	_ audio.Player   = (*Player)(nil)
)

// RecordResult is one scripted outcome for a [Recorder.Record] call.
type RecordResult struct {
	PCM []byte
	Err error
}

// Recorder replays a scripted sequence of capture outcomes. Once the script
// is exhausted the last entry repeats. The zero value returns
// [audio.ErrNoSpeech] forever.
type Recorder struct {
	mu      sync.Mutex
	script  []RecordResult
	calls   int
	blockCh chan struct{}
}

// NewRecorder creates a Recorder that replays results in order.
func NewRecorder(results ...RecordResult) *Recorder {
	return &Recorder{script: results}
}

// Block makes every subsequent Record call park until ctx is cancelled,
// simulating a capture that never completes. Used for timeout tests.
func (r *Recorder) Block() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blockCh = make(chan struct{})
}

// Record implements [audio.Recorder.Record].
func (r *Recorder) Record(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	block := r.blockCh
	idx := r.calls
	r.calls++
	r.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-block:
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.script) == 0 {
		return nil, audio.ErrNoSpeech
	}
	if idx >= len(r.script) {
		idx = len(r.script) - 1
	}
	res := r.script[idx]
	return res.PCM, res.Err
}

// Calls reports how many times Record has been invoked.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Player records every buffer passed to Play. A non-nil Err is returned from
// each call after being recorded, to exercise failure-absorption paths.
type Player struct {
	mu     sync.Mutex
	played [][]byte

	// Err, when non-nil, is returned by every Play call.
	Err error
}

// NewPlayer creates an empty Player.
func NewPlayer() *Player {
	return &Player{}
}

// Play implements [audio.Player.Play].
func (p *Player) Play(_ context.Context, pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	p.played = append(p.played, cp)
	return p.Err
}

// Played returns a copy of all buffers played so far.
func (p *Player) Played() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.played))
	copy(out, p.played)
	return out
}
