// Package announce plays spoken prompts in the background. Announcements
// are fire-and-forget: enqueuing never blocks the caller, playback failures
// are logged and absorbed, and a full queue drops the newest request rather
// than stalling the practice loop.
package announce

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shlokhq/versecoach/internal/observe"
	"github.com/shlokhq/versecoach/pkg/audio"
	"github.com/shlokhq/versecoach/pkg/provider/tts"
)

const (
	// defaultQueueSize bounds pending announcements.
	defaultQueueSize = 16

	// synthesizeTimeout bounds one synthesis round-trip so a stalled
	// provider cannot wedge the worker.
	synthesizeTimeout = 10 * time.Second
)

// Option is a functional option for configuring an [Announcer].
type Option func(*Announcer)

// WithQueueSize sets the pending-announcement bound. Default: 16.
func WithQueueSize(n int) Option {
	return func(a *Announcer) { a.queue = make(chan string, n) }
}

// WithLogger sets the logger used for absorbed failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Announcer) { a.logger = logger }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Announcer) { a.metrics = m }
}

// Announcer synthesizes text with a TTS provider and plays the result on an
// audio player, one announcement at a time, on a background worker.
type Announcer struct {
	provider tts.Provider
	player   audio.Player
	queue    chan string
	logger   *slog.Logger
	metrics  *observe.Metrics

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// New creates an Announcer. Both the provider and the player are required.
func New(provider tts.Provider, player audio.Player, opts ...Option) (*Announcer, error) {
	if provider == nil {
		return nil, errors.New("announce: tts provider is required")
	}
	if player == nil {
		return nil, errors.New("announce: audio player is required")
	}
	a := &Announcer{
		provider: provider,
		player:   player,
		queue:    make(chan string, defaultQueueSize),
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a, nil
}

// Start launches the background worker. It returns immediately; the worker
// runs until ctx is cancelled or [Announcer.Close] is called.
func (a *Announcer) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		go a.work(ctx)
	})
}

// Announce enqueues text for playback. It never blocks: when the queue is
// full or the announcer has stopped, the request is dropped and the drop is
// logged. It reports whether the announcement was accepted.
func (a *Announcer) Announce(ctx context.Context, text string) bool {
	if text == "" {
		return false
	}
	select {
	case <-a.done:
		return false
	default:
	}
	select {
	case a.queue <- text:
		return true
	default:
		a.metrics.AnnounceDrops.Add(ctx, 1)
		a.logger.Warn("announcement queue full, dropping", "text", text)
		return false
	}
}

// Close stops the worker after the in-flight announcement finishes. Pending
// queued announcements are discarded. Safe to call more than once.
func (a *Announcer) Close() {
	a.stopOnce.Do(func() { close(a.done) })
}

func (a *Announcer) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case text := <-a.queue:
			a.play(ctx, text)
		}
	}
}

// play runs one synthesis+playback cycle. Failures are logged, never
// propagated.
func (a *Announcer) play(ctx context.Context, text string) {
	sctx, cancel := context.WithTimeout(ctx, synthesizeTimeout)
	defer cancel()

	start := time.Now()
	pcm, err := a.provider.Synthesize(sctx, text)
	a.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		a.metrics.AnnounceErrors.Add(ctx, 1)
		a.logger.Error("announcement synthesis failed", "text", text, "err", err)
		return
	}
	if len(pcm) == 0 {
		return
	}
	if err := a.player.Play(ctx, pcm); err != nil {
		a.metrics.AnnounceErrors.Add(ctx, 1)
		a.logger.Error("announcement playback failed", "text", text, "err", err)
	}
}
