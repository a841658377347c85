// Package resilience protects speech providers from cascading failures.
//
// [Breaker] is a three-state circuit breaker (closed → open → half-open).
// [FallbackGroup] chains several instances of a provider type behind
// per-entry breakers so a failing primary is bypassed in favour of healthy
// fallbacks. [TranscriberFallback] and [SynthesizerFallback] apply the group
// to the two provider interfaces this service depends on.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] while the breaker is open and
// its reset timeout has not elapsed.
var ErrBreakerOpen = errors.New("resilience: breaker is open")

// State is a breaker operating mode.
type State int

const (
	// Closed forwards every call.
	Closed State = iota

	// Open rejects calls with [ErrBreakerOpen] until the reset timeout.
	Open

	// HalfOpen lets a bounded number of probe calls through; success closes
	// the breaker, any failure re-opens it.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take defaults.
type BreakerConfig struct {
	// Name labels the breaker in logs.
	Name string

	// FailureLimit is the consecutive-failure count that trips the breaker.
	// Default: 5.
	FailureLimit int

	// ResetAfter is how long the breaker stays open before probing.
	// Default: 30s.
	ResetAfter time.Duration

	// ProbeQuota is how many consecutive half-open probes must succeed to
	// close the breaker, and also the cap on concurrent probe attempts.
	// Default: 2.
	ProbeQuota int
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name         string
	failureLimit int
	resetAfter   time.Duration
	probeQuota   int

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	probes    int
}

// NewBreaker creates a closed [Breaker] from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureLimit <= 0 {
		cfg.FailureLimit = 5
	}
	if cfg.ResetAfter <= 0 {
		cfg.ResetAfter = 30 * time.Second
	}
	if cfg.ProbeQuota <= 0 {
		cfg.ProbeQuota = 2
	}
	return &Breaker{
		name:         cfg.Name,
		failureLimit: cfg.FailureLimit,
		resetAfter:   cfg.ResetAfter,
		probeQuota:   cfg.ProbeQuota,
	}
}

// Do runs fn when the breaker permits it. Open breakers reject immediately
// with [ErrBreakerOpen]; half-open breakers admit at most ProbeQuota calls.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.settle(err)
	return err
}

// admit decides whether a call may proceed, performing the open→half-open
// transition when the reset timeout has elapsed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.openedAt) < b.resetAfter {
			return ErrBreakerOpen
		}
		b.state = HalfOpen
		b.probes = 0
		b.successes = 0
		slog.Info("breaker probing", "name", b.name)
		fallthrough
	case HalfOpen:
		if b.probes >= b.probeQuota {
			return ErrBreakerOpen
		}
		b.probes++
	}
	return nil
}

// settle records the outcome of an admitted call. Context errors are the
// caller's doing, not the backend's: they count neither as failure nor as
// success, and a half-open probe slot spent on one is returned.
func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if b.state == HalfOpen && b.probes > 0 {
			b.probes--
		}
		return
	}

	if err != nil {
		switch b.state {
		case HalfOpen:
			b.trip()
			slog.Warn("breaker re-opened after failed probe", "name", b.name)
		case Closed:
			b.failures++
			if b.failures >= b.failureLimit {
				b.trip()
				slog.Warn("breaker opened", "name", b.name, "failures", b.failures)
			}
		}
		return
	}

	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.probeQuota {
			b.state = Closed
			b.failures = 0
			slog.Info("breaker closed", "name", b.name)
		}
	case Closed:
		b.failures = 0
	}
}

// trip moves the breaker to open. Must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = time.Now()
	b.probes = 0
	b.successes = 0
}

// State reports the effective state: an open breaker whose reset timeout has
// elapsed reports [HalfOpen] (the transition itself happens on the next Do).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && time.Since(b.openedAt) >= b.resetAfter {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [Closed].
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probes = 0
	b.successes = 0
}
