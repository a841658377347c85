package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when every entry in a [FallbackGroup] failed or
// had an open breaker.
var ErrExhausted = errors.New("resilience: all providers exhausted")

type entry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// FallbackGroup chains a primary and zero or more fallback instances of the
// same provider type, each behind its own [Breaker]. Entries are tried in
// registration order; open breakers are skipped.
type FallbackGroup[T any] struct {
	entries []entry[T]
	cfg     BreakerConfig
}

// NewFallbackGroup creates a group with primary as the first entry. The
// breaker config is cloned per entry; Name is overridden with each entry's
// name.
func NewFallbackGroup[T any](primary T, name string, cfg BreakerConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.add(name, primary)
	return g
}

// Add registers a fallback provider behind the primary.
func (g *FallbackGroup[T]) Add(name string, v T) {
	g.add(name, v)
}

func (g *FallbackGroup[T]) add(name string, v T) {
	cfg := g.cfg
	cfg.Name = name
	g.entries = append(g.entries, entry[T]{name: name, value: v, breaker: NewBreaker(cfg)})
}

// Try runs fn against each entry until one succeeds. It is a package-level
// function because methods cannot introduce the result type parameter.
func Try[T, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for i := range g.entries {
		e := &g.entries[i]
		var out R
		err := e.breaker.Do(func() error {
			var inner error
			out, inner = fn(e.value)
			return inner
		})
		if err == nil {
			return out, nil
		}
		// A cancelled or expired context dooms every remaining entry the
		// same way; return it untouched so callers can classify it.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping provider, breaker open", "provider", e.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", e.name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}
