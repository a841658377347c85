package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	sttmock "github.com/shlokhq/versecoach/pkg/provider/stt/mock"
	ttsmock "github.com/shlokhq/versecoach/pkg/provider/tts/mock"
)

func TestTry_PrimarySucceeds(t *testing.T) {
	t.Parallel()
	g := NewFallbackGroup("primary-value", "primary", BreakerConfig{})
	g.Add("fallback", "fallback-value")

	got, err := Try(g, func(v string) (string, error) { return v, nil })
	if err != nil {
		t.Fatalf("Try: %v", err)
	}
	if got != "primary-value" {
		t.Errorf("got %q, want primary-value", got)
	}
}

func TestTry_FallsThroughOnFailure(t *testing.T) {
	t.Parallel()
	g := NewFallbackGroup("bad", "primary", BreakerConfig{})
	g.Add("fallback", "good")

	got, err := Try(g, func(v string) (string, error) {
		if v == "bad" {
			return "", errBackend
		}
		return v, nil
	})
	if err != nil {
		t.Fatalf("Try: %v", err)
	}
	if got != "good" {
		t.Errorf("got %q, want good", got)
	}
}

func TestTry_AllFail(t *testing.T) {
	t.Parallel()
	g := NewFallbackGroup("a", "primary", BreakerConfig{})
	g.Add("fallback", "b")

	_, err := Try(g, func(string) (string, error) { return "", errBackend })
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v, want ErrExhausted", err)
	}
}

func TestTry_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()
	g := NewFallbackGroup("primary-value", "primary",
		BreakerConfig{FailureLimit: 1, ResetAfter: time.Hour})
	g.Add("fallback", "fallback-value")

	// Trip the primary's breaker.
	if _, err := Try(g, func(v string) (string, error) {
		if v == "primary-value" {
			return "", errBackend
		}
		return v, nil
	}); err != nil {
		t.Fatalf("Try: %v", err)
	}

	// The primary is now skipped without being invoked.
	primaryCalls := 0
	got, err := Try(g, func(v string) (string, error) {
		if v == "primary-value" {
			primaryCalls++
		}
		return v, nil
	})
	if err != nil {
		t.Fatalf("Try: %v", err)
	}
	if primaryCalls != 0 {
		t.Errorf("primary invoked %d times with open breaker", primaryCalls)
	}
	if got != "fallback-value" {
		t.Errorf("got %q, want fallback-value", got)
	}
}

func TestTry_AllFailPreservesCause(t *testing.T) {
	t.Parallel()
	g := NewFallbackGroup("a", "primary", BreakerConfig{})

	_, err := Try(g, func(string) (string, error) { return "", errBackend })
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v, want ErrExhausted", err)
	}
	if !errors.Is(err, errBackend) {
		t.Errorf("err = %v, want chain to reach the backend error", err)
	}
}

func TestTry_ContextErrorStopsChain(t *testing.T) {
	t.Parallel()
	g := NewFallbackGroup("primary-value", "primary", BreakerConfig{})
	g.Add("fallback", "fallback-value")

	fallbackCalls := 0
	_, err := Try(g, func(v string) (string, error) {
		if v == "fallback-value" {
			fallbackCalls++
		}
		return "", context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v, context errors must not be wrapped as exhaustion", err)
	}
	if fallbackCalls != 0 {
		t.Errorf("fallback invoked %d times on a dead context", fallbackCalls)
	}
}

func TestTry_ContextErrorDoesNotTripBreaker(t *testing.T) {
	t.Parallel()
	g := NewFallbackGroup("primary-value", "primary",
		BreakerConfig{FailureLimit: 1, ResetAfter: time.Hour})

	for i := 0; i < 5; i++ {
		_, _ = Try(g, func(string) (string, error) {
			return "", context.DeadlineExceeded
		})
	}

	if got := g.entries[0].breaker.State(); got != Closed {
		t.Errorf("breaker state = %v after context errors, want closed", got)
	}
}

func TestTranscriberFallback(t *testing.T) {
	t.Parallel()
	primary := sttmock.New(sttmock.Result{Err: errBackend})
	backup := sttmock.New(sttmock.Result{Text: "from backup"})

	f := NewTranscriberFallback(primary, "primary", BreakerConfig{})
	f.Add("backup", backup)

	got, err := f.TranscribeFile(context.Background(), "/tmp/nope.wav")
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if got != "from backup" {
		t.Errorf("got %q, want from backup", got)
	}
	if primary.Calls() != 1 || backup.Calls() != 1 {
		t.Errorf("calls = (%d, %d), want (1, 1)", primary.Calls(), backup.Calls())
	}
}

func TestSynthesizerFallback(t *testing.T) {
	t.Parallel()
	primary := ttsmock.New()
	primary.Err = errBackend
	backup := ttsmock.New()
	backup.PCM = []byte{9, 9}

	f := NewSynthesizerFallback(primary, "primary", BreakerConfig{})
	f.Add("backup", backup)

	got, err := f.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(got) != 2 || got[0] != 9 {
		t.Errorf("pcm = %v, want [9 9]", got)
	}
}
