// Package mock provides a scriptable in-memory [tts.Provider] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/shlokhq/versecoach/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Provider records every synthesis request. Each call returns PCM (default:
// a fixed non-empty buffer) and Err.
type Provider struct {
	mu    sync.Mutex
	texts []string

	// PCM is returned from every Synthesize call. When nil a fixed
	// placeholder buffer is returned instead.
	PCM []byte

	// Err, when non-nil, is returned by every Synthesize call.
	Err error
}

// New creates an empty Provider.
func New() *Provider {
	return &Provider{}
}

// Synthesize implements [tts.Provider.Synthesize].
func (p *Provider) Synthesize(_ context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
	if p.Err != nil {
		return nil, p.Err
	}
	if p.PCM != nil {
		return p.PCM, nil
	}
	return []byte{0, 0, 0, 0}, nil
}

// Texts returns all texts synthesised so far, in order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.texts))
	copy(out, p.texts)
	return out
}
