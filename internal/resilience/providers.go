package resilience

import (
	"context"

	"github.com/shlokhq/versecoach/pkg/provider/stt"
	"github.com/shlokhq/versecoach/pkg/provider/tts"
)

// TranscriberFallback implements [stt.Transcriber] with automatic failover
// across multiple speech-to-text backends.
type TranscriberFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

var _ stt.Transcriber = (*TranscriberFallback)(nil)

// NewTranscriberFallback creates a failover transcriber with primary as the
// preferred backend.
func NewTranscriberFallback(primary stt.Transcriber, name string, cfg BreakerConfig) *TranscriberFallback {
	return &TranscriberFallback{group: NewFallbackGroup(primary, name, cfg)}
}

// Add registers an additional backend tried after the primary.
func (f *TranscriberFallback) Add(name string, t stt.Transcriber) {
	f.group.Add(name, t)
}

// TranscribeFile transcribes path with the first healthy backend.
func (f *TranscriberFallback) TranscribeFile(ctx context.Context, path string) (string, error) {
	return Try(f.group, func(t stt.Transcriber) (string, error) {
		return t.TranscribeFile(ctx, path)
	})
}

// SynthesizerFallback implements [tts.Provider] with automatic failover
// across multiple text-to-speech backends.
type SynthesizerFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*SynthesizerFallback)(nil)

// NewSynthesizerFallback creates a failover synthesizer with primary as the
// preferred backend.
func NewSynthesizerFallback(primary tts.Provider, name string, cfg BreakerConfig) *SynthesizerFallback {
	return &SynthesizerFallback{group: NewFallbackGroup(primary, name, cfg)}
}

// Add registers an additional backend tried after the primary.
func (f *SynthesizerFallback) Add(name string, p tts.Provider) {
	f.group.Add(name, p)
}

// Synthesize renders text with the first healthy backend.
func (f *SynthesizerFallback) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return Try(f.group, func(p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text)
	})
}
