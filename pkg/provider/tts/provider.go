// Package tts defines the Provider interface for text-to-speech backends.
//
// A provider wraps a speech synthesis service (e.g., a local Coqui TTS
// server) and exposes a single batch operation: turn one short prompt —
// typically a single word — into playable PCM audio. Prompt announcements
// are one word at a time, so no streaming interface is needed.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text as 16-bit signed little-endian mono PCM at
	// 16 kHz. An error is returned if the backend cannot be reached or the
	// synthesis fails; callers in the announcement path absorb such errors.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
