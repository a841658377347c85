// Package audio defines the capture and playback abstractions used by the
// practice pipeline, plus small PCM helpers shared by implementations.
//
// Audio is always 16-bit signed little-endian PCM, mono, 16 kHz unless an
// implementation documents otherwise. The [Recorder] contract separates
// "nobody spoke" ([ErrNoSpeech]) from hard device failures so that callers
// can retry the former and surface the latter.
package audio

import (
	"context"
	"errors"
)

// ErrNoSpeech is returned by [Recorder.Record] when the listen window elapsed
// without detecting voice activity. It is a retriable condition, distinct
// from device or I/O failures.
var ErrNoSpeech = errors.New("audio: no speech detected")

// Recorder captures a single utterance from an input device.
//
// Implementations must be safe for concurrent use; concurrent Record calls
// may be serialised internally when the underlying device is exclusive.
type Recorder interface {
	// Record blocks until an utterance has been captured and returns it as
	// raw PCM. Implementations should calibrate against ambient noise, wait
	// for voice activity, and stop on trailing silence.
	//
	// Returns [ErrNoSpeech] when the voice-activity window times out, and
	// respects ctx cancellation on every blocking step.
	Record(ctx context.Context) ([]byte, error)
}

// Player renders raw PCM to an output device. Play blocks until the audio
// has been handed to the device; implementations must be safe for concurrent
// use and may serialise overlapping playback internally.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
}
