// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A transcriber wraps a batch transcription service (a whisper.cpp server,
// the in-process whisper.cpp bindings, or the Deepgram pre-recorded API) and
// exposes a single uniform operation: turn one recorded utterance into text.
// The practice pipeline verifies one word per attempt, so batch inference is
// the natural shape here; streaming recognition is out of scope.
//
// Implementations must be safe for concurrent use — multiple sessions may
// submit attempts simultaneously.
package stt

import "context"

// Transcriber is the abstraction over any speech-to-text backend.
type Transcriber interface {
	// TranscribeFile reads the WAV artifact at path and returns the
	// recognised text, trimmed of leading and trailing whitespace. An empty
	// string with a nil error is a valid result: the engine heard audio but
	// recognised no words in it.
	//
	// The file must outlive the call; the caller owns the artifact and is
	// responsible for removing it afterwards. Implementations must respect
	// ctx cancellation and deadlines.
	TranscribeFile(ctx context.Context, path string) (string, error)
}
