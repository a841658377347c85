// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/shlokhq/versecoach/pkg/audio"
	"github.com/shlokhq/versecoach/pkg/provider/stt"
)

// Compile-time assertion that NativeProvider satisfies stt.Transcriber.
var _ stt.Transcriber = (*NativeProvider)(nil)

// NativeProvider implements [stt.Transcriber] using the whisper.cpp Go
// bindings (CGO), eliminating HTTP overhead entirely. The model is loaded
// once at startup and shared across all calls; inference runs are
// serialised per whisper context.
type NativeProvider struct {
	mu       sync.Mutex
	model    whisperlib.Model
	language string
}

// NativeOption is a functional option for configuring a [NativeProvider].
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// TranscribeFile implements [stt.Transcriber.TranscribeFile]. The WAV
// artifact is decoded to normalised float32 samples and run through a fresh
// whisper context. Only 16 kHz mono 16-bit PCM input is supported.
func (p *NativeProvider) TranscribeFile(ctx context.Context, path string) (string, error) {
	wav, err := readArtifact(path)
	if err != nil {
		return "", err
	}
	pcm, sampleRate, channels, err := audio.DecodePCM(wav)
	if err != nil {
		return "", fmt.Errorf("whisper: decode artifact %q: %w", path, err)
	}
	if sampleRate != whisperlib.SampleRate || channels != 1 {
		return "", fmt.Errorf("whisper: artifact must be %d Hz mono, got %d Hz %d-channel",
			whisperlib.SampleRate, sampleRate, channels)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: context cancelled before inference: %w", err)
	}

	// whisper.cpp contexts are not safe for concurrent Process calls against
	// the same model, so serialise inference.
	p.mu.Lock()
	defer p.mu.Unlock()

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		return "", fmt.Errorf("whisper: set language %q: %w", p.language, err)
	}
	if err := wctx.Process(audio.ToFloat32(pcm), nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var sb strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err != nil {
			break
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.TrimSpace(segment.Text))
	}
	return strings.TrimSpace(sb.String()), nil
}

// readArtifact loads a WAV artifact from disk with a whisper-prefixed error.
func readArtifact(path string) ([]byte, error) {
	wav, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("whisper: read artifact %q: %w", path, err)
	}
	return wav, nil
}
