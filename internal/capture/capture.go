// Package capture sequences one verification attempt's audio pipeline:
// record an utterance, persist it as a temporary WAV artifact, transcribe
// it, and remove the artifact on every exit path. The artifact lifecycle is
// a scoped acquisition/release contract — the file never outlives the call,
// whether transcription succeeded, failed, or timed out.
//
// The orchestrator never touches session state; it only produces candidate
// text. Callers feed the result into the practice store.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/shlokhq/versecoach/internal/observe"
	"github.com/shlokhq/versecoach/pkg/audio"
	"github.com/shlokhq/versecoach/pkg/provider/stt"
)

// Error taxonomy for capture and transcription failures. The HTTP boundary
// maps each to a distinct status code.
var (
	// ErrNoSpeech is the terminal condition after the bounded no-speech
	// retries are exhausted.
	ErrNoSpeech = errors.New("capture: no speech detected")

	// ErrTranscription covers hard capture and transcription failures.
	// These are not retried locally.
	ErrTranscription = errors.New("capture: transcription failed")

	// ErrTimeout means the overall operation exceeded its deadline. The
	// condition is terminal for the request; no session state was touched.
	ErrTimeout = errors.New("capture: timed out")
)

const (
	// maxNoSpeechRetries bounds how many times a no-speech capture is
	// retried before [ErrNoSpeech] surfaces.
	maxNoSpeechRetries = 3

	// defaultTimeout bounds the whole record→transcribe operation.
	defaultTimeout = 30 * time.Second

	// defaultMaxConcurrent bounds simultaneous capture/transcribe pipelines
	// so long-running audio work cannot starve unrelated requests.
	defaultMaxConcurrent = 4

	// sampleRate and channels describe the PCM produced by recorders.
	sampleRate = 16000
	channels   = 1
)

// Option is a functional option for configuring an [Orchestrator].
type Option func(*Orchestrator)

// WithTimeout sets the outer deadline for one attempt. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithMaxConcurrent bounds simultaneous pipelines. Default: 4.
func WithMaxConcurrent(n int64) Option {
	return func(o *Orchestrator) { o.sem = semaphore.NewWeighted(n) }
}

// WithTempDir sets the directory for transient WAV artifacts.
// Default: os.TempDir().
func WithTempDir(dir string) Option {
	return func(o *Orchestrator) { o.tempDir = dir }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator runs the capture→persist→transcribe→cleanup sequence.
// All methods are safe for concurrent use.
type Orchestrator struct {
	recorder    audio.Recorder
	transcriber stt.Transcriber
	timeout     time.Duration
	tempDir     string
	sem         *semaphore.Weighted
	metrics     *observe.Metrics
}

// New creates an Orchestrator. The recorder may be nil when the deployment
// only accepts uploaded audio; [Orchestrator.Capture] then fails with
// [ErrTranscription]. The transcriber is required.
func New(recorder audio.Recorder, transcriber stt.Transcriber, opts ...Option) (*Orchestrator, error) {
	if transcriber == nil {
		return nil, errors.New("capture: transcriber is required")
	}
	o := &Orchestrator{
		recorder:    recorder,
		transcriber: transcriber,
		timeout:     defaultTimeout,
		tempDir:     os.TempDir(),
		sem:         semaphore.NewWeighted(defaultMaxConcurrent),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o, nil
}

// Capture records one utterance and returns its transcription. No-speech
// captures are retried up to the bound; hard failures surface immediately.
// The whole operation observes the orchestrator timeout.
func (o *Orchestrator) Capture(ctx context.Context) (string, error) {
	if o.recorder == nil {
		return "", fmt.Errorf("%w: no recorder configured", ErrTranscription)
	}

	return o.run(ctx, func(ctx context.Context) (string, error) {
		for attempt := 1; ; attempt++ {
			pcm, err := o.recorder.Record(ctx)
			switch {
			case err == nil:
				return o.transcribePCM(ctx, pcm)
			case errors.Is(err, audio.ErrNoSpeech):
				if attempt >= maxNoSpeechRetries {
					return "", fmt.Errorf("%w after %d attempts", ErrNoSpeech, attempt)
				}
				o.metrics.CaptureRetries.Add(ctx, 1)
				slog.Debug("no speech detected, retrying capture", "attempt", attempt)
			case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
				return "", err
			default:
				return "", fmt.Errorf("%w: record: %v", ErrTranscription, err)
			}
		}
	})
}

// TranscribeWAV runs the persist→transcribe→cleanup tail of the pipeline on
// audio the client already recorded, honouring the same timeout and artifact
// contract as [Orchestrator.Capture]. The input must be a complete WAV file.
func (o *Orchestrator) TranscribeWAV(ctx context.Context, wav []byte) (string, error) {
	return o.run(ctx, func(ctx context.Context) (string, error) {
		return o.transcribeArtifact(ctx, wav)
	})
}

// TranscribePCM is like [Orchestrator.TranscribeWAV] for raw 16-bit mono
// 16 kHz PCM, as produced by recorders and the live streaming endpoint.
func (o *Orchestrator) TranscribePCM(ctx context.Context, pcm []byte) (string, error) {
	return o.run(ctx, func(ctx context.Context) (string, error) {
		return o.transcribePCM(ctx, pcm)
	})
}

// run applies the concurrency bound and outer timeout around fn and
// normalises deadline errors into [ErrTimeout].
func (o *Orchestrator) run(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	defer o.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	text, err := fn(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", err
	}
	return text, nil
}

// transcribePCM wraps raw PCM in a WAV container and hands it to
// transcribeArtifact.
func (o *Orchestrator) transcribePCM(ctx context.Context, pcm []byte) (string, error) {
	return o.transcribeArtifact(ctx, audio.EncodeWAV(pcm, sampleRate, channels))
}

// transcribeArtifact persists wav to a transient file, transcribes it, and
// removes the file before returning — on every path.
func (o *Orchestrator) transcribeArtifact(ctx context.Context, wav []byte) (string, error) {
	f, err := os.CreateTemp(o.tempDir, "attempt-*.wav")
	if err != nil {
		return "", fmt.Errorf("%w: create artifact: %v", ErrTranscription, err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("failed to remove capture artifact", "path", filepath.Base(path), "err", rmErr)
		}
	}()

	if _, err := f.Write(wav); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: write artifact: %v", ErrTranscription, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: close artifact: %v", ErrTranscription, err)
	}

	start := time.Now()
	text, err := o.transcriber.TranscribeFile(ctx, path)
	o.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	return text, nil
}
