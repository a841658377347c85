// Package portaudio implements [audio.Recorder] and [audio.Player] on top of
// the PortAudio default input and output devices.
//
// The recorder mimics the classic push-to-talk flow: it samples ambient noise
// for a short calibration window, derives an energy threshold, waits for
// voice activity within a bounded listen window, and stops capturing after a
// trailing-silence period. PortAudio streams are exclusive per process, so
// both the recorder and the player serialise device access with a mutex.
package portaudio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/shlokhq/versecoach/pkg/audio"
)

const (
	sampleRate      = 16000
	framesPerBuffer = 512

	// calibrationWindow is how long ambient noise is sampled before listening.
	calibrationWindow = 500 * time.Millisecond

	// thresholdFactor scales the measured ambient RMS into the voice-activity
	// threshold. Matches the usual "energy_threshold = ambient * 1.5" rule.
	thresholdFactor = 1.5

	// minThreshold is the floor for the voice-activity threshold so that a
	// dead-silent room does not make breathing count as speech.
	minThreshold = 300.0

	// trailingSilence is how much silence after speech ends the utterance.
	trailingSilence = 700 * time.Millisecond

	// maxUtterance caps a single capture regardless of continued speech.
	maxUtterance = 10 * time.Second
)

// Compile-time interface assertions.
var (
	_ audio.Recorder = (*Recorder)(nil)
	_ audio.Player   = (*Player)(nil)
)

var (
	initOnce sync.Once
	initErr  error
)

// ensureInit initialises the PortAudio runtime once per process.
func ensureInit() error {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	return initErr
}

// RecorderOption is a functional option for configuring a [Recorder].
type RecorderOption func(*Recorder)

// WithListenTimeout sets how long Record waits for voice activity before
// returning [audio.ErrNoSpeech]. Default: 5s.
func WithListenTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.listenTimeout = d }
}

// Recorder captures single utterances from the default input device.
type Recorder struct {
	mu            sync.Mutex
	listenTimeout time.Duration
}

// NewRecorder creates a Recorder bound to the default input device. The
// device is opened per Record call, not held between captures.
func NewRecorder(opts ...RecorderOption) (*Recorder, error) {
	if err := ensureInit(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	r := &Recorder{listenTimeout: 5 * time.Second}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Record implements [audio.Recorder.Record]. It calibrates against ambient
// noise, waits up to the listen timeout for voice activity, then records
// until trailing silence or the utterance cap.
func (r *Recorder) Record(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, framesPerBuffer, buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("portaudio: start input stream: %w", err)
	}
	defer stream.Stop()

	chunkDur := time.Duration(framesPerBuffer) * time.Second / sampleRate

	// Calibration: measure ambient RMS.
	var ambient float64
	calibrated := 0
	for elapsed := time.Duration(0); elapsed < calibrationWindow; elapsed += chunkDur {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("portaudio: read during calibration: %w", err)
		}
		ambient += audio.RMS(int16ToBytes(buf))
		calibrated++
	}
	if calibrated > 0 {
		ambient /= float64(calibrated)
	}
	threshold := ambient * thresholdFactor
	if threshold < minThreshold {
		threshold = minThreshold
	}

	// Wait for voice activity, then capture until trailing silence.
	var (
		captured  []byte
		speaking  bool
		silence   time.Duration
		listened  time.Duration
		utterance time.Duration
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("portaudio: read: %w", err)
		}
		chunk := int16ToBytes(buf)
		loud := audio.RMS(chunk) >= threshold

		if !speaking {
			listened += chunkDur
			if loud {
				speaking = true
				captured = append(captured, chunk...)
			} else if listened >= r.listenTimeout {
				return nil, audio.ErrNoSpeech
			}
			continue
		}

		captured = append(captured, chunk...)
		utterance += chunkDur
		if loud {
			silence = 0
		} else {
			silence += chunkDur
		}
		if silence >= trailingSilence || utterance >= maxUtterance {
			return captured, nil
		}
	}
}

// Player renders PCM to the default output device.
type Player struct {
	mu sync.Mutex
}

// NewPlayer creates a Player bound to the default output device.
func NewPlayer() (*Player, error) {
	if err := ensureInit(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	return &Player{}, nil
}

// Play implements [audio.Player.Play]. It blocks until the buffer has been
// written to the device or ctx is cancelled.
func (p *Player) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return errors.New("portaudio: empty PCM buffer")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, sampleRate, framesPerBuffer, out)
	if err != nil {
		return fmt.Errorf("portaudio: open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start output stream: %w", err)
	}
	defer stream.Stop()

	for off := 0; off < len(pcm); off += framesPerBuffer * 2 {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := off + framesPerBuffer*2
		if end > len(pcm) {
			end = len(pcm)
		}
		fill(out, pcm[off:end])
		if err := stream.Write(); err != nil {
			return fmt.Errorf("portaudio: write: %w", err)
		}
	}
	return nil
}

// int16ToBytes converts an int16 sample buffer to little-endian PCM bytes.
func int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// fill copies little-endian PCM bytes into an int16 buffer, zero-padding any
// remainder so a short final chunk does not replay stale samples.
func fill(dst []int16, src []byte) {
	for i := range dst {
		if i*2+1 < len(src) {
			dst[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
		} else {
			dst[i] = 0
		}
	}
}
