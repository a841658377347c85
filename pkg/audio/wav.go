package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// bitsPerSample is fixed at 16 for the 16-bit signed little-endian PCM used
// throughout the pipeline.
const bitsPerSample = 16

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container suitable for batch transcription uploads.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)      // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// DecodePCM extracts the raw PCM payload from a RIFF/WAV container. Only
// 16-bit PCM is supported; other formats return an error. Extension chunks
// between "fmt " and "data" are skipped.
func DecodePCM(wav []byte) (pcm []byte, sampleRate, channels int, err error) {
	if len(wav) < 44 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, 0, errors.New("audio: not a RIFF/WAVE file")
	}

	format := binary.LittleEndian.Uint16(wav[20:22])
	if format != 1 {
		return nil, 0, 0, fmt.Errorf("audio: unsupported WAV format %d (want PCM)", format)
	}
	channels = int(binary.LittleEndian.Uint16(wav[22:24]))
	sampleRate = int(binary.LittleEndian.Uint32(wav[24:28]))
	if bps := binary.LittleEndian.Uint16(wav[34:36]); bps != bitsPerSample {
		return nil, 0, 0, fmt.Errorf("audio: unsupported bit depth %d (want %d)", bps, bitsPerSample)
	}

	// Walk sub-chunks starting after the fmt chunk to find "data".
	fmtSize := binary.LittleEndian.Uint32(wav[16:20])
	off := 20 + int(fmtSize)
	for off+8 <= len(wav) {
		id := string(wav[off : off+4])
		size := int(binary.LittleEndian.Uint32(wav[off+4 : off+8]))
		if id == "data" {
			end := off + 8 + size
			if end > len(wav) {
				end = len(wav)
			}
			return wav[off+8 : end], sampleRate, channels, nil
		}
		off += 8 + size
	}
	return nil, 0, 0, errors.New("audio: no data chunk found")
}

// DownmixMono averages interleaved channels of a 16-bit signed little-endian
// PCM buffer into a single channel. Mono input is returned unchanged.
func DownmixMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / (2 * channels)
	out := make([]byte, frames*2)
	for f := 0; f < frames; f++ {
		var sum int
		for c := 0; c < channels; c++ {
			off := (f*channels + c) * 2
			sum += int(int16(binary.LittleEndian.Uint16(pcm[off : off+2])))
		}
		binary.LittleEndian.PutUint16(out[f*2:f*2+2], uint16(int16(sum/channels)))
	}
	return out
}

// Resample converts mono 16-bit signed little-endian PCM from one sample
// rate to another by linear interpolation. Same-rate input is returned
// unchanged. Quality is adequate for short speech prompts; it is not a
// band-limited resampler.
func Resample(pcm []byte, fromRate, toRate int) []byte {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(pcm) < 2 {
		return pcm
	}
	src := make([]float64, len(pcm)/2)
	for i := range src {
		src[i] = float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
	}

	n := int(int64(len(src)) * int64(toRate) / int64(fromRate))
	out := make([]byte, n*2)
	step := float64(fromRate) / float64(toRate)
	for i := 0; i < n; i++ {
		pos := float64(i) * step
		j := int(pos)
		frac := pos - float64(j)
		s0 := src[j]
		s1 := s0
		if j+1 < len(src) {
			s1 = src[j+1]
		}
		v := s0*(1-frac) + s1*frac
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(int16(v)))
	}
	return out
}

// RMS returns the root-mean-square energy of a 16-bit signed little-endian
// PCM buffer, expressed in PCM sample units (0–32 767). Returns 0 for
// buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2 // number of 16-bit samples
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// ToFloat32 converts 16-bit signed little-endian PCM to the normalised
// float32 samples expected by whisper.cpp.
func ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		out[i] = float32(s) / 32768.0
	}
	return out
}
