package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func samplePCM(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestEncodeDecodeWAV(t *testing.T) {
	t.Parallel()
	pcm := samplePCM(0, 100, -100, 32767, -32768)

	wav := EncodeWAV(pcm, 16000, 1)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}

	got, rate, channels, err := DecodePCM(wav)
	if err != nil {
		t.Fatalf("DecodePCM: %v", err)
	}
	if rate != 16000 || channels != 1 {
		t.Errorf("rate/channels = %d/%d, want 16000/1", rate, channels)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm round-trip mismatch: %v vs %v", got, pcm)
	}
}

func TestEncodeWAV_Header(t *testing.T) {
	t.Parallel()
	wav := EncodeWAV(samplePCM(1, 2), 44100, 2)

	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if binary.LittleEndian.Uint16(wav[20:22]) != 1 {
		t.Error("audio format is not PCM")
	}
	if binary.LittleEndian.Uint16(wav[22:24]) != 2 {
		t.Error("channel count not encoded")
	}
	if binary.LittleEndian.Uint32(wav[24:28]) != 44100 {
		t.Error("sample rate not encoded")
	}
	if binary.LittleEndian.Uint16(wav[34:36]) != 16 {
		t.Error("bit depth not 16")
	}
}

func TestDecodePCM_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		wav  []byte
	}{
		{"empty", nil},
		{"short", []byte("RIFF")},
		{"not riff", bytes.Repeat([]byte{0x42}, 64)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, _, _, err := DecodePCM(tc.wav); err == nil {
				t.Error("DecodePCM accepted invalid input")
			}
		})
	}
}

func TestDecodePCM_NonPCMFormat(t *testing.T) {
	t.Parallel()
	wav := EncodeWAV(samplePCM(1), 16000, 1)
	binary.LittleEndian.PutUint16(wav[20:22], 3) // IEEE float
	if _, _, _, err := DecodePCM(wav); err == nil {
		t.Error("DecodePCM accepted non-PCM format")
	}
}

func TestDecodePCM_SkipsExtensionChunks(t *testing.T) {
	t.Parallel()
	pcm := samplePCM(7, -7)

	// Build a WAV with a LIST chunk between "fmt " and "data".
	base := EncodeWAV(pcm, 16000, 1)
	var buf bytes.Buffer
	buf.Write(base[:36]) // header through fmt chunk
	buf.WriteString("LIST")
	extra := []byte("INFOtest")
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(extra)))
	buf.Write(size[:])
	buf.Write(extra)
	buf.Write(base[36:]) // data chunk

	got, _, _, err := DecodePCM(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodePCM: %v", err)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := RMS(samplePCM(0, 0, 0)); got != 0 {
		t.Errorf("RMS(silence) = %v, want 0", got)
	}
	got := RMS(samplePCM(1000, -1000, 1000, -1000))
	if math.Abs(got-1000) > 0.001 {
		t.Errorf("RMS(±1000) = %v, want 1000", got)
	}
}

func TestToFloat32(t *testing.T) {
	t.Parallel()
	out := ToFloat32(samplePCM(0, 16384, -16384, -32768))
	want := []float32{0, 0.5, -0.5, -1}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestDownmixMono(t *testing.T) {
	t.Parallel()
	mono := samplePCM(100, 200)
	if got := DownmixMono(mono, 1); !bytes.Equal(got, mono) {
		t.Errorf("mono input changed: %v", got)
	}

	stereo := samplePCM(100, 300, -200, -400)
	got := DownmixMono(stereo, 2)
	want := samplePCM(200, -300)
	if !bytes.Equal(got, want) {
		t.Errorf("DownmixMono = %v, want %v", got, want)
	}
}

func TestResample(t *testing.T) {
	t.Parallel()
	pcm := samplePCM(1000, 1000, 1000, 1000)

	if got := Resample(pcm, 16000, 16000); !bytes.Equal(got, pcm) {
		t.Errorf("same-rate input changed: %v", got)
	}

	down := Resample(pcm, 32000, 16000)
	if len(down) != len(pcm)/2 {
		t.Fatalf("downsampled length = %d, want %d", len(down), len(pcm)/2)
	}
	for i := 0; i < len(down)/2; i++ {
		if s := int16(binary.LittleEndian.Uint16(down[i*2:])); s != 1000 {
			t.Errorf("sample %d = %d, want 1000 (constant signal)", i, s)
		}
	}

	up := Resample(pcm, 16000, 32000)
	if len(up) != len(pcm)*2 {
		t.Errorf("upsampled length = %d, want %d", len(up), len(pcm)*2)
	}
}
