package transcode

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
)

func writeTestWAV(t *testing.T, data *AudioData, bitDepth int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create wav: %v", err)
	}
	defer f.Close()

	if err := EncodeWAV(f, data, bitDepth); err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}
	return path
}

func TestDecodeFileMono(t *testing.T) {
	pcm := make([]float64, 4410)
	for i := range pcm {
		pcm[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/44100)
	}
	path := writeTestWAV(t, &AudioData{PCM: pcm, SampleRate: 44100, Channels: 1}, 16)

	data, err := NewDecoder(nil, nil).DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile() error = %v", err)
	}

	if data.SampleRate != 44100 || data.Channels != 1 || data.BitDepth != 16 {
		t.Errorf("format = %d Hz, %d ch, %d bit", data.SampleRate, data.Channels, data.BitDepth)
	}
	if len(data.PCM) != len(pcm) {
		t.Fatalf("decoded %d samples, want %d", len(data.PCM), len(pcm))
	}
	if data.Duration != 100*time.Millisecond {
		t.Errorf("duration = %v, want 100ms", data.Duration)
	}

	// 16-bit quantisation error is below 1e-4
	for i := range pcm {
		if math.Abs(data.PCM[i]-pcm[i]) > 1e-4 {
			t.Fatalf("sample %d = %g, want %g", i, data.PCM[i], pcm[i])
		}
	}
}

func TestDecodeFileDownmix(t *testing.T) {
	// Left 0.5, right -0.1
	pcm := make([]float64, 2000)
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = 0.5
		pcm[i+1] = -0.1
	}
	path := writeTestWAV(t, &AudioData{PCM: pcm, SampleRate: 8000, Channels: 2}, 16)

	data, err := NewDecoder(nil, nil).DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile() error = %v", err)
	}
	if data.Channels != 1 || len(data.PCM) != 1000 {
		t.Fatalf("got %d channels, %d samples; want 1, 1000", data.Channels, len(data.PCM))
	}
	if math.Abs(data.PCM[0]-0.2) > 1e-4 {
		t.Errorf("downmixed sample = %g, want 0.2", data.PCM[0])
	}

	stereo, err := NewDecoder(&DecoderConfig{Mono: false}, nil).DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile() error = %v", err)
	}
	if stereo.Channels != 2 || len(stereo.PCM) != 2000 {
		t.Errorf("got %d channels, %d samples; want 2, 2000", stereo.Channels, len(stereo.PCM))
	}
}

func TestDecodeMaxDuration(t *testing.T) {
	path := writeTestWAV(t, &AudioData{PCM: make([]float64, 8000), SampleRate: 8000, Channels: 1}, 16)

	data, err := NewDecoder(&DecoderConfig{Mono: true, MaxDuration: 250 * time.Millisecond}, nil).DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile() error = %v", err)
	}
	if len(data.PCM) != 2000 {
		t.Errorf("decoded %d samples, want 2000", len(data.PCM))
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := NewDecoder(nil, nil).DecodeFile(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}

	if _, err := NewDecoder(nil, nil).DecodeReader(strings.NewReader("definitely not RIFF data")); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for garbage input, got %v", err)
	}
}

func TestEncodeWAVErrors(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := EncodeWAV(f, &AudioData{SampleRate: 8000, Channels: 1}, 16); !errors.Is(err, common.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if err := EncodeWAV(f, &AudioData{PCM: []float64{0}, SampleRate: 8000, Channels: 1}, 12); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}
