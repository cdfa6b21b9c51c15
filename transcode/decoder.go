package transcode

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
	"github.com/RyanBlaney/sonido-tone/logging"
)

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64     `json:"-" yaml:"-"` // Samples in [-1, 1], interleaved when Channels > 1
	SampleRate int           `json:"sample_rate" yaml:"sample_rate"`
	Channels   int           `json:"channels" yaml:"channels"`
	BitDepth   int           `json:"bit_depth" yaml:"bit_depth"` // Source bit depth
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	Mono        bool          `json:"mono"`         // Average channels into one
	MaxDuration time.Duration `json:"max_duration"` // Truncate longer input, 0 for no limit
}

// DefaultDecoderConfig returns a mono, unlimited decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		Mono:        true,
		MaxDuration: 0,
	}
}

// Decoder reads PCM WAV data through go-audio/wav
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a decoder. Nil arguments fall back to defaults.
func NewDecoder(config *DecoderConfig, logger logging.Logger) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.OrNoOp(logger).WithFields(logging.Fields{"component": "wav_decoder"}),
	}
}

// DecodeFile decodes the WAV file at filename
func (d *Decoder) DecodeFile(filename string) (*AudioData, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	data, err := d.DecodeReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return data, nil
}

// DecodeReader decodes WAV data from r
func (d *Decoder) DecodeReader(r io.ReadSeeker) (*AudioData, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid PCM WAV stream", common.ErrInvalidParameter)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	bitDepth := int(dec.BitDepth)
	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate

	logger := d.logger.WithFields(logging.Fields{
		"sample_rate": sampleRate,
		"channels":    channels,
		"bit_depth":   bitDepth,
		"samples":     len(buf.Data),
	})

	if channels < 1 || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: unsupported format %d channels at %d Hz", common.ErrInvalidParameter, channels, sampleRate)
	}

	pcm, err := toFloat(buf, bitDepth)
	if err != nil {
		return nil, err
	}

	if d.config.MaxDuration > 0 {
		limit := int(d.config.MaxDuration.Seconds()*float64(sampleRate)) * channels
		if len(pcm) > limit {
			logger.Debug("Truncating input", logging.Fields{"max_duration": d.config.MaxDuration.String()})
			pcm = pcm[:limit]
		}
	}

	if d.config.Mono && channels > 1 {
		pcm = downmix(pcm, channels)
		channels = 1
	}

	frames := len(pcm) / channels
	data := &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   bitDepth,
		Duration:   time.Duration(frames) * time.Second / time.Duration(sampleRate),
	}

	logger.Debug("Decoded WAV data", logging.Fields{"duration": data.Duration.String()})
	return data, nil
}

// toFloat scales integer samples into [-1, 1]. 8-bit WAV samples are unsigned.
func toFloat(buf *audio.IntBuffer, bitDepth int) ([]float64, error) {
	maxValue := float64(audio.IntMaxSignedValue(bitDepth))
	if maxValue == 0 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", common.ErrInvalidParameter, bitDepth)
	}

	offset := 0.0
	if bitDepth == 8 {
		offset = 128
	}

	pcm := make([]float64, len(buf.Data))
	for i, s := range buf.Data {
		pcm[i] = (float64(s) - offset) / maxValue
	}
	return pcm, nil
}

// downmix averages interleaved channels into a mono signal
func downmix(interleaved []float64, channels int) []float64 {
	mono := make([]float64, len(interleaved)/channels)
	for i := range mono {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// EncodeWAV writes data as integer PCM WAV with the given bit depth.
// Samples are clipped to [-1, 1].
func EncodeWAV(w io.WriteSeeker, data *AudioData, bitDepth int) error {
	if data == nil || len(data.PCM) == 0 {
		return fmt.Errorf("%w: no audio to encode", common.ErrEmptyInput)
	}
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return fmt.Errorf("%w: unsupported bit depth %d", common.ErrInvalidParameter, bitDepth)
	}
	channels := max(1, data.Channels)

	maxValue := float64(audio.IntMaxSignedValue(bitDepth))
	ints := make([]int, len(data.PCM))
	for i, s := range data.PCM {
		ints[i] = int(max(-1, min(1, s)) * maxValue)
	}

	// WAV audio format 1 is integer PCM
	enc := wav.NewEncoder(w, data.SampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: data.SampleRate},
		Data:           ints,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write PCM data: %w", err)
	}
	return enc.Close()
}
