package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
	"github.com/RyanBlaney/sonido-tone/profile/config"
)

const testSampleRate = 44100

func generateSineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2 * math.Pi * frequency * t)
	}
	return buffer
}

func newTestGenerator(t *testing.T, cfg *config.Config) *ProfileGenerator {
	t.Helper()
	pg, err := NewProfileGenerator(cfg, nil)
	if err != nil {
		t.Fatalf("NewProfileGenerator() error = %v", err)
	}
	return pg
}

func TestGenerateSine(t *testing.T) {
	pg := newTestGenerator(t, nil)

	p, err := pg.Generate(generateSineWave(testSampleRate, testSampleRate, 440), testSampleRate)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	wantFrames := (testSampleRate-2048)/512 + 1
	if p.Frames != wantFrames {
		t.Errorf("Frames = %d, want %d", p.Frames, wantFrames)
	}
	if len(p.Pitch) != p.Frames {
		t.Errorf("voiced frames = %d, want all %d", len(p.Pitch), p.Frames)
	}

	if len(p.Segments) != 1 {
		t.Fatalf("got %d segments, want 1: %+v", len(p.Segments), p.Segments)
	}
	seg := p.Segments[0]
	if math.Abs(seg.MeanValue-440) > 5 {
		t.Errorf("segment mean = %g Hz, want ~440", seg.MeanValue)
	}
	if seg.Length != len(p.Pitch) || seg.StartFrame != 0 || seg.EndFrame != p.Frames-1 {
		t.Errorf("segment does not span the track: %+v", seg)
	}
	if seg.StartTime != 0 || seg.EndTime > p.Duration+1e-9 {
		t.Errorf("segment times [%g, %g] outside [0, %g]", seg.StartTime, seg.EndTime, p.Duration)
	}

	if len(p.DominantBins) != 5 {
		t.Fatalf("got %d dominant bins, want 5", len(p.DominantBins))
	}
	if math.Abs(p.DominantBins[0].Frequency-440) > p.FreqResolution {
		t.Errorf("strongest bin at %g Hz, want within one bin of 440", p.DominantBins[0].Frequency)
	}
	for i := 1; i < len(p.DominantBins); i++ {
		if p.DominantBins[i].Magnitude > p.DominantBins[i-1].Magnitude {
			t.Errorf("dominant bins not ordered by magnitude at %d", i)
		}
	}

	if len(p.Harmonicity.PerFrame) != p.Frames {
		t.Errorf("harmonicity has %d frames, want %d", len(p.Harmonicity.PerFrame), p.Frames)
	}
	for i, h := range p.Harmonicity.PerFrame {
		if h < 0 || h > 1 {
			t.Fatalf("harmonicity[%d] = %g outside [0, 1]", i, h)
		}
	}

	if len(p.Shape.Centroid) != p.Frames || len(p.Shape.Flatness) != p.Frames {
		t.Errorf("shape has %d/%d frames, want %d", len(p.Shape.Centroid), len(p.Shape.Flatness), p.Frames)
	}
	if p.Shape.MeanFlatness < 0 || p.Shape.MeanFlatness > 0.5 {
		t.Errorf("pure tone mean flatness = %g, want tonal", p.Shape.MeanFlatness)
	}

	q := p.Harmonicity.Quartiles
	if !(0 <= q.Q1 && q.Q1 <= q.Q2 && q.Q2 <= q.Q3 && q.Q3 <= 1) {
		t.Errorf("harmonicity quartiles out of order: %+v", q)
	}

	// Energy detection passes once the window holds pass_score loud frames
	d := p.Detection
	if d.Frames != p.Frames {
		t.Errorf("detection frames = %d, want %d", d.Frames, p.Frames)
	}
	if d.Passes != d.Frames-(d.PassScore-1) {
		t.Errorf("passes = %d, want %d", d.Passes, d.Frames-(d.PassScore-1))
	}

	if p.Magnitude != nil {
		t.Error("magnitude included although output.include_magnitude is false")
	}
}

func TestGenerateToneChange(t *testing.T) {
	half := testSampleRate / 2
	signal := append(generateSineWave(half, testSampleRate, 440), generateSineWave(half, testSampleRate, 880)...)

	p, err := newTestGenerator(t, nil).Generate(signal, testSampleRate)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(p.Segments) < 2 {
		t.Fatalf("got %d segments, want at least 2", len(p.Segments))
	}
	if math.Abs(p.Segments[0].MeanValue-440) > 10 {
		t.Errorf("first segment mean = %g, want ~440", p.Segments[0].MeanValue)
	}
	last := p.Segments[len(p.Segments)-1]
	if math.Abs(last.MeanValue-880) > 10 {
		t.Errorf("last segment mean = %g, want ~880", last.MeanValue)
	}

	total := 0
	for i, seg := range p.Segments {
		if seg.StartIndex != total {
			t.Errorf("segment %d starts at %d, want %d", i, seg.StartIndex, total)
		}
		total += seg.Length
	}
	if total != len(p.Pitch) {
		t.Errorf("segment lengths sum to %d, want %d", total, len(p.Pitch))
	}
}

func TestGenerateTimeDomainPitch(t *testing.T) {
	signal := generateSineWave(testSampleRate, testSampleRate, 440)
	for i := range signal {
		signal[i] = 0.3 + 0.5*signal[i]
	}

	for _, method := range []string{config.PitchYIN, config.PitchAutocorrelation} {
		t.Run(method, func(t *testing.T) {
			cfg := config.Default()
			cfg.Pitch.Method = method
			cfg.Preprocess.DCCutoff = 20

			p, err := newTestGenerator(t, cfg).Generate(signal, testSampleRate)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			if p.PitchMethod != method {
				t.Errorf("pitch method = %q, want %q", p.PitchMethod, method)
			}
			if len(p.Pitch) < p.Frames*9/10 {
				t.Errorf("only %d of %d frames voiced", len(p.Pitch), p.Frames)
			}
			if len(p.Segments) == 0 {
				t.Fatal("no segments")
			}
			last := p.Segments[len(p.Segments)-1]
			if math.Abs(last.MeanValue-440) > 5 {
				t.Errorf("last segment mean = %g Hz, want ~440", last.MeanValue)
			}
			for i := 1; i < len(p.Pitch); i++ {
				if p.Pitch[i].Frame <= p.Pitch[i-1].Frame {
					t.Fatalf("pitch frames not increasing at %d", i)
				}
			}
		})
	}
}

func TestGenerateSilence(t *testing.T) {
	p, err := newTestGenerator(t, nil).Generate(make([]float64, testSampleRate/2), testSampleRate)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(p.Pitch) != 0 || len(p.Segments) != 0 {
		t.Errorf("silence produced %d pitches and %d segments", len(p.Pitch), len(p.Segments))
	}
	if p.Detection.Probability != 0 {
		t.Errorf("detection probability = %g, want 0", p.Detection.Probability)
	}
	if p.Harmonicity.Mean != 0 {
		t.Errorf("harmonicity mean = %g, want 0", p.Harmonicity.Mean)
	}
}

func TestGenerateHarmonicDetection(t *testing.T) {
	cfg := config.Default()
	cfg.Detection.Classifier = config.ClassifierHarmonic
	cfg.Output.IncludeMagnitude = true

	p, err := newTestGenerator(t, cfg).Generate(generateSineWave(testSampleRate/2, testSampleRate, 440), testSampleRate)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if p.Detection.Classifier != config.ClassifierHarmonic {
		t.Errorf("classifier = %q, want harmonic", p.Detection.Classifier)
	}
	if p.Detection.Probability < 0 || p.Detection.Probability > 1 {
		t.Errorf("probability %g outside [0, 1]", p.Detection.Probability)
	}

	if len(p.Magnitude) != p.Frames {
		t.Fatalf("magnitude has %d frames, want %d", len(p.Magnitude), p.Frames)
	}
	peak := 0.0
	for _, frame := range p.Magnitude {
		for _, v := range frame {
			peak = max(peak, v)
		}
	}
	if math.Abs(peak-1) > 1e-12 {
		t.Errorf("normalized magnitude peak = %g, want 1", peak)
	}
}

func TestGenerateErrors(t *testing.T) {
	pg := newTestGenerator(t, nil)

	if _, err := pg.Generate(nil, testSampleRate); !errors.Is(err, common.ErrEmptyInput) {
		t.Errorf("empty signal: expected ErrEmptyInput, got %v", err)
	}
	if _, err := pg.Generate(make([]float64, 100), testSampleRate); !errors.Is(err, common.ErrEmptyInput) {
		t.Errorf("short signal: expected ErrEmptyInput, got %v", err)
	}
	if _, err := pg.Generate(make([]float64, 4096), 0); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("zero sample rate: expected ErrInvalidParameter, got %v", err)
	}

	highCut := config.Default()
	highCut.Preprocess.DCCutoff = 30000
	if _, err := newTestGenerator(t, highCut).Generate(make([]float64, 4096), testSampleRate); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("dc cutoff above nyquist: expected ErrInvalidParameter, got %v", err)
	}

	cfg := config.Default()
	cfg.Segmentation.Threshold = -1
	if _, err := NewProfileGenerator(cfg, nil); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("invalid config: expected ErrInvalidParameter, got %v", err)
	}
}

func TestWriteReport(t *testing.T) {
	p, err := newTestGenerator(t, nil).Generate(generateSineWave(8192, testSampleRate, 440), testSampleRate)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var yamlBuf bytes.Buffer
	if err := WriteReport(&yamlBuf, p, config.FormatYAML); err != nil {
		t.Fatalf("WriteReport(yaml) error = %v", err)
	}
	var fromYAML map[string]any
	if err := yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("report is not YAML: %v", err)
	}
	if fromYAML["sample_rate"] != testSampleRate {
		t.Errorf("yaml sample_rate = %v", fromYAML["sample_rate"])
	}
	if !strings.Contains(yamlBuf.String(), "mean_value:") {
		t.Error("segment fields should be inlined into the YAML report")
	}

	var jsonBuf bytes.Buffer
	if err := WriteReport(&jsonBuf, p, config.FormatJSON); err != nil {
		t.Fatalf("WriteReport(json) error = %v", err)
	}
	var fromJSON ToneProfile
	if err := json.Unmarshal(jsonBuf.Bytes(), &fromJSON); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if len(fromJSON.Segments) != len(p.Segments) {
		t.Errorf("json segments = %d, want %d", len(fromJSON.Segments), len(p.Segments))
	}

	if err := WriteReport(&jsonBuf, p, "csv"); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("unknown format: expected ErrInvalidParameter, got %v", err)
	}
	if err := WriteReport(&jsonBuf, nil, config.FormatJSON); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("nil profile: expected ErrInvalidParameter, got %v", err)
	}
}
