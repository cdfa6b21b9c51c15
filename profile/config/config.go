package config

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
	"github.com/RyanBlaney/sonido-tone/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tone/logging"
)

// EnvPrefix prefixes every environment override, e.g. SONIDO_SPECTRAL_WINDOW_SIZE
const EnvPrefix = "SONIDO"

// Config is the complete analysis configuration
type Config struct {
	LogLevel     string             `yaml:"log_level" mapstructure:"log_level"`   // debug, info, warn, error
	LogFormat    string             `yaml:"log_format" mapstructure:"log_format"` // text or json
	Preprocess   PreprocessConfig   `yaml:"preprocess" mapstructure:"preprocess"`
	Spectral     SpectralConfig     `yaml:"spectral" mapstructure:"spectral"`
	Pitch        PitchConfig        `yaml:"pitch" mapstructure:"pitch"`
	Segmentation SegmentationConfig `yaml:"segmentation" mapstructure:"segmentation"`
	Harmonic     HarmonicConfig     `yaml:"harmonic" mapstructure:"harmonic"`
	Detection    DetectionConfig    `yaml:"detection" mapstructure:"detection"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// SpectralConfig controls the STFT, pitch tracking and peak picking
type SpectralConfig struct {
	WindowSize    int     `yaml:"window_size" mapstructure:"window_size"`         // FFT size in samples
	HopSize       int     `yaml:"hop_size" mapstructure:"hop_size"`               // Samples between frames
	Window        string  `yaml:"window" mapstructure:"window"`                   // Window function name
	MinFreq       float64 `yaml:"min_freq" mapstructure:"min_freq"`               // Lowest tracked frequency (Hz)
	MaxFreq       float64 `yaml:"max_freq" mapstructure:"max_freq"`               // Highest tracked frequency (Hz)
	MaxPeaks      int     `yaml:"max_peaks" mapstructure:"max_peaks"`             // Peaks kept per frame
	MinPeakHeight float64 `yaml:"min_peak_height" mapstructure:"min_peak_height"` // Minimum peak magnitude
	MinMagnitude  float64 `yaml:"min_magnitude" mapstructure:"min_magnitude"`     // Frames at or below are unvoiced
	DominantBins  int     `yaml:"dominant_bins" mapstructure:"dominant_bins"`     // Strongest mean-spectrum bins reported
}

// PreprocessConfig controls filtering applied before analysis
type PreprocessConfig struct {
	DCCutoff float64 `yaml:"dc_cutoff" mapstructure:"dc_cutoff"` // DC blocker cutoff in Hz, 0 disables
}

// PitchConfig selects the pitch tracker. The spectral method picks the
// strongest STFT bin; yin and autocorrelation work on the time-domain frames.
type PitchConfig struct {
	Method       string  `yaml:"method" mapstructure:"method"` // spectral, yin or autocorrelation
	YINThreshold float64 `yaml:"yin_threshold" mapstructure:"yin_threshold"`
	MinClarity   float64 `yaml:"min_clarity" mapstructure:"min_clarity"`
}

// SegmentationConfig controls tone segmentation
type SegmentationConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"` // Semitones
}

// HarmonicConfig controls per-frame harmonic scoring
type HarmonicConfig struct {
	TopPeaks        int     `yaml:"top_peaks" mapstructure:"top_peaks"`
	MinFundamental  float64 `yaml:"min_fundamental" mapstructure:"min_fundamental"`
	FoldTolerance   float64 `yaml:"fold_tolerance" mapstructure:"fold_tolerance"`
	UnisonTolerance float64 `yaml:"unison_tolerance" mapstructure:"unison_tolerance"`
}

// DetectionConfig controls streaming feature detection
type DetectionConfig struct {
	Classifier        string  `yaml:"classifier" mapstructure:"classifier"` // energy or harmonic
	Capacity          int     `yaml:"capacity" mapstructure:"capacity"`
	PassScore         int     `yaml:"pass_score" mapstructure:"pass_score"`
	EnergyThreshold   float64 `yaml:"energy_threshold" mapstructure:"energy_threshold"`
	HarmonicThreshold float64 `yaml:"harmonic_threshold" mapstructure:"harmonic_threshold"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Format           string `yaml:"format" mapstructure:"format"` // yaml or json
	IncludeMagnitude bool   `yaml:"include_magnitude" mapstructure:"include_magnitude"`
}

const (
	PitchSpectral        = "spectral"
	PitchYIN             = "yin"
	PitchAutocorrelation = "autocorrelation"

	ClassifierEnergy   = "energy"
	ClassifierHarmonic = "harmonic"

	FormatYAML = "yaml"
	FormatJSON = "json"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: LogFormatText,
		Spectral: SpectralConfig{
			WindowSize:    2048,
			HopSize:       512,
			Window:        "hann",
			MinFreq:       50,
			MaxFreq:       2000,
			MaxPeaks:      20,
			MinPeakHeight: 1e-3,
			MinMagnitude:  1e-3,
			DominantBins:  5,
		},
		Pitch: PitchConfig{
			Method:       PitchSpectral,
			YINThreshold: 0.1,
			MinClarity:   0.5,
		},
		Segmentation: SegmentationConfig{
			Threshold: 1.0,
		},
		Harmonic: HarmonicConfig{
			TopPeaks:        5,
			MinFundamental:  100,
			FoldTolerance:   1,
			UnisonTolerance: 1,
		},
		Detection: DetectionConfig{
			Classifier:        ClassifierEnergy,
			Capacity:          8,
			PassScore:         5,
			EnergyThreshold:   0.01,
			HarmonicThreshold: 0.3,
		},
		Output: OutputConfig{
			Format: FormatYAML,
		},
	}
}

// Validate checks every field and reports the first problem found
func (c *Config) Validate() error {
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return invalid("log_level %q is not a known level", c.LogLevel)
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return invalid("log_format must be %q or %q, got %q", LogFormatText, LogFormatJSON, c.LogFormat)
	}

	if c.Preprocess.DCCutoff < 0 || math.IsNaN(c.Preprocess.DCCutoff) || math.IsInf(c.Preprocess.DCCutoff, 0) {
		return invalid("preprocess.dc_cutoff must be finite and not negative, got %g", c.Preprocess.DCCutoff)
	}

	s := c.Spectral
	if s.WindowSize < 2 {
		return invalid("spectral.window_size must be at least 2, got %d", s.WindowSize)
	}
	if s.HopSize <= 0 || s.HopSize > s.WindowSize {
		return invalid("spectral.hop_size must be in [1, %d], got %d", s.WindowSize, s.HopSize)
	}
	if _, err := spectral.ParseWindowFunc(s.Window); err != nil {
		return fmt.Errorf("spectral.window: %w", err)
	}
	if !common.IsPositiveFinite(s.MinFreq) || !(s.MaxFreq > s.MinFreq) {
		return invalid("spectral frequency range [%g, %g] is invalid", s.MinFreq, s.MaxFreq)
	}
	if s.MaxPeaks <= 0 {
		return invalid("spectral.max_peaks must be positive, got %d", s.MaxPeaks)
	}
	if s.MinPeakHeight < 0 || s.MinMagnitude < 0 {
		return invalid("spectral magnitude floors must not be negative")
	}
	if s.DominantBins <= 0 {
		return invalid("spectral.dominant_bins must be positive, got %d", s.DominantBins)
	}

	p := c.Pitch
	switch p.Method {
	case PitchSpectral, PitchYIN, PitchAutocorrelation:
	default:
		return invalid("pitch.method must be %q, %q or %q, got %q", PitchSpectral, PitchYIN, PitchAutocorrelation, p.Method)
	}
	if !(p.YINThreshold > 0 && p.YINThreshold < 1) {
		return invalid("pitch.yin_threshold must be in (0, 1), got %g", p.YINThreshold)
	}
	if p.MinClarity < 0 || p.MinClarity > 1 {
		return invalid("pitch.min_clarity must be in [0, 1], got %g", p.MinClarity)
	}

	if !common.IsPositiveFinite(c.Segmentation.Threshold) {
		return invalid("segmentation.threshold must be positive, got %g", c.Segmentation.Threshold)
	}

	h := c.Harmonic
	if h.TopPeaks < 2 {
		return invalid("harmonic.top_peaks must be at least 2, got %d", h.TopPeaks)
	}
	if !common.IsPositiveFinite(h.MinFundamental) {
		return invalid("harmonic.min_fundamental must be positive, got %g", h.MinFundamental)
	}
	if h.FoldTolerance < 0 || h.FoldTolerance > 6 {
		return invalid("harmonic.fold_tolerance must be in [0, 6], got %g", h.FoldTolerance)
	}
	if h.UnisonTolerance < 0 {
		return invalid("harmonic.unison_tolerance must not be negative, got %g", h.UnisonTolerance)
	}

	d := c.Detection
	switch d.Classifier {
	case ClassifierEnergy, ClassifierHarmonic:
	default:
		return invalid("detection.classifier must be %q or %q, got %q", ClassifierEnergy, ClassifierHarmonic, d.Classifier)
	}
	if d.Capacity <= 0 {
		return invalid("detection.capacity must be positive, got %d", d.Capacity)
	}
	if d.PassScore < 1 || d.PassScore > d.Capacity {
		return invalid("detection.pass_score must be in [1, %d], got %d", d.Capacity, d.PassScore)
	}
	if d.EnergyThreshold < 0 {
		return invalid("detection.energy_threshold must not be negative, got %g", d.EnergyThreshold)
	}
	if !(d.HarmonicThreshold > 0 && d.HarmonicThreshold <= 1) {
		return invalid("detection.harmonic_threshold must be in (0, 1], got %g", d.HarmonicThreshold)
	}

	switch c.Output.Format {
	case FormatYAML, FormatJSON:
	default:
		return invalid("output.format must be %q or %q, got %q", FormatYAML, FormatJSON, c.Output.Format)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// setDefaults registers every key so that environment overrides apply to
// keys absent from the file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)

	v.SetDefault("preprocess.dc_cutoff", cfg.Preprocess.DCCutoff)

	v.SetDefault("spectral.window_size", cfg.Spectral.WindowSize)
	v.SetDefault("spectral.hop_size", cfg.Spectral.HopSize)
	v.SetDefault("spectral.window", cfg.Spectral.Window)
	v.SetDefault("spectral.min_freq", cfg.Spectral.MinFreq)
	v.SetDefault("spectral.max_freq", cfg.Spectral.MaxFreq)
	v.SetDefault("spectral.max_peaks", cfg.Spectral.MaxPeaks)
	v.SetDefault("spectral.min_peak_height", cfg.Spectral.MinPeakHeight)
	v.SetDefault("spectral.min_magnitude", cfg.Spectral.MinMagnitude)
	v.SetDefault("spectral.dominant_bins", cfg.Spectral.DominantBins)

	v.SetDefault("pitch.method", cfg.Pitch.Method)
	v.SetDefault("pitch.yin_threshold", cfg.Pitch.YINThreshold)
	v.SetDefault("pitch.min_clarity", cfg.Pitch.MinClarity)

	v.SetDefault("segmentation.threshold", cfg.Segmentation.Threshold)

	v.SetDefault("harmonic.top_peaks", cfg.Harmonic.TopPeaks)
	v.SetDefault("harmonic.min_fundamental", cfg.Harmonic.MinFundamental)
	v.SetDefault("harmonic.fold_tolerance", cfg.Harmonic.FoldTolerance)
	v.SetDefault("harmonic.unison_tolerance", cfg.Harmonic.UnisonTolerance)

	v.SetDefault("detection.classifier", cfg.Detection.Classifier)
	v.SetDefault("detection.capacity", cfg.Detection.Capacity)
	v.SetDefault("detection.pass_score", cfg.Detection.PassScore)
	v.SetDefault("detection.energy_threshold", cfg.Detection.EnergyThreshold)
	v.SetDefault("detection.harmonic_threshold", cfg.Detection.HarmonicThreshold)

	v.SetDefault("output.format", cfg.Output.Format)
	v.SetDefault("output.include_magnitude", cfg.Output.IncludeMagnitude)
}

// Load builds a configuration from the defaults, then the file at path (any
// format viper understands; skipped when path is empty), then SONIDO_*
// environment variables. The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// WriteYAML writes the configuration as YAML
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
