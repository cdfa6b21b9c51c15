package temporal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
	"github.com/RyanBlaney/sonido-tone/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-tone/algorithms/spectral"
)

// EnergyClassifier flags frames whose RMS level reaches a threshold
type EnergyClassifier struct {
	threshold float64
}

// NewEnergyClassifier creates an energy classifier. threshold is a linear
// RMS level and must be non-negative.
func NewEnergyClassifier(threshold float64) (*EnergyClassifier, error) {
	if threshold < 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, fmt.Errorf("%w: energy threshold must be a non-negative finite value, got %g", common.ErrInvalidParameter, threshold)
	}
	return &EnergyClassifier{threshold: threshold}, nil
}

// Classify reports whether the frame RMS is at least the threshold
func (ec *EnergyClassifier) Classify(frame []float64) (bool, error) {
	if len(frame) == 0 {
		return false, fmt.Errorf("%w: empty frame", common.ErrEmptyInput)
	}
	return common.RMS(frame) >= ec.threshold, nil
}

// HarmonicClassifierParams configures a HarmonicClassifier
type HarmonicClassifierParams struct {
	SampleRate    int                 `json:"sample_rate"`
	Window        spectral.WindowFunc `json:"window"`
	MinFreq       float64             `json:"min_freq"`
	MaxFreq       float64             `json:"max_freq"`
	MinPeakHeight float64             `json:"min_peak_height"`
	MaxPeaks      int                 `json:"max_peaks"`
	TopPeaks      int                 `json:"top_peaks"` // Peaks scored for harmonicity
	Threshold     float64             `json:"threshold"` // Minimum harmonic probability

	Analyzer harmonic.HarmonicAnalyzerParams `json:"analyzer"`
}

// DefaultHarmonicClassifierParams returns defaults for 44.1 kHz audio
func DefaultHarmonicClassifierParams() HarmonicClassifierParams {
	return HarmonicClassifierParams{
		SampleRate:    44100,
		Window:        spectral.Hann,
		MinFreq:       50,
		MaxFreq:       5000,
		MinPeakHeight: 1e-3,
		MaxPeaks:      20,
		TopPeaks:      5,
		Threshold:     0.3,
		Analyzer:      harmonic.DefaultHarmonicAnalyzerParams(),
	}
}

// HarmonicClassifier flags frames whose strongest spectral peaks are
// harmonically related. Each frame is windowed and transformed on its own.
type HarmonicClassifier struct {
	params   HarmonicClassifierParams
	fft      *spectral.FFT
	peaks    *harmonic.SpectralPeaks
	analyzer *harmonic.HarmonicAnalyzer
}

// NewHarmonicClassifier creates a harmonic classifier
func NewHarmonicClassifier(params HarmonicClassifierParams) (*HarmonicClassifier, error) {
	if params.TopPeaks < 2 {
		return nil, fmt.Errorf("%w: at least two top peaks are needed, got %d", common.ErrInvalidParameter, params.TopPeaks)
	}
	if !(params.Threshold > 0 && params.Threshold <= 1) {
		return nil, fmt.Errorf("%w: harmonic threshold %g outside (0, 1]", common.ErrInvalidParameter, params.Threshold)
	}

	peaks, err := harmonic.NewSpectralPeaks(params.SampleRate, params.MinPeakHeight, params.MinFreq, params.MaxFreq, params.MaxPeaks)
	if err != nil {
		return nil, err
	}

	analyzer, err := harmonic.NewHarmonicAnalyzerWithParams(params.Analyzer)
	if err != nil {
		return nil, err
	}

	return &HarmonicClassifier{
		params:   params,
		fft:      spectral.NewFFT(),
		peaks:    peaks,
		analyzer: analyzer,
	}, nil
}

// Classify reports whether the harmonic probability of the frame's top
// peaks reaches the threshold. Frames with fewer than two peaks score 0 and
// never pass.
func (hc *HarmonicClassifier) Classify(frame []float64) (bool, error) {
	score, err := hc.Score(frame)
	if err != nil {
		return false, err
	}
	return score >= hc.params.Threshold, nil
}

// Score returns the harmonic probability of the frame's top peaks
func (hc *HarmonicClassifier) Score(frame []float64) (float64, error) {
	if len(frame) == 0 {
		return 0, fmt.Errorf("%w: empty frame", common.ErrEmptyInput)
	}

	buffer := make([]float64, len(frame))
	copy(buffer, frame)

	if len(buffer) >= 2 {
		win, err := spectral.NewWindow(hc.params.Window, len(buffer))
		if err != nil {
			return 0, err
		}
		if err := win.ApplyInPlace(buffer); err != nil {
			return 0, err
		}
	}

	magnitude := hc.fft.MagnitudeSpectrum(buffer)
	detected := hc.peaks.DetectPeaks(magnitude, len(frame))

	return hc.analyzer.PeakProbability(detected, hc.params.TopPeaks)
}

// GetParameters returns the classifier parameters
func (hc *HarmonicClassifier) GetParameters() HarmonicClassifierParams {
	return hc.params
}
