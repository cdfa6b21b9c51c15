package harmonic

import (
	"fmt"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
	"github.com/RyanBlaney/sonido-tone/algorithms/stats"
)

// SpectralPeak represents a detected spectral peak
type SpectralPeak struct {
	Frequency float64 `json:"frequency" yaml:"frequency"` // Peak frequency in Hz
	Magnitude float64 `json:"magnitude" yaml:"magnitude"` // Peak magnitude
	BinIndex  int     `json:"bin_index" yaml:"bin_index"` // Original FFT bin index
}

// SpectralPeaks picks the dominant local maxima of a magnitude spectrum
type SpectralPeaks struct {
	sampleRate    int
	minPeakHeight float64
	minFreq       float64
	maxFreq       float64
	maxPeaks      int
}

// NewSpectralPeaks creates a new spectral peaks analyzer restricted to
// [minFreq, maxFreq] Hz
func NewSpectralPeaks(sampleRate int, minPeakHeight, minFreq, maxFreq float64, maxPeaks int) (*SpectralPeaks, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", common.ErrInvalidParameter, sampleRate)
	}
	if maxPeaks <= 0 {
		return nil, fmt.Errorf("%w: max peaks must be positive, got %d", common.ErrInvalidParameter, maxPeaks)
	}
	if minFreq < 0 || maxFreq <= minFreq {
		return nil, fmt.Errorf("%w: frequency range [%g, %g] is empty", common.ErrInvalidParameter, minFreq, maxFreq)
	}

	return &SpectralPeaks{
		sampleRate:    sampleRate,
		minPeakHeight: minPeakHeight,
		minFreq:       minFreq,
		maxFreq:       maxFreq,
		maxPeaks:      maxPeaks,
	}, nil
}

// DetectPeaks returns up to maxPeaks local maxima of magnitudeSpectrum,
// strongest first. windowSize is the FFT size the spectrum was computed with.
func (sp *SpectralPeaks) DetectPeaks(magnitudeSpectrum []float64, windowSize int) []SpectralPeak {
	if len(magnitudeSpectrum) < 3 || windowSize <= 0 {
		return []SpectralPeak{}
	}

	freqResolution := float64(sp.sampleRate) / float64(windowSize)

	var candidates []SpectralPeak
	for i := 1; i < len(magnitudeSpectrum)-1; i++ {
		frequency := float64(i) * freqResolution
		if frequency < sp.minFreq || frequency > sp.maxFreq {
			continue
		}

		if magnitudeSpectrum[i] > magnitudeSpectrum[i-1] &&
			magnitudeSpectrum[i] >= magnitudeSpectrum[i+1] &&
			magnitudeSpectrum[i] >= sp.minPeakHeight {
			candidates = append(candidates, SpectralPeak{
				Frequency: frequency,
				Magnitude: magnitudeSpectrum[i],
				BinIndex:  i,
			})
		}
	}

	if len(candidates) == 0 {
		return []SpectralPeak{}
	}

	magnitudes := make([]float64, len(candidates))
	for i, c := range candidates {
		magnitudes[i] = c.Magnitude
	}

	// Candidates are non-empty and magnitudes are finite, so ranking cannot fail
	selector, err := stats.NewRankedSelector(magnitudes)
	if err != nil {
		return []SpectralPeak{}
	}
	top, _ := selector.TopIndexes(min(sp.maxPeaks, len(candidates)))

	peaks := make([]SpectralPeak, len(top))
	for i, idx := range top {
		peaks[i] = candidates[idx]
	}

	return peaks
}

// Frequencies extracts the peak frequencies in the order given
func Frequencies(peaks []SpectralPeak) []float64 {
	freqs := make([]float64, len(peaks))
	for i, p := range peaks {
		freqs[i] = p.Frequency
	}
	return freqs
}
