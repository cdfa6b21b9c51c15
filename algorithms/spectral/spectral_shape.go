package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
)

// SpectralShape computes the spectral centroid and spectral flatness (Wiener
// entropy) of magnitude spectra produced by an FFT of windowSize samples
type SpectralShape struct {
	sampleRate int
	windowSize int
	floor      float64 // Magnitudes below the floor count as the floor in the log domain

	freqBins []float64
}

// NewSpectralShape creates a new spectral shape calculator
func NewSpectralShape(sampleRate, windowSize int) (*SpectralShape, error) {
	if sampleRate <= 0 || windowSize < 2 {
		return nil, fmt.Errorf("%w: sample rate %d and window size %d must be positive",
			common.ErrInvalidParameter, sampleRate, windowSize)
	}
	return &SpectralShape{
		sampleRate: sampleRate,
		windowSize: windowSize,
		floor:      1e-10,
	}, nil
}

func (ss *SpectralShape) bins(n int) []float64 {
	if len(ss.freqBins) != n {
		ss.freqBins = make([]float64, n)
		for i := 0; i < n; i++ {
			ss.freqBins[i] = float64(i) * float64(ss.sampleRate) / float64(ss.windowSize)
		}
	}
	return ss.freqBins
}

// Centroid returns the magnitude-weighted mean frequency in Hz, 0 for a silent spectrum
func (ss *SpectralShape) Centroid(spectrum []float64) float64 {
	total := floats.Sum(spectrum)
	if total <= 0 {
		return 0
	}
	return floats.Dot(ss.bins(len(spectrum)), spectrum) / total
}

// Flatness returns the ratio of the geometric to the arithmetic mean of
// spectrum in [0, 1]. Values near 0 are tonal, values near 1 noise-like.
func (ss *SpectralShape) Flatness(spectrum []float64) float64 {
	if len(spectrum) == 0 {
		return 0
	}

	arithmetic := floats.Sum(spectrum) / float64(len(spectrum))
	if arithmetic <= ss.floor {
		return 0
	}

	logSum := 0.0
	for _, m := range spectrum {
		logSum += math.Log(max(m, ss.floor))
	}
	geometric := math.Exp(logSum / float64(len(spectrum)))

	return min(1, geometric/arithmetic)
}

// ComputeFrames returns the centroid and flatness of every frame
func (ss *SpectralShape) ComputeFrames(magnitude [][]float64) (centroids, flatness []float64) {
	centroids = make([]float64, len(magnitude))
	flatness = make([]float64, len(magnitude))
	for t, spectrum := range magnitude {
		centroids[t] = ss.Centroid(spectrum)
		flatness[t] = ss.Flatness(spectrum)
	}
	return centroids, flatness
}
