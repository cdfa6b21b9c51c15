package filters

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
)

// DCRemoval is a one-pole DC blocker:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// See Julius O. Smith III, "Introduction to Digital Filters with Audio
// Applications", https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCRemoval struct {
	pole       float64 // R, 0 < R < 1
	sampleRate int

	x1 float64 // x[n-1]
	y1 float64 // y[n-1]
}

// NewDCRemoval creates a DC blocker with the given -3 dB cutoff. The pole is
// placed at R = 1 - 2*pi*fc/fs, which holds for fc << fs/2.
func NewDCRemoval(sampleRate int, cutoffHz float64) (*DCRemoval, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", common.ErrInvalidParameter, sampleRate)
	}
	if !common.IsPositiveFinite(cutoffHz) || cutoffHz >= float64(sampleRate)/2 {
		return nil, fmt.Errorf("%w: cutoff %g Hz outside (0, %d)", common.ErrInvalidParameter, cutoffHz, sampleRate/2)
	}

	pole := 1.0 - 2.0*math.Pi*cutoffHz/float64(sampleRate)
	pole = max(0.001, min(0.999, pole))

	return &DCRemoval{pole: pole, sampleRate: sampleRate}, nil
}

// Process filters one sample
func (dc *DCRemoval) Process(input float64) float64 {
	output := input - dc.x1 + dc.pole*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// ProcessBuffer filters input into a new slice, continuing from the current state
func (dc *DCRemoval) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = dc.Process(sample)
	}
	return output
}

// Reset clears the filter state between discontinuous signals
func (dc *DCRemoval) Reset() {
	dc.x1 = 0
	dc.y1 = 0
}

// GetCutoffFrequency returns the approximate -3 dB cutoff in Hz
func (dc *DCRemoval) GetCutoffFrequency() float64 {
	return (1.0 - dc.pole) * float64(dc.sampleRate) / (2.0 * math.Pi)
}

// GetPoleLocation returns R
func (dc *DCRemoval) GetPoleLocation() float64 {
	return dc.pole
}
