package spectral

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
	"github.com/RyanBlaney/sonido-tone/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-tone/algorithms/stats"
)

// PitchTracker derives one dominant-frequency estimate per spectrogram frame
type PitchTracker struct {
	minFreq      float64
	maxFreq      float64
	minMagnitude float64
}

// NewPitchTracker creates a tracker searching [minFreq, maxFreq] Hz. Frames
// whose strongest in-band bin does not exceed minMagnitude are unvoiced.
func NewPitchTracker(minFreq, maxFreq, minMagnitude float64) (*PitchTracker, error) {
	if !common.IsPositiveFinite(minFreq) || !(maxFreq > minFreq) {
		return nil, fmt.Errorf("%w: pitch range [%g, %g] is invalid", common.ErrInvalidParameter, minFreq, maxFreq)
	}
	if minMagnitude < 0 {
		return nil, fmt.Errorf("%w: minimum magnitude must not be negative", common.ErrInvalidParameter)
	}

	return &PitchTracker{
		minFreq:      minFreq,
		maxFreq:      maxFreq,
		minMagnitude: minMagnitude,
	}, nil
}

// Track returns a FrequencySample for each voiced frame of result. Unvoiced
// frames are left out, so every returned frequency is positive.
func (pt *PitchTracker) Track(result *STFTResult) []harmonic.FrequencySample {
	lowBin := max(1, int(math.Ceil(pt.minFreq/result.FreqResolution)))
	highBin := min(result.FreqBins-1, int(math.Floor(pt.maxFreq/result.FreqResolution)))
	if highBin < lowBin {
		return []harmonic.FrequencySample{}
	}

	samples := make([]harmonic.FrequencySample, 0, result.TimeFrames)
	for t, frame := range result.Magnitude {
		band := frame[lowBin : highBin+1]

		selector, err := stats.NewRankedSelector(band)
		if err != nil {
			continue
		}
		peakBin := lowBin + selector.MaxValueIndex()
		if frame[peakBin] <= pt.minMagnitude {
			continue
		}

		hz := refineBin(frame, peakBin) * result.FreqResolution
		if hz <= 0 {
			continue
		}
		samples = append(samples, harmonic.FrequencySample{Frame: t, Hz: hz})
	}

	return samples
}

// refineBin returns the sub-bin position of a peak by parabolic interpolation
func refineBin(spectrum []float64, bin int) float64 {
	if bin <= 0 || bin >= len(spectrum)-1 {
		return float64(bin)
	}

	y1 := spectrum[bin-1]
	y2 := spectrum[bin]
	y3 := spectrum[bin+1]

	denom := 2.0 * (2.0*y2 - y1 - y3)
	if math.Abs(denom) < 1e-10 {
		return float64(bin)
	}

	offset := (y3 - y1) / denom
	if math.Abs(offset) > 0.5 {
		return float64(bin)
	}
	return float64(bin) + offset
}
