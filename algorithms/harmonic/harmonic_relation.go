package harmonic

import (
	"fmt"
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
	"github.com/RyanBlaney/sonido-tone/algorithms/stats"
)

const semitonesPerOctave = 12.0

// FrequencySample is one pitch estimate: the frame it was measured in and the
// frequency in Hz
type FrequencySample struct {
	Frame int     `json:"frame" yaml:"frame"`
	Hz    float64 `json:"hz" yaml:"hz"`
}

// HarmonicAnalyzerParams contains the tolerances used by harmonic scoring
type HarmonicAnalyzerParams struct {
	MinFundamental  float64 `json:"min_fundamental"`  // Lowest candidate fundamental step (Hz)
	FoldTolerance   float64 `json:"fold_tolerance"`   // Max octave-folded distance to a harmonic (semitones)
	UnisonTolerance float64 `json:"unison_tolerance"` // Distances below this are unison, never harmonic (semitones)
}

// HarmonicAnalyzer scores pairs and sets of frequencies for harmonic
// relatedness using the semitone distance metric
type HarmonicAnalyzer struct {
	params HarmonicAnalyzerParams
}

// DefaultHarmonicAnalyzerParams returns 100 Hz fundamental steps with a one
// semitone tolerance
func DefaultHarmonicAnalyzerParams() HarmonicAnalyzerParams {
	return HarmonicAnalyzerParams{
		MinFundamental:  100.0,
		FoldTolerance:   1.0,
		UnisonTolerance: 1.0,
	}
}

// NewHarmonicAnalyzer creates a new harmonic analyzer with default parameters
func NewHarmonicAnalyzer() *HarmonicAnalyzer {
	return &HarmonicAnalyzer{params: DefaultHarmonicAnalyzerParams()}
}

// NewHarmonicAnalyzerWithParams creates a harmonic analyzer with custom parameters
func NewHarmonicAnalyzerWithParams(params HarmonicAnalyzerParams) (*HarmonicAnalyzer, error) {
	if !common.IsPositiveFinite(params.MinFundamental) {
		return nil, fmt.Errorf("%w: min fundamental must be positive, got %g", common.ErrInvalidParameter, params.MinFundamental)
	}
	if params.FoldTolerance < 0 || params.FoldTolerance > semitonesPerOctave/2 {
		return nil, fmt.Errorf("%w: fold tolerance %g outside [0, 6]", common.ErrInvalidParameter, params.FoldTolerance)
	}
	if params.UnisonTolerance < 0 {
		return nil, fmt.Errorf("%w: unison tolerance must not be negative, got %g", common.ErrInvalidParameter, params.UnisonTolerance)
	}

	return &HarmonicAnalyzer{params: params}, nil
}

// ToneChanged returns the signed semitone distance from f2 to f1,
// log2(f1/f2) * 12
func ToneChanged(f1, f2 float64) (float64, error) {
	if !common.IsPositiveFinite(f1) || !common.IsPositiveFinite(f2) {
		return 0, fmt.Errorf("%w: semitone distance needs positive frequencies, got %g and %g", common.ErrDomain, f1, f2)
	}
	return math.Log2(f1/f2) * semitonesPerOctave, nil
}

// IsHarmonic reports whether f1 and f2 are harmonics of a common fundamental
//
// Candidate fundamentals are f1/i for i = 1..floor(f1/MinFundamental). For each,
// multiples j >= 2 up to ceil(f2/f0)+1 are compared with f2; the first multiple
// whose octave-folded distance is within FoldTolerance is accepted, so the scan
// is best-effort rather than exhaustive. Unison pairs are never harmonic.
func (ha *HarmonicAnalyzer) IsHarmonic(f1, f2 float64) (bool, error) {
	distance, err := ToneChanged(f1, f2)
	if err != nil {
		return false, err
	}
	if math.Abs(distance) < ha.params.UnisonTolerance {
		return false, nil
	}

	maxDivisor := int(math.Floor(f1 / ha.params.MinFundamental))
	for i := 1; i <= maxDivisor; i++ {
		f0 := f1 / float64(i)
		maxMultiple := int(math.Ceil(f2/f0)) + 1

		for j := 2; j <= maxMultiple; j++ {
			diff, err := ToneChanged(f0*float64(j), f2)
			if err != nil {
				return false, err
			}

			if foldOctave(diff) <= ha.params.FoldTolerance {
				return true, nil
			}
		}
	}

	return false, nil
}

// HarmonicProbability returns the fraction of unordered pairs in freqs that
// are harmonic. Fewer than two frequencies have no pairs and score 0.
func (ha *HarmonicAnalyzer) HarmonicProbability(freqs []float64) (float64, error) {
	if len(freqs) < 2 {
		return 0.0, nil
	}

	sorted := slices.Clone(freqs)
	slices.Sort(sorted)

	harmonicPairs := 0
	totalPairs := 0
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			ok, err := ha.IsHarmonic(sorted[i], sorted[j])
			if err != nil {
				return 0.0, err
			}
			if ok {
				harmonicPairs++
			}
			totalPairs++
		}
	}

	return float64(harmonicPairs) / float64(totalPairs), nil
}

// PeakProbability scores the topN strongest peaks by magnitude. When fewer
// peaks are available, all of them are scored.
func (ha *HarmonicAnalyzer) PeakProbability(peaks []SpectralPeak, topN int) (float64, error) {
	if topN < 1 {
		return 0.0, fmt.Errorf("%w: top peak count must be positive, got %d", common.ErrInvalidParameter, topN)
	}
	if len(peaks) < 2 {
		return 0.0, nil
	}

	magnitudes := make([]float64, len(peaks))
	for i, p := range peaks {
		magnitudes[i] = p.Magnitude
	}

	selector, err := stats.NewRankedSelector(magnitudes)
	if err != nil {
		return 0.0, err
	}
	top, err := selector.TopIndexes(min(topN, len(peaks)))
	if err != nil {
		return 0.0, err
	}

	freqs := make([]float64, len(top))
	for i, idx := range top {
		freqs[i] = peaks[idx].Frequency
	}

	return ha.HarmonicProbability(freqs)
}

// GetParameters returns the analyzer parameters
func (ha *HarmonicAnalyzer) GetParameters() HarmonicAnalyzerParams {
	return ha.params
}

// foldOctave reduces a semitone distance into the [0, 6] range: distance
// within the octave, measured to the nearest octave boundary
func foldOctave(semitones float64) float64 {
	diff := math.Mod(math.Abs(semitones), semitonesPerOctave)
	if diff > semitonesPerOctave/2 {
		diff = semitonesPerOctave - diff
	}
	return diff
}

var defaultAnalyzer = NewHarmonicAnalyzer()

// IsHarmonic reports whether f1 and f2 are harmonically related using the
// default parameters
func IsHarmonic(f1, f2 float64) (bool, error) {
	return defaultAnalyzer.IsHarmonic(f1, f2)
}

// HarmonicProbability scores a frequency set using the default parameters
func HarmonicProbability(freqs []float64) (float64, error) {
	return defaultAnalyzer.HarmonicProbability(freqs)
}
