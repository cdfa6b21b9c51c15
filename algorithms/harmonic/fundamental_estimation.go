package harmonic

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
)

// EstimationMethod selects a time-domain F0 estimator
type EstimationMethod int

const (
	MethodYIN EstimationMethod = iota
	MethodAutocorrelation
)

// ParseEstimationMethod converts a method name to an EstimationMethod
func ParseEstimationMethod(name string) (EstimationMethod, error) {
	switch name {
	case "yin":
		return MethodYIN, nil
	case "autocorrelation", "acf":
		return MethodAutocorrelation, nil
	default:
		return MethodYIN, fmt.Errorf("%w: unknown F0 estimation method %q", common.ErrInvalidParameter, name)
	}
}

func (m EstimationMethod) String() string {
	switch m {
	case MethodYIN:
		return "yin"
	case MethodAutocorrelation:
		return "autocorrelation"
	default:
		return "unknown"
	}
}

// FundamentalEstimationParams configures a FundamentalEstimation
type FundamentalEstimationParams struct {
	SampleRate int              `json:"sample_rate"`
	MinF0      float64          `json:"min_f0"` // Hz
	MaxF0      float64          `json:"max_f0"` // Hz
	Method     EstimationMethod `json:"method"`

	// YINThreshold is the absolute threshold on the cumulative mean
	// normalized difference; 0.1 to 0.15 is typical
	YINThreshold float64 `json:"yin_threshold"`

	// MinClarity is the normalized autocorrelation peak a frame needs to be voiced
	MinClarity float64 `json:"min_clarity"`
}

// FundamentalEstimation estimates the fundamental frequency (F0) of frames
// in the time domain
type FundamentalEstimation struct {
	params FundamentalEstimationParams
	minLag int
	maxLag int
}

// DefaultFundamentalEstimationParams returns YIN defaults for 44.1 kHz audio
func DefaultFundamentalEstimationParams() FundamentalEstimationParams {
	return FundamentalEstimationParams{
		SampleRate:   44100,
		MinF0:        50,
		MaxF0:        2000,
		Method:       MethodYIN,
		YINThreshold: 0.1,
		MinClarity:   0.5,
	}
}

// NewFundamentalEstimation creates a new F0 estimator
func NewFundamentalEstimation(params FundamentalEstimationParams) (*FundamentalEstimation, error) {
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", common.ErrInvalidParameter, params.SampleRate)
	}
	if !common.IsPositiveFinite(params.MinF0) || !(params.MaxF0 > params.MinF0) {
		return nil, fmt.Errorf("%w: F0 range [%g, %g] is invalid", common.ErrInvalidParameter, params.MinF0, params.MaxF0)
	}
	if params.YINThreshold <= 0 || params.YINThreshold >= 1 {
		return nil, fmt.Errorf("%w: YIN threshold %g outside (0, 1)", common.ErrInvalidParameter, params.YINThreshold)
	}
	if params.MinClarity < 0 || params.MinClarity > 1 {
		return nil, fmt.Errorf("%w: clarity %g outside [0, 1]", common.ErrInvalidParameter, params.MinClarity)
	}

	return &FundamentalEstimation{
		params: params,
		minLag: max(1, int(math.Floor(float64(params.SampleRate)/params.MaxF0))),
		maxLag: int(math.Ceil(float64(params.SampleRate) / params.MinF0)),
	}, nil
}

// Estimate returns the F0 of frame in Hz and whether the frame is voiced
func (fe *FundamentalEstimation) Estimate(frame []float64) (float64, bool) {
	switch fe.params.Method {
	case MethodAutocorrelation:
		return fe.EstimateAutocorrelation(frame)
	default:
		return fe.EstimateYIN(frame)
	}
}

// EstimateYIN estimates F0 with the YIN difference function. The first lag
// whose normalized difference drops below the threshold is followed down to
// its local minimum, then refined by parabolic interpolation.
func (fe *FundamentalEstimation) EstimateYIN(frame []float64) (float64, bool) {
	maxLag := min(fe.maxLag, len(frame)/2)
	if maxLag <= fe.minLag {
		return 0, false
	}

	cmndf := fe.cumulativeMeanNormalizedDifference(frame, maxLag)

	for lag := fe.minLag; lag <= maxLag; lag++ {
		if cmndf[lag] >= fe.params.YINThreshold {
			continue
		}
		for lag < maxLag && cmndf[lag+1] < cmndf[lag] {
			lag++
		}

		period := float64(lag) + parabolicOffset(cmndf, lag)
		if period <= 0 {
			return 0, false
		}
		return float64(fe.params.SampleRate) / period, true
	}

	return 0, false
}

// cumulativeMeanNormalizedDifference computes d'(tau) for tau in [0, maxLag]
// over a fixed integration window of len(frame)-maxLag samples
func (fe *FundamentalEstimation) cumulativeMeanNormalizedDifference(frame []float64, maxLag int) []float64 {
	window := len(frame) - maxLag

	cmndf := make([]float64, maxLag+1)
	cmndf[0] = 1
	running := 0.0

	for lag := 1; lag <= maxLag; lag++ {
		d := 0.0
		for i := 0; i < window; i++ {
			diff := frame[i] - frame[i+lag]
			d += diff * diff
		}

		running += d
		if running > 0 {
			cmndf[lag] = d * float64(lag) / running
		} else {
			cmndf[lag] = 1
		}
	}

	return cmndf
}

// EstimateAutocorrelation estimates F0 from the strongest local maximum of
// the normalized autocorrelation
func (fe *FundamentalEstimation) EstimateAutocorrelation(frame []float64) (float64, bool) {
	maxLag := min(fe.maxLag, len(frame)-2)
	if maxLag <= fe.minLag {
		return 0, false
	}

	energy := 0.0
	for _, s := range frame {
		energy += s * s
	}
	if energy == 0 {
		return 0, false
	}

	acf := make([]float64, maxLag+2)
	for lag := range acf {
		sum := 0.0
		for i := 0; i+lag < len(frame); i++ {
			sum += frame[i] * frame[i+lag]
		}
		acf[lag] = sum / energy
	}

	bestLag := 0
	bestValue := fe.params.MinClarity
	for lag := fe.minLag; lag <= maxLag; lag++ {
		if acf[lag] > acf[lag-1] && acf[lag] >= acf[lag+1] && acf[lag] >= bestValue {
			bestValue = acf[lag]
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0, false
	}

	// parabolicOffset locates minima; negate to find the maximum
	negated := []float64{-acf[bestLag-1], -acf[bestLag], -acf[bestLag+1]}
	period := float64(bestLag) + parabolicOffset(negated, 1)
	return float64(fe.params.SampleRate) / period, true
}

// Track estimates F0 for each frame and keeps the voiced ones, so frame
// ordinals line up with an STFT computed with the same window and hop
func (fe *FundamentalEstimation) Track(frames [][]float64) []FrequencySample {
	samples := make([]FrequencySample, 0, len(frames))
	for t, frame := range frames {
		if hz, ok := fe.Estimate(frame); ok && common.IsPositiveFinite(hz) {
			samples = append(samples, FrequencySample{Frame: t, Hz: hz})
		}
	}
	return samples
}

// GetParameters returns the estimator parameters
func (fe *FundamentalEstimation) GetParameters() FundamentalEstimationParams {
	return fe.params
}

// parabolicOffset returns the sub-sample offset of the minimum of the
// parabola through data[i-1], data[i], data[i+1], in [-0.5, 0.5]
func parabolicOffset(data []float64, i int) float64 {
	if i <= 0 || i >= len(data)-1 {
		return 0
	}

	y1, y2, y3 := data[i-1], data[i], data[i+1]
	denom := y1 - 2*y2 + y3
	if math.Abs(denom) < 1e-12 {
		return 0
	}

	offset := 0.5 * (y1 - y3) / denom
	return max(-0.5, min(0.5, offset))
}
