package stats

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
)

// PercentileMethod selects how a percentile falls between samples
type PercentileMethod int

const (
	// Linear interpolates between neighbouring ranks
	Linear PercentileMethod = iota

	// Lower returns the lowest sample at or above the requested fraction
	Lower
)

// QuartileInfo holds the quartiles of a sample
type QuartileInfo struct {
	Q1  float64 `json:"q1" yaml:"q1"`
	Q2  float64 `json:"q2" yaml:"q2"` // Median
	Q3  float64 `json:"q3" yaml:"q3"`
	IQR float64 `json:"iqr" yaml:"iqr"` // Q3 - Q1
}

// Percentiles computes order statistics on top of gonum's stat.Quantile
type Percentiles struct {
	method PercentileMethod
}

// NewPercentiles creates a calculator that interpolates linearly
func NewPercentiles() *Percentiles {
	return &Percentiles{method: Linear}
}

// NewPercentilesWithMethod creates a calculator using method
func NewPercentilesWithMethod(method PercentileMethod) *Percentiles {
	return &Percentiles{method: method}
}

func (p *Percentiles) cumulantKind() stat.CumulantKind {
	if p.method == Lower {
		return stat.Empirical
	}
	return stat.LinInterp
}

func sortedCopy(data []float64) ([]float64, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no data for percentiles", common.ErrEmptyInput)
	}
	for i, v := range data {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("%w: NaN at index %d", common.ErrDomain, i)
		}
	}

	sorted := slices.Clone(data)
	slices.Sort(sorted)
	return sorted, nil
}

// Calculate returns the percentile (0 to 100) of data
func (p *Percentiles) Calculate(data []float64, percentile float64) (float64, error) {
	if !(percentile >= 0 && percentile <= 100) {
		return 0, fmt.Errorf("%w: percentile %g outside [0, 100]", common.ErrInvalidParameter, percentile)
	}

	sorted, err := sortedCopy(data)
	if err != nil {
		return 0, err
	}
	return stat.Quantile(percentile/100, p.cumulantKind(), sorted, nil), nil
}

// Quartiles returns Q1, the median, Q3 and the interquartile range of data
func (p *Percentiles) Quartiles(data []float64) (QuartileInfo, error) {
	sorted, err := sortedCopy(data)
	if err != nil {
		return QuartileInfo{}, err
	}

	kind := p.cumulantKind()
	q := QuartileInfo{
		Q1: stat.Quantile(0.25, kind, sorted, nil),
		Q2: stat.Quantile(0.5, kind, sorted, nil),
		Q3: stat.Quantile(0.75, kind, sorted, nil),
	}
	q.IQR = q.Q3 - q.Q1
	return q, nil
}

// GetMethodName returns the name of the interpolation method
func (p *Percentiles) GetMethodName() string {
	switch p.method {
	case Lower:
		return "lower"
	default:
		return "linear"
	}
}
