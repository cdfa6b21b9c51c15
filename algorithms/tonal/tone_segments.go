package tonal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
	"github.com/RyanBlaney/sonido-tone/algorithms/harmonic"
)

// Segment is a maximal contiguous run of mutually similar pitch values
type Segment struct {
	StartIndex int     `json:"start_index" yaml:"start_index"` // Position of the first value in the input
	Length     int     `json:"length" yaml:"length"`           // Number of values folded into the segment
	MeanValue  float64 `json:"mean_value" yaml:"mean_value"`   // Running arithmetic mean of the values (Hz)
}

// FrameSegment is a Segment mapped back onto frame ordinals of the
// FrequencySamples it was built from
type FrameSegment struct {
	Segment    `yaml:",inline"`
	StartFrame int `json:"start_frame" yaml:"start_frame"`
	EndFrame   int `json:"end_frame" yaml:"end_frame"` // Frame of the last sample, inclusive
}

// ToneSegmenterParams contains parameters for tone segmentation
type ToneSegmenterParams struct {
	// Threshold is the semitone distance from the running segment mean at
	// which a new segment starts
	Threshold float64 `json:"threshold"`
}

// ToneSegmenter clusters an ordered pitch sequence into contiguous tone
// segments in a single streaming pass
type ToneSegmenter struct {
	params ToneSegmenterParams
}

// DefaultToneSegmenterParams returns a one semitone threshold
func DefaultToneSegmenterParams() ToneSegmenterParams {
	return ToneSegmenterParams{
		Threshold: 1.0,
	}
}

// NewToneSegmenter creates a new tone segmenter with default parameters
func NewToneSegmenter() *ToneSegmenter {
	return &ToneSegmenter{params: DefaultToneSegmenterParams()}
}

// NewToneSegmenterWithParams creates a tone segmenter with custom parameters
func NewToneSegmenterWithParams(params ToneSegmenterParams) (*ToneSegmenter, error) {
	if !(params.Threshold > 0) || math.IsInf(params.Threshold, 1) {
		return nil, fmt.Errorf("%w: segmentation threshold must be positive and finite, got %g", common.ErrInvalidParameter, params.Threshold)
	}
	return &ToneSegmenter{params: params}, nil
}

// Segment splits pitches (Hz) into segments. Each value is compared with the
// running mean of the open segment: closer than the threshold it is folded
// in, otherwise the open segment is closed and a new one starts at the value.
//
// The returned segments partition the input: they are ordered, contiguous
// and their lengths sum to len(pitches). A non-positive value anywhere aborts
// the pass without a partial result.
func (ts *ToneSegmenter) Segment(pitches []float64) ([]Segment, error) {
	if len(pitches) == 0 {
		return nil, fmt.Errorf("%w: no pitch values to segment", common.ErrEmptyInput)
	}
	if !common.IsPositiveFinite(pitches[0]) {
		return nil, fmt.Errorf("%w: pitch at index 0 is %g", common.ErrDomain, pitches[0])
	}

	var segments []Segment
	currentMean := pitches[0]
	currentSize := 1
	currentStart := 0

	for i := 1; i < len(pitches); i++ {
		s := pitches[i]

		diff, err := harmonic.ToneChanged(s, currentMean)
		if err != nil {
			return nil, fmt.Errorf("pitch at index %d: %w", i, err)
		}

		if math.Abs(diff) < ts.params.Threshold {
			currentMean = (currentMean*float64(currentSize) + s) / float64(currentSize+1)
			currentSize++
			continue
		}

		segments = append(segments, Segment{
			StartIndex: currentStart,
			Length:     currentSize,
			MeanValue:  currentMean,
		})
		currentMean = s
		currentSize = 1
		currentStart = i
	}

	segments = append(segments, Segment{
		StartIndex: currentStart,
		Length:     currentSize,
		MeanValue:  currentMean,
	})

	return segments, nil
}

// SegmentSamples segments the pitch values of samples and annotates each
// segment with the frames it spans
func (ts *ToneSegmenter) SegmentSamples(samples []harmonic.FrequencySample) ([]FrameSegment, error) {
	pitches := make([]float64, len(samples))
	for i, s := range samples {
		pitches[i] = s.Hz
	}

	segments, err := ts.Segment(pitches)
	if err != nil {
		return nil, err
	}

	framed := make([]FrameSegment, len(segments))
	for i, seg := range segments {
		framed[i] = FrameSegment{
			Segment:    seg,
			StartFrame: samples[seg.StartIndex].Frame,
			EndFrame:   samples[seg.StartIndex+seg.Length-1].Frame,
		}
	}

	return framed, nil
}

// GetParameters returns the segmenter parameters
func (ts *ToneSegmenter) GetParameters() ToneSegmenterParams {
	return ts.params
}
