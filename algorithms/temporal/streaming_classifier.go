package temporal

import (
	"fmt"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
)

// FrameClassifier resolves one fixed-size frame of raw samples to a
// feature-present verdict. Implementations must be free of side effects.
type FrameClassifier interface {
	Classify(frame []float64) (bool, error)
}

// FrameClassifierFunc adapts a plain function to FrameClassifier
type FrameClassifierFunc func(frame []float64) (bool, error)

// Classify calls f(frame)
func (f FrameClassifierFunc) Classify(frame []float64) (bool, error) {
	return f(frame)
}

// StreamingResult contains the outcome of one streaming classification pass
type StreamingResult struct {
	Verdicts    []bool  `json:"verdicts" yaml:"verdicts"`       // Classifier verdict per frame
	Passed      []bool  `json:"passed" yaml:"passed"`           // Whether the window passed after each frame
	Passes      int     `json:"passes" yaml:"passes"`           // Number of passing frames
	Frames      int     `json:"frames" yaml:"frames"`           // Number of frames processed
	Probability float64 `json:"probability" yaml:"probability"` // Passes / Frames
}

// StreamingClassifier smooths a noisy stream of per-frame verdicts through a
// sliding window. After each frame the window passes when it holds at least
// passScore true verdicts; the detection probability is the fraction of
// frames after which it passed.
//
// The pass check runs from the first frame on, using whatever the window
// holds while it is still filling.
type StreamingClassifier struct {
	classifier FrameClassifier
	window     *common.ClassificationWindow
	passScore  int

	passes int
	frames int
}

// NewStreamingClassifier creates a classifier with a window of capacity
// verdicts that passes at passScore true verdicts, 1 <= passScore <= capacity
func NewStreamingClassifier(classifier FrameClassifier, capacity, passScore int) (*StreamingClassifier, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: frame classifier is required", common.ErrInvalidParameter)
	}

	window, err := common.NewClassificationWindow(capacity)
	if err != nil {
		return nil, err
	}

	if passScore < 1 || passScore > capacity {
		return nil, fmt.Errorf("%w: pass score %d outside [1, %d]", common.ErrInvalidParameter, passScore, capacity)
	}

	return &StreamingClassifier{
		classifier: classifier,
		window:     window,
		passScore:  passScore,
	}, nil
}

// Push classifies one frame and feeds the verdict through the window.
// It reports whether the window passed after this frame. A classifier error
// leaves the state untouched.
func (sc *StreamingClassifier) Push(frame []float64) (bool, error) {
	verdict, err := sc.classifier.Classify(frame)
	if err != nil {
		return false, err
	}
	return sc.PushVerdict(verdict), nil
}

// PushVerdict feeds an already resolved verdict through the window and
// reports whether the window passed
func (sc *StreamingClassifier) PushVerdict(verdict bool) bool {
	sc.window.Push(verdict)
	sc.frames++

	passed := sc.window.Count() >= sc.passScore
	if passed {
		sc.passes++
	}
	return passed
}

// Probability returns passes / frames for everything pushed so far
func (sc *StreamingClassifier) Probability() (float64, error) {
	if sc.frames == 0 {
		return 0, fmt.Errorf("%w: no frames classified", common.ErrEmptyInput)
	}
	return float64(sc.passes) / float64(sc.frames), nil
}

// Passes returns the number of frames after which the window passed
func (sc *StreamingClassifier) Passes() int {
	return sc.passes
}

// Frames returns the number of frames processed
func (sc *StreamingClassifier) Frames() int {
	return sc.frames
}

// Reset clears the window and the counters
func (sc *StreamingClassifier) Reset() {
	sc.window.Clear()
	sc.passes = 0
	sc.frames = 0
}

// Process resets the classifier and runs it over frames in order
func (sc *StreamingClassifier) Process(frames [][]float64) (*StreamingResult, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames to classify", common.ErrEmptyInput)
	}

	sc.Reset()

	result := &StreamingResult{
		Verdicts: make([]bool, len(frames)),
		Passed:   make([]bool, len(frames)),
	}

	for i, frame := range frames {
		verdict, err := sc.classifier.Classify(frame)
		if err != nil {
			return nil, fmt.Errorf("classifying frame %d: %w", i, err)
		}

		result.Verdicts[i] = verdict
		result.Passed[i] = sc.PushVerdict(verdict)
	}

	result.Passes = sc.passes
	result.Frames = sc.frames
	result.Probability = float64(sc.passes) / float64(sc.frames)

	return result, nil
}
