package common

import (
	"fmt"
)

// ClassificationWindow is a fixed-capacity FIFO of boolean frame verdicts
// with a running count of the true entries it holds.
type ClassificationWindow struct {
	buffer   []bool
	size     int
	writePos int
	readPos  int
	count    int // entries held
	positive int // true entries held
}

// NewClassificationWindow creates a window holding at most capacity verdicts
func NewClassificationWindow(capacity int) (*ClassificationWindow, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: window capacity must be positive, got %d", ErrInvalidParameter, capacity)
	}

	return &ClassificationWindow{
		buffer: make([]bool, capacity),
		size:   capacity,
	}, nil
}

// Push appends a verdict. When the window is at capacity the oldest verdict
// is evicted first; evicted reports whether that happened.
func (cw *ClassificationWindow) Push(verdict bool) (evicted bool) {
	if cw.count == cw.size {
		if cw.buffer[cw.readPos] {
			cw.positive--
		}
		cw.readPos = (cw.readPos + 1) % cw.size
		cw.count--
		evicted = true
	}

	cw.buffer[cw.writePos] = verdict
	cw.writePos = (cw.writePos + 1) % cw.size
	cw.count++
	if verdict {
		cw.positive++
	}

	return evicted
}

// Count returns the number of true verdicts currently held
func (cw *ClassificationWindow) Count() int {
	return cw.positive
}

// Len returns the number of verdicts currently held
func (cw *ClassificationWindow) Len() int {
	return cw.count
}

// Capacity returns the maximum number of verdicts the window holds
func (cw *ClassificationWindow) Capacity() int {
	return cw.size
}

// IsFull returns true if the window holds Capacity verdicts
func (cw *ClassificationWindow) IsFull() bool {
	return cw.count == cw.size
}

// Snapshot returns the held verdicts, oldest first
func (cw *ClassificationWindow) Snapshot() []bool {
	out := make([]bool, cw.count)
	pos := cw.readPos
	for i := range out {
		out[i] = cw.buffer[pos]
		pos = (pos + 1) % cw.size
	}
	return out
}

// Clear empties the window
func (cw *ClassificationWindow) Clear() {
	cw.writePos = 0
	cw.readPos = 0
	cw.count = 0
	cw.positive = 0
}

// SlidingWindow implements a sliding window for frame-based processing
type SlidingWindow struct {
	buffer     []float64
	windowSize int
	hopSize    int
	writePos   int
}

// NewSlidingWindow creates a new sliding window
func NewSlidingWindow(windowSize, hopSize int) (*SlidingWindow, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidParameter, windowSize)
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("%w: hop size must be positive, got %d", ErrInvalidParameter, hopSize)
	}

	return &SlidingWindow{
		buffer:     make([]float64, windowSize),
		windowSize: windowSize,
		hopSize:    hopSize,
	}, nil
}

// AddSamples adds samples and returns frames when ready
func (sw *SlidingWindow) AddSamples(samples []float64) [][]float64 {
	var frames [][]float64

	for _, sample := range samples {
		sw.buffer[sw.writePos] = sample
		sw.writePos++

		if sw.writePos >= sw.windowSize {
			frame := make([]float64, sw.windowSize)
			copy(frame, sw.buffer)
			frames = append(frames, frame)

			if sw.hopSize < sw.windowSize {
				// Overlap: shift buffer left by hopSize
				copy(sw.buffer, sw.buffer[sw.hopSize:])
				sw.writePos = sw.windowSize - sw.hopSize
			} else {
				// No overlap: reset buffer
				sw.writePos = 0
			}
		}
	}

	return frames
}

// Reset clears any partially filled frame
func (sw *SlidingWindow) Reset() {
	sw.writePos = 0
	for i := range sw.buffer {
		sw.buffer[i] = 0
	}
}

// GetWindowSize returns the window size
func (sw *SlidingWindow) GetWindowSize() int {
	return sw.windowSize
}

// GetHopSize returns the hop size
func (sw *SlidingWindow) GetHopSize() int {
	return sw.hopSize
}
