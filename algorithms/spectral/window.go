package spectral

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
)

// WindowFunc identifies a tapering window applied to each frame before the FFT
type WindowFunc int

const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BartlettHann
	Nuttall
	Rectangular
)

// ParseWindowFunc converts a window name (case-insensitive) to a WindowFunc
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "bartletthann":
		return BartlettHann, nil
	case "nuttall":
		return Nuttall, nil
	case "rectangular", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("%w: unknown window function name %q", common.ErrInvalidParameter, name)
	}
}

// String returns the canonical window name
func (w WindowFunc) String() string {
	switch w {
	case Hann:
		return "hann"
	case Hamming:
		return "hamming"
	case Blackman:
		return "blackman"
	case BartlettHann:
		return "bartletthann"
	case Nuttall:
		return "nuttall"
	case Rectangular:
		return "rectangular"
	default:
		return "unknown"
	}
}

// Window holds precomputed coefficients for one window function and size
type Window struct {
	kind         WindowFunc
	coefficients []float64
}

// NewWindow computes size coefficients of the given window function with gonum
func NewWindow(kind WindowFunc, size int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: window size must be positive, got %d", common.ErrInvalidParameter, size)
	}
	if size < 2 && kind != Rectangular {
		// gonum windows divide by size-1
		return nil, fmt.Errorf("%w: %s window needs at least 2 coefficients", common.ErrInvalidParameter, kind)
	}

	coeffs := make([]float64, size)
	for i := range coeffs {
		coeffs[i] = 1.0
	}

	switch kind {
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Rectangular:
		// all ones
	default:
		return nil, fmt.Errorf("%w: unsupported window function %d", common.ErrInvalidParameter, kind)
	}

	return &Window{kind: kind, coefficients: coeffs}, nil
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != len(w.coefficients) {
		return fmt.Errorf("%w: signal length (%d) doesn't match window size (%d)", common.ErrInvalidParameter, len(signal), len(w.coefficients))
	}

	for i, c := range w.coefficients {
		signal[i] *= c
	}

	return nil
}

// Size returns the window size
func (w *Window) Size() int {
	return len(w.coefficients)
}

// Kind returns the window function
func (w *Window) Kind() WindowFunc {
	return w.kind
}
