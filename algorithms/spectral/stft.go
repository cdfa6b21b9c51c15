package spectral

import (
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
)

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft *FFT
}

// STFTResult holds the magnitude spectrogram of a signal
type STFTResult struct {
	Magnitude      [][]float64 `json:"magnitude"`       // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	WindowSize     int         `json:"window_size"`     // FFT window size
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	FreqResolution float64     `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64     `json:"time_resolution"` // Time resolution (seconds/frame)
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// Compute computes the magnitude STFT of signal. Frames are independent, so
// they are spread over a worker pool; the result does not depend on the
// number of workers.
func (s *STFT) Compute(signal []float64, windowSize, hopSize, sampleRate int, win *Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("%w: empty signal", common.ErrEmptyInput)
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: window size must be positive", common.ErrInvalidParameter)
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("%w: hop size must be positive", common.ErrInvalidParameter)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive", common.ErrInvalidParameter)
	}
	if win != nil && win.Size() != windowSize {
		return nil, fmt.Errorf("%w: window has %d coefficients, frames have %d samples", common.ErrInvalidParameter, win.Size(), windowSize)
	}

	if len(signal) < windowSize {
		return nil, fmt.Errorf("%w: signal of %d samples is shorter than one %d-sample window", common.ErrEmptyInput, len(signal), windowSize)
	}
	numFrames := (len(signal)-windowSize)/hopSize + 1
	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)

	numWorkers := s.getOptimalWorkerCount(numFrames)
	jobs := make(chan int, numFrames)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frameBuffer := make([]float64, windowSize)

			for frameIdx := range jobs {
				start := frameIdx * hopSize
				copy(frameBuffer, signal[start:start+windowSize])

				if win != nil {
					// Sizes were checked above
					_ = win.ApplyInPlace(frameBuffer)
				}

				magnitude[frameIdx] = s.fft.MagnitudeSpectrum(frameBuffer)
			}
		}()
	}

	for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()

	return &STFTResult{
		Magnitude:      magnitude,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// BinFrequency returns the centre frequency of a bin in Hz
func (r *STFTResult) BinFrequency(bin int) float64 {
	return float64(bin) * r.FreqResolution
}

// MeanSpectrum averages the magnitude matrix over time
func (r *STFTResult) MeanSpectrum() []float64 {
	mean := make([]float64, r.FreqBins)
	if r.TimeFrames == 0 {
		return mean
	}

	for _, frame := range r.Magnitude {
		floats.Add(mean, frame)
	}
	floats.Scale(1/float64(r.TimeFrames), mean)

	return mean
}

// NormalizeMagnitude scales a [time][bin] magnitude matrix into [0, 1] by its
// global maximum. An all-zero matrix stays zero.
func NormalizeMagnitude(magnitude [][]float64) [][]float64 {
	peak := 0.0
	for _, frame := range magnitude {
		if len(frame) > 0 {
			peak = max(peak, floats.Max(frame))
		}
	}

	normalized := make([][]float64, len(magnitude))
	for t, frame := range magnitude {
		normalized[t] = make([]float64, len(frame))
		if peak > 0 {
			copy(normalized[t], frame)
			floats.Scale(1/peak, normalized[t])
		}
	}

	return normalized
}

// getOptimalWorkerCount determines the optimal number of workers based on workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	// For medium workloads, use most CPUs
	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
