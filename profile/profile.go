package profile

import (
	"fmt"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
	"github.com/RyanBlaney/sonido-tone/algorithms/filters"
	"github.com/RyanBlaney/sonido-tone/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-tone/algorithms/spectral"
	"github.com/RyanBlaney/sonido-tone/algorithms/stats"
	"github.com/RyanBlaney/sonido-tone/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tone/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tone/logging"
	"github.com/RyanBlaney/sonido-tone/profile/config"
)

// ToneProfile is the analysis of one signal, ready to be rendered
type ToneProfile struct {
	SampleRate     int     `json:"sample_rate" yaml:"sample_rate"`
	Samples        int     `json:"samples" yaml:"samples"`
	Duration       float64 `json:"duration" yaml:"duration"` // Seconds
	WindowSize     int     `json:"window_size" yaml:"window_size"`
	HopSize        int     `json:"hop_size" yaml:"hop_size"`
	Frames         int     `json:"frames" yaml:"frames"`
	FreqResolution float64 `json:"freq_resolution" yaml:"freq_resolution"` // Hz per bin
	TimeResolution float64 `json:"time_resolution" yaml:"time_resolution"` // Seconds per frame

	PitchMethod  string                     `json:"pitch_method" yaml:"pitch_method"`
	Pitch        []harmonic.FrequencySample `json:"pitch" yaml:"pitch"`
	Segments     []ToneSegment              `json:"segments" yaml:"segments"`
	Harmonicity  HarmonicitySummary         `json:"harmonicity" yaml:"harmonicity"`
	Shape        ShapeSummary               `json:"shape" yaml:"shape"`
	Detection    DetectionSummary           `json:"detection" yaml:"detection"`
	DominantBins []DominantBin              `json:"dominant_bins" yaml:"dominant_bins"`

	// Magnitude is the spectrogram scaled into [0, 1], [time][bin]
	Magnitude [][]float64 `json:"magnitude,omitempty" yaml:"magnitude,omitempty"`
}

// ToneSegment is a tone segment placed on the time axis
type ToneSegment struct {
	tonal.FrameSegment `yaml:",inline"`
	StartTime          float64 `json:"start_time" yaml:"start_time"` // Seconds
	EndTime            float64 `json:"end_time" yaml:"end_time"`     // Seconds, end of the last frame
}

// HarmonicitySummary holds the per-frame harmonic probability of the
// strongest spectral peaks
type HarmonicitySummary struct {
	PerFrame  []float64          `json:"per_frame" yaml:"per_frame"`
	Mean      float64            `json:"mean" yaml:"mean"`
	StdDev    float64            `json:"std_dev" yaml:"std_dev"`
	Quartiles stats.QuartileInfo `json:"quartiles" yaml:"quartiles"`
}

// ShapeSummary holds the per-frame spectral centroid (Hz) and flatness
type ShapeSummary struct {
	Centroid     []float64 `json:"centroid" yaml:"centroid"`
	Flatness     []float64 `json:"flatness" yaml:"flatness"`
	MeanCentroid float64   `json:"mean_centroid" yaml:"mean_centroid"`
	MeanFlatness float64   `json:"mean_flatness" yaml:"mean_flatness"`
}

// DetectionSummary is the streaming feature detection outcome
type DetectionSummary struct {
	Classifier  string  `json:"classifier" yaml:"classifier"`
	Capacity    int     `json:"capacity" yaml:"capacity"`
	PassScore   int     `json:"pass_score" yaml:"pass_score"`
	Passed      []bool  `json:"passed" yaml:"passed"`
	Passes      int     `json:"passes" yaml:"passes"`
	Frames      int     `json:"frames" yaml:"frames"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// DominantBin is one of the strongest bins of the time-averaged spectrum
type DominantBin struct {
	Bin       int     `json:"bin" yaml:"bin"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
	Magnitude float64 `json:"magnitude" yaml:"magnitude"`
}

// ProfileGenerator runs the analysis components over a signal
type ProfileGenerator struct {
	config    *config.Config
	window    spectral.WindowFunc
	stft      *spectral.STFT
	tracker   *spectral.PitchTracker
	segmenter *tonal.ToneSegmenter
	analyzer  *harmonic.HarmonicAnalyzer
	logger    logging.Logger
}

// NewProfileGenerator creates a generator. A nil cfg uses config.Default()
// and a nil logger discards output.
func NewProfileGenerator(cfg *config.Config, logger logging.Logger) (*ProfileGenerator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	window, err := spectral.ParseWindowFunc(cfg.Spectral.Window)
	if err != nil {
		return nil, err
	}

	tracker, err := spectral.NewPitchTracker(cfg.Spectral.MinFreq, cfg.Spectral.MaxFreq, cfg.Spectral.MinMagnitude)
	if err != nil {
		return nil, err
	}

	segmenter, err := tonal.NewToneSegmenterWithParams(tonal.ToneSegmenterParams{
		Threshold: cfg.Segmentation.Threshold,
	})
	if err != nil {
		return nil, err
	}

	analyzer, err := harmonic.NewHarmonicAnalyzerWithParams(harmonicParams(cfg))
	if err != nil {
		return nil, err
	}

	return &ProfileGenerator{
		config:    cfg,
		window:    window,
		stft:      spectral.NewSTFT(),
		tracker:   tracker,
		segmenter: segmenter,
		analyzer:  analyzer,
		logger: logging.OrNoOp(logger).WithFields(logging.Fields{
			"component": "profile_generator",
		}),
	}, nil
}

func harmonicParams(cfg *config.Config) harmonic.HarmonicAnalyzerParams {
	return harmonic.HarmonicAnalyzerParams{
		MinFundamental:  cfg.Harmonic.MinFundamental,
		FoldTolerance:   cfg.Harmonic.FoldTolerance,
		UnisonTolerance: cfg.Harmonic.UnisonTolerance,
	}
}

// Generate analyzes a mono signal sampled at sampleRate Hz
func (pg *ProfileGenerator) Generate(signal []float64, sampleRate int) (*ToneProfile, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("%w: empty signal", common.ErrEmptyInput)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", common.ErrInvalidParameter, sampleRate)
	}

	sc := pg.config.Spectral
	logger := pg.logger.WithFields(logging.Fields{
		"function":    "Generate",
		"sample_rate": sampleRate,
		"samples":     len(signal),
	})

	logger.Debug("Starting tone profile generation", logging.Fields{
		"window_size": sc.WindowSize,
		"hop_size":    sc.HopSize,
		"window":      pg.window.String(),
	})

	if cutoff := pg.config.Preprocess.DCCutoff; cutoff > 0 {
		dc, err := filters.NewDCRemoval(sampleRate, cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to create DC blocker: %w", err)
		}
		signal = dc.ProcessBuffer(signal)
		logger.Debug("Removed DC offset", logging.Fields{"cutoff_hz": dc.GetCutoffFrequency()})
	}

	win, err := spectral.NewWindow(pg.window, sc.WindowSize)
	if err != nil {
		return nil, err
	}

	spectrogram, err := pg.stft.Compute(signal, sc.WindowSize, sc.HopSize, sampleRate, win)
	if err != nil {
		logger.Error(err, "Failed to compute STFT")
		return nil, fmt.Errorf("failed to compute STFT: %w", err)
	}

	profile := &ToneProfile{
		SampleRate:     sampleRate,
		Samples:        len(signal),
		Duration:       float64(len(signal)) / float64(sampleRate),
		WindowSize:     sc.WindowSize,
		HopSize:        sc.HopSize,
		Frames:         spectrogram.TimeFrames,
		FreqResolution: spectrogram.FreqResolution,
		TimeResolution: spectrogram.TimeResolution,
	}

	// Time-domain frames share the STFT framing so frame ordinals agree
	framer, err := common.NewSlidingWindow(sc.WindowSize, sc.HopSize)
	if err != nil {
		return nil, err
	}
	frames := framer.AddSamples(signal)

	profile.PitchMethod = pg.config.Pitch.Method
	profile.Pitch, err = pg.trackPitch(spectrogram, frames, sampleRate)
	if err != nil {
		logger.Error(err, "Failed to track pitch")
		return nil, err
	}
	profile.Segments, err = pg.segments(profile.Pitch, spectrogram)
	if err != nil {
		logger.Error(err, "Failed to segment pitch track")
		return nil, err
	}

	profile.Harmonicity, err = pg.harmonicity(spectrogram, sampleRate)
	if err != nil {
		logger.Error(err, "Failed to score harmonicity")
		return nil, err
	}

	profile.Shape, err = shape(spectrogram)
	if err != nil {
		return nil, err
	}

	profile.Detection, err = pg.detect(frames, sampleRate)
	if err != nil {
		logger.Error(err, "Failed to run streaming detection")
		return nil, err
	}

	profile.DominantBins, err = pg.dominantBins(spectrogram)
	if err != nil {
		return nil, err
	}

	if pg.config.Output.IncludeMagnitude {
		profile.Magnitude = spectral.NormalizeMagnitude(spectrogram.Magnitude)
	}

	logger.Info("Tone profile generated", logging.Fields{
		"frames":         profile.Frames,
		"voiced_frames":  len(profile.Pitch),
		"segments":       len(profile.Segments),
		"harmonicity":    profile.Harmonicity.Mean,
		"detection_prob": profile.Detection.Probability,
	})

	return profile, nil
}

func (pg *ProfileGenerator) trackPitch(spectrogram *spectral.STFTResult, frames [][]float64, sampleRate int) ([]harmonic.FrequencySample, error) {
	pc := pg.config.Pitch
	if pc.Method == config.PitchSpectral {
		return pg.tracker.Track(spectrogram), nil
	}

	method, err := harmonic.ParseEstimationMethod(pc.Method)
	if err != nil {
		return nil, err
	}

	estimator, err := harmonic.NewFundamentalEstimation(harmonic.FundamentalEstimationParams{
		SampleRate:   sampleRate,
		MinF0:        pg.config.Spectral.MinFreq,
		MaxF0:        pg.config.Spectral.MaxFreq,
		Method:       method,
		YINThreshold: pc.YINThreshold,
		MinClarity:   pc.MinClarity,
	})
	if err != nil {
		return nil, err
	}

	return estimator.Track(frames), nil
}

func (pg *ProfileGenerator) segments(pitch []harmonic.FrequencySample, spectrogram *spectral.STFTResult) ([]ToneSegment, error) {
	if len(pitch) == 0 {
		pg.logger.Warn("No voiced frames, skipping segmentation")
		return []ToneSegment{}, nil
	}

	framed, err := pg.segmenter.SegmentSamples(pitch)
	if err != nil {
		return nil, err
	}

	sampleRate := float64(spectrogram.SampleRate)
	segments := make([]ToneSegment, len(framed))
	for i, seg := range framed {
		segments[i] = ToneSegment{
			FrameSegment: seg,
			StartTime:    float64(seg.StartFrame*spectrogram.HopSize) / sampleRate,
			EndTime:      float64(seg.EndFrame*spectrogram.HopSize+spectrogram.WindowSize) / sampleRate,
		}
	}

	return segments, nil
}

func (pg *ProfileGenerator) harmonicity(spectrogram *spectral.STFTResult, sampleRate int) (HarmonicitySummary, error) {
	sc := pg.config.Spectral
	peaks, err := harmonic.NewSpectralPeaks(sampleRate, sc.MinPeakHeight, sc.MinFreq, sc.MaxFreq, sc.MaxPeaks)
	if err != nil {
		return HarmonicitySummary{}, err
	}

	perFrame := make([]float64, spectrogram.TimeFrames)
	for t, frame := range spectrogram.Magnitude {
		detected := peaks.DetectPeaks(frame, spectrogram.WindowSize)
		score, err := pg.analyzer.PeakProbability(detected, pg.config.Harmonic.TopPeaks)
		if err != nil {
			return HarmonicitySummary{}, fmt.Errorf("frame %d: %w", t, err)
		}
		perFrame[t] = score
	}

	summary := HarmonicitySummary{PerFrame: perFrame}
	if len(perFrame) > 0 {
		summary.Mean = common.Mean(perFrame)
	}
	if len(perFrame) > 1 {
		summary.StdDev = common.StandardDeviation(perFrame)
	}
	if len(perFrame) > 0 {
		summary.Quartiles, err = stats.NewPercentiles().Quartiles(perFrame)
		if err != nil {
			return HarmonicitySummary{}, err
		}
	}
	return summary, nil
}

func shape(spectrogram *spectral.STFTResult) (ShapeSummary, error) {
	ss, err := spectral.NewSpectralShape(spectrogram.SampleRate, spectrogram.WindowSize)
	if err != nil {
		return ShapeSummary{}, err
	}

	centroids, flatness := ss.ComputeFrames(spectrogram.Magnitude)
	return ShapeSummary{
		Centroid:     centroids,
		Flatness:     flatness,
		MeanCentroid: common.Mean(centroids),
		MeanFlatness: common.Mean(flatness),
	}, nil
}

func (pg *ProfileGenerator) frameClassifier(sampleRate int) (temporal.FrameClassifier, error) {
	dc := pg.config.Detection
	switch dc.Classifier {
	case config.ClassifierHarmonic:
		params := temporal.DefaultHarmonicClassifierParams()
		params.SampleRate = sampleRate
		params.Window = pg.window
		params.MinFreq = pg.config.Spectral.MinFreq
		params.MaxFreq = pg.config.Spectral.MaxFreq
		params.MinPeakHeight = pg.config.Spectral.MinPeakHeight
		params.MaxPeaks = pg.config.Spectral.MaxPeaks
		params.TopPeaks = pg.config.Harmonic.TopPeaks
		params.Threshold = dc.HarmonicThreshold
		params.Analyzer = harmonicParams(pg.config)
		return temporal.NewHarmonicClassifier(params)
	case config.ClassifierEnergy:
		return temporal.NewEnergyClassifier(dc.EnergyThreshold)
	default:
		return nil, fmt.Errorf("%w: unknown classifier %q", common.ErrInvalidParameter, dc.Classifier)
	}
}

func (pg *ProfileGenerator) detect(frames [][]float64, sampleRate int) (DetectionSummary, error) {
	dc := pg.config.Detection

	classifier, err := pg.frameClassifier(sampleRate)
	if err != nil {
		return DetectionSummary{}, err
	}

	streaming, err := temporal.NewStreamingClassifier(classifier, dc.Capacity, dc.PassScore)
	if err != nil {
		return DetectionSummary{}, err
	}

	result, err := streaming.Process(frames)
	if err != nil {
		return DetectionSummary{}, err
	}

	return DetectionSummary{
		Classifier:  dc.Classifier,
		Capacity:    dc.Capacity,
		PassScore:   dc.PassScore,
		Passed:      result.Passed,
		Passes:      result.Passes,
		Frames:      result.Frames,
		Probability: result.Probability,
	}, nil
}

func (pg *ProfileGenerator) dominantBins(spectrogram *spectral.STFTResult) ([]DominantBin, error) {
	mean := spectrogram.MeanSpectrum()

	selector, err := stats.NewRankedSelector(mean)
	if err != nil {
		return nil, err
	}
	top, err := selector.TopIndexes(min(pg.config.Spectral.DominantBins, len(mean)))
	if err != nil {
		return nil, err
	}

	bins := make([]DominantBin, len(top))
	for i, bin := range top {
		bins[i] = DominantBin{
			Bin:       bin,
			Frequency: spectrogram.BinFrequency(bin),
			Magnitude: mean[bin],
		}
	}
	return bins, nil
}

// GetConfig returns the configuration the generator was built with
func (pg *ProfileGenerator) GetConfig() *config.Config {
	return pg.config
}
