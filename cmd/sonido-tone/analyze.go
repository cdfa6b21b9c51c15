package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-tone/logging"
	"github.com/RyanBlaney/sonido-tone/profile"
	"github.com/RyanBlaney/sonido-tone/transcode"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		output           string
		windowSize       int
		hopSize          int
		window           string
		pitchMethod      string
		dcCutoff         float64
		threshold        float64
		classifier       string
		includeMagnitude bool
		maxDuration      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Generate a tone profile for a PCM WAV file",
		Long: `Decode a PCM WAV file to mono, then report its pitch track, tone
segments, per-frame harmonicity, streaming detection probability and the
dominant bins of its average spectrum.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.config
			flags := cmd.Flags()
			if flags.Changed("window-size") {
				cfg.Spectral.WindowSize = windowSize
			}
			if flags.Changed("hop-size") {
				cfg.Spectral.HopSize = hopSize
			}
			if flags.Changed("window") {
				cfg.Spectral.Window = window
			}
			if flags.Changed("threshold") {
				cfg.Segmentation.Threshold = threshold
			}
			if flags.Changed("pitch-method") {
				cfg.Pitch.Method = pitchMethod
			}
			if flags.Changed("dc-cutoff") {
				cfg.Preprocess.DCCutoff = dcCutoff
			}
			if flags.Changed("classifier") {
				cfg.Detection.Classifier = classifier
			}
			if flags.Changed("include-magnitude") {
				cfg.Output.IncludeMagnitude = includeMagnitude
			}

			logger := a.logger.WithFields(logging.Fields{"file": args[0]})

			decoder := transcode.NewDecoder(&transcode.DecoderConfig{
				Mono:        true,
				MaxDuration: maxDuration,
			}, logger)
			data, err := decoder.DecodeFile(args[0])
			if err != nil {
				return err
			}

			generator, err := profile.NewProfileGenerator(&cfg, logger)
			if err != nil {
				return err
			}

			result, err := generator.Generate(data.PCM, data.SampleRate)
			if err != nil {
				return fmt.Errorf("analyzing %s: %w", args[0], err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create report file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if err := profile.WriteReport(w, result, cfg.Output.Format); err != nil {
				return err
			}

			logger.Info("Analysis complete", logging.Fields{
				"segments": len(result.Segments),
				"duration": data.Duration.String(),
			})
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")
	flags.IntVar(&windowSize, "window-size", 0, "FFT window size in samples (overrides spectral.window_size)")
	flags.IntVar(&hopSize, "hop-size", 0, "Hop size in samples (overrides spectral.hop_size)")
	flags.StringVar(&window, "window", "", "Window function (overrides spectral.window)")
	flags.StringVar(&pitchMethod, "pitch-method", "", "Pitch tracker: spectral, yin or autocorrelation (overrides pitch.method)")
	flags.Float64Var(&dcCutoff, "dc-cutoff", 0, "DC blocker cutoff in Hz, 0 disables (overrides preprocess.dc_cutoff)")
	flags.Float64VarP(&threshold, "threshold", "t", 0, "Segmentation threshold in semitones (overrides segmentation.threshold)")
	flags.StringVar(&classifier, "classifier", "", "Frame classifier: energy or harmonic (overrides detection.classifier)")
	flags.BoolVar(&includeMagnitude, "include-magnitude", false, "Include the normalized spectrogram in the report")
	flags.DurationVar(&maxDuration, "max-duration", 0, "Analyze at most this much audio, 0 for all")

	return cmd
}
