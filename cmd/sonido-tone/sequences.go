package main

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-tone/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-tone/algorithms/stats"
	"github.com/RyanBlaney/sonido-tone/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tone/logging"
)

func newSegmentCmd(a *app) *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "segment <hz>...",
		Short: "Split a pitch sequence into tone segments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pitches, err := parseNumbers(args)
			if err != nil {
				return err
			}

			params := tonal.ToneSegmenterParams{Threshold: a.config.Segmentation.Threshold}
			if cmd.Flags().Changed("threshold") {
				params.Threshold = threshold
			}

			segmenter, err := tonal.NewToneSegmenterWithParams(params)
			if err != nil {
				return err
			}

			segments, err := segmenter.Segment(pitches)
			if err != nil {
				return err
			}

			a.logger.Debug("Segmented pitch sequence", logging.Fields{
				"values":   len(pitches),
				"segments": len(segments),
			})
			return a.writeOutput(cmd, segments)
		},
	}

	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Segmentation threshold in semitones (overrides segmentation.threshold)")
	return cmd
}

// pairReport describes one frequency pair
type pairReport struct {
	Low       float64 `json:"low" yaml:"low"`
	High      float64 `json:"high" yaml:"high"`
	Semitones float64 `json:"semitones" yaml:"semitones"`
	Harmonic  bool    `json:"harmonic" yaml:"harmonic"`
}

type harmonicReport struct {
	Frequencies []float64    `json:"frequencies" yaml:"frequencies"`
	Probability float64      `json:"probability" yaml:"probability"`
	Pairs       []pairReport `json:"pairs" yaml:"pairs"`
}

func newHarmonicCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "harmonic <hz>...",
		Short: "Score a set of frequencies for harmonic relatedness",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			freqs, err := parseNumbers(args)
			if err != nil {
				return err
			}

			analyzer, err := harmonic.NewHarmonicAnalyzerWithParams(harmonic.HarmonicAnalyzerParams{
				MinFundamental:  a.config.Harmonic.MinFundamental,
				FoldTolerance:   a.config.Harmonic.FoldTolerance,
				UnisonTolerance: a.config.Harmonic.UnisonTolerance,
			})
			if err != nil {
				return err
			}

			probability, err := analyzer.HarmonicProbability(freqs)
			if err != nil {
				return err
			}

			report := harmonicReport{
				Frequencies: freqs,
				Probability: probability,
				Pairs:       []pairReport{},
			}

			order, err := stats.SortIndexes(freqs)
			if err != nil {
				return err
			}
			for i := 0; i < len(order); i++ {
				for j := i + 1; j < len(order); j++ {
					low, high := freqs[order[i]], freqs[order[j]]
					ok, err := analyzer.IsHarmonic(low, high)
					if err != nil {
						return err
					}
					semitones, err := harmonic.ToneChanged(high, low)
					if err != nil {
						return err
					}
					report.Pairs = append(report.Pairs, pairReport{
						Low:       low,
						High:      high,
						Semitones: semitones,
						Harmonic:  ok,
					})
				}
			}

			return a.writeOutput(cmd, report)
		},
	}
}

type rankReport struct {
	Permutation []int     `json:"permutation" yaml:"permutation"`
	Sorted      []float64 `json:"sorted" yaml:"sorted"`
	MaxIndex    int       `json:"max_index" yaml:"max_index"`
	Top         []int     `json:"top,omitempty" yaml:"top,omitempty"`
}

func newRankCmd(a *app) *cobra.Command {
	var (
		stable bool
		top    int
	)

	cmd := &cobra.Command{
		Use:   "rank <value>...",
		Short: "Print the ascending rank permutation of a list of numbers",
		Long: `Print the indices that put the values in ascending order, ties broken by
original position. Use -- before negative values, e.g. rank -- -3 1 2.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseNumbers(args)
			if err != nil {
				return err
			}

			selector, err := stats.NewRankedSelector(values)
			if err != nil {
				return err
			}

			report := rankReport{MaxIndex: selector.MaxValueIndex()}
			if stable {
				report.Permutation = selector.SortIndexesStable()
			} else {
				report.Permutation = selector.SortIndexes()
			}

			report.Sorted = make([]float64, len(values))
			for i, idx := range report.Permutation {
				report.Sorted[i] = values[idx]
			}

			if top > 0 {
				report.Top, err = selector.TopIndexes(min(top, len(values)))
				if err != nil {
					return err
				}
			}

			return a.writeOutput(cmd, report)
		},
	}

	cmd.Flags().BoolVar(&stable, "stable", false, "Use the stable O(n log n) sort")
	cmd.Flags().IntVar(&top, "top", 0, "Also list the indices of the n largest values")
	return cmd
}
