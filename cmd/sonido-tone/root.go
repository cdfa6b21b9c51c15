package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-tone/logging"
	"github.com/RyanBlaney/sonido-tone/profile"
	"github.com/RyanBlaney/sonido-tone/profile/config"
)

// app carries state resolved by the root command before any subcommand runs
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	format     string

	config *config.Config
	logger logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "sonido-tone",
		Short:         "Tone segmentation, harmonic scoring and feature detection for audio",
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"Configuration file (YAML, JSON or TOML). SONIDO_* environment variables override it")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides log_level)")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "",
		"Log format: text or json (overrides log_format)")
	rootCmd.PersistentFlags().StringVarP(&a.format, "format", "f", "",
		formatFlagUsage())

	rootCmd.AddCommand(
		newAnalyzeCmd(a),
		newSegmentCmd(a),
		newHarmonicCmd(a),
		newRankCmd(a),
		newConfigCmd(a),
	)

	return rootCmd
}

// init loads the configuration, applies flag overrides and builds the logger
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = a.format
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)

	// Logs go to stderr so reports on stdout stay machine readable
	var logger logging.Logger
	switch cfg.LogFormat {
	case config.LogFormatJSON:
		logger = logging.NewJSONLogger(cmd.ErrOrStderr(), level)
	default:
		dl := logging.NewDefaultLoggerWithWriters(cmd.ErrOrStderr(), cmd.ErrOrStderr())
		dl.SetLevel(level)
		dl.SetColors(cmd.ErrOrStderr() == os.Stderr && isTerminal(os.Stderr))
		logger = dl
	}

	a.config = cfg
	a.logger = logger.WithFields(logging.Fields{"command": cmd.Name()})
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// writeOutput renders v in the configured output format
func (a *app) writeOutput(cmd *cobra.Command, v any) error {
	return profile.Encode(cmd.OutOrStdout(), v, a.config.Output.Format)
}

func formatFlagUsage() string {
	return fmt.Sprintf("Output format: %s or %s (overrides output.format)", config.FormatYAML, config.FormatJSON)
}
