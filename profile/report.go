package profile

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
	"github.com/RyanBlaney/sonido-tone/profile/config"
)

// WriteReport renders a profile as YAML or JSON
func WriteReport(w io.Writer, profile *ToneProfile, format string) error {
	if profile == nil {
		return fmt.Errorf("%w: profile cannot be nil", common.ErrInvalidParameter)
	}
	return Encode(w, profile, format)
}

// Encode writes any report value as YAML (the default for an empty format)
// or JSON
func Encode(w io.Writer, v any, format string) error {
	switch format {
	case config.FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode YAML report: %w", err)
		}
		return enc.Close()
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode JSON report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown report format %q", common.ErrInvalidParameter, format)
	}
}
