package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-tone/algorithms/common"
	"github.com/RyanBlaney/sonido-tone/algorithms/tonal"
	"github.com/RyanBlaney/sonido-tone/profile"
	"github.com/RyanBlaney/sonido-tone/transcode"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRankCommand(t *testing.T) {
	out, _, err := execute(t, "rank", "-f", "json", "--top", "2", "30", "10", "20")
	if err != nil {
		t.Fatalf("rank error = %v", err)
	}

	var report rankReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !slices.Equal(report.Permutation, []int{1, 2, 0}) {
		t.Errorf("permutation = %v, want [1 2 0]", report.Permutation)
	}
	if report.MaxIndex != 0 {
		t.Errorf("max index = %d, want 0", report.MaxIndex)
	}
	if !slices.Equal(report.Top, []int{0, 2}) {
		t.Errorf("top = %v, want [0 2]", report.Top)
	}
	if !slices.Equal(report.Sorted, []float64{10, 20, 30}) {
		t.Errorf("sorted = %v, want [10 20 30]", report.Sorted)
	}
}

func TestRankCommandStableNegative(t *testing.T) {
	out, _, err := execute(t, "rank", "-f", "json", "--stable", "--", "-3", "1", "-3")
	if err != nil {
		t.Fatalf("rank error = %v", err)
	}

	var report rankReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if !slices.Equal(report.Permutation, []int{0, 2, 1}) {
		t.Errorf("permutation = %v, want [0 2 1]", report.Permutation)
	}
}

func TestSegmentCommand(t *testing.T) {
	out, _, err := execute(t, "segment", "--format", "json", "100", "100", "100", "200", "200", "200")
	if err != nil {
		t.Fatalf("segment error = %v", err)
	}

	var segments []tonal.Segment
	if err := json.Unmarshal([]byte(out), &segments); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	want := []tonal.Segment{
		{StartIndex: 0, Length: 3, MeanValue: 100},
		{StartIndex: 3, Length: 3, MeanValue: 200},
	}
	if !slices.Equal(segments, want) {
		t.Errorf("segments = %+v, want %+v", segments, want)
	}
}

func TestSegmentCommandErrors(t *testing.T) {
	if _, _, err := execute(t, "segment", "440", "abc"); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("non-numeric: expected ErrInvalidParameter, got %v", err)
	}
	if _, _, err := execute(t, "segment", "440", "0"); !errors.Is(err, common.ErrDomain) {
		t.Errorf("zero pitch: expected ErrDomain, got %v", err)
	}
	if _, _, err := execute(t, "segment", "-t", "0", "440"); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("zero threshold: expected ErrInvalidParameter, got %v", err)
	}
	if _, _, err := execute(t, "segment"); err == nil {
		t.Error("expected error without arguments")
	}
}

func TestHarmonicCommand(t *testing.T) {
	out, _, err := execute(t, "harmonic", "-f", "json", "200", "100")
	if err != nil {
		t.Fatalf("harmonic error = %v", err)
	}

	var report harmonicReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if report.Probability != 1 {
		t.Errorf("probability = %g, want 1", report.Probability)
	}
	if len(report.Pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(report.Pairs))
	}
	pair := report.Pairs[0]
	if pair.Low != 100 || pair.High != 200 || !pair.Harmonic || math.Abs(pair.Semitones-12) > 1e-9 {
		t.Errorf("unexpected pair %+v", pair)
	}
}

func TestConfigCommand(t *testing.T) {
	out, _, err := execute(t, "config")
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	if !strings.Contains(out, "window_size: 2048") {
		t.Errorf("config dump missing window_size:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("segmentation:\n  threshold: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, _, err = execute(t, "--config", path, "config")
	if err != nil {
		t.Fatalf("config --config error = %v", err)
	}
	if !strings.Contains(out, "threshold: 3") {
		t.Errorf("config file not applied:\n%s", out)
	}
}

func TestInvalidFlagsRejected(t *testing.T) {
	if _, _, err := execute(t, "--log-level", "loud", "config"); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("bad log level: expected ErrInvalidParameter, got %v", err)
	}
	if _, _, err := execute(t, "-f", "xml", "rank", "1"); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("bad format: expected ErrInvalidParameter, got %v", err)
	}
}

func TestAnalyzeCommand(t *testing.T) {
	pcm := make([]float64, 44100)
	for i := range pcm {
		pcm[i] = 0.8 * math.Sin(2*math.Pi*440*float64(i)/44100)
	}

	dir := t.TempDir()
	wavPath := filepath.Join(dir, "tone.wav")
	f, err := os.Create(wavPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := transcode.EncodeWAV(f, &transcode.AudioData{PCM: pcm, SampleRate: 44100, Channels: 1}, 16); err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}
	f.Close()

	reportPath := filepath.Join(dir, "report.json")
	_, stderr, err := execute(t, "--log-format", "json", "-f", "json", "analyze", "--pitch-method", "yin", "-o", reportPath, wavPath)
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}
	if !strings.Contains(stderr, `"msg":"Analysis complete"`) {
		t.Errorf("expected JSON log line on stderr, got %q", stderr)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}

	var report profile.ToneProfile
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if report.PitchMethod != "yin" {
		t.Errorf("pitch method = %q, want yin", report.PitchMethod)
	}
	if report.SampleRate != 44100 {
		t.Errorf("sample rate = %d, want 44100", report.SampleRate)
	}
	if len(report.Segments) != 1 || math.Abs(report.Segments[0].MeanValue-440) > 5 {
		t.Errorf("segments = %+v, want one near 440 Hz", report.Segments)
	}
}

func TestAnalyzeCommandErrors(t *testing.T) {
	if _, _, err := execute(t, "analyze"); err == nil {
		t.Error("expected error without a file argument")
	}
	if _, _, err := execute(t, "analyze", filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for a missing file")
	}
}
