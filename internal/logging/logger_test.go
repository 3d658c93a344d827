package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// emit writes one message per level and returns the captured output.
func emit(logger zerolog.Logger, buf *bytes.Buffer) string {
	logger.Trace().Msg("trace message")
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")
	return buf.String()
}

func TestNew_LevelThreshold(t *testing.T) {
	tests := []struct {
		level      string
		suppressed []string
		passed     []string
	}{
		{
			level:      "trace",
			suppressed: nil,
			passed:     []string{"trace message", "debug message", "info message", "warn message", "error message"},
		},
		{
			level:      "debug",
			suppressed: []string{"trace message"},
			passed:     []string{"debug message", "info message", "warn message", "error message"},
		},
		{
			level:      "info",
			suppressed: []string{"trace message", "debug message"},
			passed:     []string{"info message", "warn message", "error message"},
		},
		{
			level:      "warn",
			suppressed: []string{"trace message", "debug message", "info message"},
			passed:     []string{"warn message", "error message"},
		},
		{
			level:      "error",
			suppressed: []string{"trace message", "debug message", "info message", "warn message"},
			passed:     []string{"error message"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			output := emit(New(Config{Level: tc.level, Output: &buf}), &buf)

			for _, msg := range tc.suppressed {
				if strings.Contains(output, msg) {
					t.Errorf("Level %q should suppress %q", tc.level, msg)
				}
			}
			for _, msg := range tc.passed {
				if !strings.Contains(output, msg) {
					t.Errorf("Level %q should pass %q", tc.level, msg)
				}
			}
		})
	}
}

func TestNew_ParsesConfiguredLevel(t *testing.T) {
	levels := map[string]zerolog.Level{
		"trace": zerolog.TraceLevel,
		"debug": zerolog.DebugLevel,
		"info":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
	}

	for name, want := range levels {
		logger := New(Config{Level: name})
		if got := logger.GetLevel(); got != want {
			t.Errorf("New(Level: %q) level = %v, want %v", name, got, want)
		}
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	for _, level := range []string{"verbose", ""} {
		logger := New(Config{Level: level})
		if got := logger.GetLevel(); got != zerolog.InfoLevel {
			t.Errorf("New(Level: %q) level = %v, want fallback to info", level, got)
		}
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Output: &buf})

	logger.Info().Str("unit", "demo/pkg.Handler").Msg("sample recorded")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Non-pretty output is not valid JSON: %v\n%s", err, buf.String())
	}
	if line["level"] != "info" {
		t.Errorf("level field = %v, want info", line["level"])
	}
	if line["message"] != "sample recorded" {
		t.Errorf("message field = %v, want 'sample recorded'", line["message"])
	}
	if line["unit"] != "demo/pkg.Handler" {
		t.Errorf("unit field = %v, want demo/pkg.Handler", line["unit"])
	}
	if _, ok := line["time"]; !ok {
		t.Error("Expected a time field on every log line")
	}
}

func TestNew_PrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Pretty: true, Output: &buf})

	logger.Info().Msg("console line")

	output := buf.String()
	if !strings.Contains(output, "console line") {
		t.Errorf("Pretty output missing the message: %q", output)
	}
	// Console output is not JSON.
	if strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("Pretty output looks like JSON: %q", output)
	}
}

func TestNew_NilOutputDefaultsToStderr(t *testing.T) {
	logger := New(Config{Level: "info"})
	logger.Info().Msg("stderr line")
}

func TestNewWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithComponent(Config{Level: "info", Output: &buf}, "sampler")

	logger.Info().Msg("component line")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if line["component"] != "sampler" {
		t.Errorf("component field = %v, want sampler", line["component"])
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("Default level = %q, want info", cfg.Level)
	}
	if !cfg.Pretty {
		t.Error("Default config should enable pretty output")
	}
	if cfg.Output == nil {
		t.Error("Default config should set an output writer")
	}
}
