package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

// captureStdout runs fn with os.Stdout redirected and returns what it printed.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stdout = w

	runErr := fn()

	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close pipe writer: %v", err)
	}
	os.Stdout = old

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("Failed to read captured output: %v", err)
	}
	return string(data), runErr
}

func TestNewConfigCmd(t *testing.T) {
	cmd := NewConfigCmd()

	if cmd == nil {
		t.Fatal("NewConfigCmd() returned nil")
	}

	if cmd.Use != "config" {
		t.Errorf("Use = %q, want %q", cmd.Use, "config")
	}

	for _, subcmd := range []string{"view", "validate"} {
		found := false
		for _, c := range cmd.Commands() {
			if c.Name() == subcmd {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Subcommand %q not found", subcmd)
		}
	}
}

func TestNewViewCmd(t *testing.T) {
	cmd := newViewCmd()

	if cmd.Use != "view" {
		t.Errorf("Use = %q, want %q", cmd.Use, "view")
	}

	if cmd.Flags().Lookup("config") == nil {
		t.Error("--config flag not defined")
	}
}

func TestNewValidateCmd(t *testing.T) {
	cmd := newValidateCmd()

	if cmd.Use != "validate" {
		t.Errorf("Use = %q, want %q", cmd.Use, "validate")
	}

	if cmd.Flags().Lookup("config") == nil {
		t.Error("--config flag not defined")
	}
}

func TestRunView(t *testing.T) {
	path := writeConfigFile(t, "profile:\n  capacity: 256\nreport:\n  top: 5\n")

	output, err := captureStdout(t, func() error { return runView(path) })
	if err != nil {
		t.Fatalf("runView() error: %v", err)
	}

	for _, want := range []string{
		"# Resolved ember-agent configuration",
		"capacity: 256",
		"top: 5",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("View output missing %q:\n%s", want, output)
		}
	}
}

func TestRunView_EnvOverridesFile(t *testing.T) {
	t.Setenv("EMBER_PROFILE_CAPACITY", "99")
	path := writeConfigFile(t, "profile:\n  capacity: 256\n")

	output, err := captureStdout(t, func() error { return runView(path) })
	if err != nil {
		t.Fatalf("runView() error: %v", err)
	}

	if !strings.Contains(output, "capacity: 99") {
		t.Errorf("Expected environment capacity to win:\n%s", output)
	}
}

func TestRunValidate(t *testing.T) {
	path := writeConfigFile(t, "profile:\n  capacity: 256\n")

	output, err := captureStdout(t, func() error { return runValidate(path) })
	if err != nil {
		t.Fatalf("runValidate() error: %v", err)
	}

	if !strings.Contains(output, "Configuration valid.") {
		t.Errorf("Unexpected validate output:\n%s", output)
	}
}

func TestRunValidate_InvalidCapacity(t *testing.T) {
	path := writeConfigFile(t, "profile:\n  capacity: -5\n")

	err := runValidate(path)
	if err == nil {
		t.Fatal("runValidate() should reject a negative capacity")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	err := runValidate(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("runValidate() should fail for an explicit missing file")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Unexpected error: %v", err)
	}
}
