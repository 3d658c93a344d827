package agent

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStartCommandE2E runs the built agent briefly and checks the report sink
// and the signal shutdown path.
func TestStartCommandE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	binaryPath := filepath.Join(os.TempDir(), "ember-agent-test-start-e2e")
	buildBinary(t, binaryPath)
	defer os.Remove(binaryPath)

	reportPath := filepath.Join(t.TempDir(), "report.txt")

	cmd := exec.Command(binaryPath, "start",
		"--no-server",
		"--no-sampler",
		"--interval", "200ms",
		"--output", reportPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	require.NoError(t, cmd.Start())

	// Let a few report cycles land before asking for shutdown.
	time.Sleep(700 * time.Millisecond)

	require.NoError(t, cmd.Process.Signal(syscall.SIGTERM))
	err := cmd.Wait()
	require.NoError(t, err, "agent exited uncleanly: %s", stderr.String())

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	assert.Contains(t, string(data), "COUNT")
	assert.Contains(t, string(data), "METHOD")
	assert.Contains(t, string(data), strings.Repeat("-", 120))
}

// buildBinary builds the ember-agent binary for testing.
func buildBinary(t *testing.T, outputPath string) {
	t.Helper()

	if info, err := os.Stat(outputPath); err == nil {
		if time.Since(info.ModTime()) < 5*time.Minute {
			t.Logf("Using existing test binary: %s", outputPath)
			return
		}
	}

	t.Logf("Building test binary: %s", outputPath)

	cmd := exec.Command("go", "build", "-o", outputPath, "./cmd/ember-agent")
	cmd.Dir = filepath.Join("..", "..", "..")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "Should build binary: %s", string(output))
}
