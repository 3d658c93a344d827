// Package testutil provides testing utilities for the ember project.
package testutil

import (
	"context"
	"testing"
	"time"
)

// NewTestContext returns a context for storage and agent calls in tests,
// cancelled when the test ends and bounded at 30 seconds so a wedged call
// fails the test instead of hanging the run.
func NewTestContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
