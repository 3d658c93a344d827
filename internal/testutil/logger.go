package testutil

import (
	"testing"

	"github.com/rs/zerolog"
)

// NewTestLogger returns a logger for the component under test. It is silent
// in normal runs; under -v every record goes through t.Log so log lines land
// next to the test output that produced them.
func NewTestLogger(t *testing.T) zerolog.Logger {
	if !testing.Verbose() {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.NewTestWriter(t)).With().Timestamp().Logger()
}
