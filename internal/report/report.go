// Package report renders hot-code profile snapshots as fixed-width text
// tables. The reporter is a pure consumer: it reads a snapshot and never
// touches the profile it came from.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/emberprof/ember/internal/hotspot"
)

const (
	ruleWidth = 120
	keyWidth  = 94
)

var rule = strings.Repeat("-", ruleWidth)

// Render writes the ranked table for snap to w. Sink errors propagate
// wrapped; a partial table is not retried.
func Render(w io.Writer, snap hotspot.Snapshot) error {
	return RenderEntries(w, snap.Total, snap.Entries)
}

// RenderEntries writes the ranked table for the given entries to w. Each row
// carries the count, its share of total at two decimals, and the rendered
// key truncated or padded to the method column width. A zero total renders
// every share as 0.00 rather than dividing.
func RenderEntries(w io.Writer, total int64, entries []hotspot.Entry) error {
	if _, err := fmt.Fprintf(w, "%s\n", rule); err != nil {
		return fmt.Errorf("failed to write report rule: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%7s %9s  %-*s\n", "COUNT", "%", keyWidth, "METHOD"); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, e := range entries {
		var pct float64
		if total > 0 {
			pct = 100 * float64(e.Count) / float64(total)
		}
		if _, err := fmt.Fprintf(w, "%7d %9.2f  %-*.*s\n", e.Count, pct, keyWidth, keyWidth, e.Key.String()); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w, "%s\n", rule); err != nil {
		return fmt.Errorf("failed to write report rule: %w", err)
	}
	return nil
}
