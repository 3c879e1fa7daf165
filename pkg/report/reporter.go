// Package report exports iteration batches to flat files: CSV
// tables compatible with the speed_test layout, a JSON Lines run
// history, per-iteration JSON reports and a session summary.
package report

import (
	"io"

	"digital.vasic.netprobe/pkg/scenario"
)

// Reporter defines the interface for rendering an iteration batch.
type Reporter interface {
	// GenerateReport renders a report for one batch.
	GenerateReport(batch *scenario.Batch) ([]byte, error)

	// WriteReport writes a report to the specified writer.
	WriteReport(w io.Writer, batch *scenario.Batch) error
}
