package probe

import (
	"context"
	"errors"

	"digital.vasic.netprobe/pkg/scenario"
)

// ErrNoMeasurement is recorded when a Probe returns neither a
// measurement nor an error.
var ErrNoMeasurement = errors.New("probe returned no measurement")

// StatusOf maps an error returned by a Probe to a RunResult
// status. Unclassified errors map to StatusError.
func StatusOf(err error) string {
	var pe *scenario.ProbeError
	switch {
	case err == nil:
		return scenario.StatusSuccess
	case errors.As(err, &pe):
		return pe.Status
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return scenario.StatusTimeout
	default:
		return scenario.StatusError
	}
}

func newError(
	req Request, status string, err error,
) *scenario.ProbeError {
	return &scenario.ProbeError{
		Status:    status,
		Target:    req.Target,
		Direction: req.Direction,
		Err:       err,
	}
}
