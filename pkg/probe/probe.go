// Package probe runs external throughput measurements against a
// single target in a single direction.
package probe

import (
	"context"
	"time"

	"digital.vasic.netprobe/pkg/scenario"
)

// Request describes one probe invocation.
type Request struct {
	ScenarioID string
	Target     scenario.Target
	Direction  scenario.Direction

	// Duration is the measurement length.
	Duration time.Duration

	// Bandwidth is the target rate in Mbps, e.g. "10". Empty
	// means unlimited.
	Bandwidth string
}

// Measurement is the parsed outcome of a successful invocation.
type Measurement struct {
	BitsPerSecond float64
	Mbps          float64
	Bytes         int64
	Retransmits   int
	JitterMs      float64
	Elapsed       time.Duration
}

// Probe measures throughput. Failures are returned as
// *scenario.ProbeError carrying the classified status.
type Probe interface {
	Run(ctx context.Context, req Request) (*Measurement, error)
}

// Func adapts a plain function to the Probe interface.
type Func func(ctx context.Context, req Request) (*Measurement, error)

// Run calls f(ctx, req).
func (f Func) Run(
	ctx context.Context, req Request,
) (*Measurement, error) {
	return f(ctx, req)
}

// Result converts a probe outcome into the RunResult recorded for
// the iteration. Only a measurement with a nil error is a success;
// a nil measurement without an error is recorded as StatusError so
// no zero reading reaches the aggregations.
func Result(
	req Request, m *Measurement, err error,
) scenario.RunResult {
	res := scenario.RunResult{
		ScenarioID: req.ScenarioID,
		Target:     req.Target,
		Direction:  req.Direction,
	}
	if err == nil && m == nil {
		err = newError(req, scenario.StatusError, ErrNoMeasurement)
	}
	if err != nil {
		res.Status = StatusOf(err)
		res.Error = err.Error()
		return res
	}
	res.Status = scenario.StatusSuccess
	res.Mbps = m.Mbps
	res.BitsPerSecond = m.BitsPerSecond
	res.Bytes = m.Bytes
	res.Retransmits = m.Retransmits
	res.JitterMs = m.JitterMs
	return res
}
