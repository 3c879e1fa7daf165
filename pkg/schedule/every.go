package schedule

import (
	"fmt"
	"strings"
	"time"

	"digital.vasic.netprobe/pkg/scenario"
)

var units = map[string]time.Duration{
	"second": time.Second, "seconds": time.Second,
	"minute": time.Minute, "minutes": time.Minute,
	"hour": time.Hour, "hours": time.Hour,
	"day": 24 * time.Hour, "days": 24 * time.Hour,
	"week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
}

// Every is due one interval after start, then one interval after
// each run, optionally limited to Limit runs.
type Every struct {
	Start    time.Time
	Interval time.Duration
	Limit    int // 0 means unlimited
}

// Mode returns ModeEvery.
func (e *Every) Mode() Mode { return ModeEvery }

// MaxRuns returns the run limit, 0 when unlimited.
func (e *Every) MaxRuns() int { return e.Limit }

// Next stays on the grid anchored at the previous run. Slots that
// already passed are skipped.
func (e *Every) Next(now, last time.Time, runs int) (time.Time, bool) {
	if e.Limit > 0 && runs >= e.Limit {
		return time.Time{}, false
	}
	if runs == 0 || last.IsZero() {
		return e.Start.Add(e.Interval), true
	}
	next := last.Add(e.Interval)
	if !next.After(now) {
		missed := now.Sub(last) / e.Interval
		next = last.Add((missed + 1) * e.Interval)
	}
	return next, true
}

func parseEvery(
	spec scenario.ScheduleSpec,
	now time.Time,
	loc *time.Location,
) (Schedule, error) {
	n := spec.Interval
	if n == 0 {
		n = 1
	}
	if n < 0 {
		return nil, fieldError(
			"schedule.interval", "interval must be positive",
		)
	}
	u := strings.ToLower(strings.TrimSpace(spec.Unit))
	if u == "" {
		u = "minutes"
	}
	unit, ok := units[u]
	if !ok {
		return nil, fieldError(
			"schedule.unit",
			fmt.Sprintf("unknown unit %q", spec.Unit),
		)
	}
	if spec.MaxRuns < 0 {
		return nil, fieldError(
			"schedule.max_runs", "max_runs must not be negative",
		)
	}
	start, err := ParseStart(spec.StartTime, now, loc)
	if err != nil {
		return nil, fieldError("schedule.start_time", err.Error())
	}
	return &Every{
		Start:    start,
		Interval: time.Duration(n) * unit,
		Limit:    spec.MaxRuns,
	}, nil
}
