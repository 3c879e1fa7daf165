// Package schedule computes when a scenario is next due. Each
// schedule mode is its own type carrying only the fields it needs;
// all of them satisfy Schedule, so callers dispatch through one
// Next method.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"digital.vasic.netprobe/pkg/scenario"
)

// Mode names a schedule variant.
type Mode string

const (
	ModeOnce      Mode = "once"
	ModeRecurring Mode = "recurring"
	ModeCron      Mode = "cron"
	ModeEvery     Mode = "every"
	ModeDaily     Mode = "daily"
	ModeWeekly    Mode = "weekly"
	ModeHourly    Mode = "hourly"
)

// Schedule computes due times for one scenario.
type Schedule interface {
	// Mode returns the variant name.
	Mode() Mode

	// Next returns the next due time given the current instant,
	// the start of the previous run (zero if never run) and the
	// number of completed runs. ok=false means the schedule is
	// exhausted.
	Next(now, last time.Time, runs int) (next time.Time, ok bool)

	// MaxRuns returns the run limit, or 0 when unlimited.
	MaxRuns() int
}

// DefaultRecurringInterval applies when recurring_interval is
// unset.
const DefaultRecurringInterval = 60 * time.Minute

// Parse builds a Schedule from its declarative form. now anchors
// "immediate" and relative start times. Every malformed field is
// reported as a *scenario.ConfigurationError so that registration
// fails before any dispatch.
func Parse(spec scenario.ScheduleSpec, now time.Time) (Schedule, error) {
	loc, err := Location(spec.Timezone)
	if err != nil {
		return nil, fieldError("schedule.timezone", err.Error())
	}
	now = now.In(loc)

	mode := Mode(strings.ToLower(strings.TrimSpace(spec.Mode)))
	if mode == "" {
		mode = ModeOnce
	}

	switch mode {
	case ModeOnce:
		at, err := ParseStart(spec.StartTime, now, loc)
		if err != nil {
			return nil, fieldError("schedule.start_time", err.Error())
		}
		return &Once{At: at}, nil

	case ModeRecurring:
		start, err := ParseStart(spec.StartTime, now, loc)
		if err != nil {
			return nil, fieldError("schedule.start_time", err.Error())
		}
		if spec.RecurringInterval < 0 {
			return nil, fieldError(
				"schedule.recurring_interval",
				"interval must be positive",
			)
		}
		if spec.RecurringTimes < 0 {
			return nil, fieldError(
				"schedule.recurring_times",
				"times must not be negative",
			)
		}
		interval := DefaultRecurringInterval
		if spec.RecurringInterval > 0 {
			interval = time.Duration(spec.RecurringInterval) * time.Minute
		}
		return &Recurring{
			Start: start, Interval: interval, Times: spec.RecurringTimes,
		}, nil

	case ModeCron:
		c, err := NewCron(spec.Cron, loc, now)
		if err != nil {
			return nil, fieldError("schedule.cron", err.Error())
		}
		return c, nil

	case ModeEvery:
		return parseEvery(spec, now, loc)

	case ModeDaily, ModeWeekly, ModeHourly:
		return parseCalendar(mode, spec, now, loc)

	default:
		return nil, fieldError(
			"schedule.mode",
			fmt.Sprintf("unknown schedule mode %q", spec.Mode),
		)
	}
}

// Location resolves "local" (or empty) to time.Local and anything
// else through the IANA database.
func Location(name string) (*time.Location, error) {
	n := strings.TrimSpace(name)
	if n == "" || strings.EqualFold(n, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(n)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

var startLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseStart resolves a start_time: "immediate" (or empty), a
// relative offset "+Nm" / "+Nh", or an ISO-8601 timestamp. Zone-less
// timestamps are read in loc.
func ParseStart(
	raw string,
	now time.Time,
	loc *time.Location,
) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "immediate") ||
		strings.EqualFold(s, "now") {
		return now, nil
	}

	if strings.HasPrefix(s, "+") {
		spec := s[1:]
		if len(spec) < 2 {
			return time.Time{}, fmt.Errorf(
				"invalid relative start %q", raw,
			)
		}
		n, err := strconv.Atoi(spec[:len(spec)-1])
		if err != nil || n < 0 {
			return time.Time{}, fmt.Errorf(
				"invalid relative start %q", raw,
			)
		}
		switch spec[len(spec)-1] {
		case 'm':
			return now.Add(time.Duration(n) * time.Minute), nil
		case 'h':
			return now.Add(time.Duration(n) * time.Hour), nil
		default:
			return time.Time{}, fmt.Errorf(
				"unknown time unit in %q: want m or h", raw,
			)
		}
	}

	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized start time %q", raw)
}

func fieldError(field, msg string) error {
	return &scenario.ConfigurationError{
		Index: -1, Field: field, Message: msg,
	}
}

// Once is due a single time.
type Once struct {
	At time.Time
}

// Mode returns ModeOnce.
func (o *Once) Mode() Mode { return ModeOnce }

// MaxRuns returns 1.
func (o *Once) MaxRuns() int { return 1 }

// Next returns At until the first run completes.
func (o *Once) Next(_, _ time.Time, runs int) (time.Time, bool) {
	if runs > 0 {
		return time.Time{}, false
	}
	return o.At, true
}

// Recurring is due at Start + runs*Interval, up to Times runs.
type Recurring struct {
	Start    time.Time
	Interval time.Duration
	Times    int // 0 means unlimited
}

// Mode returns ModeRecurring.
func (r *Recurring) Mode() Mode { return ModeRecurring }

// MaxRuns returns the configured number of repetitions.
func (r *Recurring) MaxRuns() int { return r.Times }

// Next follows the fixed grid anchored at Start.
func (r *Recurring) Next(_, _ time.Time, runs int) (time.Time, bool) {
	if r.Times > 0 && runs >= r.Times {
		return time.Time{}, false
	}
	return r.Start.Add(time.Duration(runs) * r.Interval), true
}

// Upcoming lists up to n due times starting from now, assuming each
// run starts exactly when it falls due.
func Upcoming(s Schedule, now time.Time, n int) []time.Time {
	var (
		out  []time.Time
		last time.Time
	)
	for runs := 0; runs < n; runs++ {
		next, ok := s.Next(now, last, runs)
		if !ok {
			break
		}
		out = append(out, next)
		last = next
		if next.After(now) {
			now = next
		}
	}
	return out
}
