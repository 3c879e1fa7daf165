package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"digital.vasic.netprobe/pkg/scenario"
)

// Cron is due at every minute matching a standard 5-field
// expression. When both day-of-month and day-of-week are
// restricted, a day matching either one qualifies.
type Cron struct {
	Expr string
	loc  *time.Location
	spec cron.Schedule
}

// NewCron parses a 5-field expression evaluated in loc. now is used
// to reject expressions that can never fire.
func NewCron(expr string, loc *time.Location, now time.Time) (*Cron, error) {
	e := strings.TrimSpace(expr)
	if e == "" {
		return nil, fmt.Errorf("cron expression is required")
	}
	if n := len(strings.Fields(e)); n != 5 {
		return nil, fmt.Errorf(
			"cron expression %q has %d fields, want 5", expr, n,
		)
	}
	spec, err := cron.ParseStandard(e)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	c := &Cron{Expr: e, loc: loc, spec: spec}
	if c.spec.Next(now.In(loc)).IsZero() {
		return nil, fmt.Errorf(
			"cron expression %q never matches", expr,
		)
	}
	return c, nil
}

// Mode returns ModeCron.
func (c *Cron) Mode() Mode { return ModeCron }

// MaxRuns returns 0; cron schedules never exhaust.
func (c *Cron) MaxRuns() int { return 0 }

// Next returns the first matching minute strictly after the later
// of last and now. Occurrences that passed while a run was in
// flight are skipped rather than queued.
func (c *Cron) Next(now, last time.Time, _ int) (time.Time, bool) {
	anchor := last
	if anchor.IsZero() || now.After(anchor) {
		anchor = now
	}
	next := c.spec.Next(anchor.In(c.loc))
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// Calendar wraps a cron rule generated from a daily, weekly or
// hourly declaration, with an optional run limit.
type Calendar struct {
	mode  Mode
	cron  *Cron
	limit int
}

// Mode returns the calendar mode it was declared with.
func (c *Calendar) Mode() Mode { return c.mode }

// MaxRuns returns the run limit, 0 when unlimited.
func (c *Calendar) MaxRuns() int { return c.limit }

// Expr returns the generated cron expression.
func (c *Calendar) Expr() string { return c.cron.Expr }

// Next delegates to the generated cron rule until the limit is hit.
func (c *Calendar) Next(now, last time.Time, runs int) (time.Time, bool) {
	if c.limit > 0 && runs >= c.limit {
		return time.Time{}, false
	}
	return c.cron.Next(now, last, runs)
}

var weekdays = map[string]int{
	"sunday": 0, "monday": 1, "tuesday": 2, "wednesday": 3,
	"thursday": 4, "friday": 5, "saturday": 6,
	"sun": 0, "mon": 1, "tue": 2, "wed": 3,
	"thu": 4, "fri": 5, "sat": 6,
}

func parseCalendar(
	mode Mode,
	spec scenario.ScheduleSpec,
	now time.Time,
	loc *time.Location,
) (Schedule, error) {
	if spec.MaxRuns < 0 {
		return nil, fieldError(
			"schedule.max_runs", "max_runs must not be negative",
		)
	}

	var expr string
	switch mode {
	case ModeHourly:
		if spec.Minute < 0 || spec.Minute > 59 {
			return nil, fieldError(
				"schedule.minute",
				fmt.Sprintf("minute %d out of range 0-59", spec.Minute),
			)
		}
		expr = fmt.Sprintf("%d * * * *", spec.Minute)

	case ModeDaily, ModeWeekly:
		hh, mm, err := parseClock(spec.Time)
		if err != nil {
			return nil, fieldError("schedule.time", err.Error())
		}
		dow := "*"
		if mode == ModeWeekly {
			day := strings.ToLower(strings.TrimSpace(spec.Day))
			if day == "" {
				day = "monday"
			}
			n, ok := weekdays[day]
			if !ok {
				return nil, fieldError(
					"schedule.day",
					fmt.Sprintf("unknown day %q", spec.Day),
				)
			}
			dow = fmt.Sprintf("%d", n)
		}
		expr = fmt.Sprintf("%d %d * * %s", mm, hh, dow)
	}

	c, err := NewCron(expr, loc, now)
	if err != nil {
		return nil, fieldError("schedule."+string(mode), err.Error())
	}
	return &Calendar{mode: mode, cron: c, limit: spec.MaxRuns}, nil
}

// parseClock reads "HH:MM"; empty means 09:00.
func parseClock(raw string) (int, int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 9, 0, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", raw)
	}
	return t.Hour(), t.Minute(), nil
}
