package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"digital.vasic.netprobe/pkg/scenario"
	"digital.vasic.netprobe/pkg/schedule"
	"digital.vasic.netprobe/pkg/store"
)

var stateColors = map[string]func(string, ...any) string{
	"running":   color.GreenString,
	"due":       color.YellowString,
	"exhausted": color.HiBlackString,
}

func colorState(state string) string {
	if f, ok := stateColors[state]; ok {
		return f(state)
	}
	return state
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// printStatus writes the scheduler status as an ASCII table
// followed by a one-line summary.
func printStatus(w io.Writer, status *scenario.SchedulerStatus, now time.Time) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Scenario", "Mode", "State", "Iteration", "Runs", "Next Due", "In", "Last Run"})
	table.SetAutoWrapText(false)

	for _, s := range status.Scenarios {
		runs := strconv.Itoa(s.Runs)
		if s.MaxRuns > 0 {
			runs = fmt.Sprintf("%d/%d", s.Runs, s.MaxRuns)
		}
		in := "-"
		if !s.NextDue.IsZero() && s.State != "exhausted" {
			in = s.NextDue.Sub(now).Round(time.Second).String()
		}
		table.Append([]string{
			s.ScenarioID,
			s.Mode,
			colorState(s.State),
			strconv.Itoa(s.Iteration),
			runs,
			formatTime(s.NextDue),
			in,
			formatTime(s.LastRun),
		})
	}
	table.Render()

	state := color.RedString("stopped")
	if status.Running {
		state = color.GreenString("running")
	}
	fmt.Fprintf(w, "scheduler %s: %d scenarios, %d active, %d exhausted\n",
		state, status.Total, status.Active, status.Exhausted)
}

// printUpcoming writes up to count due times per scenario.
func printUpcoming(w io.Writer, specs []*scenario.Spec, now time.Time, count int) error {
	if count <= 0 {
		return fmt.Errorf("count must be positive, got %d", count)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Scenario", "Mode", "#", "Due"})
	table.SetAutoMergeCells(true)

	for _, spec := range specs {
		sched, err := schedule.Parse(spec.Schedule, now)
		if err != nil {
			return err
		}
		times := schedule.Upcoming(sched, now, count)
		if len(times) == 0 {
			table.Append([]string{spec.ID, string(sched.Mode()), "-", "exhausted"})
			continue
		}
		for i, t := range times {
			table.Append([]string{
				spec.ID, string(sched.Mode()), strconv.Itoa(i + 1),
				t.Format(time.RFC3339),
			})
		}
	}
	table.Render()
	return nil
}

var verdictColors = map[string]func(string, ...any) string{
	scenario.VerdictPass: color.GreenString,
	scenario.VerdictFail: color.RedString,
}

// printResults writes the scenario-scope verdicts of one scenario
// and a line counting its stored results and evaluations.
func printResults(
	w io.Writer,
	id string,
	results []scenario.RunResult,
	evaluations int,
	summary []store.SummaryRow,
) {
	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Aggregation", "Operator", "Expected", "Actual", "Samples", "Verdict"})
	table.SetAutoWrapText(false)
	for _, row := range summary {
		verdict := row.Verdict
		if f, ok := verdictColors[verdict]; ok {
			verdict = f(verdict)
		}
		table.Append([]string{
			string(row.Metric),
			row.Aggregation,
			row.Operator,
			row.ExpectedValue,
			strconv.FormatFloat(row.Actual, 'f', 2, 64),
			strconv.Itoa(row.SampleCount),
			verdict,
		})
	}
	table.Render()

	fmt.Fprintf(w, "%s: %d results (%d succeeded), %d evaluations\n",
		id, len(results), succeeded, evaluations)
}
