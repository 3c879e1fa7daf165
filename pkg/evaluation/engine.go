// Package evaluation judges probe results against a scenario's
// expectations at per_iteration, overall, windowed and scenario
// scope, and builds the aggregation table over history.
package evaluation

import (
	"fmt"
	"math"
	"time"

	"digital.vasic.netprobe/pkg/aggregation"
	"digital.vasic.netprobe/pkg/operator"
	"digital.vasic.netprobe/pkg/scenario"
)

// Unit labels used in the aggregation table.
const (
	UnitMbps    = "mbps"
	UnitSamples = "samples"
)

// Input is everything one evaluation pass needs.
type Input struct {
	ScenarioID   string
	Iteration    int
	Timestamp    time.Time
	Expectations []scenario.Expectation

	// Results is the current iteration, including failures.
	Results []scenario.RunResult

	// History is the scenario's successful results, including
	// those of the current iteration.
	History []scenario.RunResult
}

// Outcome holds the records produced by one evaluation pass.
type Outcome struct {
	Records         []scenario.EvaluationRecord
	ScenarioRecords []scenario.EvaluationRecord
	Aggregates      []scenario.AggregateRow
	Skipped         []scenario.InsufficientDataError

	// Errors lists expectations that could not be judged for a
	// reason other than missing data.
	Errors []error
}

// Apply copies the outcome into a batch.
func (o *Outcome) Apply(b *scenario.Batch) {
	b.Records = o.Records
	b.ScenarioRecords = o.ScenarioRecords
	b.Aggregates = o.Aggregates
	b.Skipped = o.Skipped
}

// Engine evaluates one iteration.
type Engine interface {
	Evaluate(in Input) *Outcome
}

// DefaultEngine is the standard Engine. It holds no per-scenario
// state: the scenario scope is recomputed from History each time.
type DefaultEngine struct {
	operators operator.Evaluator
}

// Option configures a DefaultEngine.
type Option func(*DefaultEngine)

// WithOperators replaces the operator registry, e.g. one with
// custom comparators registered.
func WithOperators(ev operator.Evaluator) Option {
	return func(e *DefaultEngine) {
		e.operators = ev
	}
}

// NewEngine creates a DefaultEngine backed by operator.Default.
func NewEngine(opts ...Option) *DefaultEngine {
	e := &DefaultEngine{operators: operator.Default}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate judges every expectation and builds the aggregation
// table. Expectations whose aggregate has no samples yield a
// Skipped entry and no record.
func (e *DefaultEngine) Evaluate(in Input) *Outcome {
	out := &Outcome{}
	for _, exp := range in.Expectations {
		switch exp.Scope {
		case scenario.ScopePerIteration, "":
			e.perIteration(in, exp, out)
		case scenario.ScopeOverall:
			e.aggregated(in, exp, out, in.Results,
				scenario.IterationLabel(in.Iteration),
				scenario.TestIndexAll, &out.Records)
		case scenario.ScopeWindowed:
			since := in.Timestamp.Add(
				-time.Duration(exp.WindowMinutes) * time.Minute,
			)
			e.aggregated(in, exp, out,
				Window(in.History, since, in.Timestamp),
				scenario.IterationLabel(in.Iteration),
				scenario.TestIndexAll, &out.Records)
		case scenario.ScopeScenario:
			e.aggregated(in, exp, out, in.History,
				scenario.IterationAll,
				scenario.TestIndexScenario, &out.ScenarioRecords)
		default:
			out.Errors = append(out.Errors, fmt.Errorf(
				"%s: unknown evaluation scope %q", exp.Metric, exp.Scope,
			))
		}
	}
	out.Aggregates = Table(in.ScenarioID, in.Timestamp, in.History)
	return out
}

func (e *DefaultEngine) perIteration(
	in Input, exp scenario.Expectation, out *Outcome,
) {
	dir, _ := exp.Metric.Direction()
	for _, r := range in.Results {
		if !r.Succeeded() || r.Direction != dir {
			continue
		}
		passed, err := e.operators.Evaluate(
			exp.Operator, r.Mbps, exp.Value, exp.Options(),
		)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Errorf(
				"%s %s: %w", exp.Metric, exp.Operator, err,
			))
			return
		}
		out.Records = append(out.Records, scenario.EvaluationRecord{
			ScenarioID:  in.ScenarioID,
			Iteration:   scenario.IterationLabel(in.Iteration),
			Timestamp:   in.Timestamp,
			Metric:      exp.Metric,
			Operator:    exp.Operator,
			Expected:    exp.Value,
			Actual:      r.Mbps,
			Unit:        exp.Unit,
			Aggregation: scenario.AggregationNone,
			Scope:       exp.Scope,
			TestIndex:   r.Target.String(),
			SampleCount: 1,
			Passed:      passed,
			Verdict:     scenario.VerdictFor(passed),
		})
	}
}

func (e *DefaultEngine) aggregated(
	in Input,
	exp scenario.Expectation,
	out *Outcome,
	results []scenario.RunResult,
	iteration, testIndex string,
	dst *[]scenario.EvaluationRecord,
) {
	samples := Samples(results, exp.Metric)
	if len(samples) == 0 {
		out.Skipped = append(out.Skipped, scenario.InsufficientDataError{
			ScenarioID:  in.ScenarioID,
			Metric:      exp.Metric,
			Scope:       exp.Scope,
			Aggregation: exp.Aggregation,
		})
		return
	}

	actual, err := aggregation.Aggregate(exp.Aggregation, samples)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Errorf(
			"%s %s: %w", exp.Metric, exp.Aggregation, err,
		))
		return
	}

	passed, err := e.operators.Evaluate(
		exp.Operator, actual, exp.Value, exp.Options(),
	)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Errorf(
			"%s %s: %w", exp.Metric, exp.Operator, err,
		))
		return
	}

	*dst = append(*dst, scenario.EvaluationRecord{
		ScenarioID:  in.ScenarioID,
		Iteration:   iteration,
		Timestamp:   in.Timestamp,
		Metric:      exp.Metric,
		Operator:    exp.Operator,
		Expected:    exp.Value,
		Actual:      round2(actual),
		Unit:        exp.Unit,
		Aggregation: exp.Aggregation,
		Scope:       exp.Scope,
		TestIndex:   testIndex,
		SampleCount: len(samples),
		Passed:      passed,
		Verdict:     scenario.VerdictFor(passed),
	})
}

// Samples returns the Mbps values of successful results whose
// direction produces metric, in input order.
func Samples(results []scenario.RunResult, metric scenario.Metric) []float64 {
	dir, ok := metric.Direction()
	if !ok {
		return nil
	}
	var samples []float64
	for _, r := range results {
		if r.Succeeded() && r.Direction == dir {
			samples = append(samples, r.Mbps)
		}
	}
	return samples
}

// Window returns the results timestamped within [since, until].
func Window(
	results []scenario.RunResult, since, until time.Time,
) []scenario.RunResult {
	var kept []scenario.RunResult
	for _, r := range results {
		if r.Timestamp.Before(since) || r.Timestamp.After(until) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// Table computes every report method for every metric over
// history. Metrics without samples are omitted.
func Table(
	scenarioID string, at time.Time, history []scenario.RunResult,
) []scenario.AggregateRow {
	var rows []scenario.AggregateRow
	for _, metric := range scenario.Metrics {
		samples := Samples(history, metric)
		if len(samples) == 0 {
			continue
		}
		for _, m := range aggregation.ReportMethods {
			v, err := aggregation.Aggregate(string(m), samples)
			if err != nil {
				continue
			}
			unit := UnitMbps
			if m == aggregation.Count {
				unit = UnitSamples
			}
			rows = append(rows, scenario.AggregateRow{
				ScenarioID:  scenarioID,
				Timestamp:   at,
				Metric:      metric,
				Aggregation: string(m),
				Value:       round2(v),
				Unit:        unit,
				SampleCount: len(samples),
			})
		}
	}
	return rows
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
