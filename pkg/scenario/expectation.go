package scenario

import (
	"fmt"
	"strings"

	"digital.vasic.netprobe/pkg/aggregation"
	"digital.vasic.netprobe/pkg/operator"
)

// Metric names a measured quantity.
type Metric string

const (
	MetricDownloadSpeed Metric = "download_speed"
	MetricUploadSpeed   Metric = "upload_speed"
)

// Direction returns the probe direction that produces the metric.
func (m Metric) Direction() (Direction, bool) {
	switch m {
	case MetricDownloadSpeed:
		return DirectionDownload, true
	case MetricUploadSpeed:
		return DirectionUpload, true
	default:
		return "", false
	}
}

// Metrics lists every supported metric in export order.
var Metrics = []Metric{MetricDownloadSpeed, MetricUploadSpeed}

// Scope is the granularity at which samples are judged.
type Scope string

const (
	// ScopePerIteration judges every successful target result.
	ScopePerIteration Scope = "per_iteration"
	// ScopeOverall aggregates one iteration's results.
	ScopeOverall Scope = "overall"
	// ScopeScenario aggregates the scenario's full history.
	ScopeScenario Scope = "scenario"
	// ScopeWindowed aggregates history within a trailing window.
	ScopeWindowed Scope = "windowed"
)

// AggregationNone labels per_iteration records.
const AggregationNone = "none"

// Expectation is one declared performance requirement.
type Expectation struct {
	// Metric is download_speed or upload_speed.
	Metric Metric `yaml:"metric" json:"metric"`

	// Operator is a comparison such as gte or between.
	Operator string `yaml:"operator" json:"operator"`

	// Value is a scalar, or a [low, high] pair for range
	// operators.
	Value Values `yaml:"value" json:"value"`

	// Unit is carried through to records, e.g. "Mbps".
	Unit string `yaml:"unit,omitempty" json:"unit,omitempty"`

	// Scope selects the evaluation granularity.
	Scope Scope `yaml:"evaluation_scope" json:"evaluation_scope"`

	// Aggregation is required unless Scope is per_iteration.
	Aggregation string `yaml:"aggregation,omitempty" json:"aggregation,omitempty"`

	// Tolerance widens eq and neq comparisons.
	Tolerance float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`

	// Inclusive selects which between bounds are inclusive:
	// neither (default), both, left or right.
	Inclusive string `yaml:"inclusive,omitempty" json:"inclusive,omitempty"`

	// WindowMinutes sizes the windowed scope.
	WindowMinutes int `yaml:"window_minutes,omitempty" json:"window_minutes,omitempty"`
}

func (e *Expectation) applyDefaults() {
	if e.Scope == "" {
		e.Scope = ScopePerIteration
	}
	e.Operator = strings.ToLower(strings.TrimSpace(e.Operator))
	e.Aggregation = strings.ToLower(strings.TrimSpace(e.Aggregation))
}

// Options returns the operator options carried by the expectation.
func (e Expectation) Options() operator.Options {
	return operator.Options{
		Tolerance: e.Tolerance,
		Inclusive: e.Inclusive,
	}
}

// Validate checks the expectation invariants. The returned error is
// a *ConfigurationError naming the offending field; callers fill in
// the scenario context.
func (e Expectation) Validate() error {
	if _, ok := e.Metric.Direction(); !ok {
		return &ConfigurationError{
			Index: -1, Field: "metric",
			Message: fmt.Sprintf("unknown metric %q", e.Metric),
		}
	}

	op, err := operator.Normalize(e.Operator)
	if err != nil {
		return &ConfigurationError{
			Index: -1, Field: "operator", Message: err.Error(),
		}
	}

	if operator.IsRange(op) {
		if len(e.Value) != 2 {
			return &ConfigurationError{
				Index: -1, Field: "value",
				Message: fmt.Sprintf(
					"%s requires exactly two values, got %d",
					op, len(e.Value),
				),
			}
		}
		if e.Value[0] >= e.Value[1] {
			return &ConfigurationError{
				Index: -1, Field: "value",
				Message: fmt.Sprintf(
					"range low %v must be less than high %v",
					e.Value[0], e.Value[1],
				),
			}
		}
		if _, err := operator.ParseInclusive(e.Inclusive); err != nil {
			return &ConfigurationError{
				Index: -1, Field: "inclusive", Message: err.Error(),
			}
		}
	} else if len(e.Value) != 1 {
		return &ConfigurationError{
			Index: -1, Field: "value",
			Message: fmt.Sprintf(
				"%s requires exactly one value, got %d",
				op, len(e.Value),
			),
		}
	}

	if e.Tolerance < 0 {
		return &ConfigurationError{
			Index: -1, Field: "tolerance",
			Message: "tolerance must not be negative",
		}
	}

	switch e.Scope {
	case ScopePerIteration:
		return nil
	case ScopeOverall, ScopeScenario:
	case ScopeWindowed:
		if e.WindowMinutes <= 0 {
			return &ConfigurationError{
				Index: -1, Field: "window_minutes",
				Message: "windowed scope requires window_minutes > 0",
			}
		}
	default:
		return &ConfigurationError{
			Index: -1, Field: "evaluation_scope",
			Message: fmt.Sprintf("unknown scope %q", e.Scope),
		}
	}

	if e.Aggregation == "" {
		return &ConfigurationError{
			Index: -1, Field: "aggregation",
			Message: fmt.Sprintf(
				"scope %s requires an aggregation method", e.Scope,
			),
		}
	}
	if _, err := aggregation.Normalize(e.Aggregation); err != nil {
		return &ConfigurationError{
			Index: -1, Field: "aggregation", Message: err.Error(),
		}
	}
	return nil
}
