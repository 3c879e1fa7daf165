// Package operator judges an actual value against an expected
// scalar or [low, high] range. Comparators live in a registry so
// that new operators can be added without touching callers.
package operator

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// Canonical operator names.
const (
	Eq      = "eq"
	Neq     = "neq"
	Lt      = "lt"
	Lte     = "lte"
	Gt      = "gt"
	Gte     = "gte"
	Between = "between"
)

var aliases = map[string]string{
	"==":           Eq,
	"=":            Eq,
	"equal":        Eq,
	"equals":       Eq,
	"!=":           Neq,
	"not_equal":    Neq,
	"<":            Lt,
	"less_than":    Lt,
	"<=":           Lte,
	">":            Gt,
	"greater_than": Gt,
	">=":           Gte,
	"in_range":     Between,
	"range":        Between,
}

var symbols = map[string]string{
	Eq: "==", Neq: "!=", Lt: "<", Lte: "<=", Gt: ">", Gte: ">=",
	Between: "between",
}

// Options carries per-expectation comparison settings.
type Options struct {
	// Tolerance widens eq and neq: |actual-expected| <= Tolerance
	// counts as equal.
	Tolerance float64

	// Inclusive selects which between bounds are inclusive.
	// Empty means neither.
	Inclusive string
}

// Comparator judges actual against expected.
type Comparator func(
	actual float64,
	expected []float64,
	opts Options,
) (bool, error)

type entry struct {
	compare Comparator
	isRange bool
}

// Evaluator resolves operators and judges values.
type Evaluator interface {
	// Evaluate judges actual against expected using op.
	Evaluate(
		op string,
		actual float64,
		expected []float64,
		opts Options,
	) (bool, error)

	// Register adds a comparator. Returns an error if the name
	// is already registered.
	Register(name string, c Comparator, isRange bool) error
}

// DefaultEvaluator is the standard Evaluator. It is safe for
// concurrent use.
type DefaultEvaluator struct {
	mu          sync.RWMutex
	comparators map[string]entry
}

// NewEvaluator creates a DefaultEvaluator with the seven built-in
// comparators registered.
func NewEvaluator() *DefaultEvaluator {
	e := &DefaultEvaluator{comparators: make(map[string]entry)}
	e.registerDefaults()
	return e
}

// Default is the package-level evaluator used by the helper
// functions.
var Default = NewEvaluator()

func (e *DefaultEvaluator) registerDefaults() {
	e.comparators[Eq] = entry{compare: compareEq}
	e.comparators[Neq] = entry{compare: compareNeq}
	e.comparators[Lt] = entry{compare: scalar(func(a, x float64) bool { return a < x })}
	e.comparators[Lte] = entry{compare: scalar(func(a, x float64) bool { return a <= x })}
	e.comparators[Gt] = entry{compare: scalar(func(a, x float64) bool { return a > x })}
	e.comparators[Gte] = entry{compare: scalar(func(a, x float64) bool { return a >= x })}
	e.comparators[Between] = entry{compare: compareBetween, isRange: true}
}

// Register adds a custom comparator.
func (e *DefaultEvaluator) Register(
	name string,
	c Comparator,
	isRange bool,
) error {
	key := strings.ToLower(strings.TrimSpace(name))
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.comparators[key]; exists {
		return fmt.Errorf("operator already registered: %s", key)
	}
	if _, exists := aliases[key]; exists {
		return fmt.Errorf("operator name is a reserved alias: %s", key)
	}
	e.comparators[key] = entry{compare: c, isRange: isRange}
	return nil
}

// Normalize resolves aliases and case to a registered name.
func (e *DefaultEvaluator) Normalize(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	e.mu.RLock()
	_, exists := e.comparators[key]
	e.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("unknown operator: %q", name)
	}
	return key, nil
}

// IsRange reports whether the operator takes a [low, high] pair.
func (e *DefaultEvaluator) IsRange(name string) bool {
	key, err := e.Normalize(name)
	if err != nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.comparators[key].isRange
}

// Evaluate judges actual against expected. NaN or infinite actual
// values never pass.
func (e *DefaultEvaluator) Evaluate(
	op string,
	actual float64,
	expected []float64,
	opts Options,
) (bool, error) {
	key, err := e.Normalize(op)
	if err != nil {
		return false, err
	}

	e.mu.RLock()
	ent := e.comparators[key]
	e.mu.RUnlock()

	want := 1
	if ent.isRange {
		want = 2
	}
	if len(expected) != want {
		return false, fmt.Errorf(
			"operator %s expects %d value(s), got %d",
			key, want, len(expected),
		)
	}
	if math.IsNaN(actual) || math.IsInf(actual, 0) {
		return false, nil
	}
	return ent.compare(actual, expected, opts)
}

// Evaluate judges with the Default evaluator.
func Evaluate(
	op string,
	actual float64,
	expected []float64,
	opts Options,
) (bool, error) {
	return Default.Evaluate(op, actual, expected, opts)
}

// Normalize resolves a name with the Default evaluator.
func Normalize(name string) (string, error) {
	return Default.Normalize(name)
}

// IsRange consults the Default evaluator.
func IsRange(name string) bool {
	return Default.IsRange(name)
}

// Symbol returns a short display form such as ">=".
func Symbol(op string) string {
	key, err := Normalize(op)
	if err != nil {
		return op
	}
	if s, ok := symbols[key]; ok {
		return s
	}
	return key
}
