// Package aggregation reduces an ordered sample set to a single
// statistic. All functions are pure and never modify their input.
package aggregation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrNoSamples is returned when a statistic that needs at least one
// sample is requested over an empty set.
var ErrNoSamples = errors.New("no samples to aggregate")

// Method names a statistic.
type Method string

const (
	Avg      Method = "avg"
	Mean     Method = "mean"
	Median   Method = "median"
	P50      Method = "p50"
	P90      Method = "p90"
	P95      Method = "p95"
	P99      Method = "p99"
	Min      Method = "min"
	Max      Method = "max"
	Sum      Method = "sum"
	Count    Method = "count"
	StdDev   Method = "std_dev"
	Variance Method = "variance"
	Range    Method = "range"
)

// ReportMethods is the fixed set exported in the aggregation
// metrics table.
var ReportMethods = []Method{
	Avg, Median, P90, P95, P99, Min, Max, StdDev, Count,
}

// Func reduces samples to one value.
type Func func(samples []float64) (float64, error)

var methods = map[Method]Func{
	Avg:      mean,
	Mean:     mean,
	Median:   percentileFunc(50),
	P50:      percentileFunc(50),
	P90:      percentileFunc(90),
	P95:      percentileFunc(95),
	P99:      percentileFunc(99),
	Min:      minimum,
	Max:      maximum,
	Sum:      sum,
	Count:    count,
	StdDev:   stdDev,
	Variance: variance,
	Range:    spread,
}

var aliases = map[string]Method{
	"average": Avg,
	"stddev":  StdDev,
	"std":     StdDev,
	"var":     Variance,
}

// Normalize resolves a method name, case-insensitively and with
// aliases, to its canonical Method.
func Normalize(name string) (Method, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if m, ok := aliases[key]; ok {
		return m, nil
	}
	m := Method(key)
	if _, ok := methods[m]; !ok {
		return "", fmt.Errorf("unknown aggregation method: %q", name)
	}
	return m, nil
}

// Known reports whether name resolves to a method.
func Known(name string) bool {
	_, err := Normalize(name)
	return err == nil
}

// Aggregate applies the named method to samples. Every method but
// count and sum returns ErrNoSamples on an empty set.
func Aggregate(name string, samples []float64) (float64, error) {
	m, err := Normalize(name)
	if err != nil {
		return 0, err
	}
	return methods[m](samples)
}

// Percentile returns the p-th percentile (0..100) using linear
// interpolation between closest ranks: rank = p/100 * (n-1).
func Percentile(samples []float64, p float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}
	if p < 0 || p > 100 || math.IsNaN(p) {
		return 0, fmt.Errorf("percentile out of range: %v", p)
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo], nil
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, nil
}

func percentileFunc(p float64) Func {
	return func(samples []float64) (float64, error) {
		return Percentile(samples, p)
	}
}

func mean(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}
	total, _ := sum(samples)
	return total / float64(len(samples)), nil
}

func sum(samples []float64) (float64, error) {
	var total float64
	for _, v := range samples {
		total += v
	}
	return total, nil
}

func count(samples []float64) (float64, error) {
	return float64(len(samples)), nil
}

func minimum(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}
	m := samples[0]
	for _, v := range samples[1:] {
		if v < m {
			m = v
		}
	}
	return m, nil
}

func maximum(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}
	m := samples[0]
	for _, v := range samples[1:] {
		if v > m {
			m = v
		}
	}
	return m, nil
}

func spread(samples []float64) (float64, error) {
	lo, err := minimum(samples)
	if err != nil {
		return 0, err
	}
	hi, _ := maximum(samples)
	return hi - lo, nil
}

// variance is the sample variance (n-1 denominator). A single
// sample has zero variance.
func variance(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}
	if len(samples) == 1 {
		return 0, nil
	}
	m, _ := mean(samples)
	var ss float64
	for _, v := range samples {
		d := v - m
		ss += d * d
	}
	return ss / float64(len(samples)-1), nil
}

func stdDev(samples []float64) (float64, error) {
	v, err := variance(samples)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}
