package operator

import (
	"fmt"
	"math"
	"strings"
)

// Inclusive selects which bounds of a between comparison count as
// inside the range.
type Inclusive string

const (
	InclusiveNeither Inclusive = "neither"
	InclusiveBoth    Inclusive = "both"
	InclusiveLeft    Inclusive = "left"
	InclusiveRight   Inclusive = "right"
)

// ParseInclusive validates an inclusivity setting. Empty means
// neither.
func ParseInclusive(s string) (Inclusive, error) {
	switch Inclusive(strings.ToLower(strings.TrimSpace(s))) {
	case "", InclusiveNeither:
		return InclusiveNeither, nil
	case InclusiveBoth:
		return InclusiveBoth, nil
	case InclusiveLeft:
		return InclusiveLeft, nil
	case InclusiveRight:
		return InclusiveRight, nil
	default:
		return "", fmt.Errorf(
			"invalid inclusive value %q: want neither, both, left or right",
			s,
		)
	}
}

func scalar(cmp func(actual, expected float64) bool) Comparator {
	return func(actual float64, expected []float64, _ Options) (bool, error) {
		return cmp(actual, expected[0]), nil
	}
}

func compareEq(
	actual float64, expected []float64, opts Options,
) (bool, error) {
	if opts.Tolerance == 0 {
		return actual == expected[0], nil
	}
	return math.Abs(actual-expected[0]) <= opts.Tolerance, nil
}

func compareNeq(
	actual float64, expected []float64, opts Options,
) (bool, error) {
	eq, err := compareEq(actual, expected, opts)
	return !eq, err
}

// compareBetween is exclusive on both bounds unless opts.Inclusive
// says otherwise.
func compareBetween(
	actual float64, expected []float64, opts Options,
) (bool, error) {
	low, high := expected[0], expected[1]
	if low >= high {
		return false, fmt.Errorf(
			"range low %v must be less than high %v", low, high,
		)
	}
	inc, err := ParseInclusive(opts.Inclusive)
	if err != nil {
		return false, err
	}

	switch inc {
	case InclusiveBoth:
		return low <= actual && actual <= high, nil
	case InclusiveLeft:
		return low <= actual && actual < high, nil
	case InclusiveRight:
		return low < actual && actual <= high, nil
	default:
		return low < actual && actual < high, nil
	}
}
