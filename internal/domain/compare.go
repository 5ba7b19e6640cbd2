package domain

import (
	"encoding/json"
	"math"
	"reflect"
)

// Numeric comparator tiers. Differences up to one unit earn near credit,
// up to two units partial credit; beyond that the score decays with the
// relative difference.
const (
	scoreWithinOne = 0.8
	scoreWithinTwo = 0.6
)

// CompareValues scores how well actual agrees with expected, in [0.0, 1.0].
// The comparator is chosen from the runtime type of expected: booleans compare
// exactly, finite numbers use the scaled-distance numeric comparator, and
// anything else compares categorically.
func CompareValues(expected, actual any) float64 {
	if actual == nil {
		if expected == nil {
			return 1.0
		}
		return 0.0
	}

	switch e := expected.(type) {
	case bool:
		a, ok := actual.(bool)
		if !ok {
			return 0.0
		}
		return CompareBoolean(e, a)
	}

	if ef, ok := ToFloat(expected); ok && !math.IsNaN(ef) && !math.IsInf(ef, 0) {
		af, ok := ToFloat(actual)
		if !ok {
			return 0.0
		}
		return CompareNumeric(ef, af)
	}

	return CompareCategory(expected, actual)
}

// CompareBoolean returns 1.0 on an exact match and 0.0 otherwise.
func CompareBoolean(expected, actual bool) float64 {
	if expected == actual {
		return 1.0
	}
	return 0.0
}

// CompareCategory returns 1.0 when both values are equal. Strings compare
// case-sensitively; other values use deep equality.
func CompareCategory(expected, actual any) float64 {
	es, eok := expected.(string)
	as, aok := actual.(string)
	if eok && aok {
		if es == as {
			return 1.0
		}
		return 0.0
	}
	if reflect.DeepEqual(expected, actual) {
		return 1.0
	}
	return 0.0
}

// CompareNumeric grades the distance between two counts:
//
//	diff == 0  -> 1.0
//	diff <= 1  -> 0.8
//	diff <= 2  -> 0.6
//	otherwise  -> max(0, 0.6 * (1 - diff/max(|expected|, |actual|, 1)))
//
// Non-finite inputs fall back to exact equality.
func CompareNumeric(expected, actual float64) float64 {
	if !isFinite(expected) || !isFinite(actual) {
		if expected == actual {
			return 1.0
		}
		return 0.0
	}

	diff := math.Abs(expected - actual)
	switch {
	case diff == 0:
		return 1.0
	case diff <= 1:
		return scoreWithinOne
	case diff <= 2:
		return scoreWithinTwo
	}

	denominator := math.Max(math.Max(math.Abs(expected), math.Abs(actual)), 1)
	relative := diff / denominator
	return math.Max(0, scoreWithinTwo*(1-relative))
}

// ToFloat converts any Go numeric kind (and json.Number) to float64.
// Booleans and strings are not numbers.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
