// Package floatutils provides utilities for working with floats
package floatutils

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r1"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// ClipInterval is a wrapper to use Clip with an r1.Interval instead of
// a separate max and min value
func ClipInterval(value float64, interval r1.Interval) float64 {
	return Clip(value, interval.Min, interval.Max)
}

// Within returns whether value lies inside the closed interval
func Within(value float64, interval r1.Interval) bool {
	return value >= interval.Min && value <= interval.Max
}

// MaxSlice gets the maximum value and indices of the maximum values in
// a slice of float64.
func MaxSlice(values []float64) (max float64, indices []int) {
	max, indices = values[0], []int{0}

	for i, value := range values[1:] {
		if value > max {
			max = value
			indices = []int{i + 1}
		} else if value == max {
			indices = append(indices, i+1)
		}
	}
	return
}

// AllFinite returns whether no element of values is NaN or ±Inf
func AllFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Param is a single named value printed by FormatParams
type Param struct {
	Key   string
	Value interface{}
}

// FormatParams formats key/value pairs on a single status line, e.g.
//
//	wma: +12.345, theta: -0.021, win: +3, loss: +10
//
// Non-negative numbers get an explicit + sign. Integral values are
// printed without decimals and everything else with 3 decimals. Values
// that are not numbers are printed with %v.
func FormatParams(params ...Param) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Key)
		b.WriteString(": ")

		var v float64
		switch x := p.Value.(type) {
		case float64:
			v = x
		case float32:
			v = float64(x)
		case int:
			v = float64(x)
		case int64:
			v = float64(x)
		default:
			fmt.Fprintf(&b, "%v", x)
			continue
		}

		if v >= 0 {
			b.WriteByte('+')
		}
		if math.Round(v) == v {
			fmt.Fprintf(&b, "%.0f", v)
		} else {
			fmt.Fprintf(&b, "%.3f", v)
		}
	}
	return b.String()
}
