// Package util contains misc internal utilities.
package util

// Limiter is a bound on a scalar command.  The zero value of a field means
// that side is unbounded.
type Limiter struct {
	Min float64 `json:"min" yaml:"Min"`
	Max float64 `json:"max" yaml:"Max"`
}

// Check returns true if v satisfies the limit
func (l Limiter) Check(v float64) bool {
	if l.Min != 0 && v < l.Min {
		return false
	}
	if l.Max != 0 && v > l.Max {
		return false
	}
	return true
}

// Clamp returns v forced into the limit
func (l Limiter) Clamp(v float64) float64 {
	if l.Min != 0 && v < l.Min {
		return l.Min
	}
	if l.Max != 0 && v > l.Max {
		return l.Max
	}
	return v
}
