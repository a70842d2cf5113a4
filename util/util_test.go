package util_test

import (
	"testing"

	"github.com/opticslab/gopm/util"
)

func TestLimiterCheck(t *testing.T) {
	l := util.Limiter{Min: 400, Max: 1100}
	cases := []struct {
		v  float64
		ok bool
	}{
		{400, true},
		{633, true},
		{1100, true},
		{399.9, false},
		{1100.1, false},
	}
	for _, c := range cases {
		if got := l.Check(c.v); got != c.ok {
			t.Errorf("Check(%v) = %v, want %v", c.v, got, c.ok)
		}
	}
}

func TestLimiterZeroSideUnbounded(t *testing.T) {
	l := util.Limiter{Max: 1100}
	if !l.Check(-5000) {
		t.Error("a zero Min should leave the low side unbounded")
	}
	if l.Check(2000) {
		t.Error("Max should still bind")
	}
}

func TestLimiterClamp(t *testing.T) {
	l := util.Limiter{Min: 400, Max: 1100}
	if got := l.Clamp(200); got != 400 {
		t.Errorf("Clamp(200) = %v, want 400", got)
	}
	if got := l.Clamp(5000); got != 1100 {
		t.Errorf("Clamp(5000) = %v, want 1100", got)
	}
	if got := l.Clamp(633); got != 633 {
		t.Errorf("Clamp(633) = %v, want 633", got)
	}
}
