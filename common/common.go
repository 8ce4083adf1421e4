package common

import (
	"math"
	"time"
)

// IsFinite returns whether f is a usable number, guarding the many places
// indicator columns can carry NaN through a warmup segment
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// NormalizeDate truncates t to a UTC calendar date so that bars sourced from
// feeds with differing session timestamps land on a common grid
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CalendarDays returns the whole calendar days elapsed from a to b
func CalendarDays(a, b time.Time) int {
	return int(NormalizeDate(b).Sub(NormalizeDate(a)).Hours() / 24)
}

// Opposite flips a trade side
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}
