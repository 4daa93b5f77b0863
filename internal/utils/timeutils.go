package utils

import (
	"math"
	"time"
)

// Seconds converts fractional seconds into a time.Duration. Non-finite input yields zero.
func Seconds(s float64) time.Duration {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// HumanSeconds renders fractional seconds rounded to the nearest 100ms, e.g. "12m3.4s".
func HumanSeconds(s float64) string {
	return Seconds(s).Round(100 * time.Millisecond).String()
}
