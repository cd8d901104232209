package activity

import (
	"math"
	"time"
)

// Grace windows for the liveness decision. A confirmed running session is
// trusted for RunningGrace after its last update; an ambiguous one only for
// UnknownGrace. A completed session is never active.
const (
	RunningGrace = 5 * time.Minute
	UnknownGrace = 2 * time.Minute
)

// IsActive reports whether a session last updated at updatedAt should count
// as doing work at now, given the status of its last log record.
// A zero timestamp or an update in the future yields false.
func IsActive(updatedAt, now time.Time, status Status) bool {
	if updatedAt.IsZero() || now.IsZero() {
		return false
	}
	return ActiveForAge(now.Sub(updatedAt), status)
}

// ActiveForAge applies the grace windows to an already computed age.
// Statuses other than running and completed get the unknown window.
func ActiveForAge(age time.Duration, status Status) bool {
	if age < 0 {
		return false
	}

	switch status {
	case StatusRunning:
		return age <= RunningGrace
	case StatusCompleted:
		return false
	default:
		return age <= UnknownGrace
	}
}

// AgeFromMillis computes now - updatedAt for epoch-millisecond inputs.
// ok is false when the age is negative, NaN or infinite.
func AgeFromMillis(updatedAtMs, nowMs float64) (age time.Duration, ok bool) {
	diff := nowMs - updatedAtMs
	if math.IsNaN(diff) || math.IsInf(diff, 0) || diff < 0 {
		return 0, false
	}
	if diff >= float64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64), true
	}
	return time.Duration(diff * float64(time.Millisecond)), true
}

// IsActiveMillis is IsActive for epoch-millisecond timestamps, the form
// session listings report them in.
func IsActiveMillis(updatedAtMs, nowMs float64, status Status) bool {
	age, ok := AgeFromMillis(updatedAtMs, nowMs)
	if !ok {
		return false
	}
	return ActiveForAge(age, status)
}
