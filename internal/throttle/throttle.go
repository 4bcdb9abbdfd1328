// Package throttle decides when a producer may push the next frame for a
// consumer that asked for a given delivery rate.
package throttle

import "time"

// Interval is the minimum spacing between pushes for rate frames per second.
// Rate 0 means unthrottled and yields 0. Whole milliseconds, truncated.
func Interval(rate uint8) time.Duration {
	if rate == 0 {
		return 0
	}
	return time.Duration(1000/int(rate)) * time.Millisecond
}

// Ready reports whether a frame may be pushed at now, given the time of the
// last push and the negotiated rate. It is true before any push, always true
// for rate 0, and otherwise true only once strictly more than 1000/rate
// milliseconds have elapsed.
func Ready(last time.Time, rate uint8, now time.Time) bool {
	if last.IsZero() || rate == 0 {
		return true
	}
	return now.Sub(last).Milliseconds() > Interval(rate).Milliseconds()
}
