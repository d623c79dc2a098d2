// Package availability computes bookable slot start times for a working
// window. It is pure time arithmetic: callers resolve working hours, busy
// bookings, and timezone handling before calling in.
package availability

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) intersects the interval.
// Half-open semantics: touching endpoints do not overlap, so a booking
// ending at 10:30 leaves 10:30 free.
func (iv Interval) Overlaps(start, end time.Time) bool {
	return start.Before(iv.End) && iv.Start.Before(end)
}

// AnyOverlap reports whether [start, end) collides with any busy interval.
func AnyOverlap(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// Slots returns every start time in the window at which a booking of the
// given duration fits without colliding with a busy interval. Candidates
// advance from windowStart in increments of step and are kept while
// start+duration stays within windowEnd. Candidates starting before now
// are dropped, so passing the current time prunes elapsed slots; pass the
// zero time to keep them. All arguments must share a location.
func Slots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var out []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !AnyOverlap(t, t.Add(duration), busy) {
			out = append(out, t)
		}
	}
	return out
}
