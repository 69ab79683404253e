// Package interval answers overlap questions for half-open time ranges.
package interval

import "time"

// Overlaps reports whether [startA, endA) and [startB, endB) intersect.
// Ranges that only touch (endA == startB) do not overlap, so back-to-back
// bookings of the same room are allowed.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}
