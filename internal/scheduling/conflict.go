package scheduling

import (
	"sort"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time `json:"start_at"`
	End   time.Time `json:"end_at"`
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Contains reports whether other lies fully inside i.
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// Overlaps is the conflict test used for booking-vs-booking and
// booking-vs-time-off: s1 < e2 && s2 < e1. Touching intervals do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Merge returns the union of the given intervals as a sorted list of disjoint
// intervals. Touching intervals are joined. Invalid intervals are ignored.
func Merge(intervals []Interval) []Interval {
	sorted := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Valid() {
			sorted = append(sorted, iv)
		}
	}
	if len(sorted) == 0 {
		return nil
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract removes every busy interval from base. Both inputs may be unsorted
// and overlapping; the result is sorted and disjoint.
func Subtract(base, busy []Interval) []Interval {
	free := Merge(base)
	for _, b := range Merge(busy) {
		next := make([]Interval, 0, len(free))
		for _, f := range free {
			if !Overlaps(f, b) {
				next = append(next, f)
				continue
			}
			if f.Start.Before(b.Start) {
				next = append(next, Interval{Start: f.Start, End: b.Start})
			}
			if b.End.Before(f.End) {
				next = append(next, Interval{Start: b.End, End: f.End})
			}
		}
		free = next
	}
	return free
}

// Bucket cuts each interval into consecutive slots of length d starting at the
// interval's start. A trailing remainder shorter than d is dropped.
func Bucket(intervals []Interval, d time.Duration) []Interval {
	if d <= 0 {
		return intervals
	}

	var slots []Interval
	for _, iv := range intervals {
		for cursor := iv.Start; !cursor.Add(d).After(iv.End); cursor = cursor.Add(d) {
			slots = append(slots, Interval{Start: cursor, End: cursor.Add(d)})
		}
	}
	return slots
}
