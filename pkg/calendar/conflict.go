package calendar

import "time"

// Overlaps reports whether [aStart, aEnd] and [bStart, bEnd] share at least one instant.
// Both ends are inclusive, so an event ending at 10:00 overlaps one starting at 10:00.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return within(aStart, bStart, bEnd) ||
		within(aEnd, bStart, bEnd) ||
		within(bStart, aStart, aEnd) ||
		within(bEnd, aStart, aEnd)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// findConflict returns the first event overlapping the window, skipping excludeId and cancelled events.
func findConflict(events []Event, start, end time.Time, excludeId string) (Event, bool) {
	for _, e := range events {
		if excludeId != "" && e.Id == excludeId {
			continue
		}
		if e.IsCancelled() {
			continue
		}
		if Overlaps(start, end, e.StartTime, e.EndTime) {
			return e, true
		}
	}
	return Event{}, false
}
