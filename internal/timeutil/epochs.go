package timeutil

import (
	"time"
)

// DefaultEpochStep is the spacing of boundary epochs.
const DefaultEpochStep = 5 * time.Minute

// EpochGrid returns every epoch slot of the UTC day containing date,
// starting at midnight. A 5-minute step yields 288 slots.
func EpochGrid(date time.Time, step time.Duration) []time.Time {
	if step <= 0 {
		return nil
	}
	start := StartOfDay(date)
	end := start.Add(24 * time.Hour)

	slots := make([]time.Time, 0, int(24*time.Hour/step))
	for t := start; t.Before(end); t = t.Add(step) {
		slots = append(slots, t)
	}
	return slots
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
