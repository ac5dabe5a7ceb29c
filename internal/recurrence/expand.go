package recurrence

import "time"

// DefaultHorizon is the number of week windows a new schedule is
// materialized for.
const DefaultHorizon = 8

// NextOccurrence returns the first date on or after ref that falls on
// target, keeping ref's time of day and location. If ref is already on
// target it is returned unchanged.
func NextOccurrence(ref time.Time, target time.Weekday) time.Time {
	offset := (int(target) - int(ref.Weekday()) + 7) % 7
	return ref.AddDate(0, 0, offset)
}

// Expand materializes horizon successive week windows anchored at start.
// Each window yields one occurrence per weekday, in selection order, so the
// result has horizon*len(weekdays) entries ordered week-major.
func Expand(start time.Time, weekdays []time.Weekday, horizon int) []time.Time {
	if horizon <= 0 || len(weekdays) == 0 {
		return nil
	}

	out := make([]time.Time, 0, horizon*len(weekdays))
	for week := 0; week < horizon; week++ {
		anchor := start.AddDate(0, 0, 7*week)
		for _, wd := range weekdays {
			out = append(out, NextOccurrence(anchor, wd))
		}
	}
	return out
}

// WeekStart returns midnight of the first day of the week containing t,
// where weeks begin on first.
func WeekStart(t time.Time, first time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(first) + 7) % 7
	day := t.AddDate(0, 0, -offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}
