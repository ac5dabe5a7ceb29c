// Package grid projects occurrences onto the weekly calendar grid.
package grid

import (
	"time"

	"github.com/dukerupert/suitecal/internal/model"
	"github.com/dukerupert/suitecal/internal/recurrence"
)

// DaysPerWeek is the number of day columns in the grid.
const DaysPerWeek = 7

// Window is the week currently displayed. Start is midnight of the first
// column in the display location.
type Window struct {
	Start time.Time
}

// NewWindow returns the week containing ref. Weeks begin on first; the
// window uses ref's location.
func NewWindow(ref time.Time, first time.Weekday) Window {
	return Window{Start: recurrence.WeekStart(ref, first)}
}

// Prev returns the previous week.
func (w Window) Prev() Window { return Window{Start: w.Start.AddDate(0, 0, -DaysPerWeek)} }

// Next returns the following week.
func (w Window) Next() Window { return Window{Start: w.Start.AddDate(0, 0, DaysPerWeek)} }

// End is midnight after the last column.
func (w Window) End() time.Time { return w.Start.AddDate(0, 0, DaysPerWeek) }

// Days returns the calendar date of each column.
func (w Window) Days() [DaysPerWeek]time.Time {
	var days [DaysPerWeek]time.Time
	for i := range days {
		days[i] = w.Start.AddDate(0, 0, i)
	}
	return days
}

// Column returns the column index of t's calendar date, evaluated in the
// window's location.
func (w Window) Column(t time.Time) (int, bool) {
	t = t.In(w.Start.Location())
	for i, day := range w.Days() {
		if sameDay(t, day) {
			return i, true
		}
	}
	return 0, false
}

// Contains reports whether t falls on one of the window's dates.
func (w Window) Contains(t time.Time) bool {
	_, ok := w.Column(t)
	return ok
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Visible buckets occurrences into the window's day columns by exact
// calendar-date match. Occurrences outside the window are dropped. Input
// order is kept within a column.
func Visible(all []model.Occurrence, w Window) [DaysPerWeek][]model.Occurrence {
	var cols [DaysPerWeek][]model.Occurrence
	for _, o := range all {
		if i, ok := w.Column(o.Time); ok {
			cols[i] = append(cols[i], o)
		}
	}
	return cols
}
