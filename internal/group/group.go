// Package group ties the occurrences generated from one scheduling request
// together under a shared group identifier.
package group

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/suitecal/internal/model"
	"github.com/dukerupert/suitecal/internal/recurrence"
)

// Planner turns drafts into occurrences ready to be persisted.
type Planner struct {
	horizon int
	newID   func() string
}

// NewPlanner returns a Planner that expands schedules over horizon weeks.
// A non-positive horizon falls back to recurrence.DefaultHorizon.
func NewPlanner(horizon int) *Planner {
	if horizon <= 0 {
		horizon = recurrence.DefaultHorizon
	}
	return &Planner{horizon: horizon, newID: uuid.NewString}
}

// Horizon reports the number of week windows a new schedule covers.
func (p *Planner) Horizon() int {
	return p.horizon
}

// Create assigns a fresh group id and expands start over the selected
// weekdays. The returned occurrences have no ID until persisted.
func (p *Planner) Create(title string, start time.Time, weekdays []time.Weekday) (string, []model.Occurrence) {
	groupID := p.newID()
	times := recurrence.Expand(start, weekdays, p.horizon)

	occs := make([]model.Occurrence, len(times))
	for i, t := range times {
		gid := groupID
		occs[i] = model.Occurrence{
			Title:   title,
			Time:    t.UTC(),
			GroupID: &gid,
		}
	}
	return groupID, occs
}

// Single builds a one-off occurrence that belongs to no group.
func (p *Planner) Single(title string, at time.Time) model.Occurrence {
	return model.Occurrence{Title: title, Time: at.UTC()}
}

// Retarget computes the new state of the edited occurrence. The date comes
// from the next occurrence of weekday on or after the anchor's current
// date; the time of day comes from newStart. Only the anchor row changes;
// the rest of its group is left as it was.
func (p *Planner) Retarget(anchor model.Occurrence, newTitle string, newStart time.Time, weekday time.Weekday) model.Occurrence {
	loc := newStart.Location()
	day := recurrence.NextOccurrence(anchor.Time.In(loc), weekday)
	at := time.Date(day.Year(), day.Month(), day.Day(),
		newStart.Hour(), newStart.Minute(), newStart.Second(), 0, loc)

	out := anchor
	out.Title = newTitle
	out.Time = at.UTC()
	return out
}
