// Package ics renders occurrences as an iCalendar feed.
package ics

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/suitecal/internal/model"
)

const (
	ProductID = "-//suitecal//test schedule//EN"
	uidDomain = "suitecal"

	// RunLength is the nominal duration written as DTEND.
	RunLength = time.Hour
)

// UID is the stable iCalendar UID of an occurrence.
func UID(id string) string {
	return id + "@" + uidDomain
}

// Build turns occs into a published calendar named name. stamp is used as
// DTSTAMP on every event.
func Build(name string, occs []model.Occurrence, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetXWRCalName(name)

	for _, o := range occs {
		ev := cal.AddEvent(UID(o.ID))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetCreatedTime(o.CreatedAt.UTC())
		ev.SetStartAt(o.Time.UTC())
		ev.SetEndAt(o.Time.Add(RunLength).UTC())
		ev.SetSummary(o.Title)
		if o.GroupID != nil {
			ev.AddProperty(ical.ComponentPropertyRelatedTo, *o.GroupID)
		}
	}
	return cal
}

// Export writes the feed for occs to w.
func Export(w io.Writer, name string, occs []model.Occurrence, stamp time.Time) error {
	return Build(name, occs, stamp).SerializeTo(w)
}
