package model

import "time"

// Occurrence is one concrete scheduled run of a test suite.
type Occurrence struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Time      time.Time `json:"time"`
	GroupID   *string   `json:"group_id"`
	CreatedAt time.Time `json:"created_at"`
}

// OccurrenceUpdate holds the fields an edit may change on a single row.
type OccurrenceUpdate struct {
	Title string
	Time  time.Time
}

// ScheduleDraft is the unsaved input of the schedule dialog.
type ScheduleDraft struct {
	Title    string         `validate:"required"`
	Start    *time.Time     `validate:"required"`
	Weekdays []time.Weekday `validate:"required,min=1,unique,dive,min=0,max=6"`
}

// SuiteNames lists the suites offered by the schedule dialog. The core
// accepts any non-empty title.
var SuiteNames = []string{
	"Unit test suite",
	"Integration test suite",
	"System test suite",
	"Regression test suite",
	"Performance test suite",
	"Usability test suite",
	"Acceptance test suite",
	"API test suite",
}
