package grid

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dukerupert/suitecal/internal/model"
)

// Layout holds the rendering constants of the grid.
type Layout struct {
	UnitHeight   float64 `json:"unit_height"`   // one hour row
	HeaderHeight float64 `json:"header_height"` // spacer above the first row
	SlotHeight   float64 `json:"slot_height"`   // every box is this tall
}

// DefaultLayout matches the web grid.
var DefaultLayout = Layout{UnitHeight: 80, HeaderHeight: 16, SlotHeight: 75}

// Placement is the vertical geometry of one box in a day column.
type Placement struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// PlacementFor positions a box by its time of day. The height is fixed;
// occurrences have no duration.
func PlacementFor(t time.Time, l Layout) Placement {
	top := float64(t.Hour())*l.UnitHeight +
		float64(t.Minute())/60*l.UnitHeight +
		l.HeaderHeight
	return Placement{Top: top, Height: l.SlotHeight}
}

// Item is an occurrence placed in a column.
type Item struct {
	Occurrence model.Occurrence `json:"occurrence"`
	Placement
	Label string `json:"label"`
	Lane  int    `json:"lane"`
	Lanes int    `json:"lanes"`
}

// Column is one day of the rendered week.
type Column struct {
	Date    string `json:"date"`
	Day     string `json:"day"`
	Weekday string `json:"weekday"`
	Items   []Item `json:"items"`
}

// Week is the render-ready projection of a window.
type Week struct {
	Start   string              `json:"start"`
	Label   string              `json:"label"`
	Prev    string              `json:"prev"`
	Next    string              `json:"next"`
	Hours   []string            `json:"hours"`
	Layout  Layout              `json:"layout"`
	Columns [DaysPerWeek]Column `json:"columns"`
}

const dateLayout = "2006-01-02"

// Build places every visible occurrence of w. Times are shown in the
// window's location, labelled with zone.
func Build(all []model.Occurrence, w Window, l Layout, zone string) Week {
	loc := w.Start.Location()
	week := Week{
		Start:  w.Start.Format(dateLayout),
		Label:  WeekLabel(w),
		Prev:   w.Prev().Start.Format(dateLayout),
		Next:   w.Next().Start.Format(dateLayout),
		Hours:  HourLabels(zone),
		Layout: l,
	}

	visible := Visible(all, w)
	days := w.Days()
	for i := range days {
		col := Column{
			Date:    days[i].Format(dateLayout),
			Day:     days[i].Format("02"),
			Weekday: days[i].Format("Mon"),
			Items:   make([]Item, 0, len(visible[i])),
		}
		for _, o := range visible[i] {
			local := o.Time.In(loc)
			col.Items = append(col.Items, Item{
				Occurrence: o,
				Placement:  PlacementFor(local, l),
				Label:      TimeLabel(local, zone),
			})
		}
		assignLanes(col.Items)
		week.Columns[i] = col
	}
	return week
}

// assignLanes gives boxes whose vertical extents overlap distinct lanes.
// Every box in an overlapping cluster reports the cluster's lane count.
func assignLanes(items []Item) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Top < items[j].Top })

	var laneEnds []float64
	clusterStart := 0
	clusterEnd := math.Inf(-1)

	for i := range items {
		if items[i].Top >= clusterEnd {
			setLanes(items[clusterStart:i], len(laneEnds))
			clusterStart = i
			laneEnds = laneEnds[:0]
		}

		lane := len(laneEnds)
		for k, end := range laneEnds {
			if items[i].Top >= end {
				lane = k
				break
			}
		}
		bottom := items[i].Top + items[i].Height
		if lane == len(laneEnds) {
			laneEnds = append(laneEnds, bottom)
		} else {
			laneEnds[lane] = bottom
		}
		items[i].Lane = lane
		clusterEnd = max(clusterEnd, bottom)
	}
	setLanes(items[clusterStart:], len(laneEnds))
}

func setLanes(items []Item, n int) {
	for i := range items {
		items[i].Lanes = n
	}
}

// WeekLabel is the navigation caption, e.g. "Week of 12/15/24".
func WeekLabel(w Window) string {
	return "Week of " + w.Start.Format("01/02/06")
}

// HourLabels returns the 24 row captions. The first row shows the zone
// label instead of midnight.
func HourLabels(zone string) []string {
	labels := make([]string, 24)
	for i := range labels {
		if i == 0 {
			labels[i] = zone
			continue
		}
		h := i % 12
		if h == 0 {
			h = 12
		}
		suffix := "AM"
		if i >= 12 {
			suffix = "PM"
		}
		labels[i] = fmt.Sprintf("%02d:00 %s", h, suffix)
	}
	return labels
}

// TimeLabel formats t for an occurrence box, e.g. "09:00am PST".
func TimeLabel(t time.Time, zone string) string {
	label := t.Format("03:04pm")
	if zone != "" {
		label += " " + zone
	}
	return label
}
