package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var dayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

var dayLabels = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var rruleDays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ParseWeekday parses a short weekday label such as "Mon" (case-insensitive).
func ParseWeekday(label string) (time.Weekday, error) {
	wd, ok := dayNames[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday: %q", label)
	}
	return wd, nil
}

// ParseWeekdays parses a list of labels, keeping order and rejecting
// duplicates.
func ParseWeekdays(labels []string) ([]time.Weekday, error) {
	seen := make(map[time.Weekday]bool, len(labels))
	out := make([]time.Weekday, 0, len(labels))
	for _, l := range labels {
		wd, err := ParseWeekday(l)
		if err != nil {
			return nil, err
		}
		if seen[wd] {
			return nil, fmt.Errorf("duplicate weekday: %q", l)
		}
		seen[wd] = true
		out = append(out, wd)
	}
	return out, nil
}

// WeekdayLabel returns the three-letter label for wd.
func WeekdayLabel(wd time.Weekday) string {
	return dayLabels[wd]
}

// WeekdayLabels maps weekdays to their labels.
func WeekdayLabels(weekdays []time.Weekday) []string {
	out := make([]string, len(weekdays))
	for i, wd := range weekdays {
		out[i] = WeekdayLabel(wd)
	}
	return out
}

// Rule returns the RRULE that describes the same series Expand produces.
func Rule(start time.Time, weekdays []time.Weekday, horizon int) (string, error) {
	if len(weekdays) == 0 {
		return "", fmt.Errorf("empty weekday set")
	}
	opt := ruleOption(start, weekdays, horizon)
	if _, err := rrule.NewRRule(opt); err != nil {
		return "", fmt.Errorf("build rrule: %w", err)
	}
	return opt.RRuleString(), nil
}

func ruleOption(start time.Time, weekdays []time.Weekday, horizon int) rrule.ROption {
	days := make([]rrule.Weekday, len(weekdays))
	for i, wd := range weekdays {
		days[i] = rruleDays[wd]
	}
	return rrule.ROption{
		Freq:      rrule.WEEKLY,
		Count:     horizon * len(weekdays),
		Byweekday: days,
		Dtstart:   start,
	}
}

// Describe returns a human-readable summary of a weekday selection.
func Describe(weekdays []time.Weekday) string {
	if len(weekdays) == 0 {
		return ""
	}
	return "Runs weekly on " + strings.Join(WeekdayLabels(weekdays), ", ")
}
