package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/suitecal/internal/grid"
	"github.com/dukerupert/suitecal/internal/ics"
	"github.com/dukerupert/suitecal/internal/model"
	"github.com/dukerupert/suitecal/internal/recurrence"
	"github.com/dukerupert/suitecal/internal/store"
)

const feedName = "Test suite schedule"

// CalendarHandler serves the week grid, the iCalendar feed and the
// dialog's option lists.
type CalendarHandler struct {
	store   store.Gateway
	loc     *time.Location
	first   time.Weekday
	layout  grid.Layout
	horizon int
	now     func() time.Time
	logger  *slog.Logger
}

func NewCalendarHandler(s store.Gateway, loc *time.Location, first time.Weekday, horizon int, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{
		store:   s,
		loc:     loc,
		first:   first,
		layout:  grid.DefaultLayout,
		horizon: horizon,
		now:     time.Now,
		logger:  logger,
	}
}

// Week handles GET /api/week?date=YYYY-MM-DD. Without a date the current
// week is shown.
func (h *CalendarHandler) Week(w http.ResponseWriter, r *http.Request) {
	ref := h.now().In(h.loc)
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := time.ParseInLocation(dateLayout, s, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		ref = d
	}

	win := grid.NewWindow(ref, h.first)
	occs, err := h.store.ListBetween(r.Context(), win.Start, win.End())
	if err != nil {
		h.logger.Error("list week", "start", win.Start, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load week")
		return
	}

	writeJSON(w, http.StatusOK, grid.Build(occs, win, h.layout, h.loc.String()))
}

// Feed handles GET /calendar.ics.
func (h *CalendarHandler) Feed(w http.ResponseWriter, r *http.Request) {
	occs, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list for feed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="suitecal.ics"`)
	if err := ics.Export(w, feedName, occs, h.now()); err != nil {
		h.logger.Error("write feed", "error", err)
	}
}

// Suites handles GET /api/suites.
func (h *CalendarHandler) Suites(w http.ResponseWriter, r *http.Request) {
	days := make([]time.Weekday, 7)
	for i := range days {
		days[i] = (h.first + time.Weekday(i)) % 7
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"suites":        model.SuiteNames,
		"weekdays":      recurrence.WeekdayLabels(days),
		"horizon_weeks": h.horizon,
		"zone":          h.loc.String(),
	})
}
