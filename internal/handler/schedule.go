package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/suitecal/internal/group"
	"github.com/dukerupert/suitecal/internal/model"
	"github.com/dukerupert/suitecal/internal/recurrence"
	"github.com/dukerupert/suitecal/internal/store"
	ws "github.com/dukerupert/suitecal/internal/websocket"
	"github.com/dukerupert/suitecal/internal/workflow"
)

// ScheduleHandler serves occurrence reads and drives the schedule workflow
// for writes. Each write runs through its own workflow.Editor.
type ScheduleHandler struct {
	store   store.Gateway
	planner *group.Planner
	loc     *time.Location
	hub     Broadcaster
	logger  *slog.Logger
}

func NewScheduleHandler(s store.Gateway, planner *group.Planner, loc *time.Location, hub Broadcaster, logger *slog.Logger) *ScheduleHandler {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	return &ScheduleHandler{store: s, planner: planner, loc: loc, hub: hub, logger: logger}
}

type scheduleRequest struct {
	Title    string   `json:"title"`
	Start    string   `json:"start"`
	Weekdays []string `json:"weekdays"`
}

type scheduleResponse struct {
	Message     string             `json:"message"`
	GroupID     string             `json:"group_id"`
	Rule        string             `json:"rule"`
	Description string             `json:"description"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

type occurrenceRequest struct {
	Title string `json:"title"`
	Time  string `json:"time"`
}

func (h *ScheduleHandler) editor() *workflow.Editor {
	return workflow.New(h.store, h.planner, h.loc, h.logger)
}

// fill copies the request into the open draft. A nil weekday list keeps
// the draft's current selection; an empty one clears it.
func (h *ScheduleHandler) fill(w http.ResponseWriter, ed *workflow.Editor, req scheduleRequest) bool {
	if err := ed.SetTitle(req.Title); err != nil {
		return h.editorFailed(w, err)
	}
	if req.Start != "" {
		start, err := parseTime(req.Start, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DDTHH:MM")
			return false
		}
		if err := ed.SetStart(start); err != nil {
			return h.editorFailed(w, err)
		}
	}
	if req.Weekdays != nil {
		days, err := recurrence.ParseWeekdays(req.Weekdays)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return false
		}
		if err := ed.SetWeekdays(days); err != nil {
			return h.editorFailed(w, err)
		}
	}
	return true
}

// editorFailed reports an editor that refused a transition. Handlers own
// a fresh editor per request, so this is a server fault.
func (h *ScheduleHandler) editorFailed(w http.ResponseWriter, err error) bool {
	h.logger.Error("editor transition", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
	return false
}

func (h *ScheduleHandler) fail(w http.ResponseWriter, out workflow.Outcome, err error) {
	var (
		verr *workflow.ValidationError
		gerr *workflow.GatewayError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "occurrence not found")
	case errors.As(err, &gerr):
		writeError(w, http.StatusBadGateway, out.Message)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// CreateSchedule handles POST /api/schedules.
func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decode(w, r, &req) {
		return
	}

	ed := h.editor()
	if err := ed.OpenCreate(); err != nil {
		h.editorFailed(w, err)
		return
	}
	if !h.fill(w, ed, req) {
		return
	}
	draft := ed.Draft()

	out, err := ed.Save(r.Context())
	if err != nil {
		h.fail(w, out, err)
		return
	}

	resp := scheduleResponse{
		Message:     out.Message,
		GroupID:     out.GroupID,
		Description: recurrence.Describe(draft.Weekdays),
		Occurrences: out.Occurrences,
	}
	if rule, err := recurrence.Rule(draft.Start.In(h.loc), draft.Weekdays, h.planner.Horizon()); err == nil {
		resp.Rule = rule
	} else {
		h.logger.Warn("build rule", "group_id", out.GroupID, "error", err)
	}

	h.hub.Broadcast(ws.ScheduleCreated(out.GroupID, out.Occurrences))
	writeJSON(w, http.StatusCreated, resp)
}

// CreateOccurrence handles POST /api/occurrences: a one-off run outside any
// group.
func (h *ScheduleHandler) CreateOccurrence(w http.ResponseWriter, r *http.Request) {
	var req occurrenceRequest
	if !decode(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.Time == "" {
		writeError(w, http.StatusBadRequest, workflow.MsgRequiredFields)
		return
	}
	at, err := parseTime(req.Time, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "time must be RFC3339 or YYYY-MM-DDTHH:MM")
		return
	}

	occ, err := h.store.InsertOne(r.Context(), h.planner.Single(req.Title, at))
	if err != nil {
		h.logger.Error("create occurrence", "error", err)
		writeError(w, http.StatusBadGateway, workflow.MsgCreateFailed)
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityOccurrence, ws.ActionCreated, *occ))
	writeJSON(w, http.StatusCreated, map[string]any{"message": workflow.MsgCreated, "occurrence": occ})
}

// List handles GET /api/occurrences. start and end narrow the result to
// [start, end) and must be given together.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	var (
		occs []model.Occurrence
		err  error
	)
	switch {
	case startStr == "" && endStr == "":
		occs, err = h.store.List(r.Context())
	case startStr == "" || endStr == "":
		writeError(w, http.StatusBadRequest, "start and end must be given together")
		return
	default:
		start, perr := parseFlexibleTime(startStr, h.loc)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
			return
		}
		end, perr := parseFlexibleTime(endStr, h.loc)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
			return
		}
		occs, err = h.store.ListBetween(r.Context(), start, end)
	}
	if err != nil {
		h.logger.Error("list occurrences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list occurrences")
		return
	}
	if occs == nil {
		occs = []model.Occurrence{}
	}
	writeJSON(w, http.StatusOK, occs)
}

// lookup loads the occurrence named by the {id} path value, writing the
// error response itself when it cannot.
func (h *ScheduleHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.Occurrence, bool) {
	occ, err := h.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "occurrence not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("get occurrence", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get occurrence")
		return nil, false
	}
	return occ, true
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	occ, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, occ)
}

// Update handles PUT /api/occurrences/{id}. Only this occurrence changes;
// the rest of its group keeps its times.
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !decode(w, r, &req) {
		return
	}

	ed := h.editor()
	if err := ed.OpenEdit(*existing); err != nil {
		h.editorFailed(w, err)
		return
	}
	if !h.fill(w, ed, req) {
		return
	}

	out, err := ed.Save(r.Context())
	if err != nil {
		h.fail(w, out, err)
		return
	}

	updated := out.Occurrences[0]
	h.hub.Broadcast(ws.NewMessage(ws.EntityOccurrence, ws.ActionUpdated, updated))
	writeJSON(w, http.StatusOK, map[string]any{"message": out.Message, "occurrence": updated})
}

// Delete handles DELETE /api/occurrences/{id}. Siblings are kept.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.lookup(w, r)
	if !ok {
		return
	}

	ed := h.editor()
	if err := ed.OpenEdit(*existing); err != nil {
		h.editorFailed(w, err)
		return
	}
	out, err := ed.Delete(r.Context())
	if err != nil {
		h.fail(w, out, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityOccurrence, ws.ActionDeleted, *existing))
	writeJSON(w, http.StatusOK, map[string]string{"message": out.Message, "id": existing.ID})
}

// Group handles GET /api/groups/{group_id}.
func (h *ScheduleHandler) Group(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("group_id")
	occs, err := h.store.ListGroup(r.Context(), groupID)
	if err != nil {
		h.logger.Error("list group", "group_id", groupID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list group")
		return
	}
	if len(occs) == 0 {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group_id": groupID, "occurrences": occs})
}
