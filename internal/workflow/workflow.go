// Package workflow holds the state machine behind the schedule dialog:
// opening a draft, validating it, and saving or deleting through the
// gateway.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/suitecal/internal/group"
	"github.com/dukerupert/suitecal/internal/model"
	"github.com/dukerupert/suitecal/internal/store"
)

// State is a workflow state.
type State int

const (
	Closed State = iota
	Creating
	Editing
	Saved
	Deleted
	Failed
)

var stateNames = map[State]string{
	Closed:   "closed",
	Creating: "creating",
	Editing:  "editing",
	Saved:    "saved",
	Deleted:  "deleted",
	Failed:   "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// User-visible outcome messages.
const (
	MsgRequiredFields = "Please fill in all the required fields."
	MsgCreated        = "Event created successfully!"
	MsgUpdated        = "Event updated successfully!"
	MsgCreateFailed   = "Failed to create event."
	MsgUpdateFailed   = "Failed to update event."
	MsgDeleted        = "Event deleted successfully!"
	MsgDeleteFailed   = "An error occurred while deleting the event."
)

// Gateway is the part of the persistence gateway the workflow writes to.
type Gateway interface {
	InsertMany(ctx context.Context, occs []model.Occurrence) ([]model.Occurrence, error)
	UpdateOne(ctx context.Context, id string, fields model.OccurrenceUpdate) (*model.Occurrence, error)
	DeleteOne(ctx context.Context, id string) error
}

// Outcome is the result reported to the user after Save or Delete.
type Outcome struct {
	State       State
	Message     string
	GroupID     string
	Occurrences []model.Occurrence
}

// Editor is one schedule dialog. Only one draft is open at a time and only
// one request may be in flight.
type Editor struct {
	gateway  Gateway
	planner  *group.Planner
	validate *validator.Validate
	loc      *time.Location
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	mode    State // Creating or Editing while a draft is open
	draft   model.ScheduleDraft
	target  *model.Occurrence
	busy    bool
	session int
}

// New returns a closed Editor. Draft times are interpreted in loc.
func New(gw Gateway, planner *group.Planner, loc *time.Location, logger *slog.Logger) *Editor {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{
		gateway:  gw,
		planner:  planner,
		validate: validator.New(),
		loc:      loc,
		logger:   logger,
	}
}

// State returns the current state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Draft returns a copy of the open draft.
func (e *Editor) Draft() model.ScheduleDraft {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.draft
	d.Weekdays = slices.Clone(e.draft.Weekdays)
	return d
}

func (e *Editor) open() bool {
	return e.state == Creating || e.state == Editing || e.state == Failed
}

// OpenCreate starts a new schedule draft with Monday preselected.
func (e *Editor) OpenCreate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open() {
		return ErrAlreadyOpen
	}
	e.session++
	e.state, e.mode = Creating, Creating
	e.target = nil
	e.draft = model.ScheduleDraft{Weekdays: []time.Weekday{time.Monday}}
	return nil
}

// OpenEdit starts editing occ. The draft is seeded with its title, its
// time and the weekday of its date in the display zone.
func (e *Editor) OpenEdit(occ model.Occurrence) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open() {
		return ErrAlreadyOpen
	}
	local := occ.Time.In(e.loc)
	target := occ

	e.session++
	e.state, e.mode = Editing, Editing
	e.target = &target
	e.draft = model.ScheduleDraft{
		Title:    occ.Title,
		Start:    &local,
		Weekdays: []time.Weekday{local.Weekday()},
	}
	return nil
}

func (e *Editor) edit(fn func(d *model.ScheduleDraft)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open() {
		return ErrNotOpen
	}
	fn(&e.draft)
	return nil
}

func (e *Editor) SetTitle(title string) error {
	return e.edit(func(d *model.ScheduleDraft) { d.Title = title })
}

func (e *Editor) SetStart(start time.Time) error {
	local := start.In(e.loc)
	return e.edit(func(d *model.ScheduleDraft) { d.Start = &local })
}

// SetWeekdays replaces the selection. Repeated days are dropped.
func (e *Editor) SetWeekdays(weekdays []time.Weekday) error {
	var uniq []time.Weekday
	for _, wd := range weekdays {
		if !slices.Contains(uniq, wd) {
			uniq = append(uniq, wd)
		}
	}
	return e.edit(func(d *model.ScheduleDraft) { d.Weekdays = uniq })
}

// ToggleWeekday adds wd to the selection, or removes it if present.
func (e *Editor) ToggleWeekday(wd time.Weekday) error {
	return e.edit(func(d *model.ScheduleDraft) {
		if i := slices.Index(d.Weekdays, wd); i >= 0 {
			d.Weekdays = slices.Delete(d.Weekdays, i, i+1)
			return
		}
		d.Weekdays = append(d.Weekdays, wd)
	})
}

// Close discards the draft without touching the gateway.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

func (e *Editor) reset() {
	e.session++
	e.state, e.mode = Closed, Closed
	e.target = nil
	e.draft = model.ScheduleDraft{}
}

func (e *Editor) check() *ValidationError {
	e.draft.Title = strings.TrimSpace(e.draft.Title)
	err := e.validate.Struct(e.draft)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ValidationError{Field: verrs[0].Field(), Message: MsgRequiredFields}
	}
	return &ValidationError{Field: "draft", Message: MsgRequiredFields}
}

// begin marks a request in flight and snapshots what it needs.
func (e *Editor) begin() (model.ScheduleDraft, *model.Occurrence, State, int, error) {
	if !e.open() {
		return model.ScheduleDraft{}, nil, e.state, 0, ErrNotOpen
	}
	if e.busy {
		return model.ScheduleDraft{}, nil, e.state, 0, ErrBusy
	}
	d := e.draft
	d.Weekdays = slices.Clone(e.draft.Weekdays)
	e.busy = true
	return d, e.target, e.mode, e.session, nil
}

// finish records the result of a request. A dialog closed mid-flight
// stays closed.
func (e *Editor) finish(session int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
	if session != e.session {
		return
	}
	if err != nil {
		e.state = Failed
		return
	}
	e.reset()
}

// Save validates the draft and persists it: a new draft fans out into a
// group of occurrences, an edit updates the one occurrence being edited.
func (e *Editor) Save(ctx context.Context) (Outcome, error) {
	e.mu.Lock()
	if e.open() && !e.busy {
		if verr := e.check(); verr != nil {
			state := e.state
			e.mu.Unlock()
			return Outcome{State: state, Message: verr.Message}, verr
		}
	}
	draft, target, mode, session, err := e.begin()
	e.mu.Unlock()
	if err != nil {
		return Outcome{State: e.State()}, err
	}

	var out Outcome
	if mode == Editing {
		out, err = e.update(ctx, *target, draft)
	} else {
		out, err = e.create(ctx, draft)
	}
	e.finish(session, err)
	return out, err
}

func (e *Editor) create(ctx context.Context, d model.ScheduleDraft) (Outcome, error) {
	groupID, occs := e.planner.Create(d.Title, d.Start.In(e.loc), d.Weekdays)

	created, err := e.gateway.InsertMany(ctx, occs)
	if err == nil {
		err = store.CheckBatch(len(occs), len(created))
	}
	if err != nil {
		e.logger.Error("create schedule", "group_id", groupID, "error", err)
		return Outcome{State: Failed, Message: MsgCreateFailed}, &GatewayError{Op: "insert occurrences", Err: err}
	}

	e.logger.Info("schedule created", "group_id", groupID, "title", d.Title, "occurrences", len(created))
	return Outcome{State: Saved, Message: MsgCreated, GroupID: groupID, Occurrences: created}, nil
}

func (e *Editor) update(ctx context.Context, target model.Occurrence, d model.ScheduleDraft) (Outcome, error) {
	next := e.planner.Retarget(target, d.Title, d.Start.In(e.loc), d.Weekdays[0])

	updated, err := e.gateway.UpdateOne(ctx, target.ID, model.OccurrenceUpdate{Title: next.Title, Time: next.Time})
	if err != nil {
		e.logger.Error("update occurrence", "id", target.ID, "error", err)
		return Outcome{State: Failed, Message: MsgUpdateFailed}, &GatewayError{Op: "update occurrence", Err: err}
	}

	out := Outcome{State: Saved, Message: MsgUpdated, Occurrences: []model.Occurrence{*updated}}
	if updated.GroupID != nil {
		out.GroupID = *updated.GroupID
	}
	e.logger.Info("occurrence updated", "id", updated.ID, "time", updated.Time)
	return out, nil
}

// Delete removes the occurrence being edited. Other occurrences of its
// group are kept.
func (e *Editor) Delete(ctx context.Context) (Outcome, error) {
	e.mu.Lock()
	if e.open() && e.mode != Editing {
		state := e.state
		e.mu.Unlock()
		return Outcome{State: state}, ErrNotEditing
	}
	_, target, _, session, err := e.begin()
	e.mu.Unlock()
	if err != nil {
		return Outcome{State: e.State()}, err
	}

	err = e.gateway.DeleteOne(ctx, target.ID)
	e.finish(session, err)
	if err != nil {
		e.logger.Error("delete occurrence", "id", target.ID, "error", err)
		return Outcome{State: Failed, Message: MsgDeleteFailed}, &GatewayError{Op: "delete occurrence", Err: err}
	}

	e.logger.Info("occurrence deleted", "id", target.ID)
	return Outcome{State: Deleted, Message: MsgDeleted, Occurrences: []model.Occurrence{*target}}, nil
}
