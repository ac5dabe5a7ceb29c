package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/suitecal/internal/group"
	"github.com/dukerupert/suitecal/internal/model"
	"github.com/dukerupert/suitecal/internal/store"
)

type fakeGateway struct {
	mu      sync.Mutex
	rows    map[string]model.Occurrence
	nextID  int
	calls   int
	fail    error
	short   bool
	block   chan struct{}
	started chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{rows: map[string]model.Occurrence{}}
}

func (g *fakeGateway) wait() {
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.block != nil {
		<-g.block
	}
}

func (g *fakeGateway) InsertMany(ctx context.Context, occs []model.Occurrence) ([]model.Occurrence, error) {
	g.wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail != nil {
		return nil, g.fail
	}
	if g.short && len(occs) > 0 {
		occs = occs[:len(occs)-1]
	}
	out := make([]model.Occurrence, len(occs))
	for i, o := range occs {
		g.nextID++
		o.ID = strconv.Itoa(g.nextID)
		g.rows[o.ID] = o
		out[i] = o
	}
	return out, nil
}

func (g *fakeGateway) UpdateOne(ctx context.Context, id string, f model.OccurrenceUpdate) (*model.Occurrence, error) {
	g.wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail != nil {
		return nil, g.fail
	}
	o, ok := g.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o.Title, o.Time = f.Title, f.Time
	g.rows[id] = o
	return &o, nil
}

func (g *fakeGateway) DeleteOne(ctx context.Context, id string) error {
	g.wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail != nil {
		return g.fail
	}
	if _, ok := g.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(g.rows, id)
	return nil
}

var est = time.FixedZone("EST", -5*60*60)

func newEditor(gw Gateway) *Editor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(gw, group.NewPlanner(8), est, logger)
}

func fill(t *testing.T, e *Editor, title string, start time.Time, weekdays ...time.Weekday) {
	t.Helper()
	if err := e.SetTitle(title); err != nil {
		t.Fatal(err)
	}
	if err := e.SetStart(start); err != nil {
		t.Fatal(err)
	}
	if err := e.SetWeekdays(weekdays); err != nil {
		t.Fatal(err)
	}
}

func TestOpenCreateDefaults(t *testing.T) {
	e := newEditor(newFakeGateway())
	if e.State() != Closed {
		t.Fatalf("initial state = %v, want closed", e.State())
	}
	if err := e.OpenCreate(); err != nil {
		t.Fatal(err)
	}
	if e.State() != Creating {
		t.Errorf("state = %v, want creating", e.State())
	}
	d := e.Draft()
	if len(d.Weekdays) != 1 || d.Weekdays[0] != time.Monday {
		t.Errorf("weekdays = %v, want [Monday]", d.Weekdays)
	}
	if err := e.OpenCreate(); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("second open err = %v, want ErrAlreadyOpen", err)
	}
}

func TestSaveRejectsIncompleteDraft(t *testing.T) {
	start := time.Date(2024, 12, 16, 9, 0, 0, 0, est)
	tests := []struct {
		name     string
		title    string
		start    *time.Time
		weekdays []time.Weekday
		field    string
	}{
		{"no weekdays", "Unit test suite", &start, nil, "Weekdays"},
		{"blank title", "   ", &start, []time.Weekday{time.Monday}, "Title"},
		{"no start", "Unit test suite", nil, []time.Weekday{time.Monday}, "Start"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			e := newEditor(gw)
			if err := e.OpenCreate(); err != nil {
				t.Fatal(err)
			}
			e.SetTitle(tt.title)
			if tt.start != nil {
				e.SetStart(*tt.start)
			}
			e.SetWeekdays(tt.weekdays)

			out, err := e.Save(context.Background())
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
			if out.Message != MsgRequiredFields {
				t.Errorf("message = %q, want %q", out.Message, MsgRequiredFields)
			}
			if gw.calls != 0 {
				t.Errorf("gateway called %d times, want 0", gw.calls)
			}
			if e.State() != Creating {
				t.Errorf("state = %v, want creating", e.State())
			}
		})
	}
}

func TestSaveCreatesGroup(t *testing.T) {
	gw := newFakeGateway()
	e := newEditor(gw)
	if err := e.OpenCreate(); err != nil {
		t.Fatal(err)
	}
	// Monday Dec 16 2024, 09:00.
	fill(t, e, "Unit test suite", time.Date(2024, 12, 16, 9, 0, 0, 0, est), time.Monday, time.Wednesday)

	out, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if out.State != Saved || out.Message != MsgCreated {
		t.Errorf("outcome = %v %q, want saved %q", out.State, out.Message, MsgCreated)
	}
	if len(out.Occurrences) != 16 {
		t.Fatalf("got %d occurrences, want 16", len(out.Occurrences))
	}
	if out.GroupID == "" {
		t.Fatal("empty group id")
	}
	for i, o := range out.Occurrences {
		if o.ID == "" {
			t.Errorf("occ[%d] has no id", i)
		}
		if o.GroupID == nil || *o.GroupID != out.GroupID {
			t.Errorf("occ[%d].GroupID = %v, want %q", i, o.GroupID, out.GroupID)
		}
		local := o.Time.In(est)
		if local.Hour() != 9 || (local.Weekday() != time.Monday && local.Weekday() != time.Wednesday) {
			t.Errorf("occ[%d] at %v, want Mon/Wed 09:00", i, local)
		}
	}
	first := out.Occurrences[0].Time.In(est)
	if first.Day() != 16 || first.Month() != time.December {
		t.Errorf("first occurrence %v, want Dec 16", first)
	}
	if e.State() != Closed {
		t.Errorf("state after save = %v, want closed", e.State())
	}
}

func TestSaveCreateFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.fail = errors.New("disk full")
	e := newEditor(gw)
	e.OpenCreate()
	fill(t, e, "API test suite", time.Date(2024, 12, 16, 9, 0, 0, 0, est), time.Friday)

	out, err := e.Save(context.Background())
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("err = %v, want GatewayError", err)
	}
	if out.Message != MsgCreateFailed {
		t.Errorf("message = %q, want %q", out.Message, MsgCreateFailed)
	}
	if e.State() != Failed {
		t.Errorf("state = %v, want failed", e.State())
	}
	// The draft survives so the user can retry.
	if d := e.Draft(); d.Title != "API test suite" {
		t.Errorf("draft title = %q after failure", d.Title)
	}
	gw.fail = nil
	if _, err := e.Save(context.Background()); err != nil {
		t.Errorf("retry Save: %v", err)
	}
}

func TestSaveShortBatch(t *testing.T) {
	gw := newFakeGateway()
	gw.short = true
	e := newEditor(gw)
	e.OpenCreate()
	fill(t, e, "API test suite", time.Date(2024, 12, 16, 9, 0, 0, 0, est), time.Friday)

	_, err := e.Save(context.Background())
	var perr *store.PartialBatchError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PartialBatchError", err)
	}
	if perr.Requested != 8 || perr.Inserted != 7 {
		t.Errorf("partial = %d/%d, want 7/8", perr.Inserted, perr.Requested)
	}
}

func seed(gw *fakeGateway, title string, group string, times ...time.Time) []model.Occurrence {
	var out []model.Occurrence
	for _, at := range times {
		gw.nextID++
		gid := group
		o := model.Occurrence{ID: strconv.Itoa(gw.nextID), Title: title, Time: at.UTC(), GroupID: &gid}
		gw.rows[o.ID] = o
		out = append(out, o)
	}
	return out
}

func TestOpenEditSeedsDraft(t *testing.T) {
	gw := newFakeGateway()
	occs := seed(gw, "Unit test suite", "g1", time.Date(2024, 12, 18, 9, 0, 0, 0, est))
	e := newEditor(gw)
	if err := e.OpenEdit(occs[0]); err != nil {
		t.Fatal(err)
	}
	d := e.Draft()
	if d.Title != "Unit test suite" {
		t.Errorf("title = %q", d.Title)
	}
	if len(d.Weekdays) != 1 || d.Weekdays[0] != time.Wednesday {
		t.Errorf("weekdays = %v, want [Wednesday]", d.Weekdays)
	}
	if d.Start == nil || !d.Start.Equal(occs[0].Time) {
		t.Errorf("start = %v, want %v", d.Start, occs[0].Time)
	}
}

// Edits target the selected occurrence, not its series. Whether an edit
// should fan out to siblings in the same group is still undecided; until
// then this pins the single-row behavior.
func TestSaveEditChangesOnlySelectedOccurrence(t *testing.T) {
	gw := newFakeGateway()
	occs := seed(gw, "Unit test suite", "g1",
		time.Date(2024, 12, 16, 9, 0, 0, 0, est),
		time.Date(2024, 12, 18, 9, 0, 0, 0, est),
		time.Date(2024, 12, 23, 9, 0, 0, 0, est),
	)
	e := newEditor(gw)
	if err := e.OpenEdit(occs[1]); err != nil {
		t.Fatal(err)
	}
	fill(t, e, "Unit test suite", time.Date(2024, 12, 18, 14, 30, 0, 0, est), time.Wednesday)

	out, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if out.Message != MsgUpdated || out.GroupID != "g1" {
		t.Errorf("outcome = %q group %q", out.Message, out.GroupID)
	}
	want := time.Date(2024, 12, 18, 14, 30, 0, 0, est)
	if got := gw.rows[occs[1].ID].Time; !got.Equal(want) {
		t.Errorf("edited time = %v, want %v", got, want)
	}
	for _, o := range []model.Occurrence{occs[0], occs[2]} {
		if got := gw.rows[o.ID]; !got.Time.Equal(o.Time) {
			t.Errorf("sibling %s moved to %v", o.ID, got.Time)
		}
	}
}

func TestSaveEditFailure(t *testing.T) {
	gw := newFakeGateway()
	occs := seed(gw, "Unit test suite", "g1", time.Date(2024, 12, 18, 9, 0, 0, 0, est))
	e := newEditor(gw)
	e.OpenEdit(occs[0])
	delete(gw.rows, occs[0].ID)

	out, err := e.Save(context.Background())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if out.Message != MsgUpdateFailed || e.State() != Failed {
		t.Errorf("outcome = %q state %v", out.Message, e.State())
	}
}

// Delete removes the selected occurrence only. Series deletion is still
// undecided, so siblings must survive.
func TestDeleteRemovesOnlySelectedOccurrence(t *testing.T) {
	gw := newFakeGateway()
	occs := seed(gw, "Unit test suite", "g1",
		time.Date(2024, 12, 16, 9, 0, 0, 0, est),
		time.Date(2024, 12, 18, 9, 0, 0, 0, est),
		time.Date(2024, 12, 23, 9, 0, 0, 0, est),
	)
	e := newEditor(gw)
	e.OpenEdit(occs[1])

	out, err := e.Delete(context.Background())
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if out.State != Deleted || out.Message != MsgDeleted {
		t.Errorf("outcome = %v %q", out.State, out.Message)
	}
	if _, ok := gw.rows[occs[1].ID]; ok {
		t.Error("deleted row still present")
	}
	if len(gw.rows) != 2 {
		t.Errorf("remaining rows = %d, want 2", len(gw.rows))
	}
	if e.State() != Closed {
		t.Errorf("state = %v, want closed", e.State())
	}
}

func TestDeleteFailure(t *testing.T) {
	gw := newFakeGateway()
	occs := seed(gw, "Unit test suite", "g1", time.Date(2024, 12, 18, 9, 0, 0, 0, est))
	gw.fail = errors.New("connection reset")
	e := newEditor(gw)
	e.OpenEdit(occs[0])

	out, err := e.Delete(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if out.Message != MsgDeleteFailed || e.State() != Failed {
		t.Errorf("outcome = %q state %v", out.Message, e.State())
	}
}

func TestDeleteRequiresEdit(t *testing.T) {
	gw := newFakeGateway()
	e := newEditor(gw)
	if _, err := e.Delete(context.Background()); !errors.Is(err, ErrNotOpen) {
		t.Errorf("closed Delete err = %v, want ErrNotOpen", err)
	}
	e.OpenCreate()
	if _, err := e.Delete(context.Background()); !errors.Is(err, ErrNotEditing) {
		t.Errorf("create-mode Delete err = %v, want ErrNotEditing", err)
	}
	if gw.calls != 0 {
		t.Errorf("gateway called %d times", gw.calls)
	}
}

func TestToggleWeekday(t *testing.T) {
	e := newEditor(newFakeGateway())
	e.OpenCreate()
	e.ToggleWeekday(time.Friday)
	e.ToggleWeekday(time.Monday)
	d := e.Draft()
	if len(d.Weekdays) != 1 || d.Weekdays[0] != time.Friday {
		t.Errorf("weekdays = %v, want [Friday]", d.Weekdays)
	}
	e.SetWeekdays([]time.Weekday{time.Tuesday, time.Tuesday, time.Thursday})
	if d := e.Draft(); len(d.Weekdays) != 2 {
		t.Errorf("weekdays = %v, want duplicates dropped", d.Weekdays)
	}
}

func TestCloseDiscardsDraft(t *testing.T) {
	gw := newFakeGateway()
	e := newEditor(gw)
	e.OpenCreate()
	e.SetTitle("Regression test suite")
	e.Close()

	if e.State() != Closed {
		t.Errorf("state = %v, want closed", e.State())
	}
	if err := e.SetTitle("x"); !errors.Is(err, ErrNotOpen) {
		t.Errorf("SetTitle on closed err = %v, want ErrNotOpen", err)
	}
	if err := e.OpenCreate(); err != nil {
		t.Fatal(err)
	}
	if d := e.Draft(); d.Title != "" {
		t.Errorf("draft title = %q, want empty", d.Title)
	}
	if gw.calls != 0 {
		t.Errorf("gateway called %d times", gw.calls)
	}
}

func TestSaveSingleFlight(t *testing.T) {
	gw := newFakeGateway()
	gw.block = make(chan struct{})
	gw.started = make(chan struct{})
	e := newEditor(gw)
	e.OpenCreate()
	fill(t, e, "Unit test suite", time.Date(2024, 12, 16, 9, 0, 0, 0, est), time.Monday)

	done := make(chan error, 1)
	go func() {
		_, err := e.Save(context.Background())
		done <- err
	}()
	<-gw.started

	if _, err := e.Save(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent Save err = %v, want ErrBusy", err)
	}
	close(gw.block)
	if err := <-done; err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if gw.calls != 1 {
		t.Errorf("gateway calls = %d, want 1", gw.calls)
	}
}

func TestCloseDuringSaveStaysClosed(t *testing.T) {
	gw := newFakeGateway()
	gw.block = make(chan struct{})
	gw.started = make(chan struct{})
	gw.fail = errors.New("timeout")
	e := newEditor(gw)
	e.OpenCreate()
	fill(t, e, "Unit test suite", time.Date(2024, 12, 16, 9, 0, 0, 0, est), time.Monday)

	done := make(chan struct{})
	go func() {
		e.Save(context.Background())
		close(done)
	}()
	<-gw.started
	e.Close()
	close(gw.block)
	<-done

	if e.State() != Closed {
		t.Errorf("state = %v, want closed", e.State())
	}
}
