package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/suitecal/internal/database"
	"github.com/dukerupert/suitecal/internal/model"
	"github.com/dukerupert/suitecal/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupStore(t *testing.T) *store.OccurrenceStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewOccurrenceStore(db)
}

func TestSweepWindow(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	base := time.Date(2024, 12, 16, 17, 0, 0, 0, time.UTC)

	_, err := s.InsertMany(ctx, []model.Occurrence{
		{Title: "at origin", Time: base},
		{Title: "inside", Time: base.Add(30 * time.Second)},
		{Title: "at now", Time: base.Add(time.Minute)},
		{Title: "later", Time: base.Add(2 * time.Minute)},
	})
	if err != nil {
		t.Fatal(err)
	}

	var notified []model.Occurrence
	sw := NewSweeper(s, "@every 1m", func(due []model.Occurrence) { notified = append(notified, due...) }, quietLogger())

	if due, _ := sw.Sweep(ctx, base); len(due) != 0 {
		t.Fatalf("first sweep returned %d, want 0", len(due))
	}

	due, err := sw.Sweep(ctx, base.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 2 || due[0].Title != "inside" || due[1].Title != "at now" {
		t.Errorf("due = %v, want [inside, at now]", titles(due))
	}
	if len(notified) != 2 {
		t.Errorf("notified %d, want 2", len(notified))
	}

	// The next window starts after the previous now.
	due, _ = sw.Sweep(ctx, base.Add(2*time.Minute))
	if len(due) != 1 || due[0].Title != "later" {
		t.Errorf("due = %v, want [later]", titles(due))
	}

	if due, _ := sw.Sweep(ctx, base.Add(time.Minute)); len(due) != 0 {
		t.Errorf("sweep backwards returned %v", titles(due))
	}
}

type failingLister struct{}

func (failingLister) ListBetween(context.Context, time.Time, time.Time) ([]model.Occurrence, error) {
	return nil, errors.New("database is locked")
}

func TestSweepErrorKeepsWindow(t *testing.T) {
	sw := NewSweeper(failingLister{}, "@every 1m", nil, quietLogger())
	base := time.Date(2024, 12, 16, 17, 0, 0, 0, time.UTC)
	sw.Sweep(context.Background(), base)

	if _, err := sw.Sweep(context.Background(), base.Add(time.Minute)); err == nil {
		t.Fatal("expected error")
	}
	if !sw.last.Equal(base) {
		t.Errorf("last = %v, want %v after failure", sw.last, base)
	}
}

func TestStartStop(t *testing.T) {
	sw := NewSweeper(setupStore(t), "@every 1h", nil, quietLogger())
	if err := sw.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sw.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
	sw.Stop()
	sw.Stop()
}

func TestStartBadSpec(t *testing.T) {
	sw := NewSweeper(failingLister{}, "whenever", nil, quietLogger())
	if err := sw.Start(context.Background()); err == nil {
		t.Error("expected error for bad spec")
	}
}

func titles(occs []model.Occurrence) []string {
	out := make([]string, len(occs))
	for i, o := range occs {
		out[i] = o.Title
	}
	return out
}
