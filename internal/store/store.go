package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/suitecal/internal/model"
)

// ErrNotFound is returned when no occurrence has the requested id.
var ErrNotFound = errors.New("occurrence not found")

// PartialBatchError reports a batch insert that persisted fewer rows than
// it was given.
type PartialBatchError struct {
	Requested int
	Inserted  int
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("partial batch: inserted %d of %d occurrences", e.Inserted, e.Requested)
}

// Gateway is the persistence contract the scheduling core depends on.
// List results are ordered by time ascending.
type Gateway interface {
	List(ctx context.Context) ([]model.Occurrence, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Occurrence, error)
	ListGroup(ctx context.Context, groupID string) ([]model.Occurrence, error)
	Get(ctx context.Context, id string) (*model.Occurrence, error)
	InsertMany(ctx context.Context, occs []model.Occurrence) ([]model.Occurrence, error)
	InsertOne(ctx context.Context, occ model.Occurrence) (*model.Occurrence, error)
	UpdateOne(ctx context.Context, id string, fields model.OccurrenceUpdate) (*model.Occurrence, error)
	DeleteOne(ctx context.Context, id string) error
}

// CheckBatch returns a *PartialBatchError when got is shorter than want.
func CheckBatch(want, got int) error {
	if got != want {
		return &PartialBatchError{Requested: want, Inserted: got}
	}
	return nil
}
