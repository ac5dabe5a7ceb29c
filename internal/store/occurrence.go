package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dukerupert/suitecal/internal/model"
)

// OccurrenceStore is the SQLite gateway.
type OccurrenceStore struct {
	db *sql.DB
}

func NewOccurrenceStore(db *sql.DB) *OccurrenceStore {
	return &OccurrenceStore{db: db}
}

const occurrenceCols = `id, title, "time", group_id, created_at`

func scanOccurrence(scanner interface{ Scan(...any) error }) (*model.Occurrence, error) {
	var o model.Occurrence
	var id int64
	var groupID sql.NullString

	if err := scanner.Scan(&id, &o.Title, &o.Time, &groupID, &o.CreatedAt); err != nil {
		return nil, err
	}

	o.ID = strconv.FormatInt(id, 10)
	o.Time = o.Time.UTC()
	if groupID.Valid {
		o.GroupID = &groupID.String
	}
	return &o, nil
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func nullGroup(groupID *string) sql.NullString {
	if groupID == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *groupID, Valid: true}
}

func (s *OccurrenceStore) List(ctx context.Context) ([]model.Occurrence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+occurrenceCols+` FROM occurrences ORDER BY "time" ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query occurrences: %w", err)
	}
	return collect(rows)
}

// ListBetween returns occurrences with from <= time < to.
func (s *OccurrenceStore) ListBetween(ctx context.Context, from, to time.Time) ([]model.Occurrence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+occurrenceCols+` FROM occurrences
		 WHERE "time" >= ? AND "time" < ?
		 ORDER BY "time" ASC, id ASC`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query occurrences between: %w", err)
	}
	return collect(rows)
}

// ListGroup returns the occurrences still tagged with groupID.
func (s *OccurrenceStore) ListGroup(ctx context.Context, groupID string) ([]model.Occurrence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+occurrenceCols+` FROM occurrences WHERE group_id = ? ORDER BY "time" ASC, id ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("query group: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]model.Occurrence, error) {
	defer rows.Close()

	var occs []model.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occs = append(occs, *o)
	}
	return occs, rows.Err()
}

func (s *OccurrenceStore) Get(ctx context.Context, id string) (*model.Occurrence, error) {
	n, err := parseID(id)
	if err != nil {
		return nil, err
	}

	o, err := scanOccurrence(s.db.QueryRowContext(ctx,
		`SELECT `+occurrenceCols+` FROM occurrences WHERE id = ?`, n))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query occurrence: %w", err)
	}
	return o, nil
}

// InsertMany writes every occurrence in one transaction. Either all rows
// are stored or none are.
func (s *OccurrenceStore) InsertMany(ctx context.Context, occs []model.Occurrence) ([]model.Occurrence, error) {
	if len(occs) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO occurrences (title, "time", group_id) VALUES (?, ?, ?)
		 RETURNING `+occurrenceCols)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	created := make([]model.Occurrence, 0, len(occs))
	for _, occ := range occs {
		o, err := scanOccurrence(stmt.QueryRowContext(ctx, occ.Title, occ.Time.UTC(), nullGroup(occ.GroupID)))
		if err != nil {
			return nil, fmt.Errorf("insert occurrence: %w", err)
		}
		created = append(created, *o)
	}

	if err := CheckBatch(len(occs), len(created)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit occurrences: %w", err)
	}
	return created, nil
}

func (s *OccurrenceStore) InsertOne(ctx context.Context, occ model.Occurrence) (*model.Occurrence, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO occurrences (title, "time", group_id) VALUES (?, ?, ?)`,
		occ.Title, occ.Time.UTC(), nullGroup(occ.GroupID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert occurrence: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.Get(ctx, strconv.FormatInt(id, 10))
}

func (s *OccurrenceStore) UpdateOne(ctx context.Context, id string, fields model.OccurrenceUpdate) (*model.Occurrence, error) {
	n, err := parseID(id)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE occurrences SET title = ?, "time" = ? WHERE id = ?`,
		fields.Title, fields.Time.UTC(), n,
	)
	if err != nil {
		return nil, fmt.Errorf("update occurrence: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrNotFound
	}

	return s.Get(ctx, id)
}

func (s *OccurrenceStore) DeleteOne(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM occurrences WHERE id = ?`, n)
	if err != nil {
		return fmt.Errorf("delete occurrence: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Gateway = (*OccurrenceStore)(nil)
