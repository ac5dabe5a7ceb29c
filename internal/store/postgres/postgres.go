// Package postgres implements the occurrence gateway on a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/suitecal/internal/model"
	"github.com/dukerupert/suitecal/internal/store"
)

// Store shares one pool across all gateway calls.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const cols = `id, title, "time", group_id, created_at`

func scan(row pgx.Row) (*model.Occurrence, error) {
	var o model.Occurrence
	var id int64
	if err := row.Scan(&id, &o.Title, &o.Time, &o.GroupID, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.ID = strconv.FormatInt(id, 10)
	o.Time = o.Time.UTC()
	return &o, nil
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, store.ErrNotFound
	}
	return n, nil
}

func (s *Store) List(ctx context.Context) ([]model.Occurrence, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+cols+` FROM occurrences ORDER BY "time" ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query occurrences: %w", err)
	}
	return collect(rows)
}

func (s *Store) ListBetween(ctx context.Context, from, to time.Time) ([]model.Occurrence, error) {
	const query = `
		SELECT ` + cols + `
		FROM occurrences
		WHERE "time" >= $1 AND "time" < $2
		ORDER BY "time" ASC, id ASC;
	`
	rows, err := s.pool.Query(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query occurrences between: %w", err)
	}
	return collect(rows)
}

func (s *Store) ListGroup(ctx context.Context, groupID string) ([]model.Occurrence, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+cols+` FROM occurrences WHERE group_id = $1 ORDER BY "time" ASC, id ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]model.Occurrence, error) {
	defer rows.Close()

	var occs []model.Occurrence
	for rows.Next() {
		o, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occs = append(occs, *o)
	}
	return occs, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (*model.Occurrence, error) {
	n, err := parseID(id)
	if err != nil {
		return nil, err
	}

	o, err := scan(s.pool.QueryRow(ctx, `SELECT `+cols+` FROM occurrences WHERE id = $1`, n))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query occurrence: %w", err)
	}
	return o, nil
}

// InsertMany queues every row in one batch inside a transaction.
func (s *Store) InsertMany(ctx context.Context, occs []model.Occurrence) ([]model.Occurrence, error) {
	if len(occs) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO occurrences (title, "time", group_id)
		VALUES ($1, $2, $3)
		RETURNING ` + cols + `;
	`
	batch := &pgx.Batch{}
	for _, occ := range occs {
		batch.Queue(query, occ.Title, occ.Time.UTC(), occ.GroupID)
	}

	results := tx.SendBatch(ctx, batch)
	created := make([]model.Occurrence, 0, len(occs))
	for range occs {
		o, err := scan(results.QueryRow())
		if err != nil {
			results.Close()
			return nil, fmt.Errorf("insert occurrence: %w", err)
		}
		created = append(created, *o)
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", err)
	}

	if err := store.CheckBatch(len(occs), len(created)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit occurrences: %w", err)
	}
	return created, nil
}

func (s *Store) InsertOne(ctx context.Context, occ model.Occurrence) (*model.Occurrence, error) {
	const query = `
		INSERT INTO occurrences (title, "time", group_id)
		VALUES ($1, $2, $3)
		RETURNING ` + cols + `;
	`
	o, err := scan(s.pool.QueryRow(ctx, query, occ.Title, occ.Time.UTC(), occ.GroupID))
	if err != nil {
		return nil, fmt.Errorf("insert occurrence: %w", err)
	}
	return o, nil
}

func (s *Store) UpdateOne(ctx context.Context, id string, fields model.OccurrenceUpdate) (*model.Occurrence, error) {
	n, err := parseID(id)
	if err != nil {
		return nil, err
	}

	const query = `
		UPDATE occurrences SET title = $1, "time" = $2
		WHERE id = $3
		RETURNING ` + cols + `;
	`
	o, err := scan(s.pool.QueryRow(ctx, query, fields.Title, fields.Time.UTC(), n))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update occurrence: %w", err)
	}
	return o, nil
}

func (s *Store) DeleteOne(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM occurrences WHERE id = $1`, n)
	if err != nil {
		return fmt.Errorf("delete occurrence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.Gateway = (*Store)(nil)
