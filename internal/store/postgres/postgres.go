// Package postgres implements the record store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klxm/synch/internal/store"
)

// uniqueViolation is the SQLSTATE of a unique constraint failure
const uniqueViolation = "23505"

// Store is a store.RecordStore backed by a pgx pool. The schema is owned by
// the database package migrations.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.RecordStore = (*Store)(nil)

// New wraps an open pool. Close closes the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the pool
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ListAll implements store.RecordStore
func (s *Store) ListAll(ctx context.Context, kind store.Kind) ([]*store.Record, error) {
	t, err := store.TableFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, t.SelectSQL()+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.Name, err)
	}
	defer rows.Close()

	var records []*store.Record
	for rows.Next() {
		rec, err := store.ScanRecord(t, rows, decodeTime)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.Name, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FindByKey implements store.RecordStore
func (s *Store) FindByKey(ctx context.Context, kind store.Kind, key string) (*store.Record, error) {
	t, err := store.TableFor(kind)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, store.ErrNotFound
	}

	row := s.pool.QueryRow(ctx, t.SelectSQL()+` WHERE "key" = $1`, key)
	rec, err := store.ScanRecord(t, row, decodeTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s %q: %w", kind, key, err)
	}
	return rec, nil
}

// KeyExists implements store.RecordStore
func (s *Store) KeyExists(ctx context.Context, kind store.Kind, key string) (bool, error) {
	t, err := store.TableFor(kind)
	if err != nil {
		return false, err
	}

	var exists bool
	err = s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+t.Name+` WHERE "key" = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check key %q: %w", key, err)
	}
	return exists, nil
}

// Insert implements store.RecordStore
func (s *Store) Insert(ctx context.Context, kind store.Kind, rec *store.Record) (int64, error) {
	t, err := store.TableFor(kind)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.pool.QueryRow(ctx, t.InsertSQL(store.Dollar)+" RETURNING id", t.InsertArgs(rec, encodeTime)...).Scan(&id)
	if err != nil {
		return 0, mapError(fmt.Errorf("failed to insert %s %q: %w", kind, rec.Key, err))
	}
	return id, nil
}

// Update implements store.RecordStore
func (s *Store) Update(ctx context.Context, kind store.Kind, rec *store.Record) error {
	t, err := store.TableFor(kind)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, t.UpdateSQL(store.Dollar), t.UpdateArgs(rec, encodeTime)...)
	if err != nil {
		return mapError(fmt.Errorf("failed to update %s %d: %w", kind, rec.ID, err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateKey implements store.RecordStore
func (s *Store) UpdateKey(ctx context.Context, kind store.Kind, id int64, key string) error {
	t, err := store.TableFor(kind)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `UPDATE `+t.Name+` SET "key" = $1 WHERE id = $2`, key, id)
	if err != nil {
		return mapError(fmt.Errorf("failed to set key of %s %d: %w", kind, id, err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MaxUpdatedAt implements store.RecordStore
func (s *Store) MaxUpdatedAt(ctx context.Context, kind store.Kind) (time.Time, error) {
	t, err := store.TableFor(kind)
	if err != nil {
		return time.Time{}, err
	}

	var latest *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(updated_at) FROM `+t.Name).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest change of %s: %w", t.Name, err)
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return latest.UTC(), nil
}

// Get returns a settings value
func (s *Store) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE name = $1`, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", name, err)
	}
	return value, true, nil
}

// Set stores a settings value
func (s *Store) Set(ctx context.Context, name, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (name, value) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`, name, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %q: %w", name, err)
	}
	return nil
}

func encodeTime(t time.Time) any {
	return t.UTC()
}

func decodeTime(t time.Time) (time.Time, error) {
	return t.UTC(), nil
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %w", store.ErrDuplicateKey, err)
	}
	return err
}
