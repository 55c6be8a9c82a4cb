// Package sqlite implements the record store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/klxm/synch/internal/store"
)

//go:embed schema.sql
var schema string

// timeLayout is fixed width so that string order equals time order
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

var pragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Store is a store.RecordStore backed by SQLite. It also keeps small
// settings values for the sync state.
type Store struct {
	db *sql.DB
}

var _ store.RecordStore = (*Store)(nil)

// Open opens or creates the database at path and applies the schema
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ListAll implements store.RecordStore
func (s *Store) ListAll(ctx context.Context, kind store.Kind) ([]*store.Record, error) {
	t, err := store.TableFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, t.SelectSQL()+" ORDER BY id")
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

	row := s.db.QueryRowContext(ctx, t.SelectSQL()+` WHERE "key" = ?`, key)
	rec, err := store.ScanRecord(t, row, decodeTime)
	if errors.Is(err, sql.ErrNoRows) {
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

	var n int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+t.Name+` WHERE "key" = ?`, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check key %q: %w", key, err)
	}
	return n > 0, nil
}

// Insert implements store.RecordStore
func (s *Store) Insert(ctx context.Context, kind store.Kind, rec *store.Record) (int64, error) {
	t, err := store.TableFor(kind)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, t.InsertSQL(store.QuestionMark), t.InsertArgs(rec, encodeTime)...)
	if err != nil {
		return 0, mapError(fmt.Errorf("failed to insert %s %q: %w", kind, rec.Key, err))
	}
	return res.LastInsertId()
}

// Update implements store.RecordStore
func (s *Store) Update(ctx context.Context, kind store.Kind, rec *store.Record) error {
	t, err := store.TableFor(kind)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, t.UpdateSQL(store.QuestionMark), t.UpdateArgs(rec, encodeTime)...)
	if err != nil {
		return mapError(fmt.Errorf("failed to update %s %d: %w", kind, rec.ID, err))
	}
	return requireAffected(res)
}

// UpdateKey implements store.RecordStore
func (s *Store) UpdateKey(ctx context.Context, kind store.Kind, id int64, key string) error {
	t, err := store.TableFor(kind)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE `+t.Name+` SET "key" = ? WHERE id = ?`, key, id)
	if err != nil {
		return mapError(fmt.Errorf("failed to set key of %s %d: %w", kind, id, err))
	}
	return requireAffected(res)
}

// MaxUpdatedAt implements store.RecordStore
func (s *Store) MaxUpdatedAt(ctx context.Context, kind store.Kind) (time.Time, error) {
	t, err := store.TableFor(kind)
	if err != nil {
		return time.Time{}, err
	}

	var latest sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM `+t.Name).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest change of %s: %w", t.Name, err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return decodeTime(latest.String)
}

// Get returns a settings value
func (s *Store) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", name, err)
	}
	return value, true, nil
}

// Set stores a settings value
func (s *Store) Set(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (name, value) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value`, name, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %q: %w", name, err)
	}
	return nil
}

func encodeTime(t time.Time) any {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// rows written by other tools
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapError(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %w", store.ErrDuplicateKey, err)
	}
	return err
}
