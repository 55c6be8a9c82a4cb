package store

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// Placeholder renders the n-th (1-based) bind parameter of a dialect
type Placeholder func(n int) string

// QuestionMark is the SQLite placeholder style
func QuestionMark(int) string { return "?" }

// Dollar is the PostgreSQL placeholder style
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// RowScanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows
type RowScanner interface {
	Scan(dest ...any) error
}

func quote(col string) string {
	return `"` + col + `"`
}

func quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
	}
	return strings.Join(quoted, ", ")
}

// SelectSQL returns the SELECT prefix for all columns of t
func (t Table) SelectSQL() string {
	return "SELECT " + quoteAll(t.Columns()) + " FROM " + t.Name
}

func (t Table) writableColumns() []string {
	cols := []string{"key", "name"}
	cols = append(cols, t.Fields...)
	if t.HasActive {
		cols = append(cols, "active")
	}
	return append(cols, "created_at", "updated_at", "created_by", "updated_by")
}

// InsertSQL returns an INSERT statement for every column but id
func (t Table) InsertSQL(p Placeholder) string {
	cols := t.writableColumns()
	params := make([]string, len(cols))
	for i := range cols {
		params[i] = p(i + 1)
	}
	return "INSERT INTO " + t.Name + " (" + quoteAll(cols) + ") VALUES (" + strings.Join(params, ", ") + ")"
}

// InsertArgs returns the bind values matching InsertSQL. An empty key is
// stored as NULL so several key-less records can coexist under the unique
// constraint.
func (t Table) InsertArgs(rec *Record, ts func(time.Time) any) []any {
	args := []any{nullable(rec.Key), rec.Name}
	for _, f := range t.Fields {
		args = append(args, rec.Field(f))
	}
	if t.HasActive {
		args = append(args, rec.Active)
	}
	return append(args, ts(rec.CreatedAt), ts(rec.UpdatedAt), rec.CreatedBy, rec.UpdatedBy)
}

// UpdateSQL returns an UPDATE statement keyed by id. The key and creation
// audit columns are left untouched.
func (t Table) UpdateSQL(p Placeholder) string {
	cols := []string{"name"}
	cols = append(cols, t.Fields...)
	if t.HasActive {
		cols = append(cols, "active")
	}
	cols = append(cols, "updated_at", "updated_by")

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = quote(c) + " = " + p(i+1)
	}
	return "UPDATE " + t.Name + " SET " + strings.Join(sets, ", ") + " WHERE id = " + p(len(cols)+1)
}

// UpdateArgs returns the bind values matching UpdateSQL
func (t Table) UpdateArgs(rec *Record, ts func(time.Time) any) []any {
	args := []any{rec.Name}
	for _, f := range t.Fields {
		args = append(args, rec.Field(f))
	}
	if t.HasActive {
		args = append(args, rec.Active)
	}
	return append(args, ts(rec.UpdatedAt), rec.UpdatedBy, rec.ID)
}

// ScanRecord reads one row laid out as t.Columns(). decode converts the
// dialect's timestamp representation.
func ScanRecord[T any](t Table, row RowScanner, decode func(T) (time.Time, error)) (*Record, error) {
	var (
		rec                Record
		key                sql.NullString
		created, updated   T
		createdBy, updater sql.NullString
	)
	fields := make([]string, len(t.Fields))

	dest := []any{&rec.ID, &key, &rec.Name}
	for i := range fields {
		dest = append(dest, &fields[i])
	}
	if t.HasActive {
		dest = append(dest, &rec.Active)
	}
	dest = append(dest, &created, &updated, &createdBy, &updater)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if rec.CreatedAt, err = decode(created); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = decode(updated); err != nil {
		return nil, err
	}
	rec.Key = key.String
	rec.CreatedBy = createdBy.String
	rec.UpdatedBy = updater.String
	rec.Fields = make(map[string]string, len(fields))
	for i, f := range t.Fields {
		rec.Fields[f] = fields[i]
	}
	return &rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
