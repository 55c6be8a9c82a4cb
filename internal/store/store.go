// Package store defines the record store the reconciliation engine reads from
// and writes to, along with the table layout shared by its SQL implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind identifies an entity table
type Kind string

const (
	// KindModule is a CMS module with input and output code
	KindModule Kind = "module"

	// KindTemplate is a page template with an active flag
	KindTemplate Kind = "template"

	// KindAction is a module action with preview, presave and postsave code
	KindAction Kind = "action"
)

// AllKinds lists every kind in reconciliation order
var AllKinds = []Kind{KindModule, KindTemplate, KindAction}

var (
	// ErrNotFound is returned when no record matches
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a write would break key uniqueness
	ErrDuplicateKey = errors.New("duplicate record key")

	// ErrUnknownKind is returned for a kind without a table
	ErrUnknownKind = errors.New("unknown record kind")
)

// Record is the store-side representation of one entity
type Record struct {
	ID   int64
	Key  string
	Name string

	// Fields holds the kind's content columns by name
	Fields map[string]string

	// Active is only meaningful for templates
	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
	UpdatedBy string
}

// Field returns the named content field, or "" when unset
func (r *Record) Field(name string) string {
	if r == nil || r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// RecordStore is the persistence boundary for records of every kind.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go RecordStore
type RecordStore interface {
	// ListAll returns every record of kind ordered by id
	ListAll(ctx context.Context, kind Kind) ([]*Record, error)

	// FindByKey returns the record with key, or ErrNotFound
	FindByKey(ctx context.Context, kind Kind, key string) (*Record, error)

	// KeyExists reports whether a record of kind uses key
	KeyExists(ctx context.Context, kind Kind, key string) (bool, error)

	// Insert stores a new record and returns its id
	Insert(ctx context.Context, kind Kind, rec *Record) (int64, error)

	// Update overwrites name, active, content and audit fields of the record with rec.ID
	Update(ctx context.Context, kind Kind, rec *Record) error

	// UpdateKey assigns key to the record with id
	UpdateKey(ctx context.Context, kind Kind, id int64, key string) error

	// MaxUpdatedAt returns the newest updated_at of kind, zero when empty
	MaxUpdatedAt(ctx context.Context, kind Kind) (time.Time, error)

	// Close releases the underlying connections
	Close() error
}

// Table describes how a kind is laid out in SQL
type Table struct {
	Name      string
	Fields    []string
	HasActive bool
}

var tables = map[Kind]Table{
	KindModule:   {Name: "modules", Fields: []string{"input", "output"}},
	KindTemplate: {Name: "templates", Fields: []string{"content"}, HasActive: true},
	KindAction:   {Name: "actions", Fields: []string{"preview", "presave", "postsave"}},
}

// TableFor returns the table layout of kind
func TableFor(kind Kind) (Table, error) {
	t, ok := tables[kind]
	if !ok {
		return Table{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return t, nil
}

// Columns returns the selectable columns in scan order
func (t Table) Columns() []string {
	cols := []string{"id", "key", "name"}
	cols = append(cols, t.Fields...)
	if t.HasActive {
		cols = append(cols, "active")
	}
	return append(cols, "created_at", "updated_at", "created_by", "updated_by")
}
