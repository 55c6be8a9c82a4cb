package sync

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes. Every *Error carries one of them, so callers can test the
// class with errors.Is.
var (
	// ErrConfiguration means an item lacks a key that cannot be generated
	ErrConfiguration = errors.New("configuration error")

	// ErrStore means the record store rejected a read or write
	ErrStore = errors.New("store error")

	// ErrFilesystem means a mirror file or directory could not be read or written
	ErrFilesystem = errors.New("filesystem error")

	// ErrConflict means a key resolves to several items, or both sides of an
	// item changed since the engine last wrote it
	ErrConflict = errors.New("conflict")

	// ErrLocked means another run holds the kind's lock
	ErrLocked = errors.New("sync already running")
)

// Error is a structured sync error for one kind and, for item errors, one key
type Error struct {
	Class error
	Kind  string
	Key   string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind)
	if e.Key != "" {
		fmt.Fprintf(&b, " %q", e.Key)
	}
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	} else if e.Class != nil {
		b.WriteString(": ")
		b.WriteString(e.Class.Error())
	}
	return b.String()
}

// Unwrap exposes both the class and the cause to errors.Is and errors.As
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Class != nil {
		errs = append(errs, e.Class)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(class error, kind Kind, key, op string, err error) *Error {
	return &Error{Class: class, Kind: kind.Name, Key: key, Op: op, Err: err}
}

// Class returns the class of err, or nil when err is not a sync error
func Class(err error) error {
	for _, class := range []error{ErrConfiguration, ErrStore, ErrFilesystem, ErrConflict, ErrLocked} {
		if errors.Is(err, class) {
			return class
		}
	}
	return nil
}
