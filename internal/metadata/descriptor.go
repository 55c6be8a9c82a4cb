// Package metadata reads and writes the per-item descriptor file that sits
// next to an item's content files in the mirror.
package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"
)

// FileName is the descriptor file inside every item directory
const FileName = "metadata.yml"

// ErrNotFound is returned by Read when the directory has no descriptor
var ErrNotFound = errors.New("descriptor not found")

// legacy timestamp layout written by earlier addon versions
const legacyTimeLayout = "2006-01-02 15:04:05"

// legacy field names mapped onto the current ones on read
var legacyFields = map[string]string{
	"createdate": "created_at",
	"updatedate": "updated_at",
	"createuser": "created_by",
	"updateuser": "updated_by",
}

// Descriptor is the metadata of one item
type Descriptor struct {
	Key       string
	Name      string
	Active    *bool
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
	UpdatedBy string

	// Checksum is the content checksum at the time the engine last wrote the
	// item's files. Empty for hand-written descriptors.
	Checksum string

	// Extra keeps fields this version does not know about
	Extra map[string]any
}

// wire is the on-disk field order
type wire struct {
	Key       string         `yaml:"key"`
	Name      string         `yaml:"name"`
	Active    *bool          `yaml:"active,omitempty"`
	CreatedAt string         `yaml:"created_at,omitempty"`
	UpdatedAt string         `yaml:"updated_at,omitempty"`
	CreatedBy string         `yaml:"created_by,omitempty"`
	UpdatedBy string         `yaml:"updated_by,omitempty"`
	Checksum  string         `yaml:"checksum,omitempty"`
	Extra     map[string]any `yaml:",inline"`
}

// Encode serializes d as YAML, one field per line in a stable order
func Encode(d *Descriptor) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("descriptor is nil")
	}

	w := wire{
		Key:       d.Key,
		Name:      d.Name,
		Active:    d.Active,
		CreatedAt: formatTime(d.CreatedAt),
		UpdatedAt: formatTime(d.UpdatedAt),
		CreatedBy: d.CreatedBy,
		UpdatedBy: d.UpdatedBy,
		Checksum:  d.Checksum,
		Extra:     d.Extra,
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&w); err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a descriptor. Timestamps may be RFC 3339 or the legacy
// "YYYY-MM-DD HH:MM:SS" form; legacy field names are accepted.
func Decode(data []byte) (*Descriptor, error) {
	var w wire
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}

	for legacy, current := range legacyFields {
		v, ok := w.Extra[legacy]
		if !ok {
			continue
		}
		delete(w.Extra, legacy)
		s := scalarString(v)
		switch current {
		case "created_at":
			if w.CreatedAt == "" {
				w.CreatedAt = s
			}
		case "updated_at":
			if w.UpdatedAt == "" {
				w.UpdatedAt = s
			}
		case "created_by":
			if w.CreatedBy == "" {
				w.CreatedBy = s
			}
		case "updated_by":
			if w.UpdatedBy == "" {
				w.UpdatedBy = s
			}
		}
	}
	if len(w.Extra) == 0 {
		w.Extra = nil
	}

	createdAt, err := parseTime(w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	updatedAt, err := parseTime(w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}

	return &Descriptor{
		Key:       w.Key,
		Name:      w.Name,
		Active:    w.Active,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		CreatedBy: w.CreatedBy,
		UpdatedBy: w.UpdatedBy,
		Checksum:  w.Checksum,
		Extra:     w.Extra,
	}, nil
}

// Read loads the descriptor of the item in dir. A missing file yields ErrNotFound.
func Read(fs billy.Filesystem, dir string) (*Descriptor, error) {
	data, err := util.ReadFile(fs, path.Join(dir, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read descriptor in %s: %w", dir, err)
	}
	return Decode(data)
}

// Write stores d in dir, replacing any existing descriptor. The file is
// written next to the target and renamed into place.
func Write(fs billy.Filesystem, dir string, d *Descriptor) error {
	data, err := Encode(d)
	if err != nil {
		return err
	}
	return WriteFileAtomic(fs, path.Join(dir, FileName), data)
}

// Exists reports whether dir contains a descriptor file
func Exists(fs billy.Filesystem, dir string) bool {
	info, err := fs.Stat(path.Join(dir, FileName))
	return err == nil && !info.IsDir()
}

// WriteFileAtomic writes data to a temporary sibling of name and renames it
// over name.
func WriteFileAtomic(fs billy.Filesystem, name string, data []byte) error {
	tmp := path.Join(path.Dir(name), "."+path.Base(name)+".tmp")
	if err := util.WriteFile(fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := fs.Rename(tmp, name); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(legacyTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}
