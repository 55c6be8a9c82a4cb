package sync

import (
	"fmt"
	"strings"

	"github.com/klxm/synch/internal/store"
)

// FileSpec maps one content file onto record fields. A file with a single
// field holds the raw value; a file with several fields is split into
// marked sections.
type FileSpec struct {
	Name   string
	Fields []string
}

// Sectioned reports whether the file holds several fields
func (f FileSpec) Sectioned() bool {
	return len(f.Fields) > 1
}

// Kind describes how one entity kind is mirrored on disk
type Kind struct {
	// Name is the plural used for directories, flags and logs
	Name string

	// Record is the record store kind
	Record store.Kind

	Files     []FileSpec
	HasActive bool
}

var (
	// Modules mirror input and output code
	Modules = Kind{
		Name:   "modules",
		Record: store.KindModule,
		Files: []FileSpec{
			{Name: "input.php", Fields: []string{"input"}},
			{Name: "output.php", Fields: []string{"output"}},
		},
	}

	// Templates mirror their content and active flag
	Templates = Kind{
		Name:      "templates",
		Record:    store.KindTemplate,
		Files:     []FileSpec{{Name: "template.php", Fields: []string{"content"}}},
		HasActive: true,
	}

	// Actions keep their three hooks in one sectioned file
	Actions = Kind{
		Name:   "actions",
		Record: store.KindAction,
		Files:  []FileSpec{{Name: "action.php", Fields: []string{"preview", "presave", "postsave"}}},
	}
)

// Kinds returns every kind in reconciliation order
func Kinds() []Kind {
	return []Kind{Modules, Templates, Actions}
}

// KindNames returns the plural and singular name of every kind
func KindNames() []string {
	var names []string
	for _, k := range Kinds() {
		names = append(names, k.Name, string(k.Record))
	}
	return names
}

// ParseKind accepts the plural or singular name of a kind
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds() {
		if s == k.Name || s == string(k.Record) {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("unknown kind %q", s)
}

// Fields returns every content field of the kind in file order
func (k Kind) Fields() []string {
	var fields []string
	for _, f := range k.Files {
		fields = append(fields, f.Fields...)
	}
	return fields
}

func (k Kind) String() string {
	return k.Name
}
