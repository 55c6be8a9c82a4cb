package sync

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/klxm/synch/internal/keys"
	"github.com/klxm/synch/internal/metadata"
	"github.com/klxm/synch/internal/store"
)

const (
	sectionPrefix = "// === "
	sectionSuffix = " ==="
)

// fileName returns the name of spec's file for key under the chosen convention
func fileName(spec FileSpec, key string, descriptive bool) string {
	if descriptive && key != "" {
		if prefix := keys.FilePrefix(key); prefix != "" {
			return prefix + " " + spec.Name
		}
	}
	return spec.Name
}

// findFile returns the path of spec's file in dir, preferring the
// descriptive name over the legacy one
func findFile(fs billy.Filesystem, dir, key string, spec FileSpec) (string, bool) {
	candidates := []string{spec.Name}
	if descriptive := fileName(spec, key, true); descriptive != spec.Name {
		candidates = []string{descriptive, spec.Name}
	}
	for _, name := range candidates {
		p := path.Join(dir, name)
		if info, err := fs.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// encodeFile renders the content of spec's file for rec
func encodeFile(spec FileSpec, rec *store.Record) []byte {
	if !spec.Sectioned() {
		return []byte(rec.Field(spec.Fields[0]))
	}

	name := rec.Name
	if name == "" {
		name = "Unnamed"
	}

	var b strings.Builder
	b.WriteString("<?php\n\n/**\n")
	fmt.Fprintf(&b, " * %s\n", name)
	fmt.Fprintf(&b, " * Key: %s\n", rec.Key)
	b.WriteString(" */\n\n")
	for _, field := range spec.Fields {
		value := rec.Field(field)
		if strings.TrimSpace(value) == "" {
			continue
		}
		b.WriteString(sectionPrefix + strings.ToUpper(field) + sectionSuffix + "\n")
		b.WriteString(value)
		b.WriteString("\n\n")
	}
	return []byte(b.String())
}

// decodeFile extracts spec's fields from file content. Sections absent
// from a sectioned file decode to "".
func decodeFile(spec FileSpec, data []byte) map[string]string {
	if !spec.Sectioned() {
		return map[string]string{spec.Fields[0]: string(data)}
	}

	wanted := make(map[string]string, len(spec.Fields))
	for _, f := range spec.Fields {
		wanted[strings.ToUpper(f)] = f
	}

	sections := make(map[string]*strings.Builder)
	var current *strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for scanner.Scan() {
		line := scanner.Text()
		if marker, ok := sectionMarker(line); ok {
			current = nil
			if field, known := wanted[marker]; known {
				current = &strings.Builder{}
				sections[field] = current
			}
			continue
		}
		if current != nil {
			current.WriteString(line)
			current.WriteByte('\n')
		}
	}

	out := make(map[string]string, len(spec.Fields))
	for _, f := range spec.Fields {
		if b, ok := sections[f]; ok {
			out[f] = strings.TrimSpace(b.String())
		} else {
			out[f] = ""
		}
	}
	return out
}

func sectionMarker(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, sectionPrefix) || !strings.HasSuffix(line, sectionSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(line, sectionPrefix), sectionSuffix)
	name = strings.TrimSpace(name)
	return name, name != ""
}

// normalize maps a field value to the form that survives a write/read cycle
func normalize(spec FileSpec, value string) string {
	if spec.Sectioned() {
		return strings.TrimSpace(value)
	}
	return value
}

// itemContent is what an item directory holds besides its descriptor
type itemContent struct {
	// Fields holds the values of fields whose file exists
	Fields map[string]string
}

func (c *itemContent) has(field string) bool {
	_, ok := c.Fields[field]
	return ok
}

// readContent loads every content file of an item. A missing file leaves
// its fields out of the result.
func readContent(fs billy.Filesystem, kind Kind, dir, key string) (*itemContent, error) {
	content := &itemContent{Fields: make(map[string]string)}
	for _, spec := range kind.Files {
		p, ok := findFile(fs, dir, key, spec)
		if !ok {
			continue
		}
		data, err := util.ReadFile(fs, p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		for field, value := range decodeFile(spec, data) {
			content.Fields[field] = value
		}
	}
	return content, nil
}

// writeContent writes every content file of rec into dir and removes the
// file of the other naming convention so lookups cannot pick a stale copy
func writeContent(fs billy.Filesystem, kind Kind, dir string, rec *store.Record, descriptive bool) error {
	for _, spec := range kind.Files {
		name := fileName(spec, rec.Key, descriptive)
		other := fileName(spec, rec.Key, !descriptive)
		if other != name {
			if err := fs.Remove(path.Join(dir, other)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to remove %s: %w", other, err)
			}
		}
		if err := metadata.WriteFileAtomic(fs, path.Join(dir, name), encodeFile(spec, rec)); err != nil {
			return err
		}
	}
	return nil
}

// checksum hashes the normalized name, active flag and content of an item
func checksum(kind Kind, name string, active bool, fields map[string]string) string {
	h := sha256.New()
	writeField := func(k, v string) {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	writeField("name", name)
	if kind.HasActive {
		writeField("active", strconv.FormatBool(active))
	}
	for _, spec := range kind.Files {
		for _, f := range spec.Fields {
			writeField(f, normalize(spec, fields[f]))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func recordChecksum(kind Kind, rec *store.Record) string {
	return checksum(kind, rec.Name, rec.Active, rec.Fields)
}
