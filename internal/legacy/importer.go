// Package legacy migrates item directories written by the "developer" addon
// into the keyed mirror layout.
//
// Developer directories are named "Name [id]" and hold a metadata.yml with
// legacy field names plus the fixed content files. Each one becomes
// <kind>/<clean key> with a rewritten descriptor; the next sync imports it.
package legacy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/klxm/synch/internal/keys"
	"github.com/klxm/synch/internal/logger"
	"github.com/klxm/synch/internal/metadata"
	"github.com/klxm/synch/internal/sync"
)

// ErrUnsupportedKind is returned for kinds the developer addon never exported
var ErrUnsupportedKind = errors.New("kind cannot be imported from the developer addon")

// developer directories carry the record id in brackets
var idSuffix = regexp.MustCompile(`^(.+?)\s*\[(\d+)\]$`)

// Result summarizes an import
type Result struct {
	Imported int
	Skipped  int
	Errors   []string
}

// Importer copies developer directories of one kind into the mirror
type Importer struct {
	kind   sync.Kind
	src    billy.Filesystem
	dst    billy.Filesystem
	dryRun bool
}

// NewImporter creates an Importer reading kind directories from src and
// writing them below <kind>/ in dst
func NewImporter(kind sync.Kind, src, dst billy.Filesystem, dryRun bool) (*Importer, error) {
	if kind.Record == sync.Actions.Record {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind.Name)
	}
	return &Importer{kind: kind, src: src, dst: dst, dryRun: dryRun}, nil
}

// Import migrates every directory at the root of src. Per-directory failures
// are collected; a missing or unreadable src is fatal.
func (im *Importer) Import(ctx context.Context) (*Result, error) {
	entries, err := im.src.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to read developer %s directory: %w", im.kind.Name, err)
	}

	result := &Result{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}

		target, err := im.importDir(e.Name())
		switch {
		case errors.Is(err, os.ErrExist):
			logger.Warnf("Skipping %s '%s': %s already exists", im.kind.Name, e.Name(), target)
			result.Skipped++
		case err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", e.Name(), err))
		default:
			logger.Debugf("Imported %s '%s' into %s", im.kind.Name, e.Name(), target)
			result.Imported++
		}
	}
	return result, nil
}

// importDir migrates one directory and returns its target
func (im *Importer) importDir(dirName string) (string, error) {
	desc, err := metadata.Read(im.src, dirName)
	if errors.Is(err, metadata.ErrNotFound) {
		desc = &metadata.Descriptor{}
	} else if err != nil {
		return "", err
	}

	baseName := dirName
	if m := idSuffix.FindStringSubmatch(dirName); m != nil {
		baseName = strings.TrimSpace(m[1])
	}

	key := desc.Key
	if key == "" {
		key = keys.CleanKey(baseName)
	}
	clean := keys.CleanKey(key)
	if clean == "" {
		return "", fmt.Errorf("%w: %q", keys.ErrEmptyKey, dirName)
	}

	target := path.Join(im.kind.Name, clean)
	if metadata.Exists(im.dst, target) {
		return target, os.ErrExist
	}

	out := &metadata.Descriptor{
		Key:       key,
		Name:      desc.Name,
		CreatedAt: desc.CreatedAt,
		UpdatedAt: desc.UpdatedAt,
		CreatedBy: desc.CreatedBy,
		UpdatedBy: desc.UpdatedBy,
		Extra:     desc.Extra,
	}
	if out.Name == "" {
		out.Name = baseName
	}
	if im.kind.HasActive {
		active := true
		if desc.Active != nil {
			active = *desc.Active
		}
		out.Active = &active
	}

	if im.dryRun {
		return target, nil
	}

	if err := im.dst.MkdirAll(target, 0755); err != nil {
		return target, fmt.Errorf("failed to create %s: %w", target, err)
	}
	for _, spec := range im.kind.Files {
		if err := copyFile(im.src, path.Join(dirName, spec.Name), im.dst, path.Join(target, spec.Name)); err != nil {
			return target, err
		}
	}
	if err := metadata.Write(im.dst, target, out); err != nil {
		return target, err
	}
	return target, nil
}

// copyFile copies src to dst, doing nothing when src does not exist
func copyFile(srcFS billy.Filesystem, src string, dstFS billy.Filesystem, dst string) error {
	in, err := srcFS.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := dstFS.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
