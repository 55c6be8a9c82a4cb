package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/klxm/synch/internal/metadata"
)

// RenameResult summarizes a file naming conversion
type RenameResult struct {
	// Renamed counts content files moved to the new name
	Renamed int
	Errors  []string
}

func (r *RenameResult) merge(other *RenameResult) {
	if other == nil {
		return
	}
	r.Renamed += other.Renamed
	r.Errors = append(r.Errors, other.Errors...)
}

// RenameFiles converts the content files of every item between the plain
// ("input.php") and descriptive ("<key> input.php") naming conventions.
// Missing files are skipped and an existing destination is replaced.
func (s *Synchronizer) RenameFiles(ctx context.Context, toDescriptive bool) (*RenameResult, error) {
	unlock, err := s.locker.Lock(ctx, s.kind.Name)
	if err != nil {
		class := ErrFilesystem
		if errors.Is(err, ErrLocked) {
			class = ErrLocked
		}
		return nil, newError(class, s.kind, "", "lock", err)
	}
	defer unlock()

	items, err := s.scan()
	if err != nil {
		return nil, newError(ErrFilesystem, s.kind, "", "scan", err)
	}

	result := &RenameResult{}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if it.desc == nil {
			continue
		}
		key := descriptorKey(it.desc, it.name)
		for _, spec := range s.kind.Files {
			from := path.Join(it.dir, fileName(spec, key, !toDescriptive))
			to := path.Join(it.dir, fileName(spec, key, toDescriptive))
			renamed, err := s.renameFile(from, to)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", it.dir, err))
				continue
			}
			if renamed {
				result.Renamed++
			}
		}
	}
	return result, nil
}

func (s *Synchronizer) renameFile(from, to string) (bool, error) {
	if from == to {
		return false, nil
	}
	if _, err := s.fs.Stat(from); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if s.dryRun {
		return true, nil
	}
	if err := s.fs.Remove(to); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to remove %s: %w", path.Base(to), err)
	}
	if err := s.fs.Rename(from, to); err != nil {
		return false, fmt.Errorf("failed to rename %s: %w", path.Base(from), err)
	}
	return true, nil
}

// descriptorKey is the key an item's files are named after
func descriptorKey(d *metadata.Descriptor, dirName string) string {
	if d != nil && d.Key != "" {
		return d.Key
	}
	return dirName
}
