package filtering

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// ItemFilter decides whether an item directory takes part in a sync
type ItemFilter interface {
	// ShouldInclude reports whether the item at relPath takes part
	// Returns (shouldInclude bool, reason string)
	ShouldInclude(relPath string) (bool, string)
}

type pattern struct {
	raw      string
	compiled glob.Glob
	baseOnly bool
}

// globItemFilter implements ItemFilter using compiled glob patterns
type globItemFilter struct {
	include []pattern
	exclude []pattern
}

var _ ItemFilter = (*globItemFilter)(nil)

// NewItemFilter compiles include and exclude patterns
func NewItemFilter(include, exclude []string) (ItemFilter, error) {
	inc, err := compileAll(include)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	exc, err := compileAll(exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	return &globItemFilter{include: inc, exclude: exc}, nil
}

// IncludeAll returns a filter that only drops hidden directories
func IncludeAll() ItemFilter {
	return &globItemFilter{}
}

func compileAll(patterns []string) ([]pattern, error) {
	compiled := make([]pattern, 0, len(patterns))
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		g, err := glob.Compile(raw, '/')
		if err != nil {
			return nil, fmt.Errorf("'%s': %w", raw, err)
		}
		compiled = append(compiled, pattern{raw: raw, compiled: g, baseOnly: !strings.Contains(raw, "/")})
	}
	return compiled, nil
}

func (p pattern) match(relPath string) bool {
	if p.compiled.Match(relPath) {
		return true
	}
	return p.baseOnly && p.compiled.Match(path.Base(relPath))
}

// ShouldInclude determines if an item takes part based on include/exclude patterns
//
// Logic:
// 1. Hidden directories are excluded
// 2. If relPath matches any exclude pattern -> exclude (exclude takes precedence)
// 3. If include patterns are specified and relPath matches one -> include
// 4. If include patterns are specified and none match -> exclude
// 5. Otherwise -> include
func (f *globItemFilter) ShouldInclude(relPath string) (bool, string) {
	relPath = strings.Trim(path.Clean(relPath), "/")
	if strings.HasPrefix(path.Base(relPath), ".") {
		return false, "hidden directory"
	}

	for _, p := range f.exclude {
		if p.match(relPath) {
			return false, fmt.Sprintf("excluded by pattern '%s'", p.raw)
		}
	}

	if len(f.include) > 0 {
		for _, p := range f.include {
			if p.match(relPath) {
				return true, fmt.Sprintf("included by pattern '%s'", p.raw)
			}
		}
		return false, "no match found in include patterns"
	}

	if len(f.exclude) > 0 {
		return true, "no match in exclude patterns"
	}
	return true, "no item filters specified"
}
