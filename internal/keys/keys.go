// Package keys derives stable, filesystem-safe identifiers from display names.
package keys

import (
	"context"
	"crypto/md5" //nolint:gosec // used for a short non-cryptographic prefix
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/klxm/synch/internal/clock"
)

// Strategy selects how a key is derived from a name.
type Strategy string

const (
	// NameBased uses the cleaned name: "Büro News" -> "buero_news"
	NameBased Strategy = "name_based"

	// DateName prefixes the cleaned name with the current date: "20240501_buero_news"
	DateName Strategy = "date_name"

	// HashBased prefixes the cleaned name with 8 hex chars of md5(name + unix time)
	HashBased Strategy = "hash_based"
)

const (
	// maxUniqueAttempts bounds the suffix search in EnsureUnique
	maxUniqueAttempts = 10000

	hashPrefixBytes = 4
)

var (
	// ErrEmptyKey is returned when a name cleans to the empty string
	ErrEmptyKey = errors.New("name produces an empty key")

	// ErrUnknownStrategy is returned for an unsupported strategy name
	ErrUnknownStrategy = errors.New("unknown key generation strategy")

	germanDigraphs = strings.NewReplacer(
		"ä", "ae", "ö", "oe", "ü", "ue",
		"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
		"ß", "ss",
	)

	invalidChars   = regexp.MustCompile(`[^A-Za-z0-9_]`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// ParseStrategy converts a configuration value to a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case NameBased, DateName, HashBased:
		return Strategy(s), nil
	case "":
		return NameBased, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// CleanKey maps s onto [a-z0-9_]: German umlauts become digraphs, other
// accented letters lose their marks, everything else outside [A-Za-z0-9_]
// becomes "_", runs of "_" collapse and leading/trailing "_" are trimmed.
// The result may be empty.
func CleanKey(s string) string {
	s = germanDigraphs.Replace(s)
	s = foldMarks(s)
	s = invalidChars.ReplaceAllString(s, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return strings.ToLower(s)
}

// IsPathSafe reports whether key can be used as part of a file name inside
// an item directory: no path separators, no ".." and no control characters
func IsPathSafe(key string) bool {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return false
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// FilePrefix returns the prefix of descriptive file names for key: the key
// itself when it is path safe, else its cleaned form
func FilePrefix(key string) string {
	if IsPathSafe(key) {
		return key
	}
	return CleanKey(key)
}

func foldMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Generator produces keys with a fixed strategy
type Generator struct {
	strategy Strategy
	clock    clock.Clock
}

// NewGenerator creates a Generator. A nil clock uses the system clock.
func NewGenerator(strategy Strategy, clk clock.Clock) (*Generator, error) {
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = NameBased
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Generator{strategy: strategy, clock: clk}, nil
}

// Strategy returns the generator's strategy
func (g *Generator) Strategy() Strategy {
	return g.strategy
}

// Generate derives a key from name. It returns ErrEmptyKey when the name
// contains nothing usable.
func (g *Generator) Generate(name string) (string, error) {
	base := CleanKey(name)
	if base == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptyKey, name)
	}

	switch g.strategy {
	case DateName:
		return g.clock.Now().Format("20060102") + "_" + base, nil
	case HashBased:
		//nolint:gosec // short distinguishing prefix, not a security boundary
		sum := md5.Sum([]byte(name + strconv.FormatInt(g.clock.Now().Unix(), 10)))
		return hex.EncodeToString(sum[:hashPrefixBytes]) + "_" + base, nil
	default:
		return base, nil
	}
}

// ExistsFunc reports whether a key is already taken
type ExistsFunc func(ctx context.Context, key string) (bool, error)

// EnsureUnique returns base if it is free, otherwise the first free key of
// base_1, base_2, ... Callers serialize key assignment so the answer stays
// valid until the key is persisted.
func EnsureUnique(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	if base == "" {
		return "", ErrEmptyKey
	}

	candidate := base
	for i := 1; i <= maxUniqueAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check key %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "_" + strconv.Itoa(i)
	}
	return "", fmt.Errorf("no free key for %q after %d attempts", base, maxUniqueAttempts)
}
