package convert

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sigurdp/exp-smry2parquet/internal/storage"
)

// Entry is one realization's file.
type Entry struct {
	Realization int    `json:"realization"`
	Path        string `json:"path"`
}

// CompileRealizationPattern compiles a pattern with exactly one capture
// group holding the realization index.
func CompileRealizationPattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid realization pattern: %w", err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("realization pattern %q must have exactly one capture group", pattern)
	}
	return re, nil
}

// RealizationOf returns the realization index found in the right-most
// path component that starts with a match of re.
func RealizationOf(p string, re *regexp.Regexp) (int, bool) {
	parts := strings.Split(filepath.ToSlash(p), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		loc := re.FindStringSubmatchIndex(parts[i])
		if loc == nil || loc[0] != 0 || loc[2] < 0 {
			continue
		}
		real, err := strconv.Atoi(parts[i][loc[2]:loc[3]])
		if err != nil {
			continue
		}
		return real, true
	}
	return 0, false
}

// Discover expands the glob patterns, drops duplicates and paths without
// a realization index, and returns the entries ordered by realization.
// Two files claiming the same realization is an error.
func Discover(patterns []string, re *regexp.Regexp, logger zerolog.Logger) ([]Entry, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)
	return entriesFrom(paths, re, logger)
}

// DiscoverOutputs lists the tables stored under prefix whose extension is
// ext and whose name carries a realization index.
func DiscoverOutputs(ctx context.Context, backend storage.Backend, prefix, ext string, re *regexp.Regexp, logger zerolog.Logger) ([]Entry, error) {
	files, err := backend.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", backend.URI(prefix), err)
	}
	var paths []string
	for _, f := range files {
		if strings.EqualFold(path.Ext(f), ext) {
			paths = append(paths, f)
		}
	}
	return entriesFrom(paths, re, logger)
}

func entriesFrom(paths []string, re *regexp.Regexp, logger zerolog.Logger) ([]Entry, error) {
	entries := make([]Entry, 0, len(paths))
	owner := make(map[int]string)
	for _, p := range paths {
		real, ok := RealizationOf(p, re)
		if !ok {
			logger.Debug().Str("path", p).Msg("No realization index in path, skipping")
			continue
		}
		if prev, dup := owner[real]; dup {
			return nil, fmt.Errorf("realization %d matched by both %s and %s", real, prev, p)
		}
		owner[real] = p
		entries = append(entries, Entry{Realization: real, Path: p})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Realization < entries[j].Realization
	})
	return entries, nil
}
