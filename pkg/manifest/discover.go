// Package manifest discovers Kubernetes manifest files by glob pattern
// and renders them as Go templates before they are applied.
package manifest

import (
	"fmt"
	"io/fs"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// Discover returns the files under fsys matched by the include patterns
// and not by the exclude patterns, sorted and de-duplicated. Directories
// are skipped.
func Discover(fsys fs.FS, include, exclude []string) ([]string, error) {
	included, err := glob(fsys, include)
	if err != nil {
		return nil, fmt.Errorf("include filter: %w", err)
	}

	excluded, err := glob(fsys, exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude filter: %w", err)
	}

	var result []string
	for _, f := range included {
		info, err := fs.Stat(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", f, err)
		}
		if info.IsDir() {
			continue
		}
		if slices.Contains(excluded, f) {
			continue
		}
		result = append(result, f)
	}
	return result, nil
}

func glob(fsys fs.FS, patterns []string) ([]string, error) {
	var result []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		result = append(result, matches...)
	}
	slices.Sort(result)
	return slices.Compact(result), nil
}
