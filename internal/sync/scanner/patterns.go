package scanner

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	ignore "github.com/sabhiram/go-gitignore"
)

// PatternMatcher decides whether a slash-separated path relative to the
// scan base is excluded from scanning.
type PatternMatcher struct {
	excludes []string
	ignore   *ignore.GitIgnore
}

// NewPatternMatcher validates exclude globs and returns a matcher.
func NewPatternMatcher(excludes []string) (*PatternMatcher, error) {
	for i, pattern := range excludes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, &PatternError{Pattern: pattern, Index: i, Err: doublestar.ErrBadPattern}
		}
	}
	return &PatternMatcher{excludes: append([]string(nil), excludes...)}, nil
}

// LoadIgnoreFile compiles gitignore-style rules from name on filesystem.
// A missing file is not an error.
func (pm *PatternMatcher) LoadIgnoreFile(filesystem billy.Filesystem, name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	data, err := util.ReadFile(filesystem, name)
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read ignore file %s: %w", name, err)
	}
	pm.ignore = ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
	return true, nil
}

// Excluded reports whether relPath matches an exclude glob or the ignore file.
func (pm *PatternMatcher) Excluded(relPath string) bool {
	for _, pattern := range pm.excludes {
		// patterns were validated in NewPatternMatcher
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	return pm.ignore != nil && pm.ignore.MatchesPath(relPath)
}

// PatternError represents an error with a pattern.
type PatternError struct {
	Pattern string
	Index   int
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern at index %d '%s': %v", e.Index, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}
