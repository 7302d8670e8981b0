package filtering

import (
	"fmt"

	"github.com/gobwas/glob"
)

// NameFilter handles name-based filtering using glob patterns
type NameFilter interface {
	// ShouldInclude reports whether a source name passes the include/exclude
	// patterns, together with the reason
	ShouldInclude(name string, include, exclude []string) (bool, string)
}

// defaultNameFilter implements name filtering using glob patterns
type defaultNameFilter struct{}

var _ NameFilter = (*defaultNameFilter)(nil)

// NewDefaultNameFilter creates a new defaultNameFilter
func NewDefaultNameFilter() NameFilter {
	return &defaultNameFilter{}
}

// ValidatePattern reports whether pattern is a usable glob
func ValidatePattern(pattern string) error {
	_, err := compile(pattern)
	return err
}

func compile(pattern string) (glob.Glob, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	return g, nil
}

func matchPattern(pattern, name string) (bool, error) {
	g, err := compile(pattern)
	if err != nil {
		return false, err
	}
	return g.Match(name), nil
}

// ShouldInclude applies exclude patterns first, then include patterns.
// Without include patterns every name not excluded passes.
func (*defaultNameFilter) ShouldInclude(name string, include, exclude []string) (bool, string) {
	for _, pattern := range exclude {
		matches, err := matchPattern(pattern, name)
		if err != nil {
			return false, err.Error()
		}
		if matches {
			return false, fmt.Sprintf("excluded by pattern '%s'", pattern)
		}
	}

	if len(include) == 0 {
		if len(exclude) > 0 {
			return true, fmt.Sprintf("no match in exclude patterns %v", exclude)
		}
		return true, "no name filters specified"
	}

	for _, pattern := range include {
		matches, err := matchPattern(pattern, name)
		if err != nil {
			return false, err.Error()
		}
		if matches {
			return true, fmt.Sprintf("included by pattern '%s'", pattern)
		}
	}
	return false, fmt.Sprintf("no match found in include patterns %v", include)
}
