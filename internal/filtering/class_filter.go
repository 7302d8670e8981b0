package filtering

import (
	"fmt"
	"slices"

	"github.com/stacklok/rewrite-sync/internal/registry"
)

// ClassFilter handles filtering on the source class
type ClassFilter interface {
	// ShouldInclude reports whether a source class passes the include/exclude
	// lists, together with the reason
	ShouldInclude(class registry.Class, include, exclude []string) (bool, string)
}

// DefaultClassFilter compares classes by exact value
type DefaultClassFilter struct{}

// NewDefaultClassFilter creates a new DefaultClassFilter
func NewDefaultClassFilter() *DefaultClassFilter {
	return &DefaultClassFilter{}
}

// ShouldInclude applies the exclude list first, then the include list
func (*DefaultClassFilter) ShouldInclude(class registry.Class, include, exclude []string) (bool, string) {
	if slices.Contains(exclude, string(class)) {
		return false, fmt.Sprintf("excluded class '%s'", class)
	}

	if len(include) == 0 {
		return true, "no class filters specified"
	}
	if slices.Contains(include, string(class)) {
		return true, fmt.Sprintf("included class '%s'", class)
	}
	return false, fmt.Sprintf("class '%s' not in include list %v", class, include)
}
