package filtering

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stacklok/rewrite-sync/internal/config"
	"github.com/stacklok/rewrite-sync/internal/registry"
)

// FilterService coordinates name and class filtering of a source registry
type FilterService interface {
	// ApplyFilters returns a registry holding only the sources that pass the
	// filter, in their original order
	ApplyFilters(ctx context.Context, reg *registry.Registry, filter *config.FilterConfig) (*registry.Registry, error)
}

// defaultFilterService implements filtering using name and class filters
type defaultFilterService struct {
	nameFilter  NameFilter
	classFilter ClassFilter
}

// NewDefaultFilterService creates a new defaultFilterService with default filter implementations
func NewDefaultFilterService() FilterService {
	return &defaultFilterService{
		nameFilter:  NewDefaultNameFilter(),
		classFilter: NewDefaultClassFilter(),
	}
}

// NewFilterService creates a new defaultFilterService with custom filter implementations
func NewFilterService(nameFilter NameFilter, classFilter ClassFilter) FilterService {
	return &defaultFilterService{
		nameFilter:  nameFilter,
		classFilter: classFilter,
	}
}

// ApplyFilters returns reg unchanged when filter is nil. It fails when the
// filter drops every source.
func (s *defaultFilterService) ApplyFilters(
	ctx context.Context,
	reg *registry.Registry,
	filter *config.FilterConfig,
) (*registry.Registry, error) {
	if filter == nil {
		return reg, nil
	}

	var nameInclude, nameExclude, classInclude, classExclude []string
	if filter.Names != nil {
		nameInclude, nameExclude = filter.Names.Include, filter.Names.Exclude
	}
	if filter.Classes != nil {
		classInclude, classExclude = filter.Classes.Include, filter.Classes.Exclude
	}

	kept := make([]registry.SourceDescriptor, 0, reg.Len())
	for _, src := range reg.All() {
		included, reason := s.nameFilter.ShouldInclude(src.Name, nameInclude, nameExclude)
		if included {
			included, reason = s.classFilter.ShouldInclude(src.Class, classInclude, classExclude)
		}

		if !included {
			slog.DebugContext(ctx, "Excluding source", "source", src.Name, "reason", reason)
			continue
		}
		slog.DebugContext(ctx, "Including source", "source", src.Name, "reason", reason)
		kept = append(kept, src)
	}

	if len(kept) == 0 {
		return nil, fmt.Errorf("filter excludes all %d sources", reg.Len())
	}

	slog.InfoContext(ctx, "Source filtering completed",
		"included", len(kept),
		"excluded", reg.Len()-len(kept),
	)
	return registry.New(kept...)
}
