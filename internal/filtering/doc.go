// Package filtering selects which configured sources take part in a run.
//
// Sources are matched by name with glob patterns and by class with exact
// comparison. Exclude rules take precedence over include rules:
//
//  1. A source matching any exclude rule is dropped
//  2. When include rules exist, a source must match one of them
//  3. Without rules every source is kept
//
// A source must pass both the name and the class filter. Filtering keeps the
// registry order, so the merged document lists the remaining sources in the
// order they were declared.
//
//	filter := &config.FilterConfig{
//		Names:   &config.NameFilterConfig{Exclude: []string{"*-beta"}},
//		Classes: &config.ClassFilterConfig{Include: []string{"cacheable"}},
//	}
//	selected, err := filtering.NewDefaultFilterService().ApplyFilters(ctx, reg, filter)
package filtering
