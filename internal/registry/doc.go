// Package registry defines the set of remote rule sources that feed a merge run.
//
// A Registry is an ordered, immutable list of SourceDescriptor values. The
// declaration order is significant: it is the order of the provenance header
// and of the sections in the merged document, independent of the order in
// which fetches complete.
//
// Every source belongs to exactly one Class:
//
//   - ClassCacheable: fetched and persisted to the local rule cache before the
//     merge. The cached copy is reused when a later fetch fails.
//   - ClassDirect: fetched on every run and merged straight from the response.
//     Never cached.
//
// A Registry is constructed once from configuration and passed explicitly to
// the fetcher, the merger and the summary renderer. There is no package-level
// registry state.
package registry
