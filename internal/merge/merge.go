// Package merge concatenates cached and freshly fetched rule documents into
// one document with a provenance header.
package merge

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacklok/rewrite-sync/internal/cache"
	"github.com/stacklok/rewrite-sync/internal/registry"
	"github.com/stacklok/rewrite-sync/internal/sources"
)

// TimestampLayout is the format of timestamps in generated documents
const TimestampLayout = "2006-01-02 15:04:05"

// Origin tells where the content of a section came from
type Origin string

const (
	// OriginCache is a section read from the local cache
	OriginCache Origin = "cache"

	// OriginFetch is a section taken from a fetch of this run
	OriginFetch Origin = "fetch"
)

// Labels are the fixed texts of the provenance header
type Labels struct {
	Title   string
	Updated string
	Sources string
}

// Section records one source included in the document
type Section struct {
	Name   string
	Origin Origin
	Bytes  int
}

// Document is the merged output, held in memory until published
type Document struct {
	GeneratedAt time.Time
	Content     []byte
	Sections    []Section
}

// SectionNames returns the names of the included sections in order
func (d *Document) SectionNames() []string {
	names := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		names = append(names, s.Name)
	}
	return names
}

// Merger builds merged documents
type Merger struct {
	labels Labels
}

// NewMerger creates a merger that writes the given header labels
func NewMerger(labels Labels) *Merger {
	return &Merger{labels: labels}
}

// Merge builds the document: the header lists every source (cacheable
// first, then direct), followed by one section per cached cacheable source
// and one per successful direct fetch, each group in registry order.
// Missing cache entries and failed fetches are skipped. The output depends
// only on the inputs and now.
func (m *Merger) Merge(
	ctx context.Context,
	reg *registry.Registry,
	store cache.Store,
	direct []sources.FetchResult,
	now time.Time,
) (*Document, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}

	var buf bytes.Buffer
	doc := &Document{GeneratedAt: now}

	fmt.Fprintf(&buf, "# %s\n", m.labels.Title)
	fmt.Fprintf(&buf, "# %s%s\n", m.labels.Updated, now.Format(TimestampLayout))
	fmt.Fprintf(&buf, "# %s\n", m.labels.Sources)
	for _, src := range reg.Ordered() {
		fmt.Fprintf(&buf, "# %s: %s\n", src.Name, src.URL)
	}

	for _, src := range reg.Cacheable() {
		content, ok, err := store.Load(ctx, src.Name)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to read cache entry, skipping section", "source", src.Name, "error", err)
			continue
		}
		if !ok {
			slog.WarnContext(ctx, "No cache entry, skipping section", "source", src.Name)
			continue
		}
		writeSection(&buf, src.Name, content)
		doc.Sections = append(doc.Sections, Section{Name: src.Name, Origin: OriginCache, Bytes: len(content)})
	}

	results := sources.Index(direct)
	for _, src := range reg.Direct() {
		result, ok := results[src.Name]
		if !ok {
			slog.WarnContext(ctx, "No fetch result, skipping section", "source", src.Name)
			continue
		}
		if !result.OK() {
			slog.WarnContext(ctx, "Fetch failed, skipping section", "source", src.Name, "error", result.Err)
			continue
		}
		writeSection(&buf, src.Name, result.Content)
		doc.Sections = append(doc.Sections, Section{Name: src.Name, Origin: OriginFetch, Bytes: len(result.Content)})
	}

	doc.Content = buf.Bytes()
	return doc, nil
}

// writeSection appends a delimited section. Content is copied verbatim and
// terminated with a newline unless it already ends with one, so "r1\n" is
// followed by one blank line, not the two an unconditional newline would give.
func writeSection(buf *bytes.Buffer, name string, content []byte) {
	fmt.Fprintf(buf, "\n# ======== %s ========\n", name)
	buf.Write(content)
	if !bytes.HasSuffix(content, []byte("\n")) {
		buf.WriteByte('\n')
	}
}
