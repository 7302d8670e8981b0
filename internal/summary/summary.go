// Package summary renders the human readable README that accompanies the
// merged rule document.
package summary

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
	"time"

	"github.com/stacklok/rewrite-sync/internal/merge"
	"github.com/stacklok/rewrite-sync/internal/registry"
)

//go:embed summary.md.tmpl
var summaryTemplate string

var tmpl = template.Must(template.New("summary").Parse(summaryTemplate))

type templateData struct {
	Title     string
	UpdatedAt string
	Cacheable []registry.SourceDescriptor
	Direct    []registry.SourceDescriptor
}

// Render produces the summary document for reg. The document is fully
// regenerated on every run.
func Render(reg *registry.Registry, title string, now time.Time) ([]byte, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{
		Title:     title,
		UpdatedAt: now.Format(merge.TimestampLayout),
		Cacheable: reg.Cacheable(),
		Direct:    reg.Direct(),
	}); err != nil {
		return nil, fmt.Errorf("failed to render summary: %w", err)
	}
	return buf.Bytes(), nil
}
