package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/rewrite-sync/internal/registry"
	"github.com/stacklok/rewrite-sync/internal/sources"
)

// SourceOutcome is what happened to one source during a run
type SourceOutcome struct {
	Name     string
	Class    registry.Class
	Bytes    int
	Duration time.Duration

	// FetchErr is set when the download failed
	FetchErr *sources.FetchError

	// CacheErr is set when a cacheable download could not be stored
	CacheErr error
}

// Err returns the first failure of the source, or nil
func (o SourceOutcome) Err() error {
	if o.FetchErr != nil {
		return o.FetchErr
	}
	return o.CacheErr
}

// RunReport summarizes a run
type RunReport struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time

	// Sources holds one outcome per registry entry in declaration order
	Sources []SourceOutcome

	// Sections are the source names included in the merged document
	Sections []string

	// Published is true when the publish step completed
	Published bool

	// Err is the error that ended the run, if any
	Err error
}

// Failed returns the outcomes that have an error
func (r *RunReport) Failed() []SourceOutcome {
	var failed []SourceOutcome
	for _, o := range r.Sources {
		if o.Err() != nil {
			failed = append(failed, o)
		}
	}
	return failed
}
