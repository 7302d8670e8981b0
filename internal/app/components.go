package app

import (
	"github.com/stacklok/rewrite-sync/internal/pipeline"
	"github.com/stacklok/rewrite-sync/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Runner executes sync runs
	Runner *pipeline.Runner

	// Telemetry holds the tracer and meter providers, flushed on Close
	Telemetry *telemetry.Telemetry
}
