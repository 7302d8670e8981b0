// Package pipeline runs one synchronization: fetch every source, refresh the
// cache, merge, render the summary, publish and record per-source status.
//
// Fetches run concurrently and are joined before anything is written. A
// failing source only loses its own section; cacheable sources fall back to
// their last cached snapshot. Only a publish failure fails the run.
package pipeline
