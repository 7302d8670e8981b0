package status

import "time"

// Phase is the outcome of the last attempt for a source
type Phase string

const (
	// PhaseSucceeded means the last fetch succeeded and, for cacheable
	// sources, was stored
	PhaseSucceeded Phase = "Succeeded"

	// PhaseFailed means the last fetch or cache write failed
	PhaseFailed Phase = "Failed"
)

// SourceStatus represents the state of one source after the last run
type SourceStatus struct {
	// Phase is the outcome of the last attempt
	Phase Phase `json:"phase"`

	// Message describes the failure of the last attempt
	Message string `json:"message,omitempty"`

	// LastAttempt is the timestamp of the last attempt
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// LastSuccess is the timestamp of the last successful attempt
	// It survives failed attempts
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`

	// Bytes is the size of the content of the last successful attempt
	Bytes int `json:"bytes,omitempty"`
}

// Record returns the status following prev after an attempt at now. A nil
// err is a success of size bytes. A failure keeps LastSuccess and Bytes
// from prev.
func Record(prev *SourceStatus, now time.Time, bytes int, err error) *SourceStatus {
	attempt := now
	next := &SourceStatus{LastAttempt: &attempt}

	if err == nil {
		success := now
		next.Phase = PhaseSucceeded
		next.LastSuccess = &success
		next.Bytes = bytes
		return next
	}

	next.Phase = PhaseFailed
	next.Message = err.Error()
	if prev != nil {
		next.LastSuccess = prev.LastSuccess
		next.Bytes = prev.Bytes
	}
	return next
}
