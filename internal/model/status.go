package model

// JobStatus represents the lifecycle state of a download job
type JobStatus string

const (
	// JobStatusQueued means the job is accepted but not started
	JobStatusQueued JobStatus = "queued"

	// JobStatusProcessing means the media engine is working on the job
	JobStatusProcessing JobStatus = "processing"

	// JobStatusCompleted means the job finished successfully
	JobStatusCompleted JobStatus = "completed"

	// JobStatusFailed means the job failed with an error
	JobStatusFailed JobStatus = "failed"
)

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsValid returns true for the four known statuses
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// IsActive returns true if the job is being executed
func (s JobStatus) IsActive() bool {
	return s == JobStatusProcessing
}

// IsFinished returns true if the job is in a terminal state (completed or failed)
func (s JobStatus) IsFinished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Rank orders statuses along the state machine. Terminal statuses share the top rank.
func (s JobStatus) Rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether next is reachable from s.
// Re-asserting the current non-terminal status is allowed.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsFinished() {
		return false
	}
	switch s {
	case JobStatusQueued:
		return next == JobStatusQueued || next == JobStatusProcessing || next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusProcessing || next == JobStatusCompleted || next == JobStatusFailed
	}
	return false
}
