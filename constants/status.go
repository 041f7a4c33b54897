package constants

// TaskStatus is the canonical status of a verification task record.
type TaskStatus string

// Stable values (returned verbatim by the poll endpoint).
const (
	TaskStatusQueued     TaskStatus = "queued"     // accepted, waiting for a worker
	TaskStatusProcessing TaskStatus = "processing" // a worker owns it
	TaskStatusCompleted  TaskStatus = "completed"  // outcome available (verified or not)
	TaskStatusFailed     TaskStatus = "failed"     // terminal infrastructure failure
)

// StatusNotFound is reported by pollers for unknown or expired task ids.
const StatusNotFound = "not_found"

// IsTerminal reports whether no further transition is possible from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// rank orders statuses along the only allowed direction of travel.
func (s TaskStatus) rank() int {
	switch s {
	case TaskStatusQueued:
		return 0
	case TaskStatusProcessing:
		return 1
	case TaskStatusCompleted, TaskStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a record in status s may move to next.
// queued may fail directly (shutdown before dequeue); terminal states never move.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s.IsTerminal() || next.rank() < 0 || s.rank() < 0 {
		return false
	}
	if s == TaskStatusQueued && next == TaskStatusCompleted {
		return false
	}
	return next.rank() > s.rank()
}

// Error codes stored on failed task records.
const (
	ErrCodeEngineUnavailable = "ENGINE_UNAVAILABLE"
	ErrCodeExtractionEmpty   = "EXTRACTION_EMPTY"
	ErrCodeExtractionFailed  = "EXTRACTION_FAILED"
	ErrCodeInvalidImage      = "INVALID_IMAGE"
	ErrCodeTimeout           = "TASK_TIMEOUT"
	ErrCodeShuttingDown      = "SHUTTING_DOWN"
	ErrCodeInternal          = "INTERNAL"
)
