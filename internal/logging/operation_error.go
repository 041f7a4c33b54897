package logging

import "fmt"

// OperationError annotates an error with the operation and task it came from.
type OperationError struct {
	Operation string
	TaskID    string
	Err       error
}

func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.TaskID != "" {
		return fmt.Sprintf("%s (task_id=%s): %v", e.Operation, e.TaskID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps err with structured context; nil stays nil.
func NewOperationError(operation, taskID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, TaskID: taskID, Err: err}
}
