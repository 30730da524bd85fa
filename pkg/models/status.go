package models

// TaskState represents the lifecycle state of a crawl task
type TaskState string

const (
	TaskStateUnset     TaskState = ""          // Zero value = unset/unknown
	TaskStateStarting  TaskState = "starting"  // Engine acknowledged, no page activity yet
	TaskStateRunning   TaskState = "running"   // Engine is crawling
	TaskStatePaused    TaskState = "paused"    // Paused via control request
	TaskStateCompleted TaskState = "completed" // Engine reported crawl_complete
	TaskStateStopped   TaskState = "stopped"   // Stopped via control request
	TaskStateFailed    TaskState = "failed"    // Terminated with an error
)

// String implements fmt.Stringer for logging
func (s TaskState) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsTerminal returns true if no further state transitions are possible
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateStopped, TaskStateFailed:
		return true
	}
	return false
}

// IsValid returns true if the state is a known operational value
func (s TaskState) IsValid() bool {
	switch s {
	case TaskStateStarting, TaskStateRunning, TaskStatePaused,
		TaskStateCompleted, TaskStateStopped, TaskStateFailed:
		return true
	}
	return false
}
