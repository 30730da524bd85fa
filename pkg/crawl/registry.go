package crawl

import (
	"sync"
	"time"

	"rag-crawl/pkg/config"
	"rag-crawl/pkg/models"
)

// Task represents one in-flight crawl. The task identifier is issued by the
// external engine when it acknowledges the start request.
type Task struct {
	ID        string             `json:"id"`
	Config    config.CrawlConfig `json:"config"`
	State     models.TaskState   `json:"state"`
	CreatedAt time.Time          `json:"created_at"`
}

// TaskRegistry is the single authoritative in-memory map of running crawl
// tasks. The streaming consumer and lifecycle-control requests mutate it
// concurrently, so every access is synchronized.
type TaskRegistry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewTaskRegistry creates an empty registry
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks: make(map[string]*Task),
	}
}

// Register adds a task under its engine-issued identifier, in the starting
// state. Re-registering an existing ID replaces the handle.
func (r *TaskRegistry) Register(taskID string, cfg config.CrawlConfig) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	task := &Task{
		ID:        taskID,
		Config:    cfg,
		State:     models.TaskStateStarting,
		CreatedAt: time.Now(),
	}
	r.tasks[taskID] = task
	return task
}

// MarkRunning transitions a starting task to running. Any other state
// (paused, terminal) is left untouched, so a pause issued before the first
// page event is not clobbered. Returns false when the task is unknown.
func (r *TaskRegistry) MarkRunning(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, exists := r.tasks[taskID]
	if !exists {
		return false
	}
	if task.State == models.TaskStateStarting {
		task.State = models.TaskStateRunning
	}
	return true
}

// Get retrieves a task by ID, or nil when unknown
func (r *TaskRegistry) Get(taskID string) *Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tasks[taskID]
}

// SetState transitions a task's lifecycle state.
// Returns false when the task is unknown.
func (r *TaskRegistry) SetState(taskID string, state models.TaskState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, exists := r.tasks[taskID]
	if !exists {
		return false
	}
	task.State = state
	return true
}

// Remove deletes a task from the registry.
// Returns false when the task is unknown.
func (r *TaskRegistry) Remove(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[taskID]; !exists {
		return false
	}
	delete(r.tasks, taskID)
	return true
}

// List returns a snapshot of all registered tasks
func (r *TaskRegistry) List() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]*Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		tasks = append(tasks, task)
	}
	return tasks
}

// Len returns the number of registered tasks
func (r *TaskRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
