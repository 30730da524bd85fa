package crawl

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-crawl/pkg/config"
	"rag-crawl/pkg/models"
)

func TestTaskRegistry_RegisterAndGet(t *testing.T) {
	r := NewTaskRegistry()
	cfg := config.CrawlConfig{URL: "https://example.com", Namespace: "docs"}

	task := r.Register("task-1", cfg)
	require.NotNil(t, task)
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, models.TaskStateStarting, task.State)
	assert.False(t, task.CreatedAt.IsZero())

	got := r.Get("task-1")
	require.NotNil(t, got)
	assert.Equal(t, "https://example.com", got.Config.URL)

	assert.Nil(t, r.Get("unknown"))
}

func TestTaskRegistry_SetState(t *testing.T) {
	r := NewTaskRegistry()
	r.Register("task-1", config.CrawlConfig{})

	assert.True(t, r.SetState("task-1", models.TaskStatePaused))
	assert.Equal(t, models.TaskStatePaused, r.Get("task-1").State)

	assert.False(t, r.SetState("unknown", models.TaskStateStopped))
}

func TestTaskRegistry_MarkRunning(t *testing.T) {
	r := NewTaskRegistry()
	r.Register("task-1", config.CrawlConfig{})

	assert.True(t, r.MarkRunning("task-1"))
	assert.Equal(t, models.TaskStateRunning, r.Get("task-1").State)

	// Only the starting state transitions; a pause is preserved
	r.SetState("task-1", models.TaskStatePaused)
	assert.True(t, r.MarkRunning("task-1"))
	assert.Equal(t, models.TaskStatePaused, r.Get("task-1").State)

	assert.False(t, r.MarkRunning("unknown"))
}

func TestTaskRegistry_Remove(t *testing.T) {
	r := NewTaskRegistry()
	r.Register("task-1", config.CrawlConfig{})

	assert.True(t, r.Remove("task-1"))
	assert.Nil(t, r.Get("task-1"))
	assert.False(t, r.Remove("task-1"))
}

func TestTaskRegistry_ListAndLen(t *testing.T) {
	r := NewTaskRegistry()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.List())

	r.Register("a", config.CrawlConfig{URL: "https://a.example.com"})
	r.Register("b", config.CrawlConfig{URL: "https://b.example.com"})

	assert.Equal(t, 2, r.Len())

	ids := map[string]bool{}
	for _, task := range r.List() {
		ids[task.ID] = true
	}
	assert.True(t, ids["a"])
	assert.True(t, ids["b"])
}

func TestTaskRegistry_ReRegisterReplaces(t *testing.T) {
	r := NewTaskRegistry()
	r.Register("task-1", config.CrawlConfig{URL: "https://old.example.com"})
	r.Register("task-1", config.CrawlConfig{URL: "https://new.example.com"})

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "https://new.example.com", r.Get("task-1").Config.URL)
}

func TestTaskRegistry_ConcurrentAccess(t *testing.T) {
	r := NewTaskRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%26))
			r.Register(id, config.CrawlConfig{})
			r.SetState(id, models.TaskStateRunning)
			_ = r.Get(id)
			_ = r.List()
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, r.Len(), 26)
}
