package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-crawl/pkg/config"
	"rag-crawl/pkg/models"
	"rag-crawl/pkg/utils"
)

// fakeIngestor records the pages handed to it and optionally fails every call
type fakeIngestor struct {
	mu     sync.Mutex
	pages  []*models.PageData
	nextID uint64
	fail   bool
}

func (f *fakeIngestor) IngestPage(_ context.Context, page *models.PageData, namespace, taskID string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("%w: simulated", utils.ErrDatabase)
	}
	f.pages = append(f.pages, page)
	f.nextID++
	return &models.Document{ID: f.nextID, Namespace: namespace, CrawlTaskID: taskID}, nil
}

func (f *fakeIngestor) pageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pages)
}

func testAppConfig(engineURL string) *config.AppConfig {
	cfg := &config.AppConfig{
		Engine: config.EngineConfig{BaseURL: engineURL},
	}
	if _, err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func newTestService(t *testing.T, engineURL string, ingestor PageIngestor) *Service {
	t.Helper()
	appCfg := testAppConfig(engineURL)
	engine := NewEngineClient(appCfg.Engine, testLogger())
	return NewService(appCfg, engine, ingestor, testLogger())
}

// sseHandler writes the given stream lines with SSE flushing
func sseHandler(lines []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			_, _ = fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
		}
	}
}

func collectEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestStartCrawl_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(sseHandler([]string{
		`data: {"type":"crawl_started","task_id":"t1"}`,
		`: comment line ignored`,
		`data: {"type":"page_complete","page":{"url":"https://example.com/a","title":"A","markdown":"Page content here.","depth":0}}`,
		`data: {"type":"progress","processed":1,"total":3}`,
		`data: {"type":"page_complete","page":{"url":"https://example.com/b","title":"B","markdown":"Other page content.","depth":1}}`,
		`data: {"type":"crawl_complete"}`,
	}))
	defer srv.Close()

	ingestor := &fakeIngestor{}
	svc := newTestService(t, srv.URL, ingestor)

	events, err := svc.StartCrawl(context.Background(), &config.CrawlConfig{URL: "https://example.com"})
	require.NoError(t, err)

	got := collectEvents(t, events)
	require.Len(t, got, 5)

	assert.Equal(t, EventCrawlStarted, got[0].Type)
	assert.Equal(t, "t1", got[0].TaskID)

	assert.Equal(t, EventPageComplete, got[1].Type)
	assert.Equal(t, uint64(1), got[1].DocumentID)
	require.NotNil(t, got[1].Page)
	assert.Equal(t, "https://example.com/a", got[1].Page.URL)

	assert.Equal(t, EventProgress, got[2].Type)
	assert.Equal(t, 1, got[2].Processed)
	assert.Equal(t, 3, got[2].Total)

	assert.Equal(t, EventPageComplete, got[3].Type)
	assert.Equal(t, uint64(2), got[3].DocumentID)

	assert.Equal(t, EventCrawlComplete, got[4].Type)

	// Both pages were ingested before their events were relayed
	assert.Equal(t, 2, ingestor.pageCount())

	// Completed crawls leave the registry
	assert.Equal(t, 0, svc.Registry().Len())
}

func TestStartCrawl_MalformedRecordSkipped(t *testing.T) {
	srv := httptest.NewServer(sseHandler([]string{
		`data: {"type":"crawl_started","task_id":"t1"}`,
		`data: {"type":"page_complete","page":{"url":"https://example.com/a","title":"A","markdown":"First page.","depth":0}}`,
		`data: {not valid json`,
		`data: {"type":"page_complete","page":{"url":"https://example.com/b","title":"B","markdown":"Second page.","depth":1}}`,
		`data: {"type":"crawl_complete"}`,
	}))
	defer srv.Close()

	ingestor := &fakeIngestor{}
	svc := newTestService(t, srv.URL, ingestor)
	events, err := svc.StartCrawl(context.Background(), &config.CrawlConfig{URL: "https://example.com"})
	require.NoError(t, err)

	got := collectEvents(t, events)
	require.Len(t, got, 4)
	assert.Equal(t, EventCrawlStarted, got[0].Type)
	assert.Equal(t, EventPageComplete, got[1].Type)
	assert.Equal(t, EventPageComplete, got[2].Type)
	assert.Equal(t, EventCrawlComplete, got[3].Type)

	// The page after the bad record is still ingested
	assert.Equal(t, 2, ingestor.pageCount())
	assert.Equal(t, "https://example.com/b", got[2].Page.URL)
}

func TestStartCrawl_StreamEndsWithoutComplete(t *testing.T) {
	srv := httptest.NewServer(sseHandler([]string{
		`data: {"type":"crawl_started","task_id":"t1"}`,
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeIngestor{})
	events, err := svc.StartCrawl(context.Background(), &config.CrawlConfig{URL: "https://example.com"})
	require.NoError(t, err)

	got := collectEvents(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, EventCrawlStarted, got[0].Type)
	assert.Equal(t, EventError, got[1].Type)
	assert.NotEmpty(t, got[1].Message)
	assert.NotEmpty(t, got[1].Timestamp)

	assert.Equal(t, 0, svc.Registry().Len())
}

func TestStartCrawl_PageIngestFailureKeepsCrawlAlive(t *testing.T) {
	srv := httptest.NewServer(sseHandler([]string{
		`data: {"type":"crawl_started","task_id":"t1"}`,
		`data: {"type":"page_complete","page":{"url":"https://example.com/a","title":"A","markdown":"content","depth":0}}`,
		`data: {"type":"crawl_complete"}`,
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeIngestor{fail: true})
	events, err := svc.StartCrawl(context.Background(), &config.CrawlConfig{URL: "https://example.com"})
	require.NoError(t, err)

	got := collectEvents(t, events)
	// The failed page's event is withheld: page_complete implies persisted
	require.Len(t, got, 2)
	assert.Equal(t, EventCrawlStarted, got[0].Type)
	assert.Equal(t, EventCrawlComplete, got[1].Type)
}

func TestStartCrawl_EngineErrorRecordRelayedNonTerminal(t *testing.T) {
	srv := httptest.NewServer(sseHandler([]string{
		`data: {"type":"crawl_started","task_id":"t1"}`,
		`data: {"type":"error","message":"page fetch failed"}`,
		`data: {"type":"crawl_complete"}`,
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeIngestor{})
	events, err := svc.StartCrawl(context.Background(), &config.CrawlConfig{URL: "https://example.com"})
	require.NoError(t, err)

	got := collectEvents(t, events)
	require.Len(t, got, 3)
	assert.Equal(t, EventError, got[1].Type)
	assert.Equal(t, "page fetch failed", got[1].Message)
	assert.Equal(t, EventCrawlComplete, got[2].Type)
}

func TestStartCrawl_TaskStartsInStartingStateThenRuns(t *testing.T) {
	releasePage := make(chan struct{})
	releaseComplete := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: %s\n", `{"type":"crawl_started","task_id":"t1"}`)
		flusher.Flush()
		<-releasePage
		fmt.Fprintf(w, "data: %s\n", `{"type":"page_complete","page":{"url":"https://example.com/a","title":"A","markdown":"content","depth":0}}`)
		flusher.Flush()
		<-releaseComplete
		fmt.Fprintf(w, "data: %s\n", `{"type":"crawl_complete"}`)
		flusher.Flush()
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeIngestor{})
	events, err := svc.StartCrawl(context.Background(), &config.CrawlConfig{URL: "https://example.com"})
	require.NoError(t, err)

	// First the engine acknowledgement, registered as starting
	ev := <-events
	assert.Equal(t, EventCrawlStarted, ev.Type)
	task := svc.Registry().Get("t1")
	require.NotNil(t, task)
	assert.Equal(t, models.TaskStateStarting, task.State)

	// The first page event transitions the task to running
	close(releasePage)
	ev = <-events
	assert.Equal(t, EventPageComplete, ev.Type)
	assert.Equal(t, models.TaskStateRunning, svc.Registry().Get("t1").State)

	close(releaseComplete)
	collectEvents(t, events)
}

func TestStartCrawl_UnsafeURLYieldsSingleErrorEvent(t *testing.T) {
	svc := newTestService(t, "http://unused.invalid", &fakeIngestor{})

	events, err := svc.StartCrawl(context.Background(), &config.CrawlConfig{URL: "http://169.254.169.254/latest"})
	require.NoError(t, err)

	got := collectEvents(t, events)
	require.Len(t, got, 1)
	assert.Equal(t, EventError, got[0].Type)
	assert.Contains(t, got[0].Message, utils.ErrURLBlocked.Error())
	assert.Contains(t, got[0].Message, "169.254.169.254")
}

func TestStartCrawl_ValidationErrorIsSynchronous(t *testing.T) {
	svc := newTestService(t, "http://unused.invalid", &fakeIngestor{})

	_, err := svc.StartCrawl(context.Background(), &config.CrawlConfig{URL: "https://example.com", MaxDepth: 99})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestStartCrawl_ConcurrencyCap(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = fmt.Fprintf(w, "data: {\"type\":\"crawl_started\",\"task_id\":\"slow\"}\n")
		flusher.Flush()
		<-release
		_, _ = fmt.Fprintf(w, "data: {\"type\":\"crawl_complete\"}\n")
	}))
	defer srv.Close()
	defer close(release)

	appCfg := testAppConfig(srv.URL)
	appCfg.MaxConcurrentCrawls = 1
	engine := NewEngineClient(appCfg.Engine, testLogger())
	svc := NewService(appCfg, engine, &fakeIngestor{}, testLogger())

	events, err := svc.StartCrawl(context.Background(), &config.CrawlConfig{URL: "https://example.com"})
	require.NoError(t, err)

	// Wait for the first crawl to occupy its slot
	select {
	case ev := <-events:
		require.Equal(t, EventCrawlStarted, ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("first crawl never started")
	}

	_, err = svc.StartCrawl(context.Background(), &config.CrawlConfig{URL: "https://example.org"})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrTooManyCrawls)
}

func TestStopCrawl_UnknownTask(t *testing.T) {
	svc := newTestService(t, "http://unused.invalid", &fakeIngestor{})
	_, err := svc.StopCrawl(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrTaskNotFound)
}

func TestStopCrawl_RemovesRegistryEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/crawl/stop/") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"stopped"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeIngestor{})
	svc.Registry().Register("t1", config.CrawlConfig{URL: "https://example.com"})

	result, err := svc.StopCrawl(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "stopped", result["status"])
	assert.Nil(t, svc.Registry().Get("t1"))
}

func TestPauseResume_UpdateState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeIngestor{})
	svc.Registry().Register("t1", config.CrawlConfig{URL: "https://example.com"})

	_, err := svc.PauseCrawl(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatePaused, svc.Registry().Get("t1").State)

	_, err = svc.ResumeCrawl(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStateRunning, svc.Registry().Get("t1").State)
}

func TestStopAll(t *testing.T) {
	var stops []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stops = append(stops, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"stopped"}`))
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, &fakeIngestor{})
	svc.Registry().Register("t1", config.CrawlConfig{})
	svc.Registry().Register("t2", config.CrawlConfig{})

	stopped, err := svc.StopAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stopped)
	assert.Equal(t, 0, svc.Registry().Len())

	mu.Lock()
	assert.Len(t, stops, 2)
	mu.Unlock()
}
