package crawl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"rag-crawl/pkg/config"
	"rag-crawl/pkg/models"
	"rag-crawl/pkg/parse"
	"rag-crawl/pkg/utils"
)

// dataPrefix marks the relevant lines on the engine's event stream
var dataPrefix = []byte("data: ")

// eventBufferSize bounds the relay channel; backpressure on a slow caller is
// the channel filling up
const eventBufferSize = 64

// PageIngestor turns a completed page into persisted, chunked content.
// Implemented by ingest.Pipeline.
type PageIngestor interface {
	IngestPage(ctx context.Context, page *models.PageData, namespace, taskID string) (*models.Document, error)
}

// Service drives crawls end-to-end: it validates the request, proxies it to
// the external engine, relays the engine's event stream as normalized events,
// and runs each completed page through the content pipeline before the
// corresponding page_complete event reaches the caller.
type Service struct {
	engine   *EngineClient
	registry *TaskRegistry
	ingestor PageIngestor
	appCfg   *config.AppConfig
	sem      *semaphore.Weighted // Caps concurrently active crawls
	log      *logrus.Entry
}

// NewService creates a crawl service
func NewService(appCfg *config.AppConfig, engine *EngineClient, ingestor PageIngestor, log *logrus.Entry) *Service {
	return &Service{
		engine:   engine,
		registry: NewTaskRegistry(),
		ingestor: ingestor,
		appCfg:   appCfg,
		sem:      semaphore.NewWeighted(int64(appCfg.MaxConcurrentCrawls)),
		log:      log,
	}
}

// Registry exposes the task registry for status surfaces
func (s *Service) Registry() *TaskRegistry {
	return s.registry
}

// StartCrawl validates cfg, opens a streaming request to the engine, and
// returns a channel of normalized events. The channel always ends with a
// terminal event (crawl_complete or error) and is then closed.
//
// Range violations and the concurrency cap are surfaced synchronously; an
// unsafe target URL yields a closed sequence containing a single error event.
func (s *Service) StartCrawl(ctx context.Context, cfg *config.CrawlConfig) (<-chan Event, error) {
	cfg.ApplyDefaults(s.appCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !parse.ValidateCrawlURL(cfg.URL) {
		blockedErr := fmt.Errorf("%w: %s", utils.ErrURLBlocked, cfg.URL)
		s.log.Warnf("Rejected crawl target (%s): %v", utils.CategorizeError(blockedErr), blockedErr)
		events := make(chan Event, 1)
		events <- errorEvent(blockedErr.Error())
		close(events)
		return events, nil
	}

	if !s.sem.TryAcquire(1) {
		return nil, fmt.Errorf("%w: %d crawls already running", utils.ErrTooManyCrawls, s.appCfg.MaxConcurrentCrawls)
	}

	events := make(chan Event, eventBufferSize)
	go func() {
		defer s.sem.Release(1)
		defer close(events)
		s.runStream(ctx, cfg, events)
	}()

	return events, nil
}

// runStream consumes the engine's event stream and relays normalized events.
// Event order within one crawl mirrors the engine exactly; page ingestion for
// a page happens before its page_complete event is emitted.
func (s *Service) runStream(ctx context.Context, cfg *config.CrawlConfig, events chan<- Event) {
	crawlLog := s.log.WithFields(logrus.Fields{"url": cfg.URL, "namespace": cfg.Namespace})

	body, err := s.engine.OpenStream(ctx, cfg)
	if err != nil {
		crawlLog.Errorf("Failed to open crawl stream (%s): %v", utils.CategorizeError(err), err)
		s.emit(ctx, events, errorEvent(err.Error()))
		return
	}
	defer body.Close()

	var taskID string
	completed := false
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024) // Engine pages can be large

	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}

		ev, err := parseEvent(line[len(dataPrefix):])
		if err != nil {
			// One bad record must not abort an otherwise healthy crawl
			crawlLog.Errorf("Skipping malformed stream record: %v, line: %s", err, string(line))
			continue
		}

		switch ev.Type {
		case EventCrawlStarted:
			taskID = ev.TaskID
			s.registry.Register(taskID, *cfg)
			crawlLog = crawlLog.WithField("task_id", taskID)
			crawlLog.Info("Crawl started")

		case EventPageComplete:
			if ev.Page == nil {
				crawlLog.Warn("page_complete record without page payload, skipping")
				continue
			}
			s.registry.MarkRunning(taskID)
			doc, ingestErr := s.ingestor.IngestPage(ctx, ev.Page, cfg.Namespace, taskID)
			if ingestErr != nil {
				// Page-scoped failure: log and keep the crawl flowing
				crawlLog.Errorf("Page processing failed (%s): %v", utils.CategorizeError(ingestErr), ingestErr)
				continue
			}
			ev.DocumentID = doc.ID
			crawlLog.Infof("Page processed: %s (document %d)", ev.Page.URL, doc.ID)

		case EventProgress:
			s.registry.MarkRunning(taskID)
			crawlLog.Debugf("Progress: %d/%d pages", ev.Processed, ev.Total)

		case EventError:
			// Relayed but non-terminal: the engine may recover
			crawlLog.Errorf("Engine reported error: %s", ev.Message)

		case EventCrawlComplete:
			crawlLog.Info("Crawl complete")

		default:
			crawlLog.Warnf("Unknown event type %q, relaying as-is", ev.Type)
		}

		if !s.emit(ctx, events, ev) {
			s.finishTask(taskID, models.TaskStateFailed)
			return
		}

		if ev.Type == EventCrawlComplete {
			completed = true
			break
		}
	}

	if completed {
		s.finishTask(taskID, models.TaskStateCompleted)
		return
	}

	// Transport-level failure: scanner error, timeout, or stream ended without
	// a crawl_complete record
	scanErr := scanner.Err()
	if scanErr == nil {
		scanErr = utils.ErrStreamClosed
	}
	crawlLog.Errorf("Crawl stream terminated (%s): %v", utils.CategorizeError(scanErr), scanErr)
	s.emit(ctx, events, errorEvent(scanErr.Error()))
	s.finishTask(taskID, models.TaskStateFailed)
}

// emit sends an event, honoring caller cancellation.
// Returns false when the context is done.
func (s *Service) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// finishTask records the terminal state and drops the registry entry
func (s *Service) finishTask(taskID string, state models.TaskState) {
	if taskID == "" {
		return
	}
	s.registry.SetState(taskID, state)
	s.registry.Remove(taskID)
}

// errorEvent synthesizes a terminal error event with a timestamp
func errorEvent(message string) Event {
	return Event{
		Type:      EventError,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// StopCrawl forwards a stop request for a registered task. The stream observes
// the effect asynchronously; the registry entry is dropped on acknowledgement.
func (s *Service) StopCrawl(ctx context.Context, taskID string) (map[string]any, error) {
	if s.registry.Get(taskID) == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrTaskNotFound, taskID)
	}
	result, err := s.engine.Stop(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.registry.SetState(taskID, models.TaskStateStopped)
	s.registry.Remove(taskID)
	s.log.Infof("Crawl task stopped: %s", taskID)
	return result, nil
}

// PauseCrawl forwards a pause request for a registered task
func (s *Service) PauseCrawl(ctx context.Context, taskID string) (map[string]any, error) {
	if s.registry.Get(taskID) == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrTaskNotFound, taskID)
	}
	result, err := s.engine.Pause(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.registry.SetState(taskID, models.TaskStatePaused)
	s.log.Infof("Crawl task paused: %s", taskID)
	return result, nil
}

// ResumeCrawl forwards a resume request for a registered task
func (s *Service) ResumeCrawl(ctx context.Context, taskID string) (map[string]any, error) {
	if s.registry.Get(taskID) == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrTaskNotFound, taskID)
	}
	result, err := s.engine.Resume(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.registry.SetState(taskID, models.TaskStateRunning)
	s.log.Infof("Crawl task resumed: %s", taskID)
	return result, nil
}

// TaskStatus forwards a status request for a single task
func (s *Service) TaskStatus(ctx context.Context, taskID string) (map[string]any, error) {
	return s.engine.Status(ctx, taskID)
}

// ActiveTasks forwards the engine's active-task listing
func (s *Service) ActiveTasks(ctx context.Context) (map[string]any, error) {
	return s.engine.Active(ctx)
}

// StopAll issues a stop for every registered task and empties the registry of
// those that acknowledge. Returns the count stopped and the first error seen.
func (s *Service) StopAll(ctx context.Context) (int, error) {
	var firstErr error
	stopped := 0
	for _, task := range s.registry.List() {
		if _, err := s.engine.Stop(ctx, task.ID); err != nil {
			s.log.Errorf("Failed to stop task %s: %v", task.ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.registry.SetState(task.ID, models.TaskStateStopped)
		s.registry.Remove(task.ID)
		stopped++
	}
	s.log.Infof("Stopped %d crawl tasks", stopped)
	return stopped, firstErr
}
