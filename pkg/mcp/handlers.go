package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"rag-crawl/pkg/config"
	"rag-crawl/pkg/crawl"
)

// startAckTimeout bounds how long start_crawl waits for the engine to
// acknowledge before reporting a failure
const startAckTimeout = 60 * time.Second

// handleStartCrawl handles the start_crawl tool
func (s *Server) handleStartCrawl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urlStr := request.GetString("url", "")
	if urlStr == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	cfg := &config.CrawlConfig{
		URL:       urlStr,
		MaxDepth:  request.GetInt("max_depth", 0),
		MaxPages:  request.GetInt("max_pages", 0),
		Namespace: request.GetString("namespace", ""),
	}

	// The crawl outlives the tool call, so it runs on a background context.
	events, err := s.cfg.Service.StartCrawl(context.Background(), cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start crawl: %v", err)), nil
	}

	// Wait for the engine acknowledgment, then hand the rest of the stream to
	// a drain goroutine. Ingestion happens inside the service either way.
	ackTimer := time.NewTimer(startAckTimeout)
	defer ackTimer.Stop()

	select {
	case ev, ok := <-events:
		if !ok {
			return mcp.NewToolResultError("crawl stream closed before the engine acknowledged"), nil
		}
		if ev.Type == crawl.EventError {
			go s.drainEvents(events)
			return mcp.NewToolResultError(fmt.Sprintf("crawl failed: %s", ev.Message)), nil
		}
		go s.drainEvents(events)
		result := map[string]interface{}{
			"status":    "started",
			"task_id":   ev.TaskID,
			"url":       cfg.URL,
			"namespace": cfg.Namespace,
			"max_depth": cfg.MaxDepth,
			"max_pages": cfg.MaxPages,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	case <-ackTimer.C:
		go s.drainEvents(events)
		return mcp.NewToolResultError(fmt.Sprintf("engine did not acknowledge within %s", startAckTimeout)), nil
	case <-ctx.Done():
		go s.drainEvents(events)
		return mcp.NewToolResultError("tool call cancelled"), nil
	}
}

// drainEvents consumes a crawl's event stream so the relay never blocks.
// Page ingestion already happened by the time an event arrives here.
func (s *Server) drainEvents(events <-chan crawl.Event) {
	pages := 0
	for ev := range events {
		switch ev.Type {
		case crawl.EventPageComplete:
			pages++
		case crawl.EventError:
			s.log.Warnf("Crawl error event: %s", ev.Message)
		case crawl.EventCrawlComplete:
			s.log.Infof("Crawl complete: %d pages ingested", pages)
		}
	}
}

// handleStopCrawl handles the stop_crawl tool
func (s *Server) handleStopCrawl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := request.GetString("task_id", "")
	if taskID == "" {
		return mcp.NewToolResultError("task_id parameter is required"), nil
	}

	result, err := s.cfg.Service.StopCrawl(ctx, taskID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to stop crawl: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handlePauseCrawl handles the pause_crawl tool
func (s *Server) handlePauseCrawl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := request.GetString("task_id", "")
	if taskID == "" {
		return mcp.NewToolResultError("task_id parameter is required"), nil
	}

	result, err := s.cfg.Service.PauseCrawl(ctx, taskID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to pause crawl: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleResumeCrawl handles the resume_crawl tool
func (s *Server) handleResumeCrawl(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := request.GetString("task_id", "")
	if taskID == "" {
		return mcp.NewToolResultError("task_id parameter is required"), nil
	}

	result, err := s.cfg.Service.ResumeCrawl(ctx, taskID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to resume crawl: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCrawlStatus handles the crawl_status tool
func (s *Server) handleCrawlStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := request.GetString("task_id", "")
	if taskID == "" {
		return mcp.NewToolResultError("task_id parameter is required"), nil
	}

	result, err := s.cfg.Service.TaskStatus(ctx, taskID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get status: %v", err)), nil
	}

	if task := s.cfg.Service.Registry().Get(taskID); task != nil {
		result["local_state"] = task.State.String()
		result["started_at"] = task.CreatedAt.Format(time.RFC3339)
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListActiveCrawls handles the list_active_crawls tool
func (s *Server) handleListActiveCrawls(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks := s.cfg.Service.Registry().List()

	local := make([]map[string]interface{}, 0, len(tasks))
	for _, t := range tasks {
		local = append(local, map[string]interface{}{
			"task_id":    t.ID,
			"url":        t.Config.URL,
			"namespace":  t.Config.Namespace,
			"state":      t.State.String(),
			"started_at": t.CreatedAt.Format(time.RFC3339),
		})
	}

	result := map[string]interface{}{
		"tasks": local,
		"total": len(local),
	}

	// Engine-side view is best effort; the registry is authoritative for
	// tasks this process started.
	if engineView, err := s.cfg.Service.ActiveTasks(ctx); err == nil {
		result["engine"] = engineView
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleStopAllCrawls handles the stop_all_crawls tool
func (s *Server) handleStopAllCrawls(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stopped, err := s.cfg.Service.StopAll(ctx)
	result := map[string]interface{}{
		"stopped": stopped,
	}
	if err != nil {
		result["error"] = err.Error()
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListDocuments handles the list_documents tool
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	namespace := request.GetString("namespace", "")

	docs, err := s.cfg.Store.ListDocuments(namespace)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list documents: %v", err)), nil
	}

	list := make([]map[string]interface{}, 0, len(docs))
	for _, d := range docs {
		list = append(list, map[string]interface{}{
			"id":           d.ID,
			"title":        d.Title,
			"source_type":  d.SourceType,
			"source_url":   d.SourceURL,
			"namespace":    d.Namespace,
			"chunks_count": d.ChunksCount,
			"created_at":   d.CreatedAt.Format(time.RFC3339),
		})
	}

	result := map[string]interface{}{
		"documents": list,
		"total":     len(list),
	}
	if namespace != "" {
		result["namespace"] = namespace
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetDocument handles the get_document tool
func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetInt("document_id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("document_id parameter is required"), nil
	}

	doc, err := s.cfg.Store.GetDocument(uint64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get document: %v", err)), nil
	}
	if doc == nil {
		return mcp.NewToolResultError(fmt.Sprintf("document %d not found", id)), nil
	}

	chunks, err := s.cfg.Store.GetChunks(doc.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get chunks: %v", err)), nil
	}

	chunkList := make([]map[string]interface{}, 0, len(chunks))
	for _, c := range chunks {
		chunkList = append(chunkList, map[string]interface{}{
			"chunk_index": c.ChunkIndex,
			"content":     c.Content,
		})
	}

	result := map[string]interface{}{
		"id":           doc.ID,
		"title":        doc.Title,
		"source_type":  doc.SourceType,
		"source_url":   doc.SourceURL,
		"namespace":    doc.Namespace,
		"content_hash": doc.ContentHash,
		"chunks_count": doc.ChunksCount,
		"created_at":   doc.CreatedAt.Format(time.RFC3339),
		"chunks":       chunkList,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleDeleteDocument handles the delete_document tool
func (s *Server) handleDeleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetInt("document_id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("document_id parameter is required"), nil
	}

	deleted, err := s.cfg.Store.DeleteDocument(uint64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete document: %v", err)), nil
	}
	if !deleted {
		return mcp.NewToolResultError(fmt.Sprintf("document %d not found", id)), nil
	}

	result := map[string]interface{}{
		"status":      "deleted",
		"document_id": id,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleIngestText handles the ingest_text tool
func (s *Server) handleIngestText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename := request.GetString("filename", "")
	if filename == "" {
		return mcp.NewToolResultError("filename parameter is required"), nil
	}
	content := request.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("content parameter is required"), nil
	}
	namespace := request.GetString("namespace", s.cfg.AppConfig.DefaultNamespace)

	doc, created, err := s.cfg.Pipeline.IngestFile(filename, []byte(content), namespace)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to ingest: %v", err)), nil
	}

	status := "created"
	if !created {
		status = "duplicate"
	}
	result := map[string]interface{}{
		"status":       status,
		"document_id":  doc.ID,
		"title":        doc.Title,
		"namespace":    doc.Namespace,
		"chunks_count": doc.ChunksCount,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
