package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"rag-crawl/pkg/config"
	"rag-crawl/pkg/utils"
)

// maxUploadBytes bounds document uploads
const maxUploadBytes = 100 << 20 // 100 MB

// handleStartCrawl starts a crawl and relays its event stream with SSE framing.
// The connection stays open until the crawl reaches a terminal event or the
// client disconnects.
func (s *Server) handleStartCrawl(w http.ResponseWriter, r *http.Request) {
	var cfg config.CrawlConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decoding crawl config: %w", err))
		return
	}

	events, err := s.service.StartCrawl(r.Context(), &cfg)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, utils.ErrConfigValidation):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, utils.ErrTooManyCrawls):
			status = http.StatusTooManyRequests
		}
		s.writeError(w, status, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.log.Errorf("Failed to encode event: %v", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; the orchestrator notices via r.Context()
			s.log.Debugf("Client disconnected during crawl relay: %v", err)
			return
		}
		flusher.Flush()
	}
}

// controlResult maps a control-call error to an HTTP status
func (s *Server) controlResult(w http.ResponseWriter, result map[string]any, err error) {
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, utils.ErrTaskNotFound) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStopCrawl(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.StopCrawl(r.Context(), r.PathValue("taskID"))
	s.controlResult(w, result, err)
}

func (s *Server) handlePauseCrawl(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.PauseCrawl(r.Context(), r.PathValue("taskID"))
	s.controlResult(w, result, err)
}

func (s *Server) handleResumeCrawl(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ResumeCrawl(r.Context(), r.PathValue("taskID"))
	s.controlResult(w, result, err)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.TaskStatus(r.Context(), r.PathValue("taskID"))
	s.controlResult(w, result, err)
}

func (s *Server) handleActiveTasks(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ActiveTasks(r.Context())
	s.controlResult(w, result, err)
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	stopped, err := s.service.StopAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"stopped": stopped})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.URL.Query().Get("namespace"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid document id: %w", err))
		return
	}
	doc, err := s.store.GetDocument(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if doc == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("document %d not found", id))
		return
	}
	chunks, err := s.store.GetChunks(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"document": doc, "chunks": chunks})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid document id: %w", err))
		return
	}
	deleted, err := s.store.DeleteDocument(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !deleted {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("document %d not found or already deleted", id))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// handleUploadDocument ingests a multipart file upload into a namespace
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("reading upload: %w", err))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("reading upload: %w", err))
		return
	}

	namespace := r.FormValue("namespace")
	if namespace == "" {
		namespace = "default"
	}

	doc, created, err := s.pipeline.IngestFile(header.Filename, content, namespace)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, utils.ErrUnsupportedFile) {
			status = http.StatusUnsupportedMediaType
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"document": doc, "created": created})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountDocuments()
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"active_documents": count,
		"active_crawls":    s.service.Registry().Len(),
	})
}
