package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"rag-crawl/pkg/config"
	"rag-crawl/pkg/crawl"
	"rag-crawl/pkg/ingest"
	"rag-crawl/pkg/storage"
)

// Server exposes the crawl relay and document endpoints over HTTP.
// Crawl streams are relayed with standard SSE framing; everything else is
// plain JSON.
type Server struct {
	service  *crawl.Service
	pipeline *ingest.Pipeline
	store    storage.Store
	cfg      config.ServerConfig
	log      *logrus.Entry
	httpSrv  *http.Server
}

// NewServer wires the HTTP surface
func NewServer(cfg config.ServerConfig, service *crawl.Service, pipeline *ingest.Pipeline, store storage.Store, log *logrus.Entry) *Server {
	s := &Server{
		service:  service,
		pipeline: pipeline,
		store:    store,
		cfg:      cfg,
		log:      log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/crawl/start", s.handleStartCrawl)
	mux.HandleFunc("POST /api/crawl/stop/{taskID}", s.handleStopCrawl)
	mux.HandleFunc("POST /api/crawl/pause/{taskID}", s.handlePauseCrawl)
	mux.HandleFunc("POST /api/crawl/resume/{taskID}", s.handleResumeCrawl)
	mux.HandleFunc("GET /api/crawl/status/{taskID}", s.handleTaskStatus)
	mux.HandleFunc("GET /api/crawl/active", s.handleActiveTasks)
	mux.HandleFunc("DELETE /api/crawl/stop-all", s.handleStopAll)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("GET /api/documents/{id}", s.handleGetDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("POST /api/documents/upload", s.handleUploadDocument)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
		// No WriteTimeout: crawl relays are long-lived streams
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the underlying handler (for tests)
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe runs the server until the context is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("HTTP server listening on %s", s.httpSrv.Addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.log.Info("Shutting down HTTP server...")
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

// writeJSON writes a JSON response with the given status code
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Errorf("Failed to encode response: %v", err)
	}
}

// writeError writes a JSON error body
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
