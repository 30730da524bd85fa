package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"rag-crawl/pkg/config"
	"rag-crawl/pkg/crawl"
	"rag-crawl/pkg/ingest"
	"rag-crawl/pkg/storage"
)

const (
	serverName    = "rag-crawl"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig *config.AppConfig
	Service   *crawl.Service
	Pipeline  *ingest.Pipeline
	Store     storage.Store
	Transport string // "stdio" or "sse"
	Port      int
	Logger    *logrus.Logger
}

// Server wraps the MCP server with crawl and document tooling
type Server struct {
	mcpServer *server.MCPServer
	cfg       *ServerConfig
	log       *logrus.Entry
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Service == nil || cfg.Pipeline == nil || cfg.Store == nil {
		return nil, fmt.Errorf("Service, Pipeline and Store are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		cfg:       cfg,
		log:       cfg.Logger.WithField("component", "mcp"),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	// start_crawl - Start a background crawl
	startCrawlTool := mcp.NewTool("start_crawl",
		mcp.WithDescription("Start a crawl of a website. Runs in the background; returns the task ID once the engine acknowledges the crawl."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to start crawling from"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum link depth to follow (1-10)"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Maximum number of pages to crawl (1-5000)"),
		),
		mcp.WithString("namespace",
			mcp.Description("Namespace to store crawled documents under"),
		),
	)
	s.mcpServer.AddTool(startCrawlTool, s.handleStartCrawl)

	// stop_crawl - Stop a running crawl
	stopCrawlTool := mcp.NewTool("stop_crawl",
		mcp.WithDescription("Stop a running crawl task"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task ID returned by start_crawl"),
		),
	)
	s.mcpServer.AddTool(stopCrawlTool, s.handleStopCrawl)

	// pause_crawl - Pause a running crawl
	pauseCrawlTool := mcp.NewTool("pause_crawl",
		mcp.WithDescription("Pause a running crawl task"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task ID of the crawl to pause"),
		),
	)
	s.mcpServer.AddTool(pauseCrawlTool, s.handlePauseCrawl)

	// resume_crawl - Resume a paused crawl
	resumeCrawlTool := mcp.NewTool("resume_crawl",
		mcp.WithDescription("Resume a paused crawl task"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task ID of the crawl to resume"),
		),
	)
	s.mcpServer.AddTool(resumeCrawlTool, s.handleResumeCrawl)

	// crawl_status - Check status of a crawl
	crawlStatusTool := mcp.NewTool("crawl_status",
		mcp.WithDescription("Get the status of a crawl task"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("The task ID to query"),
		),
	)
	s.mcpServer.AddTool(crawlStatusTool, s.handleCrawlStatus)

	// list_active_crawls - List active crawl tasks
	listActiveTool := mcp.NewTool("list_active_crawls",
		mcp.WithDescription("List all currently active crawl tasks"),
	)
	s.mcpServer.AddTool(listActiveTool, s.handleListActiveCrawls)

	// stop_all_crawls - Stop every active crawl
	stopAllTool := mcp.NewTool("stop_all_crawls",
		mcp.WithDescription("Stop all active crawl tasks"),
	)
	s.mcpServer.AddTool(stopAllTool, s.handleStopAllCrawls)

	// list_documents - List stored documents
	listDocumentsTool := mcp.NewTool("list_documents",
		mcp.WithDescription("List stored documents, newest first"),
		mcp.WithString("namespace",
			mcp.Description("Limit listing to one namespace (optional)"),
		),
	)
	s.mcpServer.AddTool(listDocumentsTool, s.handleListDocuments)

	// get_document - Fetch one document with its chunks
	getDocumentTool := mcp.NewTool("get_document",
		mcp.WithDescription("Fetch a stored document and its chunks by ID"),
		mcp.WithNumber("document_id",
			mcp.Required(),
			mcp.Description("The document ID"),
		),
	)
	s.mcpServer.AddTool(getDocumentTool, s.handleGetDocument)

	// delete_document - Soft-delete a document
	deleteDocumentTool := mcp.NewTool("delete_document",
		mcp.WithDescription("Delete a stored document. Frees its content hash so identical content can be ingested again."),
		mcp.WithNumber("document_id",
			mcp.Required(),
			mcp.Description("The document ID to delete"),
		),
	)
	s.mcpServer.AddTool(deleteDocumentTool, s.handleDeleteDocument)

	// ingest_text - Ingest raw text or markdown directly
	ingestTextTool := mcp.NewTool("ingest_text",
		mcp.WithDescription("Ingest text, markdown or HTML content directly as a document"),
		mcp.WithString("filename",
			mcp.Required(),
			mcp.Description("Filename with extension; the extension selects the parser (.md, .html, .txt)"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The raw file content"),
		),
		mcp.WithString("namespace",
			mcp.Description("Namespace to store the document under"),
		),
	)
	s.mcpServer.AddTool(ingestTextTool, s.handleIngestText)

	s.log.Infof("Registered %d MCP tools", 11)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	_, err := s.cfg.Service.StopAll(ctx)
	return err
}
