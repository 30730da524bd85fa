package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"rag-crawl/pkg/crawl"
	"rag-crawl/pkg/ingest"
	"rag-crawl/pkg/mcp"
	"rag-crawl/pkg/process"
	"rag-crawl/pkg/storage"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rag-crawl mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport (for desktop AI clients)
  rag-crawl mcp-server -config config.yaml

  # Start with SSE transport on port 8080
  rag-crawl mcp-server -config config.yaml -transport sse -port 8080

Available MCP Tools:
  start_crawl         Start a crawl of a website
  stop_crawl          Stop a running crawl task
  pause_crawl         Pause a running crawl task
  resume_crawl        Resume a paused crawl task
  crawl_status        Get the status of a crawl task
  list_active_crawls  List all active crawl tasks
  stop_all_crawls     Stop all active crawl tasks
  list_documents      List stored documents
  get_document        Fetch a document and its chunks
  delete_document     Delete a stored document
  ingest_text         Ingest text, markdown or HTML directly
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doMcpServer(*configFile, *transport, *port, *logLevel, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(configPath, transport string, port int, logLevel string, stdout, stderr io.Writer) int {
	// Setup logger
	log := logrus.New()
	log.SetOutput(stderr) // MCP protocol uses stdout, logs go to stderr
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid log level: %s\n", logLevel)
		return 1
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	// Load config
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	warnings, err := appCfg.Validate()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	if err := process.InitTokenizer(appCfg.Chunking.TokenizerEncoding); err != nil {
		log.Warnf("Tokenizer initialization failed, token counts disabled: %v", err)
	}

	store, err := storage.NewBadgerStore(appCfg.StateDir, log.WithField("component", "storage"))
	if err != nil {
		fmt.Fprintf(stderr, "Error opening document store: %v\n", err)
		return 1
	}
	defer store.Close()

	engine := crawl.NewEngineClient(appCfg.Engine, log.WithField("component", "engine"))
	pipeline := ingest.NewPipeline(store, appCfg.Chunking, log.WithField("component", "ingest"))
	service := crawl.NewService(appCfg, engine, pipeline, log.WithField("component", "crawl"))

	// Create and run MCP server
	serverCfg := &mcp.ServerConfig{
		AppConfig: appCfg,
		Service:   service,
		Pipeline:  pipeline,
		Store:     store,
		Transport: transport,
		Port:      port,
		Logger:    log,
	}

	server, err := mcp.NewServer(serverCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	log.Infof("Starting MCP server (transport: %s)", transport)

	if err := server.Run(); err != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return 1
	}

	return 0
}
