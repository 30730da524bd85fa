package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"rag-crawl/pkg/api"
	"rag-crawl/pkg/config"
	"rag-crawl/pkg/crawl"
	"rag-crawl/pkg/ingest"
	"rag-crawl/pkg/process"
	"rag-crawl/pkg/storage"
)

func main() {
	// Subcommand dispatch before flag parsing
	if len(os.Args) > 1 && os.Args[1] == "mcp-server" {
		runMcpServer(os.Args[2:])
		return
	}

	// --- Set profiling rates ---
	runtime.SetBlockProfileRate(1000)
	runtime.SetMutexProfileFraction(1000)

	// --- Early Initialization & Flags ---
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel) // Default level

	configFileFlag := flag.String("config", "config.yaml", "Path to YAML config file")
	logLevelFlag := flag.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	addrFlag := flag.String("addr", "", "Listen address for the relay API (overrides config)")
	pprofAddr := flag.String("pprof", "", "Address for pprof HTTP server (e.g., ':6060', empty to disable)")
	flag.Parse()

	// --- Logger Configuration ---
	level, err := logrus.ParseLevel(*logLevelFlag)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", *logLevelFlag, err)
	} else {
		log.SetLevel(level)
		log.Infof("Setting log level to: %s", level.String())
	}

	// --- Load Application Configuration ---
	log.Infof("Loading configuration from %s", *configFileFlag)
	appCfg, err := loadConfig(*configFileFlag)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// --- Validate Global App Configuration ---
	appWarnings, err := appCfg.Validate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	for _, w := range appWarnings {
		log.Warn(w)
	}
	if *addrFlag != "" {
		appCfg.Server.Addr = *addrFlag
	}

	logAppConfig(appCfg, log)

	// --- Start pprof HTTP Server (Optional) ---
	if *pprofAddr != "" {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("PANIC in pprof server: %v", r)
				}
			}()
			log.Infof("Starting pprof HTTP server on: http://%s/debug/pprof/", *pprofAddr)
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				log.Errorf("Pprof server failed to start on %s: %v", *pprofAddr, err)
			}
		}()
	}

	// ===========================================================
	// == Setup Global Context & Signal Handling ==
	// ===========================================================
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Signal -> cancel context -> force exit on second signal
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in signal handler: %v", r)
			}
		}()
		sig := <-sigChan
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()
	defer signal.Stop(sigChan)

	// ===========================================================
	// == Initialize Components ==
	// ===========================================================
	log.Info("Initializing components...")

	// --- Tokenizer ---
	if err := process.InitTokenizer(appCfg.Chunking.TokenizerEncoding); err != nil {
		log.Warnf("Tokenizer initialization failed, token counts disabled: %v", err)
	}

	// --- Storage ---
	store, err := storage.NewBadgerStore(appCfg.StateDir, log.WithField("component", "storage"))
	if err != nil {
		log.Fatalf("Failed to initialize document store: %v", err)
	}
	defer store.Close()

	go store.RunGC(ctx, 10*time.Minute)

	// --- Engine Client, Pipeline, Crawl Service ---
	engine := crawl.NewEngineClient(appCfg.Engine, log.WithField("component", "engine"))
	pipeline := ingest.NewPipeline(store, appCfg.Chunking, log.WithField("component", "ingest"))
	service := crawl.NewService(appCfg, engine, pipeline, log.WithField("component", "crawl"))

	// --- Relay API Server ---
	server := api.NewServer(appCfg.Server, service, pipeline, store, log.WithField("component", "api"))

	// ===========================================================
	// == Run ==
	// ===========================================================
	err = server.ListenAndServe(ctx)

	// Stop any crawls the shutdown left running before the store closes
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if stopped, stopErr := service.StopAll(stopCtx); stopErr != nil {
		log.Warnf("Stopped %d crawls during shutdown, last error: %v", stopped, stopErr)
	} else if stopped > 0 {
		log.Infof("Stopped %d crawls during shutdown", stopped)
	}
	stopCancel()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("Server finished with error: %v", err)
		os.Exit(1)
	}

	log.Info("Shutdown complete.")
}

// loadConfig reads and parses the YAML application config
func loadConfig(path string) (*config.AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file '%s': %w", path, err)
	}
	var appCfg config.AppConfig
	if err := yaml.Unmarshal(yamlFile, &appCfg); err != nil {
		return nil, fmt.Errorf("parse config file '%s': %w", path, err)
	}
	return &appCfg, nil
}

// logAppConfig logs the effective global configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Global Config: Engine:%s, StateDir:%s, Addr:%s",
		appCfg.Engine.BaseURL, appCfg.StateDir, appCfg.Server.Addr)
	log.Infof("Global Config Timeouts: Request:%v, Stream:%v, Shutdown:%v",
		appCfg.Engine.RequestTimeout, appCfg.Engine.StreamTimeout, appCfg.Server.ShutdownTimeout)
	log.Infof("Global Config Chunking: Web:%d/%d, File:%d/%d, Encoding:'%s'",
		appCfg.Chunking.WebChunkSize, appCfg.Chunking.WebChunkOverlap,
		appCfg.Chunking.FileChunkSize, appCfg.Chunking.FileChunkOverlap,
		appCfg.Chunking.TokenizerEncoding)
	log.Infof("Global Config Crawls: MaxConcurrent:%d, DefaultDepth:%d, DefaultMaxPages:%d, DefaultNamespace:'%s'",
		appCfg.MaxConcurrentCrawls, appCfg.DefaultCrawlDepth, appCfg.DefaultMaxPages, appCfg.DefaultNamespace)
}
