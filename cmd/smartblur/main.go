package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smartblur/smartblur/internal/audit"
	"github.com/smartblur/smartblur/internal/cache"
	"github.com/smartblur/smartblur/internal/config"
	"github.com/smartblur/smartblur/internal/logger"
	"github.com/smartblur/smartblur/internal/ocr"
	"github.com/smartblur/smartblur/internal/server"
	"go.uber.org/zap"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("SmartBlur %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Perform health check and exit
	if *healthCheck {
		performHealthCheck()
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}

	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting SmartBlur",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	// OCR result cache is optional; a nil cache means every upload runs OCR
	var ocrCache *cache.OCRCache
	if cfg.OCR.Cache.Enabled {
		ocrCache, err = cache.New(cfg.OCR.Cache, log.WithComponent("cache"))
		if err != nil {
			log.Warn("OCR cache unavailable, continuing without it", zap.Error(err))
			ocrCache = nil
		}
	}

	// Audit store is optional as well
	var auditor *audit.Store
	if cfg.Audit.Enabled {
		auditor, err = audit.NewStore(cfg.Audit, log.WithComponent("audit"))
		if err != nil {
			log.Warn("Audit store unavailable, continuing without it", zap.Error(err))
			auditor = nil
		}
	}

	engine := ocr.NewTesseract(cfg.OCR.Languages, log.WithComponent("ocr"))

	srv, err := server.New(cfg, engine, ocrCache, auditor, log)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	// Reload blur strength and auto-blur toggles on config file changes
	if err := config.Watch(cfg, srv.ApplyConfig); err != nil {
		log.Warn("Configuration watching disabled", zap.Error(err))
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	exitCode := 0
	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
		exitCode = 1
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			exitCode = 1
		} else {
			log.Info("Server shutdown complete")
		}
	}

	// Both exit paths release the pools
	ocrCache.Close()
	auditor.Close()

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
