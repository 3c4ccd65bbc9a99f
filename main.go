package main

import (
	"context"
	"net/http"
	"time"

	"vidserve/config"
	"vidserve/engine"
	"vidserve/job"
	"vidserve/logger"
	"vidserve/records"
	"vidserve/routes"
)

func main() {
	if err := logger.Init("vidserve.log", true); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Info("Starting vidserve initialization")

	// Ensure data directories exist
	logger.Debug("Ensuring data directories")
	if err := config.EnsureDirs(); err != nil {
		logger.Fatalf("Failed to create data directories: %v", err)
	}

	// Initialize the record store
	logger.Debug("Initializing records database")
	if err := records.Init(config.GetRecordsDBPath()); err != nil {
		logger.Fatalf("Failed to initialize record store: %v", err)
	}
	defer records.Close()
	logger.Info("Records database initialized successfully")

	// Reap files orphaned by a previous crash before serving traffic
	logger.Info("Scanning for orphaned files on startup")
	if err := job.SweepOrphans(time.Hour); err != nil {
		logger.Errorf("Startup orphan sweep failed: %v", err)
		// Don't exit - continue with server startup
	} else {
		logger.Info("Startup orphan sweep completed")
	}

	// Start cleanup routine for orphaned files (runs every 24 hours)
	logger.Info("Starting cleanup routine (runs every 24 hours)")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // This will stop the cleanup routine when main exits
	go cleanupRoutine(ctx)

	// Wire the conversion pipeline into the HTTP layer
	routes.SetOrchestrator(job.NewOrchestrator(engine.New()))

	// Register HTTP routes
	logger.Info("Registering HTTP routes")
	http.HandleFunc("/api/convert", routes.ConvertHandler)
	http.HandleFunc("/api/reconvert", routes.ReconvertHandler)
	http.HandleFunc("/api/history", routes.HistoryHandler)
	http.HandleFunc("/api/download/{id}", routes.DownloadHandler)
	http.HandleFunc("/ws", routes.LiveHandler)
	http.HandleFunc("/health", routes.HealthHandler)
	http.HandleFunc("/version", routes.VersionHandler)
	logger.Info("HTTP routes registered successfully")

	addr := config.GetListenAddr()
	logger.Infof("vidserve listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatalf("Server failed to start: %v", err)
	}
}

// cleanupRoutine periodically removes files no record references anymore
func cleanupRoutine(ctx context.Context) {
	logger.Info("Cleanup routine started - will run every 24 hours")
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup routine stopped due to context cancellation")
			return
		case <-ticker.C:
			logger.Info("Running scheduled cleanup of orphaned files")
			if err := job.SweepOrphans(time.Hour); err != nil {
				logger.Errorf("Failed to sweep orphaned files: %v", err)
			} else {
				logger.Info("Scheduled cleanup completed")
			}
		}
	}
}
