package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"cryptoadvisor/internal/api"
	"cryptoadvisor/internal/config"
	"cryptoadvisor/internal/logging"
	"cryptoadvisor/pkg/advisor"
)

func main() {
	var dataDir string
	var port int
	var host string

	cfg := config.Load()

	flag.StringVar(&dataDir, "data-dir", "", "Directory for storing the database and logs")
	flag.IntVar(&port, "port", cfg.Port, "Port to run the server on")
	flag.StringVar(&host, "host", cfg.Host, "Host to bind the server to")
	flag.Parse()

	resolvedDataDir, err := config.ResolveDataDir(dataDir, cfg.DataDir)
	if err != nil {
		slog.Error("failed to resolve data directory", "err", err)
		os.Exit(1)
	}
	logDir := filepath.Join(resolvedDataDir, "logs")
	logger, writer, err := logging.NewLogger(logDir, slog.LevelInfo)
	if err != nil {
		slog.Error("failed to initialize logger", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("failed to close log writer", "err", err)
		}
	}()

	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; advice endpoints will refuse requests")
	}

	core, err := advisor.OpenWithOptions(advisor.Options{
		DBPath: cfg.DBPath(resolvedDataDir),
		Logger: logger,
		Gemini: advisor.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
		},
		Coinbase: advisor.CoinbaseConfig{
			KeyName:   cfg.CoinbaseKeyName,
			KeySecret: cfg.CoinbaseKeySecret,
		},
	})
	if err != nil {
		logger.Error("failed to initialize core", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := core.Close(); err != nil {
			logger.Error("failed to close core", "err", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", host, port)
	handler := middleware.Compress(5)(api.NewRouter(core, logger))

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting",
		"addr", addr,
		"db_path", cfg.DBPath(resolvedDataDir),
		"gemini_key", config.MaskSecret(cfg.GeminiAPIKey),
		"coinbase_key", cfg.CoinbaseKeyName,
	)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
}
