package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/addisnews/tg-scraper/app/api"
	"github.com/addisnews/tg-scraper/app/cfg"
	"github.com/addisnews/tg-scraper/app/config"
	"github.com/addisnews/tg-scraper/app/database"
	"github.com/addisnews/tg-scraper/app/media"
	"github.com/addisnews/tg-scraper/app/scheduler"
	"github.com/addisnews/tg-scraper/app/scraper"
	"github.com/addisnews/tg-scraper/app/storage"
	"github.com/addisnews/tg-scraper/app/telegram"
)

func main() {
	// Optional .env file for local development
	_ = godotenv.Load()

	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Telegram news scraper", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	channelRepo := database.NewChannelRepository(db)
	postRepo := database.NewPostRepository(db)
	logRepo := database.NewRunLogRepository(db)

	channelLoader := config.NewLoader(appCfg.ChannelsDir, appCfg.MaxPosts)
	channels, err := channelLoader.LoadAll()
	if err != nil {
		slog.Error("Failed to load channel definitions", "dir", appCfg.ChannelsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded channel definitions", "dir", appCfg.ChannelsDir, "count", len(channels))

	ctx := context.Background()

	source := buildMessageSource(ctx, appCfg)
	if client, ok := source.(*telegram.Client); ok {
		defer client.Stop()
	}

	store := buildObjectStore(ctx, appCfg)
	if gcsStore, ok := store.(*storage.GCSStore); ok {
		defer gcsStore.Close()
	}

	mediaHandler := media.NewHandler(store, source, appCfg.ImagesDir, appCfg.MaxImageSize)

	scraperSvc := scraper.New(source, mediaHandler, channelRepo, postRepo, logRepo,
		time.Duration(appCfg.RateLimitDelay)*time.Second)

	sched := scheduler.New(scraperSvc, channelLoader,
		time.Duration(appCfg.ScrapeInterval)*time.Second)
	sched.Start()
	defer sched.Stop()

	apiHandler := api.NewHandler(channelRepo, postRepo, logRepo, scraperSvc, mediaHandler, channelLoader)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
}

// buildMessageSource connects the MTProto client when credentials are
// configured and falls back to a stub otherwise, so runs are recorded as
// failures instead of crashing the process.
func buildMessageSource(ctx context.Context, appCfg *cfg.Cfg) scraper.MessageSource {
	if !appCfg.TelegramConfigured() {
		slog.Warn("Telegram credentials not configured, scraping is disabled")
		return &scraper.UnavailableSource{Err: errors.New("telegram credentials not configured")}
	}

	client := telegram.NewClient(appCfg.TelegramAPIID, appCfg.TelegramAPIHash,
		appCfg.TelegramPhone, appCfg.TelegramSession)

	startCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if err := client.Start(startCtx); err != nil {
		slog.Error("Failed to connect to Telegram, scraping is disabled", "error", err)
		return &scraper.UnavailableSource{Err: fmt.Errorf("telegram connection failed: %w", err)}
	}

	return client
}

// buildObjectStore connects to GCS. A missing or failing store only disables
// media uploads, text ingestion keeps working.
func buildObjectStore(ctx context.Context, appCfg *cfg.Cfg) storage.ObjectStore {
	if appCfg.GCSBucket == "" {
		slog.Warn("GCS bucket not configured, media uploads are disabled")
		return nil
	}

	store, err := storage.NewGCSStore(ctx, appCfg.GCSBucket, appCfg.GCSCredentials)
	if err != nil {
		slog.Error("Failed to connect to GCS, media uploads are disabled", "error", err)
		return nil
	}

	return store
}
