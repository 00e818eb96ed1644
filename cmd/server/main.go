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

	"engiplex.com/aura-chat/internal/api"
	"engiplex.com/aura-chat/internal/auth"
	"engiplex.com/aura-chat/internal/config"
	"engiplex.com/aura-chat/internal/core"
	"engiplex.com/aura-chat/internal/logger"
	"engiplex.com/aura-chat/internal/store"
)

func openKV(cfg config.Config) (store.KV, error) {
	if cfg.StorageBackend == "memory" {
		logger.Warnf("Using in-memory storage; sessions will not survive a restart")
		return store.NewMemoryKV(), nil
	}
	kv, err := store.NewSQLiteKV(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return kv, nil
}

func main() {
	// Load configuration
	config.LoadConfig()
	logger.Init(config.AppConfig.LogLevel, config.AppConfig.LogFormat)

	// Command line flag for running the storage migration only
	migrateOnlyFlag := flag.Bool("migrate", false, "Run the session storage migration and exit")
	flag.Parse()

	// Initialize storage
	kv, err := openKV(config.AppConfig)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}
	defer kv.Close()
	persistence := store.NewPersistence(kv)

	// Load or migrate sessions
	sessions, outcome, err := core.Bootstrap(persistence)
	if err != nil {
		logger.Fatalf("Failed to load sessions: %v", err)
	}
	defer sessions.Close()

	if *migrateOnlyFlag {
		logger.Infof("Migration complete (%s). Exiting.", outcome)
		return
	}

	// Initialize backend gateway
	gateway, err := core.NewGeminiGateway(context.Background(), config.AppConfig)
	if err != nil {
		logger.Fatalf("Failed to initialize Gemini gateway: %v", err)
	}

	prompts, err := core.NewPromptLibrary(persistence)
	if err != nil {
		logger.Fatalf("Failed to initialize prompt library: %v", err)
	}

	chatService := core.NewChatService(sessions, gateway)
	themeService := core.NewThemeService(persistence)
	authService := auth.NewService(kv, config.AppConfig.JWTSecret)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(authService, sessions, chatService, prompts, themeService)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Streamed replies and image generation can run for minutes.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Infof("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// sessions.Close() and kv.Close() run in their defers.
	logger.Info("Server exiting gracefully")
}
