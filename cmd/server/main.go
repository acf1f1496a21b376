package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slatewiki/internal/cache"
	"slatewiki/internal/config"
	"slatewiki/internal/data"
	"slatewiki/internal/handler"
	"slatewiki/internal/logger"
	"slatewiki/internal/middleware"
	"slatewiki/internal/queue"
	"slatewiki/internal/render"
	"slatewiki/internal/service"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig()
	if err != nil {
		// Use fmt.Printf here because the logger is not yet initialized.
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Initialization ---
	log := logger.New(cfg.Log)

	// --- Database Initialization and Migration ---
	log.Info("Applying database migrations...")
	if err := data.Migrate(cfg.DB); err != nil {
		log.Fatal(err, "Failed to apply migrations")
	}
	log.Info("Migrations applied successfully.")

	log.Info("Connecting to the database...")
	db, err := data.Connect(cfg.DB)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	log.Info("Database connection successful.")

	// --- Read Cache Initialization ---
	log.Info("Initializing page cache...")
	pageCache, err := cache.New(cfg.Cache)
	if err != nil {
		log.Fatal(err, "Failed to initialize cache")
	}
	defer pageCache.Close()
	log.Info("Cache initialized.")

	// --- Notification Queue Initialization ---
	log.Info("Initializing notification queue...")
	notifyQueue, err := queue.New(cfg.Queue)
	if err != nil {
		log.Fatal(err, "Failed to initialize notification queue")
	}
	defer notifyQueue.Close()
	log.Info("Notification queue initialized.")

	// --- Dependency Injection and Handler Initialization ---
	// Initialize the application layers, injecting dependencies from top to bottom.
	pageRepository := data.NewSQLPageRepository(db)
	renderer := render.New()
	pageService := service.NewPageService(pageRepository, pageCache, notifyQueue, renderer, cfg.Queue.Name, log)
	pageHandler := handler.NewPageHandler(pageService, log)

	errorMiddleware := middleware.Error(log)

	// Warm the read cache so lookups work from the first request.
	log.Info("Rebuilding page cache from the relational store...")
	count, err := pageService.LoadAll(context.Background())
	if err != nil {
		log.Error(err, "Cache rebuild did not finish, continuing with partial cache")
	}
	log.Info(fmt.Sprintf("Cached %d pages.", count))

	// --- Router Setup ---
	router := handler.NewRouter(pageHandler, errorMiddleware)

	// --- Server Initialization and Graceful Shutdown ---
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		log.Info(fmt.Sprintf("Starting HTTP server on %s", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "Could not start HTTP server")
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Warn("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal(err, "Server forced to shutdown")
	}
	log.Info("Server exiting")
}
