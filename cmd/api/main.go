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

	"github.com/timmy/photocache/internal/api"
	"github.com/timmy/photocache/internal/api/handler"
	"github.com/timmy/photocache/internal/api/middleware"
	"github.com/timmy/photocache/internal/app"
	"github.com/timmy/photocache/internal/config"
	"github.com/timmy/photocache/internal/logger"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx := context.Background()
	components, err := app.New(ctx, cfg, appLogger, nil)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize photo cache")
	}
	defer components.Close()

	deps := &api.Dependencies{
		Cache:   components.Cache,
		Files:   components.Store,
		Logger:  appLogger,
		Service: "photocache",
	}
	// Leave the interface nil rather than holding a typed nil pointer
	var runs handler.RunHistory
	if components.Runs != nil {
		runs = components.Runs
	}
	deps.Runs = runs

	router := api.SetupRouter(deps, api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Refreshes in flight get a bounded grace period
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
		return
	}

	appLogger.Info("Server exited")
}
