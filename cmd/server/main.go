// Package main is the entry point for the catalogue API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalogue/internal/app"
	"catalogue/internal/domain/auth"
	v1 "catalogue/internal/infrastructure/http/v1"
	"catalogue/pkg/logger"
)

func main() {
	app.LoadDotEnv()

	development := app.Getenv("APP_ENV", "development") == "development"
	log, err := logger.New(logger.Config{
		Level:       app.Getenv("LOG_LEVEL", "info"),
		Development: development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting catalogue server")

	cfg, err := app.ConfigFromEnv()
	if err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	// --- JWT Service ---
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		if !development {
			log.Fatal("JWT_SECRET is required outside development")
		}
		jwtSecret = "development-secret"
		log.Warn("JWT_SECRET not set, using development secret")
	}
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Cities:       a.Cities,
		Catalogue:    a.Catalogue,
		Barcodes:     a.Barcodes,
		Stock:        a.Stock,
		Feed:         a.Feed,
		HealthChecks: a.HealthChecks(),
		HealthInfo:   a.HealthInfo,
		Development:  development,
	})

	// --- HTTP Server ---
	port := app.Getenv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
