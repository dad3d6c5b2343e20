// Package main is the entry point for the catalogue queue worker. It consumes
// price feeds and stock maintenance messages from SQS.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"catalogue/internal/app"
	"catalogue/internal/infrastructure/queue"
	"catalogue/pkg/logger"
)

func main() {
	app.LoadDotEnv()

	log, err := logger.New(logger.Config{
		Level:       app.Getenv("LOG_LEVEL", "info"),
		Development: app.Getenv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting catalogue worker")

	queueURL := os.Getenv("FEED_QUEUE_URL")
	if queueURL == "" {
		log.Fatal("FEED_QUEUE_URL environment variable is required")
	}

	cfg, err := app.ConfigFromEnv()
	if err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	client, err := queue.NewSQSClient(ctx, os.Getenv("AWS_SQS_ENDPOINT"))
	if err != nil {
		log.Fatalw("failed to create SQS client", "error", err)
	}

	consumer := queue.NewConsumer(client, queue.NewDispatcher(a.Feed, a.Stock, log), queue.ConsumerConfig{
		QueueURL:          queueURL,
		MaxMessages:       int32(app.GetenvInt("FEED_QUEUE_MAX_MESSAGES", 10)),
		WaitTimeSeconds:   int32(app.GetenvInt("FEED_QUEUE_WAIT_SECONDS", 20)),
		VisibilityTimeout: int32(app.GetenvInt("FEED_QUEUE_VISIBILITY_SECONDS", 60)),
		HandleTimeout:     app.GetenvDuration("FEED_HANDLE_TIMEOUT", 45*time.Second),
	}, log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil {
			log.Errorw("consumer stopped with error", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		reportPoolStats(logger.WithLogger(ctx, log), a, app.GetenvDuration("POOL_STATS_INTERVAL", 5*time.Minute))
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

func reportPoolStats(ctx context.Context, a *app.App, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Registry.LogStats(ctx)
		}
	}
}
