// Command svinn-worker applies kiosk clicks queued on AMQP to the counters
// table.
package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"svinn/internal/cache"
	"svinn/internal/cli"
	"svinn/internal/config"
	"svinn/internal/log"
	"svinn/internal/services"
	"svinn/internal/worker"
)

const (
	dedupSize     = 50000
	dedupTTL      = 6 * time.Hour
	statsInterval = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger(log.ComponentWorker, "info"), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(log.ComponentWorker, cfg.LogLevel)

	ctx, stop := cli.SignalContext()
	defer stop()

	logger.Info("Starting svinn-worker", "backend", cfg.DataBackend, "queue", cfg.AMQPQueue)
	if err := run(ctx, cfg, logger); err != nil {
		stop()
		cli.Fatal(logger, "Worker stopped with error", err)
	}
	logger.Info("Worker stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required for the worker")
	}

	res, err := cli.OpenBackend(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	queue, err := cli.OpenQueue(cfg)
	if err != nil {
		return err
	}
	defer queue.Close()

	applier := services.NewClickService(res.Backend, nil, cfg.Location())
	w := worker.NewClickWorker(applier, dedupSize, dedupTTL)

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	caches.Register(w.Seen())
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := queue.ConsumeClicks(gctx, w.HandleClickMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		w.ReportStats(gctx, statsInterval)
		return nil
	})
	return g.Wait()
}
