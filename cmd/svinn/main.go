// Command svinn serves the admin feedback dashboard, its JSON API and the
// kiosk click endpoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/sync/errgroup"

	"svinn/internal/auth"
	"svinn/internal/cache"
	"svinn/internal/cli"
	"svinn/internal/config"
	"svinn/internal/dashboard"
	apphttp "svinn/internal/http"
	"svinn/internal/log"
	"svinn/internal/services"
)

const (
	maxSessions     = 1000
	shutdownTimeout = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger(log.ComponentApp, "info"), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(log.ComponentApp, cfg.LogLevel)

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		stop()
		cli.Fatal(logger, "Server stopped with error", err)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	res, err := cli.OpenBackend(ctx, cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()
	store := res.Backend

	var publisher services.Publisher
	queue, err := cli.OpenQueue(cfg)
	switch {
	case err != nil:
		logger.Warn("AMQP unavailable, clicks are applied directly", log.FieldError, err)
	case queue != nil:
		publisher = queue
		logger.Info("Clicks are queued", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}
	clicks := services.NewClickService(store, publisher, cfg.Location())
	defer clicks.Close()

	provider := auth.NewProvider(store, cfg.SessionMaxAge, maxSessions, logger.WithComponent(log.ComponentAuth).Logger)
	gate := auth.NewApprovalGate(store, cfg.ApprovalCacheTTL)
	registry := dashboard.NewRegistry(dashboard.Deps{
		Counters:      store,
		Gate:          gate,
		Sessions:      provider,
		Location:      cfg.Location(),
		Scheme:        cfg.Scheme(),
		DefaultWindow: cfg.DefaultWindow(),
		FetchTimeout:  cfg.FetchTimeout,
		Logger:        logger.WithComponent(log.ComponentDashboard).Logger,
	}, provider, maxSessions, cfg.SessionMaxAge)
	defer registry.Close()

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	caches.Register(provider.Sessions())
	caches.Register(gate.Cache())
	caches.Register(registry.Cache())
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		logger.Warn("JWT_SECRET not set, API tokens will not survive a restart")
		jwtSecret = securecookie.GenerateRandomKey(32)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:              ":" + cfg.Port,
		Backend:           store,
		Auth:              provider,
		Tokens:            auth.NewTokens(jwtSecret, cfg.SessionMaxAge),
		Gate:              gate,
		Dashboards:        registry,
		Clicks:            clicks,
		Scheme:            cfg.Scheme(),
		SessionKey:        []byte(cfg.SessionKey),
		CSRFKey:           []byte(cfg.CSRFKey),
		SecureCookies:     cfg.SecureCookies,
		SessionMaxAge:     cfg.SessionMaxAge,
		IngestAPIKey:      cfg.IngestAPIKey,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:    cfg.TrustedProxies,
		Logger:            logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting svinn server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"queued_clicks", clicks.Queued())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
