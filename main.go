package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"cicd-notifier/internal/config"
	"cicd-notifier/internal/handler"
	"cicd-notifier/internal/logx"
	"cicd-notifier/internal/model"
	"cicd-notifier/internal/queue"
	"cicd-notifier/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logx.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("notifier stopped with error", logx.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logx.Logger) error {
	// 1. Dispatch queue
	var (
		q      queue.Queue
		health handler.Pinger
	)
	switch cfg.Dispatch.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:                  cfg.Redis.Addr,
			Password:              cfg.Redis.Password,
			DB:                    cfg.Redis.DB,
			ContextTimeoutEnabled: true,
		})
		defer rdb.Close()
		rq := queue.NewRedisQueue(rdb, cfg.Redis.Key, log)
		// Unreachable Redis is not fatal; /healthz reports it until it comes back.
		if err := rq.Ping(ctx); err != nil {
			log.Warn("redis not reachable at startup", logx.String("addr", cfg.Redis.Addr), logx.Err(err))
		}
		q, health = rq, rq
		log.Info("using redis dispatch queue", logx.String("addr", cfg.Redis.Addr), logx.String("key", cfg.Redis.Key))
	default:
		q = queue.NewMemoryQueue(cfg.Dispatch.QueueSize)
		log.Info("using in-memory dispatch queue", logx.Int("size", cfg.Dispatch.QueueSize))
	}

	// 2. Dispatcher
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	d := worker.NewDispatcher(worker.Config{
		Workers:    cfg.Dispatch.Workers,
		Timeout:    cfg.Dispatch.DeliveryTimeout.Std(),
		RatePerSec: cfg.Dispatch.RatePerSec,
	}, q, log.With(logx.String("component", "dispatcher")))
	d.Run(workerCtx)

	// 3. HTTP
	if cfg.Integration.DefaultWebhookURL == "" {
		log.Warn("no default webhook configured; /integration.json advertises an empty default")
	}
	// Accepted events wait for queue room until the server has drained.
	submitCtx, stopSubmits := context.WithCancel(context.Background())
	defer stopSubmits()

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.RouterConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Notify:         handler.NewNotifyHandler(submitCtx, d, log.With(logx.String("component", "notify"))),
		Integration:    handler.NewIntegrationHandler(integrationInfo(cfg.Integration), cfg.Integration.PublicBaseURL),
		Health:         health,
		Log:            log.With(logx.String("component", "http")),
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Std(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("notifier listening", logx.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
	}

	// 4. Drain: stop accepting requests first so accepted events reach the
	// queue, then release any handler still waiting for room, then stop workers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", logx.Err(err))
	}
	stopSubmits()
	stopWorkers()
	d.Wait()
	log.Info("notifier stopped")

	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

func integrationInfo(c config.IntegrationConfig) model.IntegrationInfo {
	return model.IntegrationInfo{
		AppName:           c.AppName,
		AppDescription:    c.AppDescription,
		AppLogo:           c.AppLogo,
		BackgroundColor:   c.BackgroundColor,
		Author:            c.Author,
		Category:          c.Category,
		KeyFeatures:       c.KeyFeatures,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		DefaultWebhookURL: c.DefaultWebhookURL,
	}
}
