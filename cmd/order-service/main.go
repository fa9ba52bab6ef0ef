package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcmexdev/orders-service/internal/order-service/adapters/httpx"
	"github.com/jcmexdev/orders-service/internal/order-service/adapters/sqlstore"
	"github.com/jcmexdev/orders-service/internal/order-service/app"
	"github.com/jcmexdev/orders-service/internal/order-service/config"
	"github.com/jcmexdev/orders-service/internal/pkg/broker"
	"github.com/jcmexdev/orders-service/internal/pkg/cache"
	"github.com/jcmexdev/orders-service/internal/pkg/contracts"
	"github.com/jcmexdev/orders-service/internal/pkg/metrics"
	"github.com/jcmexdev/orders-service/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.LogLevel, cfg.ServiceName)

	if err := run(cfg); err != nil {
		slog.Error("order service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	store, err := sqlstore.Open(ctx, cfg.StoreDriver, cfg.StoreDSN())
	if err != nil {
		return err
	}
	defer store.Close()

	reg := metrics.NewRegistry(cfg.ServiceName)

	var channel broker.Channel
	if len(cfg.KafkaBrokers) > 0 {
		channel = broker.NewKafka(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.ServiceName, broker.WithMetrics(reg.Events))
		slog.Info("using kafka channel", "brokers", cfg.KafkaBrokers, "group_id", cfg.KafkaGroupID)
	} else {
		channel = broker.NewMemory(cfg.ServiceName, broker.WithMetrics(reg.Events))
		slog.Info("using in-process channel")
	}
	defer channel.Close()

	opts := []app.Option{app.WithStatusSet(cfg.StatusSet)}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.ServiceName)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			slog.Warn("redis unreachable, idempotency replay may fail", "addr", cfg.RedisAddr, "error", err)
		}
		opts = append(opts, app.WithCache(redisCache))
	}
	engine := app.NewEngine(store, channel, opts...)

	reconciler := app.NewReconciler(store, nil)
	if err := channel.Subscribe(ctx, contracts.InboundTopics(), reconciler.Handle); err != nil {
		return err
	}

	handler := httpx.NewHandler(engine, store, channel, cfg.ServiceName)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpx.NewRouter(handler, cfg.APIToken, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("order service HTTP running", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	// In-flight publishes finish before the channel closes.
	engine.Wait()
	return nil
}
