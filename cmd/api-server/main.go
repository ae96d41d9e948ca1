package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tanishqsrivastavaa/petique-app/internal/api"
	"github.com/tanishqsrivastavaa/petique-app/internal/auth"
	"github.com/tanishqsrivastavaa/petique-app/internal/config"
	"github.com/tanishqsrivastavaa/petique-app/internal/db"
	"github.com/tanishqsrivastavaa/petique-app/internal/logging"
	"github.com/tanishqsrivastavaa/petique-app/internal/metrics"
	redisclient "github.com/tanishqsrivastavaa/petique-app/internal/redis"
	"github.com/tanishqsrivastavaa/petique-app/internal/scheduling"
)

func main() {
	bootstrap := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Fatal().Err(err).Msg("config load error")
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		bootstrap.Fatal().Err(err).Msg("logger setup error")
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *logger); err != nil {
		logger.Fatal().Err(err).Msg("api-server exited")
	}
}

// run serves until ctx is cancelled or the listener fails.
func run(rootCtx context.Context, cfg config.Config, logger zerolog.Logger) error {
	logger.Info().
		Str("env", cfg.App.Environment).
		Str("http_port", cfg.HTTPPort).
		Str("storage", cfg.StorageDriver).
		Str("lock_backend", cfg.LockBackend).
		Msg("api-server starting up")

	if cfg.MetricsEnabled {
		metrics.Register()
	}

	var store scheduling.Store

	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := connectPostgres(rootCtx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info().Msg("connected to Postgres")
		store = scheduling.NewPgStore(pool)
	default:
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
		store = scheduling.NewMemoryStore()
	}

	var (
		locker scheduling.Locker
		rdb    *redis.Client
	)

	switch cfg.LockBackend {
	case config.LockRedis:
		client, err := redisclient.NewRedisClient(rootCtx, cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		rdb = client
		locker = redisclient.NewVetLocker(client, cfg.LockTTL, cfg.LockWait)
	default:
		locker = scheduling.NewLocalLocker(cfg.LockWait)
	}

	router := api.NewRouter(api.RouterConfig{
		Bookings:       scheduling.NewBookingService(store, locker, logger),
		Schedule:       scheduling.NewScheduleService(store, locker, logger),
		Verifier:       auth.NewManager(cfg.Auth),
		Store:          store,
		Storage:        cfg.StorageDriver,
		Redis:          rdb,
		Logger:         logger,
		Env:            cfg.App.Environment,
		Version:        cfg.App.Version,
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      cfg.RateLimit,
		DefaultSlot:    cfg.DefaultSlot(),
		MetricsEnabled: cfg.MetricsEnabled,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info().Msg("api-server stopped")
	return nil
}

func connectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(pgCtx, dsn, db.PoolOptions{MaxConns: 20, MinConns: 2})
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(pgCtx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
