package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shortlink/internal/adapter/cache"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/shortid"
	"github.com/vadimbarashkov/shortlink/internal/tracker"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
	"github.com/vadimbarashkov/shortlink/migrations"
	"github.com/vadimbarashkov/shortlink/pkg/ratelimit"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
	pgpkg "github.com/vadimbarashkov/shortlink/pkg/postgres"
)

const sweepTimeout = 30 * time.Second

func newLogger(cfg config.Logger) (*httplog.Logger, error) {
	const op = "app.newLogger"

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("%s: invalid log level %q: %w", op, cfg.Level, err)
	}

	return httplog.NewLogger("url-shortener", httplog.Options{
		Writer:          os.Stdout,
		JSON:            cfg.JSON,
		LogLevel:        level,
		Concise:         cfg.Concise,
		QuietDownRoutes: []string{"/health", "/ping"},
		QuietDownPeriod: 10 * time.Second,
	}), nil
}

func newRedisClient(cfg config.Redis) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	})
}

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger, err := newLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgpkg.New(
		ctx,
		cfg.Postgres.DSN(),
		pgpkg.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pgpkg.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pgpkg.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pgpkg.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		pgpkg.WithConnectRetry(cfg.Postgres.ConnectAttempts, cfg.Postgres.ConnectDelay),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := pgpkg.RunMigrations(migrations.FS, cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	redisClient := newRedisClient(cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	linkCache := cache.New(ctx, redisClient, logger.Logger, cache.Options{
		OpTimeout:         cfg.Redis.OpTimeout,
		ReconnectInterval: cfg.Redis.ReconnectInterval,
	})
	defer linkCache.Close()

	linkRepo := postgres.NewLinkRepository(db)

	clicks := tracker.New(linkRepo, tracker.Config{
		Workers:    cfg.Analytics.Workers,
		QueueSize:  cfg.Analytics.QueueSize,
		MaxSpill:   cfg.Analytics.MaxSpill,
		MaxRetries: cfg.Analytics.MaxRetries,
		RetryDelay: cfg.Analytics.RetryDelay,
		Timeout:    cfg.Analytics.Timeout,
	}, logger.Logger)

	linkUseCase := usecase.NewLinkUseCase(
		usecase.Config{
			BaseURL:        cfg.BaseURL,
			CacheTTL:       cfg.Cache.TTL,
			GracePeriod:    cfg.Links.GracePeriod,
			ExtendOnAccess: cfg.Links.ExtendOnAccess,
			MaxAttempts:    cfg.Links.MaxAttempts,
			TopN:           cfg.Metrics.TopN,
		},
		linkRepo,
		linkCache,
		clicks,
		shortid.Generator{},
		logger.Logger,
	)

	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)

	router := delivery.NewRouter(logger, linkUseCase, limiter, delivery.RouterOptions{
		StaticDir: cfg.HTTPServer.StaticDir,
	})

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr), slog.String("env", cfg.Env))

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Analytics.ShutdownTimeout)
		defer cancel()

		if err := clicks.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("%s: failed to drain click tracker: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		sweepExpiredLinks(ctx, linkUseCase, cfg.Links.SweepInterval, logger.Logger)
		return nil
	})

	return g.Wait()
}

type linkExpirer interface {
	ExpireLinks(ctx context.Context) (int, error)
}

// sweepExpiredLinks removes expired links every interval until ctx is done.
func sweepExpiredLinks(ctx context.Context, expirer linkExpirer, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
			n, err := expirer.ExpireLinks(sweepCtx)
			cancel()

			if err != nil {
				logger.Error("failed to remove expired links", slog.Any("err", err))
				continue
			}

			if n > 0 {
				logger.Info("removed expired links", slog.Int("count", n))
			}
		}
	}
}
