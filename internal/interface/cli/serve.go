package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/studentgrades/studentgrades-api/config"
	"github.com/studentgrades/studentgrades-api/internal/application/service"
	"github.com/studentgrades/studentgrades-api/internal/infrastructure/persistence/redis"
	apihttp "github.com/studentgrades/studentgrades-api/internal/interface/http"
	"github.com/studentgrades/studentgrades-api/internal/interface/http/handlers"
	"github.com/studentgrades/studentgrades-api/pkg/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the store and serve the REST API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	ver := buildVersion(cfg)
	log.Info("starting studentgrades",
		logger.String("version", ver),
		logger.String("driver", cfg.Database.Driver))

	// ─────────────────────────────────────────────────────────────────────────
	// Store
	// ─────────────────────────────────────────────────────────────────────────
	st, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		log.Info("closing store")
		st.close()
	}()

	if err := st.migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		rdb     *redis.Client
		limiter apihttp.RateLimiter
	)
	if !cfg.Redis.Disabled {
		rdb, err = redis.NewClient(ctx, redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("redis unavailable, rate limiting per instance", logger.Err(err))
		} else {
			defer rdb.Close()
			limiter = redis.NewRateLimiter(rdb, cfg.HTTP.RateLimitPerMinute, log)
			log.Info("redis connection established", logger.String("addr", cfg.Redis.Addr))
		}
	}

	students, grades := st.services(log)

	if cfg.App.SeedData {
		res, err := service.NewSeeder(students, grades).Seed(ctx, service.DemoData)
		if err != nil {
			return err
		}
		log.Info("seed finished",
			logger.Int("students", res.Students),
			logger.Int("grades", res.Grades),
			logger.Bool("skipped", res.Skipped))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(ver)
	health.AddCheck("database", handlers.NewDatabaseCheck(st))
	if rdb != nil {
		health.AddCheck("redis", handlers.NewRedisCheck(rdb))
	}

	srv := apihttp.NewServer(httpConfig(cfg), apihttp.Dependencies{
		Students:      students,
		Grades:        grades,
		Logger:        log,
		HealthChecker: health,
		RateLimiter:   limiter,
		Version:       ver,
	})

	errCh := srv.StartAsync()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("shutdown completed")
	return nil
}

func redisConfig(cfg config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.Addr = cfg.Addr
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	if cfg.PoolSize > 0 {
		rc.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		rc.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		rc.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		rc.WriteTimeout = cfg.WriteTimeout
	}
	return rc
}

func httpConfig(cfg *config.Config) apihttp.Config {
	hc := apihttp.DefaultConfig()
	hc.Host = cfg.HTTP.Host
	hc.Port = cfg.HTTP.Port
	hc.ReadTimeout = cfg.HTTP.ReadTimeout
	hc.WriteTimeout = cfg.HTTP.WriteTimeout
	hc.IdleTimeout = cfg.HTTP.IdleTimeout
	hc.RequestTimeout = cfg.Database.QueryTimeout
	hc.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	hc.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	hc.AllowAllOrigins = cfg.IsDevelopment() && len(cfg.HTTP.AllowedOrigins) == 0
	hc.AllowedOrigins = cfg.HTTP.AllowedOrigins
	hc.TrustProxyHeaders = cfg.HTTP.TrustProxy
	return hc
}
