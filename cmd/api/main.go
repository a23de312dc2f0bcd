package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/foodsafety/internal/cache"
	"github.com/geocoder89/foodsafety/internal/config"
	"github.com/geocoder89/foodsafety/internal/db"
	"github.com/geocoder89/foodsafety/internal/domain/restaurant"
	httpx "github.com/geocoder89/foodsafety/internal/http"
	"github.com/geocoder89/foodsafety/internal/http/handlers"
	"github.com/geocoder89/foodsafety/internal/media"
	"github.com/geocoder89/foodsafety/internal/notifications"
	"github.com/geocoder89/foodsafety/internal/observability"
	"github.com/geocoder89/foodsafety/internal/repo/memory"
	"github.com/geocoder89/foodsafety/internal/repo/postgres"
	"github.com/geocoder89/foodsafety/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: cfg.AppName,
		Env:         cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	deps, closeDeps, err := buildDeps(ctx, cfg, log, prom)
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer closeDeps()

	deps.Gatherer = reg

	created, err := db.EnsureSuperAdmin(ctx, deps.Users, deps.Hasher, cfg)
	if err != nil {
		log.Error("super admin seed failed", "err", err)
		os.Exit(1)
	}
	if created {
		log.Info("super admin created", "email", cfg.SuperAdminEmail)
	}

	// set up routers with the log
	router := httpx.NewRouter(log, deps)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver, "media", cfg.MediaDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(context.Background(), 10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// buildDeps constructs the store, cache, media and notifier clients for the configured drivers.
func buildDeps(ctx context.Context, cfg config.Config, log *slog.Logger, prom *observability.Prom) (httpx.Deps, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := httpx.Deps{
		Config: cfg,
		Hasher: security.NewHasher(cfg.BcryptCost),
		Prom:   prom,
	}

	var source cache.LookupSource

	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		deps.Users = memory.NewUsersRepo()
		deps.Restaurants = memory.NewRestaurantsRepo()
		source = memory.NewLookupsRepo(restaurant.DefaultDistricts, restaurant.DefaultCircles, restaurant.DefaultTypes)

	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return deps, closeAll, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := db.Migrate(ctx, pool); err != nil {
			closeAll()
			return deps, func() {}, err
		}
		if err := db.SeedLookups(ctx, pool); err != nil {
			closeAll()
			return deps, func() {}, fmt.Errorf("seed lookups: %w", err)
		}

		deps.Users = postgres.NewUsersRepo(pool, prom)
		deps.Restaurants = postgres.NewRestaurantsRepo(pool, prom)
		source = postgres.NewLookupsRepo(pool, prom)
		deps.Checks = append(deps.Checks, handlers.Check{Name: "postgres", Ping: pool.Ping})

	default:
		return deps, closeAll, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	var store cache.Store = cache.NewMemory()
	if cfg.RedisAddr != "" {
		rdb := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, "foodsafety:")
		closers = append(closers, func() { _ = rdb.Close() })
		deps.Checks = append(deps.Checks, handlers.Check{Name: "redis", Ping: rdb.Ping})
		store = rdb
	}
	lookups := cache.NewLookups(source, store, cfg.LookupCacheTTL, log).
		WithObserver(prom.ObserveLookupCache)
	if cfg.StoreDriver == "postgres" {
		// seeds may have changed since a shared cache was last filled
		if err := lookups.Invalidate(ctx); err != nil {
			log.Warn("lookup cache invalidate failed", "err", err)
		}
	}
	deps.Lookups = lookups

	switch cfg.MediaDriver {
	case "s3":
		s3Store, err := media.NewS3Store(ctx, media.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			closeAll()
			return deps, func() {}, fmt.Errorf("s3 media store: %w", err)
		}
		deps.Media = s3Store

	default:
		local, err := media.NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL)
		if err != nil {
			closeAll()
			return deps, func() {}, fmt.Errorf("local media store: %w", err)
		}
		deps.Media = local
		deps.StaticDir = local.Dir()
	}

	deps.Notifier = notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(log, cfg.Env == "dev"),
		notifications.ProtectedNotifierConfig{
			Timeout:          3 * time.Second,
			FailureThreshold: 3,
			Cooldown:         30 * time.Second,
			HalfOpenMaxCalls: 1,
		},
	)

	return deps, closeAll, nil
}
