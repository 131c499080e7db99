package main

import (
	"context"
	"log/slog"

	"github.com/geocoder89/apextrades/internal/account"
	"github.com/geocoder89/apextrades/internal/auth"
	"github.com/geocoder89/apextrades/internal/cache"
	"github.com/geocoder89/apextrades/internal/config"
	"github.com/geocoder89/apextrades/internal/db"
	httpx "github.com/geocoder89/apextrades/internal/http"
	"github.com/geocoder89/apextrades/internal/http/handlers"
	"github.com/geocoder89/apextrades/internal/observability"
	"github.com/geocoder89/apextrades/internal/repo/memory"
	"github.com/geocoder89/apextrades/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/oops"
)

// devJWTSecret is only ever used when APP_ENV is dev or test.
const devJWTSecret = "apextrades-dev-secret-change-me"

type app struct {
	router   *gin.Engine
	accounts *account.Service
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires storage, cache, metrics and the account service into a router.
func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	checks := map[string]handlers.Check{}

	var store account.Store
	switch cfg.StorageDriver {
	case "memory":
		log.Warn("using in-memory user store; data is lost on restart")
		store = memory.NewUsersRepo()
	default:
		if cfg.DBAutoMigrate {
			if err := migrateUp(cfg.DBURL); err != nil {
				return nil, err
			}
			log.Info("migrations applied")
		}

		pool, err := db.NewPool(ctx, cfg.DBURL, cfg.DBMaxConns)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
		}
		a.closers = append(a.closers, pool.Close)
		checks["db"] = pool.Ping
		store = postgres.NewUsersRepo(pool, prom)
	}

	profiles := localProfileCache(cfg)
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = rc.Close() })
		checks["cache"] = rc.Ping
		profiles = cache.NewRedisProfiles(rc, cfg.ProfileCacheTTL)
	}

	secret := cfg.JWTSecret
	if secret == "" {
		log.Warn("JWT_SECRET not set; using the development secret")
		secret = devJWTSecret
	}

	a.accounts = account.NewService(
		store,
		auth.NewManager(secret, cfg.TokenTTL),
		account.WithProfileCache(profiles),
		account.WithOutcomeRecorder(prom),
		account.WithLogger(log),
	)

	a.router = httpx.NewRouter(log, cfg, httpx.Deps{
		Accounts: a.accounts,
		Prom:     prom,
		Gatherer: reg,
		Checks:   checks,
	})

	return a, nil
}

func migrateUp(databaseURL string) error {
	m, err := db.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	return m.Up()
}

// localProfileCache picks the cache used when no redis is configured. A
// process-local cache is only coherent when the store is process-local too.
func localProfileCache(cfg config.Config) cache.Profiles {
	if cfg.StorageDriver == "memory" {
		return cache.NewMemoryProfiles(cfg.ProfileCacheTTL)
	}
	return cache.NoopProfiles{}
}
