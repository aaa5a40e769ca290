package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/cache"
	"github.com/dharmasatrya/storefront/internal/config"
	"github.com/dharmasatrya/storefront/internal/contact"
	"github.com/dharmasatrya/storefront/internal/dates"
	"github.com/dharmasatrya/storefront/internal/events"
	"github.com/dharmasatrya/storefront/internal/handler"
	"github.com/dharmasatrya/storefront/internal/logger"
	"github.com/dharmasatrya/storefront/internal/ratelimit"
	"github.com/dharmasatrya/storefront/internal/session"
	"github.com/dharmasatrya/storefront/internal/storage"
	"github.com/dharmasatrya/storefront/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = storage.NewRedisClient(storage.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			zlog.Fatal("Failed to connect to Redis",
				zap.String("addr", cfg.Redis.Host+":"+cfg.Redis.Port), zap.Error(err))
		}
		defer redisClient.Close()
	}

	var store storage.Store
	if cfg.Storage.Driver == "redis" {
		redisCfg := storage.DefaultRedisConfig()
		redisCfg.TTL = cfg.Storage.TTL
		store = storage.NewRedisStore(redisClient, redisCfg)
		zlog.Info("Session storage on Redis", zap.Duration("ttl", cfg.Storage.TTL))
	} else {
		store = storage.NewMemoryStore()
		zlog.Info("Session storage in memory")
	}

	var upstreamCache cache.Cache
	if cfg.Cache.Enabled {
		upstreamCache = cache.NewRedisCache(redisClient, cfg.Cache.TTL)
		zlog.Info("Redis cache enabled", zap.Duration("ttl", cfg.Cache.TTL))
	} else {
		upstreamCache = cache.NewNoOpCache()
		zlog.Info("Cache disabled")
	}

	rateLimiter := ratelimit.NewEndpointLimiter(ratelimit.RateLimitConfig{
		RequestsPerSecond: cfg.Upstream.RateLimit,
		BurstSize:         cfg.Upstream.Burst,
	})
	rateLimiter.SetEndpointLimit(ratelimit.EndpointLocation, cfg.Upstream.RateLimit/2, cfg.Upstream.Burst/2+1)
	rateLimiter.SetEndpointLimit(ratelimit.EndpointContact, 2, 5)

	upstreamCfg := upstream.DefaultConfig(cfg.Upstream.BaseURL)
	upstreamCfg.Timeout = cfg.Upstream.Timeout
	upstreamCfg.MaxRetries = cfg.Upstream.MaxRetries
	upstreamCfg.RateLimiter = rateLimiter
	backend := upstream.NewClient(upstreamCfg, zlog)

	location := dates.LocationByName(cfg.Agency.Timezone)
	hub := events.NewHub(zlog)

	registry := session.NewRegistry(session.Deps{
		Backend:        backend,
		Store:          store,
		Cache:          upstreamCache,
		Notifiers:      hub.For,
		AgencyID:       cfg.Agency.ID,
		Location:       location,
		PageSize:       cfg.Search.PageSize,
		LookupDebounce: cfg.Search.LookupDebounce,
		FilterDebounce: cfg.Search.FilterDebounce,
		Logger:         zlog,
	}, cfg.Session.IdleTTL)
	defer registry.Close()
	go registry.Run(ctx, cfg.Session.SweepInterval)

	h := handler.New(registry, hub, contact.NewService(backend, zlog), handler.Options{
		AgencyID:      cfg.Agency.ID,
		Location:      location,
		LookupTimeout: cfg.Search.LookupTimeout,
	}, zlog)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, handler.HeaderSessionID},
		ExposeHeaders: []string{handler.HeaderSessionID},
	}))
	e.Use(middleware.RequestID())

	h.Register(e.Group("/api/v1"))
	e.GET("/health", handler.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		zlog.Info("Starting storefront server",
			zap.String("port", cfg.Server.Port),
			zap.String("upstream", cfg.Upstream.BaseURL),
			zap.String("agency", cfg.Agency.ID),
		)
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Graceful shutdown failed", zap.Error(err))
	}
}
