package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"storefront-api/internal/auth"
	"storefront-api/internal/config"
	"storefront-api/internal/handler"
	"storefront-api/internal/paging"
	"storefront-api/internal/services"
	"storefront-api/internal/woocommerce"
	"storefront-api/pkg/cache"
	"storefront-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// app holds everything that has to be released on shutdown.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	cache    *cache.RedisCache
	sessions *services.BrowseSessions
	auth     *auth.Sessions
	limiter  *handler.ClientLimiter
	server   *http.Server

	// stop ends the idle reapers.
	stop context.CancelFunc
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(logger.FromEnv())
		logger.Get().Fatal().Err(err).Msg("configuration rejected")
	}
	logger.Init(cfg.LoggerOptions())
	log := logger.Get()

	a := newApp(cfg, log)
	a.startReapers()

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("server starting")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}
	log.Info().Msg("server exited")
}

func newApp(cfg *config.Config, log *logger.Logger) *app {
	a := &app{cfg: cfg, log: log}

	var source woocommerce.Source = woocommerce.NewClient(woocommerce.Config{
		BaseURL:        cfg.WooCommerce.BaseURL,
		ConsumerKey:    cfg.WooCommerce.ConsumerKey,
		ConsumerSecret: cfg.WooCommerce.ConsumerSecret,
		Timeout:        cfg.WooCommerce.Timeout,
		RateLimit:      cfg.WooCommerce.RateLimit,
		RateBurst:      cfg.WooCommerce.RateBurst,
	})

	if cfg.Cache.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c, err := cache.NewRedisCache(ctx, cache.Options{
			URL: cfg.Cache.RedisURL,
			DB:  cfg.Cache.RedisDB,
			TTL: cfg.Cache.TTL,
		})
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, serving without cache")
		} else {
			log.Info().Str("url", cfg.Cache.RedisURL).Dur("ttl", cfg.Cache.TTL).Msg("redis cache connected")
			a.cache = c
		}
	}
	source = cache.NewSource(source, a.cache)

	catalog := services.NewCatalogService(source, cfg.Paging.PageSize)
	a.sessions = services.NewBrowseSessions(catalog.Loader(), paging.Config{
		PageSize:         cfg.Paging.PageSize,
		PrefetchDistance: cfg.Paging.PrefetchDistance,
	})

	if cfg.Auth.APIKey != "" {
		a.auth = auth.NewSessions(auth.NewIdentityToolkit(cfg.Auth.APIKey, cfg.Auth.BaseURL, cfg.WooCommerce.Timeout))
	} else {
		log.Info().Msg("AUTH_API_KEY not set, sign-in endpoints disabled")
	}

	if cfg.LogLevel != "debug" && cfg.LogLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}
	a.limiter = handler.NewClientLimiter(cfg.Client.Rate, cfg.Client.Burst)
	h := handler.New(handler.Deps{
		Catalog:  catalog,
		Sessions: a.sessions,
		Auth:     a.auth,
		Cache:    a.cache,
		Limiter:  a.limiter,
	})

	// No WriteTimeout: session event streams stay open.
	a.server = &http.Server{
		Addr:        cfg.Addr(),
		Handler:     h.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return a
}

// startReapers drops browse sessions, auth sessions and client limiters
// that went idle, until shutdown.
func (a *app) startReapers() {
	ctx, stop := context.WithCancel(context.Background())
	a.stop = stop
	a.sessions.StartReaper(ctx, a.cfg.Sessions.IdleTTL)
	if a.auth != nil {
		a.auth.StartReaper(ctx, a.cfg.Sessions.IdleTTL)
	}
	a.limiter.StartReaper(ctx, a.cfg.Client.IdleTTL)
	a.log.Info().
		Dur("session_idle_ttl", a.cfg.Sessions.IdleTTL).
		Dur("client_idle_ttl", a.cfg.Client.IdleTTL).
		Msg("idle reapers started")
}

func (a *app) shutdown(ctx context.Context) error {
	if a.stop != nil {
		a.stop()
	}
	a.sessions.Close()
	err := a.server.Shutdown(ctx)
	if a.auth != nil {
		a.auth.CloseAll()
	}
	if cerr := a.cache.Close(); cerr != nil {
		a.log.Warn().Err(cerr).Msg("closing redis")
	}
	return err
}
