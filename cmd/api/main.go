package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wildsats-api/internal/catalog"
	"wildsats-api/internal/config"
	"wildsats-api/internal/handler"
	"wildsats-api/internal/identity"
	"wildsats-api/internal/logging"
	"wildsats-api/internal/metrics"
	"wildsats-api/internal/middleware"
	"wildsats-api/internal/repository"
	"wildsats-api/internal/router"
	"wildsats-api/internal/service"
	"wildsats-api/pkg/errutil"
)

func main() {
	cfg := config.MustLoad()

	logger := logging.Setup(cfg.App.Name, cfg.App.Version, cfg.App.LogFormat, cfg.App.Debug, os.Stderr)
	logger.Info("starting", "env", cfg.App.Environment, "store", cfg.Store.Type, "cache", cfg.Cache.Type)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shop := catalog.Default()
	if cfg.Catalog.Path != "" {
		loaded, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			errutil.LogError(ctx, logger, "failed to load catalog", err)
			os.Exit(1)
		}
		shop = loaded
		logger.Info("catalog loaded", "path", cfg.Catalog.Path, "animals", len(shop.Names()))
	}

	m := metrics.New()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		errutil.LogError(ctx, logger, "failed to open store", err)
		os.Exit(1)
	}
	repo := repository.NewInstrumented(store, cfg.Store.Type, m)
	logger.Info("player store initialized", "store", cfg.Store.Type)

	appCache := openCache(ctx, cfg.Cache, logger)

	var resolver service.ProfileResolver
	if cfg.Identity.ResolveProfiles {
		resolver = identity.NewProfileResolver(identity.ResolverConfig{
			Relays:   cfg.Identity.RelayURLs(),
			Timeout:  cfg.Identity.RelayTimeout,
			Cache:    appCache,
			CacheTTL: cfg.Identity.ProfileCacheTTL,
			Logger:   logger,
		})
	}

	players := service.NewPlayerService(service.PlayerServiceConfig{
		Repo:           repo,
		Catalog:        shop,
		Resolver:       resolver,
		Observer:       m,
		Logger:         logger,
		StrictIdentity: cfg.Identity.Strict,
	})
	auth := service.NewAuthService(appCache, cfg.Auth.Window, logger)

	reporter := service.NewStatsReporter(repo, m, service.StatsReporterConfig{}, logger)
	reporter.Start()

	r := router.New(router.Config{
		Handler: handler.New(cfg.App.Name, cfg.App.Version,
			handler.ReadinessCheck{Name: "store", Pinger: repo},
			handler.ReadinessCheck{Name: "cache", Pinger: appCache},
		),
		PlayerHandler: handler.NewPlayerHandler(players, logger, cfg.App.IsProduction()),
		AdminHandler:  handler.NewAdminHandler(repo, cfg.Store.Type, cfg.Cache.Type, cfg.App.LoginKey),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{
			Authenticator: auth,
			Required:      cfg.Auth.Required,
			Recorder:      m,
			Logger:        logger,
		}),
		Metrics:        m,
		MetricsHandler: m.Handler(),
		CORSOrigins:    cfg.Server.CORSOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           r,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", "error", err)
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// The store outlives the server so in-flight requests can finish.
	reporter.Stop()
	if err := repo.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}
	if err := appCache.Close(); err != nil {
		logger.Error("cache close error", "error", err)
	}

	logger.Info("server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
