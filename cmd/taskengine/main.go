// Command taskengine runs the lockbox task engine: the River-backed
// scheduler, its seven task workers, and the internal HTTP API a
// frontend drives it through.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riverqueue/river"

	"github.com/schoolbot/lockbox/internal/api"
	"github.com/schoolbot/lockbox/internal/blob"
	"github.com/schoolbot/lockbox/internal/browser"
	"github.com/schoolbot/lockbox/internal/config"
	"github.com/schoolbot/lockbox/internal/handlers"
	"github.com/schoolbot/lockbox/internal/model"
	"github.com/schoolbot/lockbox/internal/portal"
	"github.com/schoolbot/lockbox/internal/scheduler"
	"github.com/schoolbot/lockbox/internal/store"
	"github.com/schoolbot/lockbox/internal/vault"
	"github.com/schoolbot/lockbox/pkg/cache"
	"github.com/schoolbot/lockbox/pkg/logger"
	"github.com/schoolbot/lockbox/pkg/redis"
	"github.com/schoolbot/lockbox/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewWithSentry(cfg.SentryConfig)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	masterKey, err := vault.LoadKey(cfg.CredentialKey, cfg.CredentialKeyFile)
	if err != nil {
		return fmt.Errorf("load credential key: %w", err)
	}
	credVault, err := vault.New(masterKey)
	if err != nil {
		return fmt.Errorf("build vault: %w", err)
	}

	st, err := store.Open(ctx, cfg.PrivateDB.ConnectionString, cfg.SharedDB.ConnectionString, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	redisClient := redis.MustOpen(ctx, cfg.RedisConnURL)
	defer redisClient.Close()
	tokens := cache.NewRedis[*model.User](redisClient, nil, cache.WithPrefix("lockbox:user-token:"))

	objectStore, err := storage.New(storage.Config{
		Bucket:    cfg.StorageBucket,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Endpoint:  cfg.StorageEndpoint,
		Region:    cfg.StorageRegion,
	})
	if err != nil {
		return fmt.Errorf("open object storage: %w", err)
	}
	blobs := blob.New(objectStore)

	portalClient := portal.NewHTTPClient(cfg.PortalBaseURL)

	deps := &handlers.Deps{
		Store:     st,
		Portal:    portalClient,
		NewDriver: func(ctx context.Context) (browser.Driver, error) { return browser.NewChromedpDriver(ctx) },
		Vault:     credVault,
		Blob:      blobs,
		Config:    cfg,
		Logger:    log,
	}

	sched, err := scheduler.New(st.PrivatePool(), scheduler.Config{
		Logger:  log,
		Workers: handlers.Register(deps),
		Periodic: []scheduler.Periodic{
			{
				Schedule: cfg.CheckDayCronSchedule,
				Args:     func() river.JobArgs { return handlers.CheckDayArgs{} },
			},
		},
	})
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}
	deps.Sched = sched

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("scheduler stop failed", "error", err)
		}
	}()

	apiDeps := &api.Deps{
		Store:  st,
		Portal: portalClient,
		Vault:  credVault,
		Blob:   blobs,
		Sched:  sched,
		Config: cfg,
		Logger: log,
		Tokens: tokens,
		Redis:  redisClient,
	}

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      apiDeps.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("task engine listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}
