package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chronicle-dev/chronicle/internal/ai"
	"github.com/chronicle-dev/chronicle/internal/cache"
	"github.com/chronicle-dev/chronicle/internal/config"
	"github.com/chronicle-dev/chronicle/internal/domain/digest"
	"github.com/chronicle-dev/chronicle/internal/domain/event"
	"github.com/chronicle-dev/chronicle/internal/domain/resource"
	"github.com/chronicle-dev/chronicle/internal/domain/summary"
	"github.com/chronicle-dev/chronicle/internal/retry"
	"github.com/chronicle-dev/chronicle/internal/scheduler"
	"github.com/chronicle-dev/chronicle/internal/scm"
	"github.com/chronicle-dev/chronicle/internal/sqlite"
	"github.com/chronicle-dev/chronicle/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		logger.Error("failed to prepare database path", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	resourceRepo := sqlite.NewResourceRepository(db)
	eventRepo := sqlite.NewEventRepository(db)
	digestRepo := sqlite.NewDigestRepository(db)
	summaryRepo := sqlite.NewSummaryRepository(db)
	cacheRepo := sqlite.NewCacheRepository(db)
	apiKeyRepo := sqlite.NewAPIKeyRepository(db)

	guard := resource.NewGuard(resourceRepo, logger)
	resourceSvc := resource.NewService(resourceRepo, logger)
	retryPolicy := retry.NewPolicy(cfg.Retry.Delay(), logger)
	genCache := cache.New(cacheRepo, cfg.Cache.TTL(), logger)
	generator := ai.NewClient(cfg.AI)
	scmClient := scm.NewClient(cfg.SCM, logger)

	eventSvc := event.NewService(guard, eventRepo, logger)
	digestSvc := digest.NewService(guard, eventRepo, digestRepo, genCache, generator, scmClient, retryPolicy, logger)
	summarySvc := summary.NewService(guard, summaryRepo, digestRepo, generator, retryPolicy, cfg.Summary.WriteInterval(), logger)
	digestSvc.SetIncorporator(summarySvc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewService(summarySvc, digestRepo, &tenantDirectory{resources: resourceRepo}, cacheRepo, logger)
		if err := sched.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		defer sched.Stop()
	}

	router := transport.NewServer(eventSvc, digestSvc, summarySvc, resourceSvc,
		transport.AuthMiddleware(&apiKeyResolver{keys: apiKeyRepo}))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer)
}

// tenantDirectory adapts the resource repository for the scheduler.
type tenantDirectory struct {
	resources *sqlite.ResourceRepository
}

func (d *tenantDirectory) GetTenantID(ctx context.Context, resourceID string) (string, error) {
	res, err := d.resources.Get(ctx, resourceID)
	if err != nil {
		return "", err
	}
	return res.TenantID, nil
}

// apiKeyResolver hashes bearer tokens and resolves them to tenants.
type apiKeyResolver struct {
	keys *sqlite.APIKeyRepository
}

func (r *apiKeyResolver) ResolveTenant(ctx context.Context, token string) (string, error) {
	sum := sha256.Sum256([]byte(token))
	return r.keys.ResolveTenant(ctx, hex.EncodeToString(sum[:]))
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func waitForShutdown(logger *slog.Logger, server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
