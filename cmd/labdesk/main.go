package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/labdesk/labdesk/internal/app"
	"github.com/labdesk/labdesk/internal/audit"
	"github.com/labdesk/labdesk/internal/observability"
	"github.com/labdesk/labdesk/internal/platform/cache"
	"github.com/labdesk/labdesk/internal/platform/db"
	"github.com/labdesk/labdesk/internal/projects"
	"github.com/labdesk/labdesk/internal/quotations"
	"github.com/labdesk/labdesk/internal/rbac"
	"github.com/labdesk/labdesk/internal/rfi"
	"github.com/labdesk/labdesk/internal/shared"
	"github.com/labdesk/labdesk/jobs"
	"github.com/labdesk/labdesk/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
	notifier := jobs.NewClient(redisOpts, cfg.NotifyQueue)
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("notifier close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	views := cache.NewViewCache(redisClient, cfg.ViewCacheTTL)
	auditLogger := shared.NewAuditLogger(dbpool)
	projectRepo := projects.NewRepository(dbpool)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	gotenberg := report.NewClient(cfg.GotenbergURL)
	pdfRenderer, err := report.NewQuotationRenderer(gotenberg, "labdesk")
	if err != nil {
		logger.Error("init quotation renderer", slog.Any("error", err))
		os.Exit(1)
	}

	quotationService := quotations.NewService(quotations.ServiceDeps{
		Repo:        quotations.NewRepository(dbpool),
		Projects:    projectRepo,
		Notifier:    notifier,
		Invalidator: views,
		Cache:       views,
		Audit:       auditLogger,
		Metrics:     metrics,
		Logger:      logger.With(slog.String("module", "quotations")),
	})
	rfiService := rfi.NewService(rfi.ServiceDeps{
		Repo:        rfi.NewRepository(dbpool),
		Projects:    projectRepo,
		Notifier:    notifier,
		Invalidator: views,
		Cache:       views,
		Audit:       auditLogger,
		Metrics:     metrics,
		Logger:      logger.With(slog.String("module", "rfi")),
	})

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		QuotationHandler: quotations.NewHandler(logger, quotationService, pdfRenderer, rbacMiddleware),
		RFIHandler:       rfi.NewHandler(logger, rfiService, rbacMiddleware),
		AuditHandler:     audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware),
		JobHandler:       jobs.NewHandler(inspector, cfg.NotifyQueue, logger),
		Metrics:          metrics,
		Checks: map[string]app.Pinger{
			"postgres":  dbpool,
			"redis":     app.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
			"gotenberg": gotenberg,
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return views.Listen(gctx, func(entityID string) {
			logger.Debug("view invalidated", slog.String("entity_id", entityID))
		})
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("labdesk stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
