package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable/api/swagger"
	"github.com/noah-isme/sma-timetable/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/pkg/cache"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/database"
	"github.com/noah-isme/sma-timetable/pkg/export"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
	"github.com/noah-isme/sma-timetable/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable/pkg/middleware/requestid"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

// @title SMA Timetable API
// @version 0.1.0
// @description Greedy course-to-room timetable assignment
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	var db *sqlx.DB
	var runRepo *repository.TimetableRunRepository
	if cfg.Database.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect database", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		if err := database.EnsureSchema(ctx, db); err != nil {
			logr.Fatal("failed to apply schema", zap.Error(err))
		}
		runRepo = repository.NewTimetableRunRepository(db)
		checks["database"] = db.PingContext
	}

	var cacheSvc *service.CacheService
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		cacheRepo := repository.NewCacheRepository(client, repository.DefaultCachePrefix, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Scheduler.CacheTTL, logr, cfg.Scheduler.CacheResults)
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	timetableCfg, err := service.NewTimetableConfig(cfg.Scheduler)
	if err != nil {
		logr.Fatal("invalid scheduler config", zap.Error(err))
	}
	timetableSvc := newTimetableService(runRepo, db, cfg, cacheSvc, metricsSvc, logr, timetableCfg)

	var (
		exportSvc    *service.ExportService
		exportWorker *service.ExportWorker
	)
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			RenderPDF: cfg.Exports.RenderPDF,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr, export.NewCSVExporter(true), export.NewPDFExporter(cfg.Exports.PDFFontFile))

		var statusRepo *repository.TimetableRunRepository
		if cfg.Scheduler.PersistRuns {
			statusRepo = runRepo
		}
		exportWorker = newExportWorker(exportSvc, timetableSvc, statusRepo, metricsSvc, logr)

		queue := jobs.NewQueue("timetable-exports", exportWorker.Handle, jobs.QueueConfig{
			Workers:     cfg.Exports.WorkerConcurrency,
			MaxRetries:  cfg.Exports.WorkerRetries,
			RetryDelay:  2 * time.Second,
			Logger:      logr,
			OnExhausted: exportWorker.MarkFailed,
		})
		queue.Start(ctx)
		defer queue.Stop()
		exportWorker.AttachQueue(queue)
		timetableSvc.AttachExports(exportWorker)

		go runJanitor(ctx, exportSvc, timetableSvc, cfg.Exports.SignedURLTTL, logr)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health"))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	var timetableHandler *handler.TimetableHandler
	if exportSvc != nil {
		timetableHandler = handler.NewTimetableHandler(timetableSvc, exportWorker, exportSvc)
	} else {
		timetableHandler = handler.NewTimetableHandler(timetableSvc, nil, nil)
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", metricsHandler.Summary)
	api.POST("/timetables", timetableHandler.Assign)
	api.GET("/timetables", timetableHandler.List)
	api.GET("/timetables/:id", timetableHandler.Get)
	api.GET("/timetables/:id/exports", timetableHandler.Exports)
	api.GET("/export/:token", timetableHandler.Download)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

// newTimetableService keeps nil repositories from turning into non-nil interfaces.
func newTimetableService(runRepo *repository.TimetableRunRepository, db *sqlx.DB, cfg *config.Config, cacheSvc *service.CacheService, metricsSvc *service.MetricsService, logr *zap.Logger, timetableCfg service.TimetableConfig) *service.TimetableService {
	validate := validator.New()
	if runRepo == nil || !cfg.Scheduler.PersistRuns {
		return service.NewTimetableService(nil, nil, cacheSvc, metricsSvc, validate, logr, timetableCfg)
	}
	return service.NewTimetableService(runRepo, db, cacheSvc, metricsSvc, validate, logr, timetableCfg)
}

func newExportWorker(exportSvc *service.ExportService, timetableSvc *service.TimetableService, statusRepo *repository.TimetableRunRepository, metricsSvc *service.MetricsService, logr *zap.Logger) *service.ExportWorker {
	if statusRepo == nil {
		return service.NewExportWorker(exportSvc, timetableSvc, nil, metricsSvc, logr)
	}
	return service.NewExportWorker(exportSvc, timetableSvc, statusRepo, metricsSvc, logr)
}

func runJanitor(ctx context.Context, exports *service.ExportService, timetables *service.TimetableService, ttl time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(ttl)
			if err != nil {
				logr.Warn("artifact cleanup failed", zap.Error(err))
			}
			purged := timetables.PurgeExpired()
			if len(removed) > 0 || purged > 0 {
				logr.Info("janitor pass", zap.Int("artifacts_removed", len(removed)), zap.Int("results_purged", purged))
			}
		}
	}
}
