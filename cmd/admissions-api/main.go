package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/elbaschool/admissions-api/api/swagger"
	"github.com/elbaschool/admissions-api/internal/handler"
	"github.com/elbaschool/admissions-api/internal/middleware"
	"github.com/elbaschool/admissions-api/internal/models"
	"github.com/elbaschool/admissions-api/internal/repository"
	"github.com/elbaschool/admissions-api/internal/service"
	"github.com/elbaschool/admissions-api/pkg/cache"
	"github.com/elbaschool/admissions-api/pkg/config"
	"github.com/elbaschool/admissions-api/pkg/database"
	"github.com/elbaschool/admissions-api/pkg/jobs"
	"github.com/elbaschool/admissions-api/pkg/logger"
	corsmiddleware "github.com/elbaschool/admissions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/elbaschool/admissions-api/pkg/middleware/requestid"
	"github.com/elbaschool/admissions-api/pkg/storage"
)

// @title Elba School Admissions API
// @version 1.0.0
// @description Student registration and admission approval workflow
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Stats.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, statistics cache disabled", "error", err)
			cfg.Stats.CacheEnabled = false
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	defer cacheRepo.Close() //nolint:errcheck

	docStorage, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare document storage", "error", err)
	}
	exportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	regRepo := repository.NewRegistrationRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	reportRepo := repository.NewReportRepository(db)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "admissions-api",
	})

	cacheSvc := service.NewCacheService(cacheRepo, logr, cfg.Stats.CacheTTL, cfg.Stats.CacheEnabled,
		service.WithCacheMetrics(metricsSvc))

	regSvc := service.NewRegistrationService(regRepo, userRepo, docRepo, docStorage, userRepo, validate, logr,
		service.RegistrationServiceConfig{
			SchoolCode:       cfg.School.Code,
			AdmissionYear:    cfg.School.AdmissionYear,
			MaxFileSize:      cfg.Documents.MaxFileSizeBytes,
			PhotoMIMEs:       cfg.Documents.PhotoMIMEs,
			CertificateMIMEs: cfg.Documents.CertificateMIMEs,
		},
		service.WithSubmissionMetrics(metricsSvc))

	approvalSvc := service.NewApprovalService(approvalRepo, userRepo, cacheSvc, logr,
		service.WithApprovalMetrics(metricsSvc))

	var reportSvc *service.ReportService
	exportQueue := jobs.NewQueue("report_exports", func(ctx context.Context, job jobs.Job) error {
		return reportSvc.ProcessExportJob(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc = service.NewReportService(reportRepo, cacheSvc, exportQueue, exportStorage, signer, userRepo, logr,
		service.WithReportMetrics(metricsSvc))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	exportQueue.Start(ctx)
	defer exportQueue.Stop()

	if cfg.Reports.Enabled && cfg.Reports.Retention > 0 {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					removed, err := exportStorage.CleanupOlderThan(cfg.Reports.Retention)
					if err != nil {
						logr.Sugar().Warnw("report artifact cleanup failed", "error", err)
						continue
					}
					if len(removed) > 0 {
						logr.Sugar().Infow("expired report artifacts removed", "count", len(removed))
					}
				}
			}
		}()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	regHandler := handler.NewRegistrationHandler(regSvc, logr)
	approvalHandler := handler.NewApprovalHandler(approvalSvc)
	reportHandler := handler.NewReportHandler(reportSvc, exportStorage)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.Documents.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)

	api.POST("/registrations", regHandler.Submit)
	api.GET("/reports/files", reportHandler.File)

	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleRegistrar)
	reviewers := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	protected := api.Group("", middleware.JWT(authSvc))
	protected.GET("/registrations", staff, regHandler.List)
	protected.GET("/registrations/lookup", staff, regHandler.Lookup)
	protected.GET("/registrations/:id", staff, regHandler.Get)
	protected.GET("/registrations/:id/timeline", staff, reportHandler.Timeline)
	protected.POST("/registrations/:id/approve", reviewers, approvalHandler.Approve)
	protected.POST("/registrations/:id/reject", reviewers, approvalHandler.Reject)
	protected.POST("/registrations/bulk-approve", reviewers,
		middleware.Audit(userRepo, models.AuditActionRegistrationApprove, "approval_batch"),
		approvalHandler.BulkApprove)

	protected.GET("/reports/stats", staff, reportHandler.Stats)
	protected.GET("/reports/approvals", staff, reportHandler.ApprovalReport)
	if cfg.Reports.Enabled {
		protected.POST("/reports/approvals/export", reviewers, reportHandler.Export)
		protected.GET("/reports/exports/:id", staff, reportHandler.ExportStatus)
		protected.GET("/reports/exports/:id/download", staff, reportHandler.Download)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down", zap.Duration("grace_period", 10*time.Second))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
