package main

import (
	"context"
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

	_ "github.com/academiafit/academia-api/api/swagger"
	"github.com/academiafit/academia-api/internal/billing"
	"github.com/academiafit/academia-api/internal/handler"
	"github.com/academiafit/academia-api/internal/metrics"
	"github.com/academiafit/academia-api/internal/middleware"
	"github.com/academiafit/academia-api/internal/repository"
	"github.com/academiafit/academia-api/internal/service"
	"github.com/academiafit/academia-api/pkg/cache"
	"github.com/academiafit/academia-api/pkg/config"
	"github.com/academiafit/academia-api/pkg/database"
	"github.com/academiafit/academia-api/pkg/jobs"
	"github.com/academiafit/academia-api/pkg/logger"
	corsmiddleware "github.com/academiafit/academia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/academiafit/academia-api/pkg/middleware/requestid"
)

// @title Academia API
// @version 1.0.0
// @description Gym membership, enrollment lifecycle and billing API
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

	loc, err := time.LoadLocation(cfg.Billing.Timezone)
	if err != nil {
		logr.Sugar().Warnw("invalid billing timezone, falling back", "timezone", cfg.Billing.Timezone, "fallback", billing.DefaultTimezone)
		loc, err = time.LoadLocation(billing.DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	validate := validator.New()
	metricSet := metrics.New()

	// Repositories.
	studentRepo := repository.NewStudentRepository(db)
	planRepo := repository.NewPlanRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	dependentRepo := repository.NewDependentRepository(db)
	installmentRepo := repository.NewInstallmentRepository(db)
	userRepo := repository.NewUserRepository(db)

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled && redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	// A typed-nil *CacheRepository inside the interface would defeat the
	// services' nil checks, hence the explicit guard.
	var cacheStore service.CacheStore
	if cacheRepo != nil {
		cacheStore = cacheRepo
	}

	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, enrollmentRepo, cacheStore, cfg.Cache.TTL, validate, logr)
	planSvc := service.NewPlanService(planRepo, cacheStore, cfg.Cache.TTL, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, planRepo, dependentRepo, installmentRepo, validate, logr, loc)
	renewalSvc := service.NewRenewalService(enrollmentRepo, enrollmentSvc, dependentRepo, installmentRepo, validate, logr, loc)
	installmentSvc := service.NewInstallmentService(installmentRepo, enrollmentRepo, enrollmentSvc, validate, logr, loc)
	sweepSvc := service.NewSweepService(enrollmentRepo, installmentRepo, metricSet, cfg.Billing.ExpiryGraceDays, logr, loc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(metricSet.GinMiddleware())
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricSet.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	handler.NewAuthHandler(authSvc).Register(api)

	protected := r.Group(cfg.APIPrefix)
	protected.Use(middleware.JWTAuth(authSvc))
	handler.NewStudentHandler(studentSvc).Register(protected)
	handler.NewPlanHandler(planSvc).Register(protected)
	handler.NewEnrollmentHandler(enrollmentSvc, renewalSvc).Register(protected)
	handler.NewInstallmentHandler(installmentSvc).Register(protected)
	handler.NewSweepHandler(sweepSvc).Register(protected)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var scheduler *jobs.Scheduler
	if cfg.Sweeps.Enabled {
		scheduler = jobs.NewScheduler(sweepSvc.Tasks(), jobs.SchedulerConfig{
			Interval:   cfg.Sweeps.Interval,
			RunOnStart: true,
			Logger:     logr,
		})
		scheduler.Start(ctx)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}

	logr.Sugar().Infow("server stopped", "addr", addr)
}
