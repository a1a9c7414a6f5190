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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/smartpass-api/api/swagger"
	"github.com/noah-isme/smartpass-api/internal/handler"
	"github.com/noah-isme/smartpass-api/internal/middleware"
	"github.com/noah-isme/smartpass-api/internal/repository"
	"github.com/noah-isme/smartpass-api/internal/service"
	"github.com/noah-isme/smartpass-api/pkg/cache"
	"github.com/noah-isme/smartpass-api/pkg/clock"
	"github.com/noah-isme/smartpass-api/pkg/config"
	"github.com/noah-isme/smartpass-api/pkg/database"
	"github.com/noah-isme/smartpass-api/pkg/ids"
	"github.com/noah-isme/smartpass-api/pkg/jobs"
	"github.com/noah-isme/smartpass-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/smartpass-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/smartpass-api/pkg/middleware/requestid"
)

// @title SmartPass Workflow API
// @version 1.0.0
// @description Campus workflow and audit engine: attendance, registrations, counseling, help desk and approvals.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	clk := clock.Real()
	gen := ids.NewGenerator(clk)
	validate := validator.New()
	metrics := service.NewMetricsService()
	tx := database.NewTransactor(db)

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	eventRepo := repository.NewEventRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	wellnessRepo := repository.NewWellnessRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, cfg.Redis.Namespace, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Identity.NameCacheTTL, logr, redisClient != nil)
	auditSvc := service.NewAuditService(auditRepo, gen, clk, service.AuditConfig{
		DefaultLimit: cfg.Workflow.AuditDefaultLimit,
		MaxLimit:     cfg.Workflow.AuditMaxLimit,
	}, metrics, logr)

	var exporter *service.AuditExportService
	if cfg.AuditExport.Enabled && redisClient != nil {
		stream := repository.NewAuditStreamRepository(redisClient, cfg.AuditExport.Stream, cfg.AuditExport.MaxLen)
		exporter = service.NewAuditExportService(stream, jobs.QueueConfig{
			Workers:    cfg.AuditExport.Workers,
			MaxRetries: cfg.AuditExport.Retries,
			RetryDelay: cfg.AuditExport.RetryDelay,
		}, metrics, logr)
		auditSvc.SetExporter(exporter)
	} else if cfg.AuditExport.Enabled {
		logr.Warn("audit export enabled but redis is unavailable; export disabled")
	}

	identitySvc := service.NewIdentityService(userRepo, tx, auditSvc, cacheSvc, gen, clk, service.IdentityConfig{
		NameCacheTTL:      cfg.Identity.NameCacheTTL,
		MinPasswordLength: cfg.Workflow.MinPasswordLength,
	}, validate, logr)
	authSvc := service.NewAuthService(userRepo, auditSvc, clk, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, identitySvc, auditSvc, clk, metrics, logr)
	registrationSvc := service.NewRegistrationService(registrationRepo, userRepo, tx, auditSvc, gen, clk, cfg.Workflow.MinPasswordLength, validate, metrics, logr)
	eventSvc := service.NewEventService(eventRepo, identitySvc, auditSvc, gen, clk, metrics, logr)
	ticketSvc := service.NewTicketService(ticketRepo, auditSvc, gen, clk, metrics, logr)
	approvalSvc := service.NewApprovalService(approvalRepo, auditSvc, gen, clk, metrics, logr)
	wellnessSvc := service.NewWellnessService(wellnessRepo, identitySvc, auditSvc, clk, logr)
	messageSvc := service.NewMessageService(messageRepo, identitySvc, auditSvc, clk, metrics, logr)
	courseSvc := service.NewCourseService(courseRepo)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	checks := map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return db.PingContext(ctx) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return pingRedis(ctx, redisClient) }
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Audit:         handler.NewAuditHandler(auditSvc),
		Users:         handler.NewUserHandler(identitySvc),
		Attendance:    handler.NewAttendanceHandler(attendanceSvc),
		Registrations: handler.NewRegistrationHandler(registrationSvc),
		Events:        handler.NewEventHandler(eventSvc),
		Tickets:       handler.NewTicketHandler(ticketSvc),
		Approvals:     handler.NewApprovalHandler(approvalSvc),
		Wellness:      handler.NewWellnessHandler(wellnessSvc),
		Messages:      handler.NewMessageHandler(messageSvc),
		Courses:       handler.NewCourseHandler(courseSvc),
	}, handler.RouteGuards{
		Auth:         middleware.JWT(authSvc),
		ScanThrottle: middleware.NewScanThrottle(cfg.RFID.ScanRatePerSecond, cfg.RFID.ScanBurst, metrics).Handler(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if exporter != nil {
		exporter.Start(ctx)
		defer exporter.Stop()
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
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func pingRedis(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
