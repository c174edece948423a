package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"nexus.backend/internal/config"
	"nexus.backend/internal/infrastructure/datasources/postgres"
	"nexus.backend/internal/infrastructure/jobs"
	"nexus.backend/internal/infrastructure/metrics"
	"nexus.backend/internal/infrastructure/repositories"
	"nexus.backend/internal/interfaces/http/handlers"
	"nexus.backend/internal/interfaces/http/middleware"
	"nexus.backend/internal/interfaces/ws"
	"nexus.backend/internal/usecases"
	"nexus.backend/pkg/jwt"
	"nexus.backend/pkg/logger"
	"nexus.backend/pkg/redis"
)

const (
	issueGuardPrefix = "nexus:issue:"
	shutdownTimeout  = 15 * time.Second
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = postgres.NewConnection
	migrateDB  = postgres.Migrate
	runServer  = func(srv *http.Server) error { return srv.ListenAndServe() }
	getStdDB   = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	// Redis backs the code issuance guard and request idempotency
	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Error(ctx, "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(ctx, "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if cfg.Database.AutoMigrate {
		if err := migrateDB(db); err != nil {
			return err
		}
		logger.Info(ctx, "Database schema migrated")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New()
	if err := m.Register(registry); err != nil {
		return err
	}

	// Repositories
	identityRepo := repositories.NewIdentityRepository(db)
	codeRepo := repositories.NewLinkCodeRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)
	blockRepo := repositories.NewBlockBreakRepository(db)
	uow := repositories.NewUnitOfWork(db)

	// Usecases
	guard := usecases.NewIssueGuard(
		redis.NewSlidingWindowLimiter(redis.GetClient(), issueGuardPrefix, cfg.Linking.RateLimit, cfg.Linking.RateWindow),
	)
	linkUsecase := usecases.NewAccountLinkUsecase(
		identityRepo,
		codeRepo,
		auditRepo,
		uow,
		usecases.NewRandomCodeGenerator(),
		guard,
		m,
		cfg.Linking.CodeTTL,
	)
	telemetryUsecase := usecases.NewTelemetryUsecase(blockRepo, m)

	// Codes issued by a previous process are void before any game server connects
	expiryJob := jobs.NewLinkCodeExpiryJob(codeRepo, auditRepo, uow, m, cfg.Linking.SweepInterval, cfg.Linking.SweepBatch)
	if _, err := expiryJob.InvalidateOnStartup(ctx); err != nil {
		return fmt.Errorf("failed to invalidate pending link codes: %w", err)
	}

	wsServer, err := ws.NewServer(cfg.Transport, linkUsecase, telemetryUsecase, m)
	if err != nil {
		return fmt.Errorf("failed to create websocket server: %w", err)
	}

	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	go expiryJob.Start(jobCtx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware("/health", "/metrics"))

	d := routeDeps{
		accountLinkHandler: handlers.NewAccountLinkHandler(linkUsecase),
		healthHandler: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"database": sqlDB.PingContext,
			"redis":    redis.Ping,
		}),
		wsHandler:      wsServer.Handle,
		metricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	}
	if cfg.JWT.RequiredAuth {
		jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.ServiceTTL)
		d.chatBotAuth = []gin.HandlerFunc{middleware.ServiceAuthMiddleware(jwtService), middleware.RequireRole(jwt.RoleChatBot)}
		d.gameServerAuth = []gin.HandlerFunc{middleware.ServiceAuthMiddleware(jwtService), middleware.RequireRole(jwt.RoleGameServer)}
	} else {
		logger.Warn(ctx, "JWT_SECRET not set, service authentication disabled")
	}

	registerHealthRoute(r, d)
	registerAPIV1Routes(r, d)
	registerRealtimeRoutes(r, d)

	for _, route := range r.Routes() {
		logger.Debug(ctx, "Route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info(ctx, "Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "HTTP shutdown failed", zap.Error(err))
		}
	}()

	logger.Info(ctx, "Nexus backend starting",
		zap.String("port", cfg.Server.Port),
		zap.Bool("service_auth", cfg.JWT.RequiredAuth),
	)
	serveErr := runServer(srv)

	expiryJob.Stop()
	cancelJobs()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "Websocket shutdown incomplete", zap.Error(err))
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", serveErr)
	}
	logger.Info(ctx, "Server stopped")
	return nil
}
