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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/peer-tutoring-api/api/swagger"
	"github.com/noah-isme/peer-tutoring-api/internal/handler"
	internalmiddleware "github.com/noah-isme/peer-tutoring-api/internal/middleware"
	"github.com/noah-isme/peer-tutoring-api/internal/models"
	"github.com/noah-isme/peer-tutoring-api/internal/repository"
	"github.com/noah-isme/peer-tutoring-api/internal/scheduler"
	"github.com/noah-isme/peer-tutoring-api/internal/service"
	"github.com/noah-isme/peer-tutoring-api/internal/timeslot"
	"github.com/noah-isme/peer-tutoring-api/pkg/cache"
	"github.com/noah-isme/peer-tutoring-api/pkg/config"
	"github.com/noah-isme/peer-tutoring-api/pkg/database"
	"github.com/noah-isme/peer-tutoring-api/pkg/export"
	"github.com/noah-isme/peer-tutoring-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/peer-tutoring-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/peer-tutoring-api/pkg/middleware/requestid"
	"github.com/noah-isme/peer-tutoring-api/pkg/storage"
)

// @title Peer Tutoring API
// @version 1.0.0
// @description Pairs participants who offer help with participants who seek it
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, matching preview cache disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient)
	defer cacheRepo.Close() //nolint:errcheck

	catalog, err := timeslot.NewCatalog(defaultIfEmpty(cfg.Timeslots.Days, timeslot.DefaultDays), defaultIfEmpty(cfg.Timeslots.PeriodEnds, timeslot.DefaultPeriodEnds), cfg.Timeslots.LoadLocation())
	if err != nil {
		logr.Fatal("invalid timeslot catalog", zap.Error(err))
	}
	clock, err := timeslot.NewSystemClock(cfg.Completion.SimulatedNow, catalog.Location())
	if err != nil {
		logr.Fatal("invalid simulated clock", zap.Error(err))
	}
	if clock.Simulated() {
		logr.Info("completion clock pinned", zap.Time("now", clock.Now()))
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	participantRepo := repository.NewParticipantRepository(db)
	requestRepo := repository.NewPairingRequestRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Matching.PreviewTTL, logr, cfg.Matching.CacheEnabled && redisClient != nil)
	events := service.NewPairingEventService(cacheSvc, logr, cfg.Events.Workers, cfg.Events.Retries)
	events.Start(ctx)
	defer events.Stop()
	metricsSvc.RegisterQueue("pairing_events", events.Queue())

	authSvc := service.NewAuthService(participantRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	participantSvc := service.NewParticipantService(participantRepo, participantRepo, catalog, validate, logr)
	requestSvc := service.NewPairingRequestService(requestRepo, participantRepo, db, catalog, validate, metricsSvc, events, logr)
	matchingSvc := service.NewMatchingService(requestRepo, participantRepo, db, catalog, clock, cacheSvc, metricsSvc, events, logr, service.MatchingConfig{
		MaxLevelGap: cfg.Matching.MaxLevelGap,
		PreviewTTL:  cfg.Matching.PreviewTTL,
	})
	completionSvc := service.NewCompletionService(requestRepo, db, catalog, clock, metricsSvc, events, logr)
	rosterSvc := service.NewRosterService(requestRepo, export.NewRenderer(), logr)
	if snapshots, err := storage.NewLocalStorage(cfg.Export.Dir); err != nil {
		logr.Warn("roster snapshots disabled", zap.Error(err))
	} else {
		rosterSvc.WithSnapshots(snapshots, storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Export.LinkTTL))
	}

	if created, err := participantSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword, cfg.Bootstrap.AdminName); err != nil {
		logr.Error("failed to bootstrap administrator", zap.Error(err))
	} else if created {
		logr.Info("bootstrap administrator created", zap.String("email", cfg.Bootstrap.AdminEmail))
	}

	if cfg.Completion.Enabled {
		completionJob := scheduler.NewCompletionScheduler(completionSvc, cfg.Completion.Interval, logr)
		completionJob.Start(ctx)
		defer completionJob.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health"))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
		"postgres": db,
		"redis":    handler.PingFunc(cacheRepo.Ping),
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	participantHandler := handler.NewParticipantHandler(participantSvc, requestSvc)
	requestHandler := handler.NewPairingRequestHandler(requestSvc)
	matchingHandler := handler.NewMatchingHandler(matchingSvc)
	completionHandler := handler.NewCompletionHandler(completionSvc, clock.Now)
	rosterHandler := handler.NewRosterHandler(rosterSvc)
	timeslotHandler := handler.NewTimeslotHandler(catalog)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/pairings/roster/download", rosterHandler.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/timeslots", timeslotHandler.List)

	adminOnly := internalmiddleware.RequireRoles(models.RoleAdmin)

	participants := secured.Group("/participants")
	participants.POST("", adminOnly, internalmiddleware.Audit(logr, "participant.create"), participantHandler.Create)
	participants.GET("", adminOnly, participantHandler.List)
	participants.GET("/:id", internalmiddleware.RBAC(string(models.RoleAdmin), internalmiddleware.SelfRole), participantHandler.Get)
	participants.DELETE("/:id", adminOnly, internalmiddleware.Audit(logr, "participant.delete"), participantHandler.Delete)

	requests := secured.Group("/pairing-requests")
	requests.POST("", requestHandler.Create)
	requests.GET("", requestHandler.ListMine)
	requests.GET("/:id", requestHandler.Get)
	requests.POST("/:id/cancel", internalmiddleware.Audit(logr, "pairing_request.cancel"), requestHandler.Cancel)
	requests.POST("/:id/archive", internalmiddleware.Audit(logr, "pairing_request.archive"), requestHandler.Archive)

	secured.GET("/matching/preview", adminOnly, matchingHandler.Preview)
	secured.POST("/matching/run", adminOnly, internalmiddleware.Audit(logr, "matching.run"), matchingHandler.Run)
	secured.POST("/completion/run", adminOnly, internalmiddleware.Audit(logr, "completion.run"), completionHandler.Run)
	secured.GET("/pairings/roster", adminOnly, rosterHandler.Export)
	secured.POST("/pairings/roster/snapshots", adminOnly, rosterHandler.Snapshot)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func defaultIfEmpty(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}
