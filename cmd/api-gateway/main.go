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
	"go.uber.org/zap"

	_ "github.com/noah-isme/club-collab-api/api/swagger"
	"github.com/noah-isme/club-collab-api/internal/handler"
	"github.com/noah-isme/club-collab-api/internal/middleware"
	"github.com/noah-isme/club-collab-api/internal/repository"
	"github.com/noah-isme/club-collab-api/internal/service"
	"github.com/noah-isme/club-collab-api/pkg/bus"
	"github.com/noah-isme/club-collab-api/pkg/cache"
	"github.com/noah-isme/club-collab-api/pkg/config"
	"github.com/noah-isme/club-collab-api/pkg/database"
	"github.com/noah-isme/club-collab-api/pkg/jobs"
	"github.com/noah-isme/club-collab-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/club-collab-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/club-collab-api/pkg/middleware/requestid"
	"github.com/noah-isme/club-collab-api/pkg/storage"
)

// @title Club Collab API
// @version 1.0.0
// @description Live classroom collaboration engine for programming club sessions
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close()

	fabric := bus.NewRedisBus(redisClient, logr)

	// Repositories.
	eventRepo := repository.NewEventRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	rosterRepo := repository.NewRosterRepository(db)

	// Services.
	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	eventSvc := service.NewEventService(eventRepo, fabric, metricsSvc, logr)
	presenceSvc := service.NewPresenceService(rosterRepo, eventSvc, eventRepo, logr)
	stateSvc := service.NewTeamStateService(rosterRepo, eventSvc, eventRepo, presenceSvc, logr)
	codesyncSvc := service.NewCodeSyncService(fabric, cfg.Collab.SyncWindow, metricsSvc, logr)
	authSvc := service.NewAuthService(cfg.JWT, logr)
	rosterFacade := service.NewRosterFacade(rosterRepo)

	var gradingQueue *jobs.Queue
	var submissionSvc *service.SubmissionService
	if cfg.Grading.Enabled {
		grader := service.NewHTTPGrader(cfg.Grading.RunnerURL, cfg.Grading.CallbackKey, cfg.Grading.Timeout)
		worker := service.NewGradingWorker(submissionRepo, grader, logr)
		gradingQueue = jobs.NewQueue("grading", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Grading.Workers,
			MaxRetries: cfg.Grading.MaxRetries,
			RetryDelay: cfg.Grading.RetryDelay,
			Logger:     logr,
		})
		gradingQueue.Start(ctx)
		defer gradingQueue.Stop()
		submissionSvc = service.NewSubmissionService(submissionRepo, rosterRepo, stateSvc, codesyncSvc, eventSvc, gradingQueue, validate, logr)
	} else {
		submissionSvc = service.NewSubmissionService(submissionRepo, rosterRepo, stateSvc, codesyncSvc, eventSvc, nil, validate, logr)
	}

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportSvc = service.NewReportService(eventSvc, rosterRepo, store, signer, logr)
	}

	// Transport.
	hub := handler.NewHub(fabric, codesyncSvc, logr)
	wsHandler := handler.NewWSHandler(hub, presenceSvc, stateSvc, codesyncSvc, submissionSvc, rosterFacade, metricsSvc, cfg.Collab, logr)
	presenceHandler := handler.NewPresenceHandler(presenceSvc)
	teamHandler := handler.NewTeamHandler(stateSvc)
	eventHandler := handler.NewEventHandler(eventSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc, cfg.Grading.CallbackKey)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
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
	authed := api.Group("", middleware.JWT(authSvc))

	authed.GET("/ws", wsHandler.Connect)

	authed.POST("/classes/:id/join", presenceHandler.JoinClass)
	authed.POST("/classes/:id/leave", presenceHandler.LeaveClass)
	authed.GET("/classes/:id/events", eventHandler.History)

	authed.POST("/teams/:id/join", presenceHandler.JoinTeam)
	authed.POST("/teams/:id/leave", presenceHandler.LeaveTeam)
	authed.GET("/teams/:id/curators", presenceHandler.JoinedCurators)
	authed.GET("/teams/:id/curators/:curatorID", presenceHandler.CuratorMembership)
	authed.POST("/teams/:id/block", teamHandler.ToggleBlock)
	authed.POST("/teams/:id/hand", teamHandler.ToggleHand)
	authed.POST("/teams/:id/task", teamHandler.SelectTask)
	authed.GET("/teams/:id/status", teamHandler.Status)

	authed.POST("/teams/:id/submissions", submissionHandler.Submit)
	authed.GET("/teams/:id/submissions", submissionHandler.ListByTeam)
	authed.GET("/submissions/:id", submissionHandler.Get)
	api.POST("/grading/results", submissionHandler.GradingResult)

	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc)
		authed.GET("/classes/:id/export", reportHandler.Export)
		api.GET("/exports/download", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down", zap.Duration("grace", 10*time.Second))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("shutdown incomplete", "error", err)
	}
}
