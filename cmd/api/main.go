package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/straywatch/straywatch-api/api/swagger"
	"github.com/straywatch/straywatch-api/internal/events"
	"github.com/straywatch/straywatch-api/internal/handler"
	"github.com/straywatch/straywatch-api/internal/middleware"
	"github.com/straywatch/straywatch-api/internal/models"
	"github.com/straywatch/straywatch-api/internal/repository"
	"github.com/straywatch/straywatch-api/internal/service"
	"github.com/straywatch/straywatch-api/pkg/config"
	"github.com/straywatch/straywatch-api/pkg/database"
	"github.com/straywatch/straywatch-api/pkg/jobs"
	"github.com/straywatch/straywatch-api/pkg/locks"
	"github.com/straywatch/straywatch-api/pkg/logger"
	corsmiddleware "github.com/straywatch/straywatch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/straywatch/straywatch-api/pkg/middleware/requestid"

	rediscache "github.com/straywatch/straywatch-api/pkg/cache"
)

// @title StrayWatch API
// @version 1.0.0
// @description Coordination core for stray animal incident reporting, patrol dispatch and shelter custody
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var locker locks.Locker
	var cacheRepo *repository.CacheRepository
	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		// Single-node fallback: entity locks stay correct in-process, the
		// dashboard just loses its cache.
		logr.Sugar().Warnw("redis unavailable, using in-memory locks", "error", err)
		locker = locks.NewMemoryLocker(cfg.Locks.AcquireWait)
	} else {
		defer redisClient.Close() //nolint:errcheck
		locker = locks.NewRedisLocker(redisClient, cfg.Locks.AcquireWait, cfg.Locks.TTL)
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}

	bus := events.NewBus(logr)

	incidentRepo := repository.NewIncidentRepository(db)
	animalRepo := repository.NewAnimalRepository(db)
	patrolRepo := repository.NewPatrolRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	rfidRepo := repository.NewRFIDRepository(db)
	userRepo := repository.NewUserRepository(db)
	statusRepo := repository.NewStatusRepository(db)

	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Dashboard.CacheTTL, logr, cacheRepo != nil)

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "straywatch-api",
		Audience:           []string{"straywatch"},
	})

	incidentService := service.NewIncidentService(incidentRepo, auditRepo, patrolRepo, locker, bus, nil, logr)
	animalService := service.NewAnimalService(animalRepo, rfidRepo, auditRepo, locker, bus, nil, logr)
	patrolService := service.NewPatrolService(patrolRepo, incidentService, animalService, auditRepo, locker, nil, logr)
	notificationService := service.NewNotificationService(notificationRepo, userRepo, logr)
	rfidService := service.NewRFIDService(rfidRepo, logr)
	statusService := service.NewStatusService(statusRepo, cacheService, cfg.Dashboard.CacheTTL, logr)
	exportService := service.NewExportService(incidentRepo, animalRepo, service.ExportConfig{
		Enabled: cfg.Exports.Enabled,
		MaxRows: cfg.Exports.MaxRows,
	}, logr, nil, nil)
	auditService := service.NewAuditService(auditRepo)

	// Fan-out runs off the publisher's goroutine. The dedupe key makes retried
	// deliveries idempotent, so the queue's at-least-once semantics are safe.
	fanoutQueue := jobs.NewQueue("notification-fanout", func(ctx context.Context, job jobs.Job) error {
		return notificationService.OnEvent(ctx, job.Event)
	}, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	fanoutQueue.Start(context.Background())
	defer fanoutQueue.Stop()

	bus.Subscribe(func(ctx context.Context, event events.Event) error {
		return fanoutQueue.Enqueue(jobs.Job{ID: uuid.NewString(), Event: event})
	})

	authHandler := handler.NewAuthHandler(authService)
	incidentHandler := handler.NewIncidentHandler(incidentService)
	patrolHandler := handler.NewPatrolHandler(patrolService)
	animalHandler := handler.NewAnimalHandler(animalService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	rfidHandler := handler.NewRFIDHandler(rfidService)
	statusHandler := handler.NewStatusHandler(statusService)
	exportHandler := handler.NewExportHandler(exportService)
	auditHandler := handler.NewAuditHandler(auditService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	incidents := api.Group("/incidents")
	{
		incidents.POST("", middleware.OptionalJWT(authService), incidentHandler.Submit)
		incidents.GET("", middleware.JWT(authService), incidentHandler.List)
		incidents.GET("/:id", middleware.JWT(authService), incidentHandler.Get)
		incidents.POST("/:id/transitions", middleware.JWT(authService), incidentHandler.Transition)
		incidents.PATCH("/:id/priority", middleware.JWT(authService),
			middleware.RequireRoles(models.RoleVeterinarian, models.RoleAdmin), incidentHandler.SetPriority)
	}

	patrols := api.Group("/patrols", middleware.JWT(authService))
	{
		patrols.POST("", middleware.RequireRoles(models.RoleAdmin), patrolHandler.Assign)
		patrols.GET("", patrolHandler.List)
		patrols.GET("/:id", patrolHandler.Get)
		patrols.PATCH("/:id/status",
			middleware.RequireRoles(models.RoleCatcher, models.RoleAdmin), patrolHandler.UpdateStatus)
	}

	animals := api.Group("/animals", middleware.JWT(authService))
	{
		staff := middleware.RequireRoles(models.RoleCatcher, models.RoleVeterinarian, models.RoleAdmin)
		animals.POST("", staff, animalHandler.Intake)
		animals.GET("", animalHandler.List)
		animals.GET("/:id", animalHandler.Get)
		animals.GET("/:id/observations", animalHandler.Observations)
		animals.POST("/:id/observe",
			middleware.RequireRoles(models.RoleVeterinarian, models.RoleAdmin), animalHandler.MoveToObservation)
		animals.POST("/:id/release-observation",
			middleware.RequireRoles(models.RoleVeterinarian, models.RoleAdmin), animalHandler.ReturnToCaptured)
		animals.POST("/:id/list-for-adoption",
			middleware.RequireRoles(models.RoleVeterinarian, models.RoleAdmin), animalHandler.ListForAdoption)
		animals.POST("/:id/redeem", staff, animalHandler.Redeem)
		animals.POST("/:id/adopt", staff, animalHandler.Adopt)
	}

	notifications := api.Group("/notifications", middleware.JWT(authService))
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
		notifications.DELETE("/:id", notificationHandler.Delete)
	}

	rfid := api.Group("/rfid", middleware.JWT(authService))
	{
		staff := middleware.RequireRoles(models.RoleCatcher, models.RoleVeterinarian, models.RoleAdmin)
		rfid.GET("/:tag", staff, rfidHandler.Resolve)
		rfid.POST("", middleware.RequireRoles(models.RoleAdmin), rfidHandler.Register)
	}

	if cfg.Dashboard.Enabled {
		status := api.Group("/status", middleware.JWT(authService),
			middleware.RequireRoles(models.RoleVeterinarian, models.RoleAdmin))
		{
			status.GET("/snapshot", statusHandler.Snapshot)
			status.GET("/map", statusHandler.MapMarkers)
			status.GET("/trend", statusHandler.Trend)
		}
	}

	exports := api.Group("/exports", middleware.JWT(authService),
		middleware.RequireRoles(models.RoleAdmin))
	{
		exports.GET("/incidents", exportHandler.IncidentRegister)
		exports.GET("/animals", exportHandler.AnimalRegister)
	}

	api.GET("/audit/:entity_type/:id", middleware.JWT(authService),
		middleware.RequireRoles(models.RoleVeterinarian, models.RoleAdmin), auditHandler.Trail)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
