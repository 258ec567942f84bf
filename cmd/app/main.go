package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"nxfs_api/internal/config"
	"nxfs_api/internal/db"
	"nxfs_api/internal/geo"
	httpServer "nxfs_api/internal/http"
	"nxfs_api/internal/http/handlers"
	"nxfs_api/internal/http/middleware"
	"nxfs_api/internal/logger"
	"nxfs_api/internal/repository"
	"nxfs_api/internal/service"
	"nxfs_api/internal/usage"
	"nxfs_api/internal/worker"
	"nxfs_api/internal/ws"

	"github.com/gin-gonic/gin"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret, cfg.JWTTTL)

	if cfg.MigrateOnStart {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal("migrations failed", "error", err)
		}
		logger.Info("migrations applied")
	}

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	rdb := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		defer rdb.Close()
	}
	middleware.InitRedisRateLimiter(rdb)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()

	userRepo := repository.NewUserRepository(dbPool)
	jobRepo := repository.NewJobRepository(dbPool)

	geocoder := geo.NewCachedGeocoder(geo.NewKartverketClient(cfg.GeocodeBaseURL, cfg.GeocodeTimeout), rdb, cfg.GeocodeCache)
	geocodeSvc := service.NewGeocodeService(jobRepo, geocoder, hub)
	queue := worker.NewGeocodeQueue(geocodeSvc, cfg.GeocodeQueue, cfg.GeocodeWorkers)
	queue.Start(ctx)

	usageSvc := service.NewUsageService(repository.NewUsageRepository(dbPool),
		usage.NewCalculator(cfg.UsageWindow, cfg.UsageTokenLimit), cfg.UsageRetention, hub)
	dockerSvc := service.NewDockerService(repository.NewDockerRepository(dbPool), cfg.DockerHostStale, hub)
	chatSvc := service.NewChatService(repository.NewChatRepository(dbPool), userRepo, service.NewTypingTracker(rdb), hub)
	hub.SetChat(chatSvc)

	h := &handlers.Handler{
		Tasks:     service.NewTaskService(repository.NewTaskRepository(dbPool), hub),
		Blog:      service.NewBlogService(repository.NewBlogRepository(dbPool)),
		Memo:      service.NewMemoService(jobRepo, repository.NewMaterialRepository(dbPool), queue),
		Geocode:   geocodeSvc,
		Queue:     queue,
		Providers: service.NewProviderService(repository.NewProviderRepository(dbPool), rdb),
		Users:     service.NewUserService(userRepo, repository.NewDeviceRepository(dbPool), hub),
		Usage:     usageSvc,
		Docker:    dockerSvc,
		Chat:      chatSvc,
		Presence:  hub,
		Audit:     service.NewAuditService(repository.NewAuditRepository(dbPool)),
	}

	scheduler := worker.NewScheduler(ctx)
	if err := worker.RegisterJobs(scheduler, worker.Intervals{
		UsageCleanup: cfg.UsageCleanup,
		GeocodeSweep: cfg.GeocodeSweep,
		DockerStale:  time.Minute,
	}, usageSvc, geocodeSvc, queue, dockerSvc); err != nil {
		logger.Fatal("failed to schedule jobs", "error", err)
	}
	scheduler.Start()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(), middleware.Metrics())

	// CORS for the frontend on a different domain
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Agent-Signature")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	httpServer.RegisterRoutes(r, h, handlers.NewHealthHandler(dbPool, rdb, version), hub, userRepo, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	scheduler.Stop()
	queue.Wait()

	logger.Info("server exited")
}
