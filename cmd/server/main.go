package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/banton/medical-patients-sub001/internal/cache"
	"github.com/banton/medical-patients-sub001/internal/config"
	"github.com/banton/medical-patients-sub001/internal/handlers"
	"github.com/banton/medical-patients-sub001/internal/jobs"
	"github.com/banton/medical-patients-sub001/internal/metrics"
	"github.com/banton/medical-patients-sub001/internal/middleware"
	"github.com/banton/medical-patients-sub001/internal/output"
	"github.com/banton/medical-patients-sub001/internal/repository"
	"github.com/banton/medical-patients-sub001/internal/simulation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// Job store: postgres when reachable, in-memory otherwise.
	var store jobs.Store
	var jobRepo *repository.JobRepository
	var configRepo *repository.ConfigRepository
	jobRepo, err = repository.NewJobRepository(cfg)
	if err != nil {
		log.Printf("Database unavailable, using in-memory job store: %v", err)
		store = jobs.NewMemoryStore()
	} else {
		defer jobRepo.Close()
		if err := jobRepo.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
		store = jobRepo
		configRepo = repository.NewConfigRepository(jobRepo)
	}
	if configRepo == nil {
		log.Println("Stored configurations disabled without a database")
	}

	var cacheTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	var readCache *cache.Cache
	if cfg.CacheEnabled {
		readCache = cache.New(ctx, cfg.RedisURL, cacheTTL)
	}
	defer readCache.Close()

	artifacts, err := output.NewArtifactStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket)
	if err != nil {
		log.Printf("Artifact store unavailable, serving local files only: %v", err)
	}

	catalog := simulation.DefaultCatalog()
	if path := os.Getenv("CATALOG_PATH"); path != "" {
		catalog, err = simulation.LoadCatalog(path)
		if err != nil {
			log.Fatalf("Failed to load catalog: %v", err)
		}
	}

	governor := jobs.NewGovernor(jobs.Limits{
		MaxMemoryMB:       cfg.JobMaxMemoryMB,
		MaxCPUSeconds:     cfg.JobMaxCPUSeconds,
		MaxRuntimeSeconds: cfg.JobMaxRuntimeSeconds,
	}, cfg.MaxConcurrentJobs)
	runner := jobs.NewRunner(catalog, governor, cfg.JobBatchSize, 0)
	runner.SetFeatures(cfg.EnableMedicalSimulation, cfg.EnableTreatmentUtilityModel)
	collectors := metrics.New()
	manager := jobs.NewManager(store, runner, governor, artifacts, collectors,
		cfg.OutputDir, cfg.MaxPatientsPerJob, cfg.JobTimeoutSeconds)

	router := setupRouter(cfg, manager, jobRepo, configRepo, readCache, collectors)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown Server ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Printf("Jobs still running at shutdown: %v", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func setupRouter(cfg *config.Config, manager *jobs.Manager, jobRepo *repository.JobRepository, configRepo *repository.ConfigRepository, readCache *cache.Cache, collectors *metrics.Metrics) *gin.Engine {
	router := gin.Default()

	router.Use(middleware.CORS(cfg))
	router.Use(collectors.Middleware())
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS)
	stop := make(chan struct{})
	limiter.StartCleanup(stop)
	router.Use(middleware.RateLimit(limiter))

	// Public routes
	healthHandler := handlers.NewHealthHandler(jobRepo, readCache)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", collectors.Handler())

	// Protected routes
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg))
	{
		generationHandler := handlers.NewGenerationHandler(manager, configRepo)
		api.POST("/generation/", generationHandler.Generate)

		jobHandler := handlers.NewJobHandler(manager)
		api.GET("/jobs", jobHandler.List)
		api.GET("/jobs/:job_id", jobHandler.Get)
		api.GET("/jobs/:job_id/results", jobHandler.Results)
		api.POST("/jobs/:job_id/cancel", jobHandler.Cancel)
		api.DELETE("/jobs/:job_id", jobHandler.Delete)
		api.GET("/download/:job_id", jobHandler.Download)

		if configRepo != nil {
			configHandler := handlers.NewConfigurationHandler(configRepo, readCache)
			api.POST("/configurations/", configHandler.Create)
			api.GET("/configurations/", configHandler.List)
			api.GET("/configurations/:id", configHandler.Get)
			api.PUT("/configurations/:id", configHandler.Update)
			api.DELETE("/configurations/:id", configHandler.Delete)
		}

		vizHandler := handlers.NewVisualizationHandler(manager)
		api.GET("/visualizations/dashboard-data", vizHandler.DashboardData)
		api.GET("/visualizations/jobs/:job_id/timeline", vizHandler.JobTimeline)
	}

	return router
}
