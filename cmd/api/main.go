package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"siteproof/internal/config"
	"siteproof/internal/database"
	"siteproof/internal/logging"
	"siteproof/internal/middleware"
	"siteproof/internal/modules/analysis"
	"siteproof/internal/modules/events"
	"siteproof/internal/modules/photo"
	"siteproof/internal/modules/report"
	jwtsvc "siteproof/internal/pkg/jwt"
	"siteproof/internal/repository"
	"siteproof/internal/storage"
	"siteproof/internal/vision/claude"
)

func main() {
	// Missing .env is fine; deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer cleanup()

	if cfg.AppEnv == "prod" || cfg.AppEnv == "production" || cfg.AppEnv == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("database migrate failed", "error", err)
		os.Exit(1)
	}

	store, err := buildStore(context.Background(), cfg)
	if err != nil {
		logger.Error("storage init failed", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}

	reportRepo := repository.NewReportRepository(db)
	photoRepo := repository.NewPhotoRepository(db)
	sessionRepo := repository.NewChunkSessionRepository(db)

	jwtService := jwtsvc.New(cfg.JWTSecret, 24*time.Hour)
	hub := events.NewHub()

	if cfg.AnthropicAPIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY is empty; analysis requests will fail until it is set")
	}
	provider := claude.New(cfg.AnthropicAPIKey, cfg.VisionModel, cfg.VisionMaxTokens)

	photoService := photo.NewService(photoRepo, reportRepo, sessionRepo, store, hub, photo.Config{
		MaxUploadBytes: cfg.MaxUploadBytes,
		ChunkSize:      cfg.ChunkSizeBytes,
		SessionTTL:     cfg.ChunkSessionTTL,
		StagingDir:     cfg.StagingDir,
	}, logger)
	photoHandler := photo.NewHandler(photoService)

	reportService := report.NewService(reportRepo, photoRepo, photoService, logger)
	reportHandler := report.NewHandler(reportService)

	analysisService := analysis.NewService(photoRepo, reportRepo, photoService, provider, hub,
		analysis.Config{Workers: cfg.VisionWorkers}, logger)
	analysisHandler := analysis.NewHandler(analysisService)

	eventsHandler := events.NewHandler(hub, jwtService, reportRepo)

	ownership := middleware.NewOwnershipChecker(reportRepo, photoRepo)

	r := gin.New()
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		// The event stream authenticates itself: browsers cannot set headers
		// on WebSocket connections, so the token arrives as ?token=.
		eventsHandler.RegisterRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(jwtService))
		{
			reportHandler.RegisterRoutes(protected, ownership.CheckReportOwnership())
			photoHandler.RegisterRoutes(protected, ownership.CheckPhotoOwnership())
			analysisHandler.RegisterRoutes(protected, ownership.CheckReportOwnership())
		}
	}

	logger.Info("api server starting",
		"addr", cfg.HTTPAddr,
		"env", cfg.AppEnv,
		"storage", cfg.StorageBackend,
		"vision_model", cfg.VisionModel,
	)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.StorageBackend == "s3" {
		return storage.NewS3(ctx, storage.S3Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
	}
	return storage.NewLocal(cfg.StorageDir)
}
