package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	log "github.com/sirupsen/logrus"

	"github.com/bestfriendai/video-processing/internal/cleanup"
	"github.com/bestfriendai/video-processing/internal/config"
	"github.com/bestfriendai/video-processing/internal/handlers"
	"github.com/bestfriendai/video-processing/internal/media"
	"github.com/bestfriendai/video-processing/internal/overlay"
	"github.com/bestfriendai/video-processing/internal/pipeline"
	"github.com/bestfriendai/video-processing/internal/privacy"
	"github.com/bestfriendai/video-processing/internal/queue"
	"github.com/bestfriendai/video-processing/internal/remote"
	"github.com/bestfriendai/video-processing/internal/storage"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	for _, dir := range []string{cfg.Storage.TempDir, cfg.Storage.OutputDir, cfg.Storage.DownloadDir} {
		if err := cleanup.EnsureTempDirExists(dir); err != nil {
			log.WithError(err).WithField("dir", dir).Fatal("Failed to create directory")
		}
	}

	log.Info("Initializing components...")

	prober := media.NewProber(cfg.FFmpeg.FFprobePath)
	renderer := overlay.NewRenderer(cfg.FFmpeg.FFmpegPath)

	var detector privacy.Detector
	if cfg.Detector.Endpoint != "" {
		detector = privacy.NewHTTPDetector(cfg.Detector.Endpoint)
		log.WithField("endpoint", cfg.Detector.Endpoint).Info("Face detection enabled")
	} else {
		log.Warn("No face detector configured - blur jobs will be rejected")
	}

	coordinator := pipeline.New(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FontFile, prober, renderer, detector, cfg.Storage.TempDir)

	// Remote orchestration is optional; it needs both Drive credentials and
	// a transform trigger endpoint.
	var orchestrator *remote.Orchestrator
	if cfg.Remote.Enabled && cfg.Remote.TriggerURL != "" {
		store, err := storage.NewDriveStore(
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.WithError(err).Warn("Object storage unavailable - remote processing disabled")
		} else {
			orchestrator = remote.New(store, remote.NewHTTPTrigger(cfg.Remote.TriggerURL), cfg.Storage.DownloadDir)
			orchestrator.SetPolling(
				time.Duration(cfg.Remote.PollIntervalSeconds)*time.Second,
				cfg.Remote.MaxPollAttempts,
			)
			log.Info("Remote processing enabled")
		}
	}

	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	localStore := storage.NewLocalStore(cfg.Storage.OutputDir)
	events := queue.NewEventHub()

	workerPool := queue.NewWorkerPool(
		cfg.Workers.Count,
		coordinator,
		orchestrator,
		localStore,
		db,
		events,
	)
	workerPool.Start()

	cleanupScheduler := cleanup.NewScheduler(
		cfg.Storage.TempDir,
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit: cfg.Limits.MaxFileSizeMB * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	uploadHandler := handlers.NewUploadHandler(workerPool, cfg.Storage.TempDir, cfg.Limits.MaxFileSizeMB)
	jobsHandler := handlers.NewJobsHandler(workerPool, db)
	progressHandler := handlers.NewProgressHandler(workerPool, events)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Post("/jobs", uploadHandler.Handle)
	app.Get("/jobs", jobsHandler.List)
	app.Get("/jobs/:id", jobsHandler.Get)
	app.Get("/jobs/:id/result", jobsHandler.Result)
	app.Get("/ws/jobs/:id", websocket.New(progressHandler.Handle))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.WithField("addr", addr).Info("Server starting")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
}
