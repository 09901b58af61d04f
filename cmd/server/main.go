package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/framelab/media-service/internal/config"
	"github.com/framelab/media-service/internal/encoder"
	"github.com/framelab/media-service/internal/handler"
	"github.com/framelab/media-service/internal/middleware"
	"github.com/framelab/media-service/internal/naming"
	"github.com/framelab/media-service/internal/pipeline"
	"github.com/framelab/media-service/internal/progress"
	"github.com/framelab/media-service/internal/service"
	"github.com/framelab/media-service/internal/storage"
	"github.com/framelab/media-service/internal/worker"
	ws "github.com/framelab/media-service/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Transcode.WorkDir, 0o755); err != nil {
		log.Fatalf("Failed to create work dir: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize blob storage (falls back to local storage if not configured)
	var gateway storage.Gateway
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		gateway, err = storage.NewR2Gateway(&cfg.R2)
		if err != nil {
			log.Fatalf("Failed to initialize R2 storage: %v", err)
		}
	} else {
		log.Println("Info: R2 storage not configured, using local storage")
		gateway, err = storage.NewLocalGateway(filepath.Join(cfg.Transcode.WorkDir, "blobs"), cfg.R2.PublicURL)
		if err != nil {
			log.Fatalf("Failed to initialize local storage: %v", err)
		}
	}

	// Progress store with TTL sweep for cold records
	store := progress.NewStore(cfg.Transcode.ProgressTTL)
	sweeperDone := make(chan struct{})
	defer close(sweeperDone)
	go store.RunSweeper(sweeperDone)

	// Pipeline wiring
	enc := encoder.New(cfg.Transcode.FFmpegPath, cfg.Transcode.FFprobePath)
	deriver := naming.NewDeriver(gateway)
	sink := worker.NewNotifySink(store, hub)
	orchestrator := pipeline.New(enc, gateway, sink, cfg.Transcode.WorkDir)

	// Service + handlers
	transcodeService := service.NewTranscodeService(asynqClient, store)
	videoHandler := handler.NewVideoHandler(transcodeService, enc, deriver, validate, cfg.Transcode.WorkDir)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    512 * 1024 * 1024, // 512MB uploads
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		_, r2Configured := gateway.(*storage.R2Gateway)
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis": redisClient.Ping(c.Context()).Err() == nil,
				"r2":    r2Configured,
			},
		})
	})

	// Video routes
	app.Post("/video", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), videoHandler.Upload)
	app.Get("/video/status/:key", videoHandler.Status)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/video/:key", websocket.New(func(c *websocket.Conn) {
		key := c.Params("key")
		hub.HandleConnection(c, key)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, orchestrator, deriver, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(
	cfg *config.Config,
	orchestrator *pipeline.Orchestrator,
	deriver *naming.Deriver,
	hub *ws.Hub,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// One slot per job; each job fans out to four encoder
			// subprocesses internally.
			Concurrency: cfg.Transcode.Concurrency,
			Queues: map[string]int{
				"transcode": 1,
			},
			LogLevel: asynqLogLevel,
		},
	)

	transcodeWorker := worker.NewTranscodeWorker(orchestrator, deriver, hub)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeTranscode, transcodeWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"status": code,
		"error":  message,
	})
}
