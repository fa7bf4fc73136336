package main

import (
	"context"
	"log"
	"os"
	"os/signal"
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

	"github.com/storyloom/api/internal/auth"
	"github.com/storyloom/api/internal/client"
	"github.com/storyloom/api/internal/config"
	"github.com/storyloom/api/internal/handler"
	"github.com/storyloom/api/internal/middleware"
	"github.com/storyloom/api/internal/pipeline"
	"github.com/storyloom/api/internal/service"
	"github.com/storyloom/api/internal/store"
	ws "github.com/storyloom/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
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

	// Initialize external clients
	llmClient := client.NewLLMClient(&cfg.LLM)
	imageClient := client.NewImageClient(&cfg.Image)
	speechClient := client.NewSpeechClient(&cfg.Speech)

	// Initialize R2 client (optional - continues if not configured)
	var r2Client *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		var err error
		r2Client, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		}
	} else {
		log.Println("Warning: R2 storage not configured, asset uploads will fail")
	}

	// Initialize Zitadel JWKS verifier (optional - falls back to legacy JWT)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.Zitadel.Issuer != "" {
		var err error
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.Zitadel)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
		}
	}

	// Story store and pipeline
	storyStore := store.NewRedisStoryStore(redisClient)
	budget := time.Duration(cfg.Pipeline.BudgetMinutes) * time.Minute

	var blobs client.StorageClient
	if r2Client != nil {
		blobs = r2Client
	}

	controller := pipeline.NewController(
		storyStore,
		blobs,
		llmClient,
		imageClient,
		speechClient,
		hub,
		cfg.Speech.DefaultVoice,
		budget,
	)

	// Initialize services
	storyService := service.NewStoryService(storyStore, asynqClient, blobs, budget)
	topicsService := service.NewTopicsService(llmClient)
	uploadService := service.NewUploadService(blobs)

	// Initialize handlers
	storyHandler := handler.NewStoryHandler(storyService, validate)
	topicsHandler := handler.NewTopicsHandler(topicsService, validate)
	uploadHandler := handler.NewUploadHandler(uploadService)

	// Initialize auth handler for ForwardAuth verification
	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}
	authHandler := handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret)

	// Initialize middleware (with fallback support)
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled — using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		// Direct mode: auth is handled by the backend itself
		var authMiddleware *middleware.AuthMiddleware
		if jwksVerifier != nil && cfg.JWT.Secret != "" {
			authMiddleware = middleware.NewAuthMiddlewareWithFallback(jwksVerifier, cfg.JWT.Secret)
		} else if jwksVerifier != nil {
			authMiddleware = middleware.NewAuthMiddleware(jwksVerifier)
		} else {
			authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
		}
		apiAuthMiddleware = authMiddleware.Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    20 * 1024 * 1024, // 20MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
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
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"llm":    llmClient.IsConfigured(),
				"image":  imageClient.IsConfigured(),
				"speech": speechClient.IsConfigured(),
				"r2":     r2Client != nil,
				"auth":   jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Topic routes
	topics := api.Group("/topics", rateLimiter.TopicsLimit(cfg.RateLimit.TopicsPerMin))
	topics.Post("/suggest", topicsHandler.Suggest)

	// Story routes
	stories := api.Group("/stories")
	stories.Post("/", rateLimiter.StoriesLimit(cfg.RateLimit.StoriesPerHour), storyHandler.Create)
	stories.Get("/:storyId", storyHandler.Get)
	stories.Get("/:storyId/status", storyHandler.Status)
	stories.Delete("/:storyId", storyHandler.Delete)

	// Upload routes
	upload := api.Group("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadsPerHour))
	upload.Post("/reference", uploadHandler.Reference)
	upload.Get("/reference/:refId/url", uploadHandler.ReferenceURL)
	upload.Delete("/reference/:refId", uploadHandler.DeleteReference)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/stories/:storyId", websocket.New(func(c *websocket.Conn) {
		storyID := c.Params("storyId")
		hub.HandleConnection(c, storyID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, controller)

	// Start the stale-job sweeper
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	sweeper := pipeline.NewSweeper(
		storyStore,
		time.Duration(cfg.Pipeline.SweepIntervalMinutes)*time.Minute,
		time.Duration(cfg.Pipeline.StaleAfterMinutes)*time.Minute,
	)
	go sweeper.Run(sweepCtx)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		stopSweep()
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

func startWorkerServer(cfg *config.Config, controller *pipeline.Controller) {
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
			Concurrency: 5,
			Queues: map[string]int{
				"stories": 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	worker := pipeline.NewWorker(controller)

	mux := asynq.NewServeMux()
	mux.HandleFunc(pipeline.TaskTypeStory, worker.ProcessTask)

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
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
