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

	"github.com/newsmelody/api/internal/auth"
	"github.com/newsmelody/api/internal/client"
	"github.com/newsmelody/api/internal/config"
	"github.com/newsmelody/api/internal/handler"
	"github.com/newsmelody/api/internal/middleware"
	"github.com/newsmelody/api/internal/pipeline"
	"github.com/newsmelody/api/internal/service"
	"github.com/newsmelody/api/internal/store"
	"github.com/newsmelody/api/internal/subtitle"
	ws "github.com/newsmelody/api/internal/websocket"
	"github.com/newsmelody/api/internal/worker"
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

	ctx := context.Background()
	redisAvailable := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, using in-memory session store: %v", err)
		redisAvailable = false
	}

	// Session store: Redis when reachable, in-memory otherwise
	var sessionStore store.Store
	if redisAvailable {
		sessionStore = store.NewRedisStore(redisClient)
	} else {
		sessionStore = store.NewMemoryStore()
	}
	workspace := store.Workspace{BaseDir: cfg.Pipeline.BaseDir}

	// Initialize Asynq client (queue runs only work with Redis)
	var asynqClient *asynq.Client
	if redisAvailable {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients
	groqClient := client.NewGroqClient(&cfg.Groq)
	youtubeClient := client.NewYouTubeClient(&cfg.YouTube)
	ffmpegClient := client.NewFFmpegClient()
	if !ffmpegClient.IsAvailable() {
		log.Println("Warning: ffmpeg/ffprobe not found on PATH, media stages will fail")
	}

	// Initialize R2 client (optional - continues if not configured)
	var r2Client *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		var err error
		r2Client, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		}
	} else {
		log.Println("Info: R2 storage not configured, published artifacts stay local")
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

	// Initialize the pipeline
	newsService := service.NewNewsService(groqClient)
	orchestrator := pipeline.NewOrchestrator(sessionStore, workspace, newsService, ffmpegClient, youtubeClient, pipeline.Options{
		ShortClipSecs: cfg.Pipeline.ShortClipSecs,
		VideoWidth:    cfg.Pipeline.VideoWidth,
		VideoHeight:   cfg.Pipeline.VideoHeight,
		MaxShorts:     cfg.Pipeline.MaxShorts,
	})
	orchestrator.SetEngine(&subtitle.Engine{
		CharsPerSecond:  cfg.Pipeline.CharsPerSecond,
		MinLineDuration: cfg.Pipeline.MinLineSecs,
	})
	if r2Client != nil {
		orchestrator.SetArchiver(r2Client)
	}

	pipelineWorker := worker.NewPipelineWorker(orchestrator, hub)
	pipelineService := service.NewPipelineService(asynqClient, pipelineWorker)

	// Initialize handlers
	sessionHandler := handler.NewSessionHandler(sessionStore, workspace, pipelineService, validate)
	audioHandler := handler.NewAudioHandler(sessionStore, workspace, pipelineService)

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
		BodyLimit:    100 * 1024 * 1024, // 100MB, audio uploads
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
				"groq":    groqClient.IsConfigured(),
				"youtube": youtubeClient.IsConfigured(),
				"ffmpeg":  ffmpegClient.IsAvailable(),
				"r2":      r2Client != nil,
				"redis":   redisAvailable,
				"auth":    jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	// Session routes
	sessions := api.Group("/sessions")
	sessions.Post("/", rateLimiter.SessionsLimit(cfg.RateLimit.SessionsPerMin), sessionHandler.Create)
	sessions.Get("/", sessionHandler.List)
	sessions.Get("/:id", sessionHandler.Get)
	sessions.Post("/:id/advance", rateLimiter.AdvanceLimit(cfg.RateLimit.AdvancePerHour), sessionHandler.Advance)
	sessions.Put("/:id/audio", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), audioHandler.Put)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/sessions/:id", websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("id")
		hub.HandleConnection(c, sessionID)
	}))

	// Start Asynq worker server when a queue backend exists
	if redisAvailable {
		go startWorkerServer(cfg, pipelineWorker)
	}

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

func startWorkerServer(cfg *config.Config, pipelineWorker *worker.PipelineWorker) {
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
			// One run mutates one session; modest parallelism is plenty.
			Concurrency: 4,
			Queues: map[string]int{
				service.QueuePipeline: 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypePipelineAdvance, pipelineWorker.ProcessTask)

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
