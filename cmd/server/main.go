package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"studyyatra/internal/config"
	"studyyatra/internal/database"
	"studyyatra/internal/handlers"
	"studyyatra/internal/jobs"
	"studyyatra/internal/logging"
	"studyyatra/internal/middleware"
	"studyyatra/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting StudyYatra Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	log.Println("✅ Database initialized")

	// Currency rates with hot reload when a rates file is configured
	rates := config.NewRateTable(cfg.RatesFile)
	if cfg.RatesFile != "" {
		go rates.Watch(cfg.RatesFile)
	}

	// Prometheus metrics singleton
	services.InitMetrics()

	// Services
	completionService := services.NewCompletionService(cfg)
	if err := completionService.Validate(); err != nil {
		log.Printf("⚠️  Completion service not configured: %v (matching will fail until fixed)", err)
	}
	searchService := services.NewWebSearchService(cfg)
	chatService := services.NewChatService(db)
	matchingService := services.NewMatchingService(completionService, searchService, rates, cfg)

	// Background jobs
	jobScheduler := jobs.NewJobScheduler()
	jobScheduler.Register("cache-maintenance", jobs.NewCacheMaintenanceJob(matchingService, 1*time.Hour))
	jobScheduler.Register("conversation-cleanup", jobs.NewConversationCleanupJob(db, 7*24*time.Hour, 6*time.Hour))
	jobScheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "StudyYatra v1.0",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second, // matching requests can run close to their 30s deadline
		IdleTimeout:  90 * time.Second,
		BodyLimit:    1 * 1024 * 1024, // profiles and chat messages are small
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("studyyatra")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Rate limiting
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Chat=%d/min, Matching=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.ChatMax,
		rateLimitConfig.MatchingMax,
	)

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", allowedOrigins)

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Handlers
	healthHandler := handlers.NewHealthHandler(db, searchService, matchingService)
	chatHandler := handlers.NewChatHandler(chatService)
	matchingHandler := handlers.NewMatchingHandler(chatService, matchingService, rates)

	// Routes
	app.Get("/health", healthHandler.Handle)

	chat := app.Group("/api/chat", middleware.ChatRateLimiter(rateLimitConfig))
	chat.Post("/start", chatHandler.Start)
	chat.Post("/message", chatHandler.Message)
	chat.Get("/:conversationId", chatHandler.Get)

	matching := app.Group("/api/matching", middleware.MatchingRateLimiter(rateLimitConfig))
	matching.Post("/find", matchingHandler.Find)
	matching.Post("/quick", matchingHandler.Quick)
	matching.Get("/stats/cache", matchingHandler.CacheStats)
	matching.Post("/config", matchingHandler.Configure)
	matching.Get("/:conversationId", matchingHandler.GetByConversation)

	log.Printf("🔎 [SEARCH] Provider: %s", searchService.Provider())
	log.Println("🕐 Background jobs: cache maintenance (hourly), conversation cleanup (every 6h)")

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		jobScheduler.Stop()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
