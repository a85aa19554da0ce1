package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"flowbase/internal/config"
	"flowbase/internal/database"
	"flowbase/internal/handlers"
	"flowbase/internal/jobs"
	"flowbase/internal/logging"
	"flowbase/internal/middleware"
	"flowbase/internal/security"
	"flowbase/internal/services"
	"flowbase/internal/store"
	"flowbase/internal/store/memory"
	"flowbase/internal/store/mongostore"
	"flowbase/pkg/auth"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Flowbase Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, Store: %s)", cfg.Port, cfg.StoreDriver)

	if cfg.JWTSecret == "" {
		log.Fatal("❌ JWT_SECRET environment variable is required")
	}

	db := openStore(cfg)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	// Live channel, relayed across instances when Redis is configured
	hub := services.NewLiveHub(metrics)
	var redisService *services.RedisService
	var pubsubService *services.PubSubService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Redis unavailable, live events stay local: %v", err)
		} else {
			pubsubService = services.NewPubSubService(redisService.Client(), hub, uuid.New().String())
			if err := pubsubService.Start(); err != nil {
				log.Printf("⚠️ Failed to start live relay: %v", err)
				pubsubService = nil
			}
		}
	} else {
		log.Println("⚠️ REDIS_URL not set, live events are delivered to this instance only")
	}

	fanout := services.NewFanOutService(db, hub, metrics, cfg.FanOutWorkers, cfg.FanOutQueueSize)
	log.Printf("✅ Notification fan-out started (%d workers, queue %d)", cfg.FanOutWorkers, cfg.FanOutQueueSize)

	var mailer services.Mailer = services.LogMailer{}
	if cfg.MailEnabled() {
		mailer = services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
		log.Printf("✅ SMTP mailer configured (%s:%d)", cfg.SMTPHost, cfg.SMTPPort)
	} else {
		log.Println("⚠️ SMTP_HOST not set, mails are written to the log")
	}
	mail := services.NewMailService(mailer, cfg.BaseURL)

	jwtAuth, err := auth.NewLocalJWTAuth(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
	if err != nil {
		log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
	}

	previews := services.NewLinkPreviewService(cfg.LinkPreviewTimeout, &security.URLGuard{}, metrics)

	authService := services.NewAuthService(db, jwtAuth, mail, cfg.VerificationTokenTTL)
	notificationService := services.NewNotificationService(db)

	// Background jobs
	jobScheduler, err := jobs.NewJobScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	if err := jobScheduler.Register("notification_retention", cfg.CleanupCron,
		jobs.NewRetentionCleanupJob(notificationService, cfg.NotificationRetention)); err != nil {
		log.Fatalf("❌ Failed to register retention job: %v", err)
	}
	if err := jobScheduler.Register("token_cleanup", cfg.CleanupCron, jobs.NewTokenCleanupJob(authService)); err != nil {
		log.Fatalf("❌ Failed to register token cleanup job: %v", err)
	}
	jobScheduler.Start()

	app := fiber.New(fiber.Config{
		AppName:      "Flowbase v1.0",
		ErrorHandler: handlers.ErrorHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    4 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: !slices.Contains(cfg.AllowedOrigins, "*"),
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Auth=%d/15min, WS=%d/min",
		rateLimitConfig.GlobalAPIMax, rateLimitConfig.AuthMax, rateLimitConfig.WebSocketMax)

	health := handlers.NewHealthHandler(hub, db)
	if pubsubService != nil {
		health.WithRelay(redisService)
	}

	handlers.RegisterRoutes(app, &handlers.Routes{
		Auth:           handlers.NewLocalAuthHandler(jwtAuth, authService),
		Projects:       handlers.NewProjectHandler(services.NewProjectService(db, fanout)),
		Tasks:          handlers.NewTaskHandler(services.NewTaskService(db, fanout, previews)),
		Notes:          handlers.NewNoteHandler(services.NewNoteService(db, fanout)),
		Notifications:  handlers.NewNotificationHandler(notificationService),
		Dashboard:      handlers.NewDashboardHandler(services.NewDashboardService(db)),
		Health:         health,
		Live:           handlers.NewLiveHandler(hub, db),
		JWT:            jwtAuth,
		Members:        db,
		RateLimit:      rateLimitConfig,
		Registry:       registry,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("🔗 Live endpoint: ws://localhost:%s/ws", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("🕐 Background jobs: notification retention and token cleanup (%s)", cfg.CleanupCron)

	// Handle graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}

		jobScheduler.Stop()
		fanout.Close()
		mail.Wait()

		if pubsubService != nil {
			if err := pubsubService.Stop(); err != nil {
				log.Printf("⚠️ Error stopping PubSub: %v", err)
			}
		}
		if redisService != nil {
			if err := redisService.Close(); err != nil {
				log.Printf("⚠️ Error closing Redis: %v", err)
			}
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	<-stopped

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Close(ctx); err != nil {
		log.Printf("⚠️ Error closing store: %v", err)
	}
	log.Println("👋 Server stopped")
}

// openStore connects the configured backing store
func openStore(cfg *config.Config) store.Store {
	if cfg.StoreDriver == config.StoreMemory {
		db, err := memory.New()
		if err != nil {
			log.Fatalf("❌ Failed to create in-memory store: %v", err)
		}
		log.Println("⚠️ Using the in-memory store, data is lost on restart")
		return db
	}

	log.Println("🔗 Connecting to MongoDB...")
	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := mongoDB.Initialize(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize MongoDB: %v", err)
	}
	log.Println("✅ MongoDB connected successfully")
	return mongostore.New(mongoDB, cfg.MongoTransactions)
}
