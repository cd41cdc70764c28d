package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookingtms/api/routes"
	"bookingtms/internal/availability"
	"bookingtms/internal/bookings"
	"bookingtms/internal/notifications"
	"bookingtms/internal/payments"
	"bookingtms/internal/shared/config"
	"bookingtms/internal/shared/database"
	"bookingtms/pkg/logger"
	"bookingtms/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// @title           Booking Widget API
// @version         1.0
// @description     Embeddable booking widgets: configuration, availability, bookings and embed codes.
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		// Check if we're in production/container mode
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	// Load config
	cfg := config.Load()

	// Set Gin mode (debug/release)
	gin.SetMode(cfg.GinMode)

	appLogger.Info("Starting bookingtms",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("commit", GitCommit),
	)

	// Initialize DB
	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Slot memoization scripts (version bump + guarded store)
	memo := availability.NewRedisMemo(db.GetRedisClient())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := memo.PreloadScripts(ctx); err != nil {
		appLogger.Error("Failed to preload Redis Lua scripts", slog.Any("error", err))
		// Continue without failing - scripts will be loaded on first use
	} else {
		appLogger.Info("✅ Redis Lua scripts preloaded for slot memoization")
	}
	cancel()

	// Initialize Rate Limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = ratelimit.NewRateLimiter(db.GetRedisClient(), &cfg.RateLimit)
		appLogger.Info("Rate limiter initialized",
			slog.Bool("enabled", cfg.RateLimit.Enabled),
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	// Booking lifecycle events
	producer := newEventProducer(cfg, appLogger)
	defer func() {
		if err := producer.Close(); err != nil {
			appLogger.Error("Error closing event producer", slog.Any("error", err))
		}
	}()

	// Refunds
	var gateway payments.Gateway = payments.DisabledGateway{}
	if cfg.Stripe.SecretKey != "" {
		gateway = payments.NewStripeGateway(cfg.Stripe.SecretKey)
		appLogger.Info("Stripe refunds enabled")
	} else {
		appLogger.Warn("STRIPE_SECRET_KEY not set, refunds are disabled")
	}

	// Delayed completion tasks
	queueOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.QueueDB,
	}
	taskClient := asynq.NewClient(queueOpts)
	defer taskClient.Close()

	// Setup router with rate limiter
	appRouter := routes.NewRouter(cfg, db, routes.Dependencies{
		Events:    producer,
		Payments:  gateway,
		Scheduler: bookings.NewAsynqScheduler(taskClient),
		Memo:      memo,
	})
	router := setupRouter(cfg, appRouter, rateLimiter)
	bookingService := appRouter.BookingService()

	// Task worker
	worker := asynq.NewServer(queueOpts, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"default": 1,
		},
	})
	mux := asynq.NewServeMux()
	bookings.RegisterTaskHandlers(mux, bookingService)
	if err := worker.Start(mux); err != nil {
		appLogger.Error("Failed to start task worker", slog.Any("error", err))
		appLogger.Info("Continuing without task worker - the completion sweep will close ended bookings")
	} else {
		defer worker.Shutdown()
	}

	// Periodic jobs
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	jobs := bookings.NewJobProcessor(bookingService, &bookings.JobConfig{
		RefundReconcileInterval: cfg.Jobs.RefundReconcileInterval,
		CompletionSweepInterval: cfg.Jobs.CompletionSweepInterval,
		BatchSize:               cfg.Jobs.BatchSize,
	})
	jobs.Start(jobCtx)
	defer jobs.Stop()

	// HTTP server
	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("embed_loader", cfg.Embed.BaseURL+cfg.Embed.LoaderPath),
			slog.String("version", cfg.APIVersion),
			slog.Bool("kafka_events", cfg.Kafka.Enabled),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func newEventProducer(cfg *config.Config, appLogger *logger.Logger) notifications.Producer {
	if !cfg.Kafka.Enabled {
		appLogger.Info("Kafka disabled, booking events will not be published")
		return notifications.NoopProducer{}
	}
	producer, err := notifications.NewKafkaProducer(notifications.DefaultKafkaProducerConfig(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	if err != nil {
		appLogger.Error("Failed to initialize Kafka producer", slog.Any("error", err))
		appLogger.Info("Continuing without booking events")
		return notifications.NoopProducer{}
	}
	appLogger.Info("Kafka producer initialized", slog.String("topic", cfg.Kafka.Topic))
	return producer
}

func setupRouter(cfg *config.Config, appRouter *routes.Router, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	// Client IPs feed the rate limiter; only listed proxies may set X-Forwarded-For
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		appLogger.Error("Invalid TRUSTED_PROXIES, trusting none", slog.Any("error", err))
		_ = engine.SetTrustedProxies(nil)
	}

	// Built-in middleware: logs requests + recovers from panics
	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	// CORS configuration: widgets run on third-party venue pages
	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true // allow every origin dynamically
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Global rate limiting middleware (applied to all routes)
	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
		appLogger.Info("Rate limiting middleware applied to all routes")
	}

	appRouter.SetupRoutes(engine)

	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		l.LogHTTPRequest(c, duration)
	}
}
