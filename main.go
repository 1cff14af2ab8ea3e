package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ticket-gate/internal/config"
	"ticket-gate/internal/handlers"
	"ticket-gate/internal/kafka"
	"ticket-gate/internal/logger"
	"ticket-gate/internal/middleware"
	"ticket-gate/internal/notify"
	"ticket-gate/internal/pricing"
	"ticket-gate/internal/qr"
	rediswrap "ticket-gate/internal/redis"
	"ticket-gate/internal/services"
	"ticket-gate/internal/storage"
	"ticket-gate/web"
)

// Global logger instance
var log *logger.Logger

func main() {
	log = logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}

	log.LogProcess("STARTUP", "Ticket gate starting up...")

	cfg := config.Load()
	log.Info("CONFIG", "Configuration loaded successfully")

	store, durable := openStore(cfg)
	defer store.Close()

	log.LogProcess("KAFKA", "Initializing Kafka producer...")
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, kafka.Topics{
		Events:        cfg.Kafka.EventsTopic,
		Notifications: cfg.Kafka.NotificationsTopic,
	}, cfg.Kafka.MockMode(), log)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka producer: "+err.Error())
	}
	defer producer.Close()

	redisClient, limiter := openLimiter(cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var mailer *notify.Mailer
	if cfg.SMTP.Enabled() {
		mailer = notify.NewMailer(cfg.SMTP, cfg.Event)
	} else {
		log.Warn("NOTIFY", "SMTP is not configured; ticket emails will not be sent")
	}
	notifier := selectNotifier(cfg, producer, mailer)
	log.LogProcess("NOTIFY", "Ticket delivery via "+notifier.Name())

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if cfg.Notify.Worker {
		startMailWorker(workerCtx, cfg, mailer)
	}

	prices := pricing.FromConfig(cfg.Pricing)
	reservationService := services.NewReservationService(services.ReservationSettings{
		BaseURL:       cfg.BaseURL,
		Event:         cfg.Event,
		NotifyTimeout: cfg.Notify.Timeout,
	}, prices, store, qr.NewRenderer(), notifier, producer, log)
	checkInService := services.NewCheckInService(cfg.OrganizerPin, store, limiter, producer, log)
	log.LogProcess("SERVICE", "Reservation and check-in services initialized")

	health := handlers.NewHealthHandler(handlers.HealthProbes{
		Database: func(ctx context.Context) bool { return durable && store.HealthCheck(ctx) == nil },
		Email:    func(context.Context) bool { return mailer != nil },
		Kafka:    func(context.Context) bool { return !producer.MockMode() },
		Redis: func(ctx context.Context) bool {
			return redisClient != nil && redisClient.Ping(ctx).Err() == nil
		},
	})

	router := setupRouter(cfg,
		handlers.NewReservationHandler(reservationService),
		handlers.NewCheckInHandler(checkInService),
		health,
		handlers.NewPageHandler(web.PublicFS()),
	)
	log.LogProcess("ROUTER", "HTTP router configured")

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.LogProcess("SERVER", "Starting HTTP server on port "+cfg.Server.Port)
		log.Info("STARTUP", "🚀 Ticket gate is ready to accept requests!")
		log.Info("STARTUP", "📊 Health check available at: "+cfg.BaseURL+"/api/health")
		log.Info("STARTUP", "🎟️  Check-in pages at: "+cfg.BaseURL+"/check-in/<ticketCode>")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "Server failed to start: "+err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("SHUTDOWN", "Received shutdown signal, initiating graceful shutdown...")
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("SHUTDOWN", "Server forced to shutdown: "+err.Error())
		return
	}

	log.Info("SHUTDOWN", "✅ Ticket gate shutdown completed successfully")
}

// openStore falls back to memory when no database is configured. The
// boolean reports whether records survive a restart.
func openStore(cfg *config.Config) (storage.Store, bool) {
	if !cfg.Database.Enabled() {
		log.Warn("DATABASE", "DB_HOST not set; using in-memory store, reservations will not survive a restart")
		return storage.NewInMemoryStore(), false
	}

	log.LogProcess("DATABASE", "Initializing MySQL database...")
	store, err := storage.NewMySQLStore(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", "Failed to initialize MySQL: "+err.Error())
	}
	log.LogDatabase("INIT", "mysql", "MySQL storage initialized successfully")
	return store, true
}

// openLimiter returns a nil limiter when Redis is absent or unreachable,
// which leaves PIN throttling off.
func openLimiter(cfg config.RedisConfig) (*redis.Client, services.AttemptLimiter) {
	if !cfg.Enabled() {
		log.Warn("REDIS", "REDIS_ADDR not set; organizer PIN throttling disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", "Redis unreachable, organizer PIN throttling disabled: "+err.Error())
		return client, nil
	}

	log.LogProcess("REDIS", "Redis connection successful")
	return client, rediswrap.NewRedis(client, cfg.MaxFailures, cfg.Window)
}

func selectNotifier(cfg *config.Config, producer *kafka.Producer, mailer *notify.Mailer) notify.Notifier {
	if cfg.Notify.Transport == "kafka" {
		if producer.MockMode() {
			log.Warn("NOTIFY", "NOTIFY_TRANSPORT=kafka but no brokers configured; falling back to SMTP")
		} else {
			return kafka.NewNotificationQueue(producer)
		}
	}
	if mailer != nil {
		return mailer
	}
	return notify.Noop{}
}

func startMailWorker(ctx context.Context, cfg *config.Config, mailer *notify.Mailer) {
	if mailer == nil || cfg.Kafka.MockMode() {
		log.Warn("NOTIFY", "NOTIFY_WORKER needs both Kafka brokers and SMTP; worker not started")
		return
	}

	consumer, err := kafka.NewNotificationConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, log)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka consumer: "+err.Error())
	}
	log.LogKafka("INIT", cfg.Kafka.NotificationsTopic, "Notification consumer initialized successfully")

	go func() {
		defer consumer.Close()
		log.LogKafka("START", cfg.Kafka.NotificationsTopic, "Starting mail worker goroutine")
		if err := consumer.ConsumeNotifications(ctx, mailer.Send); err != nil && ctx.Err() == nil {
			log.Error("KAFKA", "Consumer error: "+err.Error())
		}
	}()
}

func setupRouter(cfg *config.Config, reservations *handlers.ReservationHandler, checkIns *handlers.CheckInHandler,
	health *handlers.HealthHandler, pages *handlers.PageHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router, err := newEngine(cfg.Server)
	if err != nil {
		log.Fatal("ROUTER", "Invalid TRUSTED_PROXIES: "+err.Error())
	}

	router.Use(middleware.EnhancedLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders(log))

	api := router.Group("/api")
	{
		api.GET("/health", health.Health)

		limited := api.Group("", middleware.RateLimit(log, float64(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst))
		limited.POST("/reservations", reservations.CreateReservation)
		limited.POST("/check-in", checkIns.CheckIn)
	}

	router.GET("/check-in/:ticketCode", pages.CheckInPage)
	router.NoRoute(pages.Fallback)

	log.LogProcess("ROUTER", fmt.Sprintf("All routes registered successfully (%d)", len(router.Routes())))
	return router
}

// newEngine resolves ClientIP from the socket unless the request came
// through one of the configured proxies.
func newEngine(cfg config.ServerConfig) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	if len(cfg.TrustedProxies) == 0 {
		log.Warn("ROUTER", "No trusted proxies; X-Forwarded-For is ignored")
	} else {
		log.Info("ROUTER", fmt.Sprintf("Trusting X-Forwarded-For from %v", cfg.TrustedProxies))
	}
	return router, nil
}
