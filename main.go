package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"payfast-gateway/internal/config"
	"payfast-gateway/internal/handlers"
	"payfast-gateway/internal/kafka"
	"payfast-gateway/internal/logger"
	"payfast-gateway/internal/middleware"
	"payfast-gateway/internal/payfast"
	rediswrap "payfast-gateway/internal/redis"
	"payfast-gateway/internal/services"
	"payfast-gateway/internal/storage"
)

var log *logger.Logger

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log = logger.New(cfg.Log.Env, cfg.Log.Level)
	defer log.Close()

	if envErr != nil {
		log.Warn("ENV", "No .env file loaded, using environment variables")
	}

	log.LogProcess("STARTUP", "PayFast gateway starting up...")

	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", "Invalid configuration: "+err.Error())
	}
	log.Info("CONFIG", "Configuration loaded for "+cfg.PayFast.Environment()+" mode")

	store := openStore(cfg.Database)
	defer store.Close()

	claims, pingers := openClaims(cfg.Redis)
	pingers["store"] = store

	log.LogProcess("KAFKA", "Initializing Kafka producer...")
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, !cfg.Kafka.Enabled, log)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka producer: "+err.Error())
	}
	defer producer.Close()

	creds := cfg.PayFast.Credentials()
	client := payfast.NewClient(creds.ValidateURL, cfg.PayFast.ValidateTimeout, log)
	resolver := services.NewStatusResolver(client, cfg.PayFast, log)

	paymentService := services.NewPaymentService(store, payfast.NewInitiator(cfg.PayFast), cfg.PayFast, log)
	notificationService := services.NewNotificationService(store, claims, producer, resolver, cfg.PayFast, log)
	statusService := services.NewStatusService(store, resolver, log)
	promoService := services.NewPromoService(services.DefaultPromoCodes(), log)
	log.LogProcess("SERVICE", "Payment services initialized")

	consumeCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if cfg.Kafka.Enabled && cfg.Kafka.ConsumeOrders {
		startOrderConsumer(consumeCtx, cfg.Kafka, paymentService)
	}

	router := setupRouter(
		cfg,
		handlers.NewPaymentHandler(paymentService, notificationService, statusService, cfg.PayFast, log),
		handlers.NewPromoHandler(promoService, log),
		handlers.NewHealthHandler(pingers, cfg.PayFast.Environment(), log),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.LogProcess("SERVER", "Starting HTTP server on port "+cfg.Server.Port)
		log.Info("STARTUP", "Notify URL: "+cfg.PayFast.BaseURL+"/payment/notify")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "Server failed to start: "+err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("SHUTDOWN", "Received shutdown signal, initiating graceful shutdown...")
	stopConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("SHUTDOWN", "Server forced to shutdown: "+err.Error())
	}

	log.Info("SHUTDOWN", "PayFast gateway shutdown completed")
}

func openStore(cfg config.DatabaseConfig) storage.Store {
	if cfg.Driver == "memory" {
		log.Warn("DATABASE", "Using in-memory ledger; payments are lost on restart")
		return storage.NewInMemoryStore()
	}

	log.LogProcess("DATABASE", "Initializing MySQL database...")
	store, err := storage.NewMySQLStore(cfg, log)
	if err != nil {
		log.Fatal("DATABASE", "Failed to initialize MySQL: "+err.Error())
	}
	return store
}

func openClaims(cfg config.RedisConfig) (services.ClaimStore, map[string]handlers.Pinger) {
	pingers := map[string]handlers.Pinger{}
	if cfg.Addr == "" {
		log.Warn("REDIS", "REDIS_ADDR not set, notification claims are process-local")
		return rediswrap.NewMemoryClaims(cfg.ClaimTTL), pingers
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	claims := rediswrap.NewRedis(client, cfg.ClaimTTL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := claims.Ping(ctx); err != nil {
		log.Warn("REDIS", "Redis not reachable yet: "+err.Error())
	} else {
		log.LogProcess("REDIS", "Redis connection successful")
	}

	pingers["redis"] = claims
	return claims, pingers
}

// startOrderConsumer registers storefront orders in the ledger in the
// background until ctx is cancelled.
func startOrderConsumer(ctx context.Context, cfg config.KafkaConfig, payments *services.PaymentService) {
	log.LogProcess("KAFKA", "Initializing Kafka order consumer...")
	consumer, err := kafka.NewConsumer(cfg.Brokers, cfg.GroupID, cfg.OrderTopics, log)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka consumer: "+err.Error())
	}

	go func() {
		defer consumer.Close()
		log.LogKafka("START", "consumer", "Starting Kafka consumer goroutine")
		if err := consumer.ConsumeOrders(ctx, payments.RegisterOrder); err != nil && ctx.Err() == nil {
			log.Error("KAFKA", "Consumer error: "+err.Error())
		}
	}()
}

func setupRouter(cfg *config.Config, payments *handlers.PaymentHandler, promos *handlers.PromoHandler, health *handlers.HealthHandler) *gin.Engine {
	if cfg.Log.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.EnhancedLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders(log))
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, log))

	router.GET("/health", health.Health)
	payments.Register(router)
	promos.Register(router)

	log.LogProcess("ROUTER", "All routes registered successfully")
	return router
}
