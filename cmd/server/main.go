package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-lifecycle/config"
	"order-lifecycle/internal/api"
	"order-lifecycle/internal/broker"
	"order-lifecycle/internal/redisclient"
	"order-lifecycle/internal/scheduler"
	"order-lifecycle/internal/service"
	"order-lifecycle/internal/store"
	"order-lifecycle/internal/util"
	"order-lifecycle/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Business.Location()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order lifecycle service",
		zap.String("env", cfg.Server.Env),
		zap.String("timezone", cfg.Business.Location().String()))

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	orderProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer orderProducer.Close()
	notificationProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
	defer notificationProducer.Close()
	logger.Info("Kafka producers initialized")

	clock := util.NewClock(cfg.Business.Location())

	eventPublisher := broker.NewEventPublisher(orderProducer)
	emitter := broker.NewNotificationEmitter(notificationProducer, cfg.Business.NotificationTimeout, clock)
	// Flush in-flight notifications before the producers close.
	defer emitter.Wait()

	autoConfirm := scheduler.New(db, clock, cfg.Business.AutoConfirmAfter, cfg.Business.RetryDelay)
	inventoryClient := service.NewInventoryClient(db, redisClient, clock)
	orderService := service.NewOrderService(db, inventoryClient, autoConfirm, emitter, eventPublisher, service.Options{
		Clock:             clock,
		AutoConfirmAfter:  cfg.Business.AutoConfirmAfter,
		StrictTransitions: cfg.Business.StrictTransitions,
	})
	notificationService := service.NewNotificationService(db, clock)

	ctx := context.Background()
	if err := inventoryClient.SyncSoldCountersToRedis(ctx); err != nil {
		logger.Warn("Failed to sync sold counters to Redis", zap.Error(err))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	sweeper := worker.NewAutoConfirmWorker(orderService, autoConfirm, redisClient,
		cfg.Business.SweepInterval, cfg.Business.SweepBatchSize)
	sweeper.Start(workerCtx)

	notificationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(notificationConsumer, notificationService)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Notification worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, notificationService, map[string]api.Pinger{
		"postgres": db,
		"redis":    redisClient,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	sweeper.Stop()
	if err := notificationWorker.Stop(); err != nil {
		logger.Warn("Error closing notification consumer", zap.Error(err))
	}

	logger.Info("Server exited")
}
