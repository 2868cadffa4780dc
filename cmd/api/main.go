package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tastetrail/internal/config"
	"tastetrail/internal/consumer"
	"tastetrail/internal/events"
	"tastetrail/internal/handler"
	"tastetrail/internal/outbox"
	"tastetrail/internal/queue"
	"tastetrail/internal/repository"
	"tastetrail/internal/services"
	"tastetrail/internal/storage"
	"tastetrail/pkg/database"
	"tastetrail/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, relying on environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Server.Environment)
	logger.SetGlobalLogger(appLogger)
	log := appLogger.Logger
	defer log.Sync()

	if cfg.Server.Environment == logger.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}

	// Repositories and the bus.
	outboxRepo := repository.NewOutboxRepository(db)
	deadRepo := repository.NewDeadLetterRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	bus := events.NewRedisStreamBus(redisClient)

	// Outbox relay.
	relay := outbox.NewRelay(outboxRepo, deadRepo, bus, cfg.Relay, log)
	go relay.Run(ctx)

	// Consumers, one per event type this node handles.
	sink := consumer.NewSink(deadRepo, log)
	hostname, _ := os.Hostname()

	consumers := map[string]*consumer.Consumer{}
	startConsumer := func(name string, eventType events.Type, applier consumer.Applier) {
		q := queue.NewStreamQueue(redisClient, eventType, cfg.Consumer.Group,
			hostname+"-"+name, cfg.Consumer.ClaimMinIdle, cfg.Consumer.BlockTimeout, log)
		if err := q.Ensure(ctx); err != nil {
			log.Fatal("failed to create consumer group",
				zap.String("consumer", name), zap.Error(err))
		}
		cons := consumer.New(name, q, applier, sink, cfg.Consumer, log)
		consumers[name] = cons
		go cons.Run(ctx)
	}

	startConsumer("ranking-engine", events.TypeDishRanked, services.NewRankingEngine(db, log))
	startConsumer("badge-awards", events.TypeBadgeAwarded, services.NewBadgeAwardApplier(db, log))
	startConsumer("restaurant-import", events.TypeRestaurantImported, services.NewImportApplier(db, log))

	// Dead letter archival.
	if cfg.S3.Bucket != "" {
		archiver, err := storage.NewS3Archiver(ctx, cfg.S3)
		if err != nil {
			log.Fatal("failed to build s3 archiver", zap.Error(err))
		}
		sweeper := services.NewDeadLetterSweeper(deadRepo, archiver, cfg.DeadLetter, log)
		go sweeper.Run(ctx)
	} else {
		log.Warn("S3_BUCKET not set, dead letter archival disabled")
	}

	// HTTP surface.
	bestEffort := services.NewBestEffort(256, 2, 5*time.Second, log)
	defer bestEffort.Close()

	router := handler.NewRouter(log,
		handler.NewRankingHandler(services.NewRankingService(db, log)),
		handler.NewAnalyticsHandler(analyticsRepo, bestEffort, log),
		handler.NewImportHandler(services.NewImportService(db, 50, log)),
		handler.NewOpsHandler(outboxRepo, deadRepo, consumers),
	)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		log.Error("redis close failed", zap.Error(err))
	}
	log.Info("shutdown complete")
}
