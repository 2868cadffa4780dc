package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tastetrail/internal/config"
	"tastetrail/internal/domain/analytics"
	"tastetrail/internal/domain/badge"
	"tastetrail/internal/domain/catalog"
	"tastetrail/internal/domain/deadletter"
	"tastetrail/internal/domain/importjob"
	"tastetrail/internal/domain/outbox"
	"tastetrail/internal/domain/ranking"
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
	log := appLogger.Logger
	defer log.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := database.ApplyRawMigrations(db, "migrations"); err != nil {
		log.Fatal("failed to apply raw migrations", zap.Error(err))
	}

	err = db.AutoMigrate(
		&outbox.OutboxEvent{},
		&ranking.Submission{},
		&ranking.UserRanking{},
		&ranking.HistoryEntry{},
		&ranking.UserDishStats{},
		&badge.UserBadge{},
		&badge.AwardNotification{},
		&analytics.DishSummary{},
		&analytics.RestaurantSummary{},
		&analytics.UserSummary{},
		&catalog.Restaurant{},
		&catalog.Dish{},
		&importjob.ImportJob{},
		&importjob.ImportBatch{},
		&deadletter.Event{},
	)
	if err != nil {
		log.Fatal("auto migration failed", zap.Error(err))
	}

	log.Info("migrations applied")
}
