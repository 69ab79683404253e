package cmd

import (
	"fmt"
	"log"

	"room-booking/internal/data/repository"
	"room-booking/pkg/database"
	"room-booking/pkg/utils"

	"go.uber.org/zap"
)

// runtime is what every command needs: configuration, a logger and a pool.
type runtime struct {
	config *utils.Config
	logger *zap.Logger
	db     database.PgxIface
	repo   *repository.Repository
}

func bootstrap() (*runtime, error) {
	// Load config
	config, err := utils.LoadConfig(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		_ = logger.Sync()
		return nil, err
	}
	logger.Info("Database connected successfully")

	return &runtime{
		config: config,
		logger: logger,
		db:     db,
		repo:   repository.NewRepository(db, logger),
	}, nil
}

func (rt *runtime) Close() {
	rt.db.Close()
	_ = rt.logger.Sync()
}
