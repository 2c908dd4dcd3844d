// Package internal contains core application functionality
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"pagetrail/internal/config"
	"pagetrail/internal/database"
	"pagetrail/internal/jobs"
)

// Application wraps cartridge.Application with pagetrail-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithRoutes(cfg, MountAppRoutes)
}

// NewAppWithRoutes creates a new application with a custom route mounting function
func NewAppWithRoutes(cfg *config.Config, routeMount func(*cartridge.Server)) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	scheduler, err := jobs.NewScheduler(dbManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize background jobs: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start background jobs: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    routeMount,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
	}, nil
}
