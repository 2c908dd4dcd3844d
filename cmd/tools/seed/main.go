// Seeds the development database with realistic visitor traffic.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/karloscodes/cartridge"

	"pagetrail/internal/config"
	"pagetrail/internal/database"
	"pagetrail/internal/seeder"
)

func main() {
	sessionCount := flag.Int("sessions", 500, "number of visitor sessions to generate")
	flag.Parse()

	cfg := config.GetConfig()
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := dbManager.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	s := seeder.NewSeeder(dbManager, logger, *sessionCount)
	if err := s.Run(context.Background()); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
