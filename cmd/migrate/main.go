package main

import (
	"log"

	"coursequiz/database"
	"coursequiz/internal/config"
	db "coursequiz/internal/database"
	"coursequiz/internal/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	l := logger.Get()
	defer logger.Sync()

	conn, err := db.Open(cfg.DB.Driver, cfg.GetDSN(), l)
	if err != nil {
		l.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	if err := db.RunMigrations(conn.DB, cfg.DB.Driver, database.Migrations, l); err != nil {
		l.Fatal("Failed to run migrations", zap.Error(err))
	}
}
