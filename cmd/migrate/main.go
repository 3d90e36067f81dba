package main

import (
	"context"
	"flag"
	"log"

	"lms-assessment/internal/config"
	"lms-assessment/internal/database"
	"lms-assessment/internal/logger"

	"go.uber.org/zap"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	l := logger.Get()
	defer logger.Sync()

	ctx := context.Background()
	db, err := database.NewSQLXDB(ctx, cfg.DB.Driver, cfg.GetDSN())
	if err != nil {
		l.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if *down {
		if err := database.RollbackMigrations(ctx, db); err != nil {
			l.Fatal("Failed to roll back migrations", zap.Error(err))
		}
		l.Info("Migrations rolled back", zap.String("driver", cfg.DB.Driver))
		return
	}

	if err := database.RunMigrations(ctx, db); err != nil {
		l.Fatal("Failed to run migrations", zap.Error(err))
	}
	l.Info("Migrations applied", zap.String("driver", cfg.DB.Driver))
}
