package main

import (
	"context"
	"flag"
	"log"

	"github.com/rao30/bake-house/internal/config"
	"github.com/rao30/bake-house/internal/database"
	"go.uber.org/zap"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding <version>.<up|down>.sql files")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("Usage: go run scripts/run_migrations.go [-dir migrations] [up|down]")
	}

	direction := database.Direction(flag.Arg(0))
	if direction != database.Up && direction != database.Down {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Load config", zap.Error(err))
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("Connect to database", zap.Error(err))
	}
	defer db.Close()

	n, err := database.Migrate(context.Background(), db, *dir, direction, logger)
	if err != nil {
		logger.Fatal("Migration failed", zap.Error(err), zap.Int("completed", n))
	}

	logger.Info("Migrations finished", zap.Int("count", n), zap.String("direction", string(direction)))
}
