// Command migrate applies the database schema migrations.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/pressly/goose/v3"

	"identityshelf/internal/platform/config"
	"identityshelf/internal/platform/logger"
	"identityshelf/internal/platform/postgres"
	"identityshelf/migrations"
)

func main() {
	command := flag.String("command", "up", "goose command: up, down, status")
	flag.Parse()

	log := logger.New()
	cfg := config.FromEnv()
	if cfg.PostgresDSN == "" {
		log.Error("IDENTITYSHELF_POSTGRES_DSN is required for migrations")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Error("failed to set goose dialect", "error", err)
		os.Exit(1)
	}

	var runErr error
	switch *command {
	case "up":
		runErr = goose.UpContext(ctx, db, ".")
	case "down":
		runErr = goose.DownContext(ctx, db, ".")
	case "status":
		runErr = goose.StatusContext(ctx, db, ".")
	default:
		log.Error("unknown command", "command", *command)
		os.Exit(1)
	}
	if runErr != nil {
		log.Error("migration failed", "command", *command, "error", runErr)
		os.Exit(1)
	}
	log.Info("migrations complete", slog.String("command", *command))
}
