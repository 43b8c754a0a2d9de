// Package main is a small operational tool that applies the embedded goose
// migrations to the database named by DATABASE_URL. Run it before starting
// the API server against a fresh database.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/parceltrack/backend/migrations"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		slog.Error("create goose provider", "error", err)
		os.Exit(1)
	}

	results, err := provider.Up(context.Background())
	if err != nil {
		slog.Error("run migrations", "error", err)
		os.Exit(1)
	}
	for _, res := range results {
		slog.Info("applied migration", "source", res.Source.Path)
	}
	slog.Info("migrations up to date")
}
