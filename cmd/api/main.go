package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gopower/adapters/postgres"
	"gopower/adapters/postgres/migrations"
	"gopower/adapters/stats/anova"
	"gopower/adapters/stats/emmeans"
	"gopower/app"
	"gopower/domain/power"
	"gopower/internal"
	"gopower/internal/api"
	"gopower/internal/config"
	"gopower/internal/errors"
	"gopower/ports"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger := internal.NewDefaultLogger()

	var results ports.ResultRepository
	if cfg.Database.URL != "" {
		db, err := initDatabase(cfg)
		if err != nil {
			log.Fatalf("Database error: %v", err)
		}
		defer db.Close()
		results = postgres.NewResultRepository(db)
		logger.Info("result persistence enabled")
	} else {
		logger.Warn("DATABASE_URL not set; analyses will not be persisted")
	}

	if err := os.MkdirAll(cfg.Report.Dir, 0o755); err != nil {
		log.Fatalf("Report directory error: %v", err)
	}

	defaults := power.DefaultOptions()
	defaults.Alpha = cfg.Analysis.Alpha
	defaults.Seed = cfg.Analysis.Seed

	service := app.NewExactPowerService(anova.NewFitter(), emmeans.NewEngine(), logger)
	server := api.NewServer(service, results, api.Options{
		Defaults:  defaults,
		ReportDir: cfg.Report.Dir,
	}, logger)

	addr := ":" + cfg.Server.Port
	logger.Info("listening on %s", addr)
	if err := http.ListenAndServe(addr, server.Handler()); err != nil {
		log.Fatal("Server failed:", err)
	}
}

// initDatabase connects to PostgreSQL and brings the schema up to date
func initDatabase(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	migrator := migrations.NewMigrator(db.DB)
	if err := migrator.Up(context.Background()); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}
	return db, nil
}
