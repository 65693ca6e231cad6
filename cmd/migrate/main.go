package main

import (
	"context"
	"flag"

	"project_report_srv/internal/config"
	"project_report_srv/internal/database"
	"project_report_srv/internal/datasource"

	"github.com/sirupsen/logrus"
)

func main() {
	seed := flag.Bool("seed", false, "insert the sample project if it is missing")
	flag.Parse()

	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}

	// Create database connection
	db, err := database.NewDatabase(database.Config{
		Driver: cfg.DB.Driver,
		DSN:    cfg.DB.DSN,
		Debug:  true,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	// Run migrations
	if err := database.AutoMigrate(db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	logger.Info("Migrations completed successfully")

	if *seed {
		source := datasource.NewGormSource(db, logger)
		if err := source.Seed(context.Background(), datasource.SampleProject()); err != nil {
			logger.WithError(err).Fatal("Failed to seed sample project")
		}
	}
}
