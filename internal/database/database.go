package database

import (
	"fmt"

	"project_report_srv/internal/config"
	"project_report_srv/internal/models"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the database configuration
type Config struct {
	Driver string
	DSN    string
	Debug  bool
}

// FromAppConfig builds the database configuration from the application config
func FromAppConfig(cfg config.Config) Config {
	return Config{
		Driver: cfg.DB.Driver,
		DSN:    cfg.DB.DSN,
		Debug:  cfg.IsDevelopment(),
	}
}

// NewDatabase creates a new database connection
func NewDatabase(cfg Config) (*gorm.DB, error) {
	logLevel := logger.Error
	if cfg.Debug {
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		// lib/pq registers itself as the "postgres" database/sql driver
		dialector = postgres.New(postgres.Config{
			DriverName: "postgres",
			DSN:        cfg.DSN,
		})
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return db, nil
}

// AutoMigrate runs database migrations
func AutoMigrate(db *gorm.DB, log *logrus.Logger) error {
	log.Info("Running database migrations")

	if err := db.AutoMigrate(&models.Project{}, &models.Substructure{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
