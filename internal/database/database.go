package database

import (
	"fmt"

	"github.com/worldindex/core/internal/config"
	"github.com/worldindex/core/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a MySQL connection and runs auto-migration.
func Connect(cfg *config.AppConfig) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDev() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.Database.DSNValue(),
		DefaultStringSize: 191,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}

// Migrate runs GORM auto-migration for all models. The unique indexes on
// listings (identity, base_url, slug) and activities (identity) are the
// backstop for the application's count-then-insert id and slug allocation.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.RelayModel{},
		&models.FollowerEdgeModel{},
		&models.ListingModel{},
		&models.ActivityModel{},
	)
}
