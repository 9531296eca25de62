// Package db opens the primary relational store.
package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/config"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/model"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/obs"
)

// Open connects to the configured driver and migrates the sneakers table.
func Open(cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Warn),
	}
	var (
		g   *gorm.DB
		err error
	)
	maxOpen := cfg.DBMaxOpenConns
	switch cfg.DBDriver {
	case "postgres":
		g, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gcfg)
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		g, err = gorm.Open(sqlite.Open(cfg.SQLitePath), gcfg)
		maxOpen = 1
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}
	if err := configurePool(g, maxOpen); err != nil {
		return nil, err
	}
	if err := Migrate(g); err != nil {
		return nil, err
	}
	obs.Logger.Info("db_ready", "driver", cfg.DBDriver)
	return g, nil
}

// OpenSQLite opens a sqlite database at dsn with a single connection.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	g, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := configurePool(g, 1); err != nil {
		return nil, err
	}
	return g, Migrate(g)
}

func configurePool(g *gorm.DB, maxOpen int) error {
	sqlDB, err := g.DB()
	if err != nil {
		return fmt.Errorf("db handle: %w", err)
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	return nil
}

// Migrate creates or updates the sneakers table and its indexes.
func Migrate(g *gorm.DB) error {
	if err := g.AutoMigrate(&model.Product{}); err != nil {
		return fmt.Errorf("migrate sneakers: %w", err)
	}
	return nil
}

// Reset drops and recreates the sneakers table.
func Reset(ctx context.Context, g *gorm.DB) error {
	if err := g.WithContext(ctx).Migrator().DropTable(&model.Product{}); err != nil {
		return fmt.Errorf("drop sneakers: %w", err)
	}
	return Migrate(g.WithContext(ctx))
}

// Close releases the underlying pool.
func Close(g *gorm.DB) error {
	sqlDB, err := g.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
