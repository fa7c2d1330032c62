package config

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/kendall-kelly/servicehub-api/models"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Migrate brings the schema up to date. Postgres deployments with
// MIGRATIONS_URL set run the versioned SQL migrations; everything else
// (sqlite, mysql, local development) uses gorm AutoMigrate.
func Migrate(db *gorm.DB, cfg *Config) error {
	if db.Dialector.Name() == "postgres" && cfg.MigrationsURL != "" {
		return MigrateUp(cfg.DatabaseURL, cfg.MigrationsURL)
	}

	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("config.Migrate: %w", err)
	}
	log.Info().Msg("Database migration completed successfully")
	return nil
}

// MigrateUp applies the SQL migrations found at migrationsURL
func MigrateUp(databaseURL, migrationsURL string) error {
	m, closeFn, err := newMigrator(databaseURL, migrationsURL)
	if err != nil {
		return err
	}
	defer closeFn()

	log.Info().Str("source", migrationsURL).Msg("Migrating up")
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("config.MigrateUp: %w", err)
	}
	return nil
}

// MigrateDown reverts every SQL migration found at migrationsURL
func MigrateDown(databaseURL, migrationsURL string) error {
	m, closeFn, err := newMigrator(databaseURL, migrationsURL)
	if err != nil {
		return err
	}
	defer closeFn()

	log.Info().Str("source", migrationsURL).Msg("Migrating down")
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("config.MigrateDown: %w", err)
	}
	return nil
}

func newMigrator(databaseURL, migrationsURL string) (*migrate.Migrate, func(), error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("config.newMigrator: %w", err)
	}

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("config.newMigrator: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(migrationsURL, "postgres", driver)
	if err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("config.newMigrator: %w", err)
	}

	return m, func() { m.Close() }, nil
}
