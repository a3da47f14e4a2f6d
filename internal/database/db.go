package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/groundtruth-intake-api/internal/config"
	"github.com/groundtruth-intake-api/migrations"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// ErrSchemaMissing is returned by HealthCheck when the run tables do not exist
var ErrSchemaMissing = errors.New("validation_runs table is missing")

// DB is the run store connection. It owns the schema for validation runs.
type DB struct {
	*sql.DB
	log zerolog.Logger
}

// New opens a pooled connection and verifies it answers
func New(cfg *config.DatabaseConfig, log zerolog.Logger) (*DB, error) {
	conn, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		DB:  conn,
		log: log.With().Str("component", "database").Logger(),
	}
	db.log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Name).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("Run store connected")

	return db, nil
}

// Migrate brings the run tables up to the newest embedded migration
func (db *DB) Migrate() error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Closing m would close db.DB as well, so only the source is released
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer src.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}

	db.log.Info().Uint("version", version).Msg("Run schema up to date")
	return nil
}

// HealthCheck verifies the connection and that the run tables exist
func (db *DB) HealthCheck(ctx context.Context) error {
	var present bool
	err := db.QueryRowContext(ctx, `SELECT to_regclass('validation_runs') IS NOT NULL`).Scan(&present)
	if err != nil {
		return err
	}
	if !present {
		return ErrSchemaMissing
	}
	return nil
}
