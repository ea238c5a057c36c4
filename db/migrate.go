// Package db embeds the schema migrations and applies them at startup.
package db

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // pgx v5 driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations to the database at connURL.
// The migration files are compiled into the binary, so a deployed hr-agent
// needs no migrations directory on disk; golang-migrate's schema_migrations
// table tracks which versions have already run.
//
// connURL must use the postgres:// or postgresql:// scheme.
func Migrate(connURL string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}

	dbURL, err := convertToMigrateURL(connURL)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("connecting for migrations: %w", err)
	}
	defer closeMigrator(m)

	if err := ensureClean(m); err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("schema already up to date")
			return nil
		}
		// A failed step leaves the dirty flag set; surface the version so
		// the operator knows what to `migrate force` after cleanup.
		if v, dirty, verErr := m.Version(); verErr == nil && dirty {
			return fmt.Errorf("migration to version %d failed, schema marked dirty: %w", v, err)
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	if v, _, verErr := m.Version(); verErr == nil {
		slog.Info("schema migrations applied", "version", v)
	}
	return nil
}

// ensureClean refuses to migrate a schema that a previous run left
// half-applied.
func ensureClean(m *migrate.Migrate) error {
	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema is dirty at version %d, run `migrate force %d` after manual cleanup", v, v)
	}
	return nil
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		slog.Warn("closing migration source", "error", srcErr)
	}
	if dbErr != nil {
		slog.Warn("closing migration connection", "error", dbErr)
	}
}

// convertToMigrateURL rewrites the URL scheme to pgx5 so golang-migrate
// selects its pgx v5 database driver.
func convertToMigrateURL(connURL string) (string, error) {
	u, err := url.Parse(connURL)
	if err != nil {
		return "", fmt.Errorf("parsing database URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		u.Scheme = "pgx5"
		return u.String(), nil
	default:
		return "", fmt.Errorf("database URL scheme %q not supported, want postgres or postgresql", u.Scheme)
	}
}
