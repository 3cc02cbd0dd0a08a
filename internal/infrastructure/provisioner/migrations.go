package provisioner

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var baselineFS embed.FS

// ApplyBaseline runs the embedded baseline migrations against a tenant
// database. Safe to re-run; an up-to-date schema is a no-op. Exposed for
// the migrate CLI to repair tenants whose provisioning was interrupted.
func ApplyBaseline(db *sql.DB) error {
	return applyBaseline(db)
}

// applyBaseline runs the embedded baseline migrations against a freshly
// created tenant database
func applyBaseline(db *sql.DB) error {
	source, err := iofs.New(baselineFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load baseline migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("baseline migration failed: %w", err)
	}
	return nil
}
