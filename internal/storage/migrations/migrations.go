// Package migrations drives the relational projection's schema
// version with golang-migrate, grounded on the pack's own dependency
// on it (other_examples/manifests/holomush-holomush,
// .../WAN-Ninjas-AmityVox both carry it). The projection's "single
// monotonic schema version string; incompatible upgrades trigger full
// rebuild" rule from spec.md §6 is implemented as
// DangerousCompletelyDestroyDatabase: migrate all the way down, then
// back up from zero — the teacher has no migration story at all (its
// schema is implied by hand-written queries), so this whole package is
// new relative to the teacher and grounded entirely on the rest of the
// pack.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/jackc/pgx/v5/stdlib"

	"database/sql"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// CurrentSchemaVersion is the monotonic version string spec.md §6
// describes. Bumped whenever sql/ gains a migration that is not
// purely additive.
const CurrentSchemaVersion = "v2"

func newMigrator(dsn string) (*migrate.Migrate, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage handle: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create postgres migrate driver: %w", err)
	}

	src, err := iofs.New(sqlFiles, "sql")
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("open embedded migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "spacepeer", driver)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("construct migrator: %w", err)
	}
	return m, db, nil
}

// Up brings the schema to the latest version, no-op if already there.
func Up(dsn string) error {
	m, db, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// DangerousCompletelyDestroyDatabase resets the entire local store:
// every migration is torn down, then reapplied from scratch. This is
// spec.md §3's sole exception to "entities are never physically
// removed by the core" — an administrative command, not a projection
// side effect.
func DangerousCompletelyDestroyDatabase(dsn string) error {
	m, db, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up after rebuild: %w", err)
	}
	return nil
}
