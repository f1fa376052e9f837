package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	migsqlite3 "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/models"
)

//go:embed sql/*.sql
var sqlFS embed.FS

// migrateUp applies all pending schema migrations. Safe to call repeatedly;
// a database already at the latest version is a no-op, satisfying §6's
// "Schema must be created on first use if absent (idempotent)".
func migrateUp(db *sql.DB) error {
	driver, err := migsqlite3.WithInstance(db, &migsqlite3.Config{})
	if err != nil {
		return fmt.Errorf("sqlite: create migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(sqlFS, "sql")
	if err != nil {
		return fmt.Errorf("sqlite: open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("sqlite: init migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			log.Printf("[store] schema up to date")
			return nil
		}
		return fmt.Errorf("sqlite: apply migrations: %w", err)
	}

	log.Printf("[store] schema migrations applied")
	return nil
}

// seedDefaultConfig inserts the initial config rows (§3) if absent.
func seedDefaultConfig(db *sql.DB) error {
	for key, value := range models.DefaultConfig {
		if _, err := db.Exec(
			`INSERT INTO config(key, value) VALUES(?, ?) ON CONFLICT(key) DO NOTHING`,
			key, value,
		); err != nil {
			return fmt.Errorf("sqlite: seed config %q: %w", key, err)
		}
	}
	return nil
}
