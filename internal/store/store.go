// Package store persists experiments, numors, peaks, unit cells and
// merged reflection tables to SQLite, migrated with golang-migrate (spec
// §6 "Persisted state").
package store

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/hklreduce/hklreduce/internal/xerr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DocVersion is the store's own schema generation, carried alongside the
// SQL migration version so exported session snapshots can be version
// tagged independently of the live schema (spec §6: "Versioning: one
// integer at the document root; readers accept any version <= their
// own").
const DocVersion = 1

// Store wraps a migrated SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// migrates it to the latest schema version.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %v", xerr.IO, err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrateUp() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%w: migration source: %v", xerr.IO, err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("%w: migration driver: %v", xerr.IO, err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("%w: migrate instance: %v", xerr.IO, err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("%w: migrate up: %v", xerr.IO, err)
	}
	return nil
}

// CheckDocVersion enforces the spec's version acceptance rule: a reader
// accepts any document version <= its own.
func CheckDocVersion(v int) error {
	if v > DocVersion {
		return fmt.Errorf("%w: session document version %d newer than this reader's %d", xerr.InvalidInput, v, DocVersion)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
