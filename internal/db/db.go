// Package db is the store shared by the extension and the host. It holds
// the backup record of the last dispatched address.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/tubestreak/internal/config"
	_ "modernc.org/sqlite"
)

// FileName is the database file inside the base directory shared by the
// extension and the host.
const FileName = "handoff.db"

// migrations are applied in order; migration i moves user_version from i
// to i+1. Append only.
var migrations = []string{
	// 1: one backup record per key. Saving again replaces it.
	`CREATE TABLE IF NOT EXISTS backups (
	  backup_key TEXT PRIMARY KEY,
	  address    TEXT NOT NULL,
	  event_id   TEXT NOT NULL,
	  saved_at   INTEGER NOT NULL
	);`,
}

// CurrentSchemaVersion is the user_version after every migration ran.
var CurrentSchemaVersion = len(migrations)

// Init opens baseDir/handoff.db, creating it and baseDir as needed, and
// brings the schema up to date.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Both processes open the same file. WAL lets the host read while the
	// extension writes; busy_timeout covers the overlap at host startup.
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := requireWAL(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)
	return db, nil
}

// ConfigurePool applies the pool limits set in cfg. Zero leaves the
// driver default.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate runs the migrations past the stored user_version. A store
// written by a newer build is left alone.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	if version > len(migrations) {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if err := SetUserVersion(db, i+1); err != nil {
			return err
		}
	}
	return nil
}

func requireWAL(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", mode)
	}
	return nil
}

// GetUserVersion returns the schema version stored in the user_version pragma.
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion stores version in the user_version pragma.
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
