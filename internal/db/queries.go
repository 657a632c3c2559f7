package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/tubestreak/internal/errors"
)

// Backup is the last address the extension dispatched, kept as a
// redundancy copy in the store shared by both processes.
type Backup struct {
	Key     string `json:"backup_key"`
	Address string `json:"address"`
	EventID string `json:"event_id"`
	SavedAt int64  `json:"saved_at"`
}

// SavedTime returns SavedAt as a time.Time.
func (b *Backup) SavedTime() time.Time {
	return time.Unix(b.SavedAt, 0)
}

// SaveBackup stores b under its key, replacing any earlier record.
// A zero SavedAt is set to the current time.
func SaveBackup(ctx context.Context, db *sql.DB, b *Backup) error {
	if strings.TrimSpace(b.Key) == "" {
		return errors.NewInvalidRequest("backup key is required")
	}
	if b.Address == "" {
		return errors.NewInvalidRequest("backup address is required")
	}
	if b.SavedAt == 0 {
		b.SavedAt = time.Now().Unix()
	}

	query := `
		INSERT INTO backups (backup_key, address, event_id, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(backup_key) DO UPDATE SET
			address = excluded.address,
			event_id = excluded.event_id,
			saved_at = excluded.saved_at
	`
	if _, err := db.ExecContext(ctx, query, b.Key, b.Address, b.EventID, b.SavedAt); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetBackup returns the record stored under key.
func GetBackup(ctx context.Context, db *sql.DB, key string) (*Backup, error) {
	query := `
		SELECT backup_key, address, event_id, saved_at
		FROM backups
		WHERE backup_key = ?
	`

	var b Backup
	err := db.QueryRowContext(ctx, query, key).Scan(&b.Key, &b.Address, &b.EventID, &b.SavedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(key)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &b, nil
}

// ClearBackup removes the record stored under key.
// Returns true if a record was removed.
func ClearBackup(ctx context.Context, db *sql.DB, key string) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM backups WHERE backup_key = ?`, key)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return n > 0, nil
}

// BackupStore adapts the package functions to the extension's backup
// interface for one agreed key.
type BackupStore struct {
	DB  *sql.DB
	Key string
}

// Save stores address and eventID under the store's key.
func (s *BackupStore) Save(ctx context.Context, address, eventID string, at time.Time) error {
	return SaveBackup(ctx, s.DB, &Backup{
		Key:     s.Key,
		Address: address,
		EventID: eventID,
		SavedAt: at.Unix(),
	})
}
