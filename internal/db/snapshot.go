package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"jalrakshak-monitor/internal/models"
)

// DefaultSnapshot is the row name the portal keeps its complaint cache under
const DefaultSnapshot = "complaints"

// SnapshotStore persists the reconciler's collection as a single JSON
// document. It is a cache: errors are logged and swallowed.
type SnapshotStore struct {
	db   *Database
	name string
	log  *slog.Logger
}

// NewSnapshotStore creates a store writing under the given row name
func NewSnapshotStore(db *Database, name string, log *slog.Logger) *SnapshotStore {
	if name == "" {
		name = DefaultSnapshot
	}
	if log == nil {
		log = slog.Default()
	}
	return &SnapshotStore{db: db, name: name, log: log.With("snapshot", name)}
}

// Load returns the stored collection, or false when none was saved
func (s *SnapshotStore) Load() ([]models.Complaint, bool) {
	var payload string
	err := s.db.conn.QueryRow(`SELECT payload FROM snapshots WHERE name = ?`, s.name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.log.Warn("snapshot_load_failed", "error", err)
		return nil, false
	}

	var records []models.Complaint
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		s.log.Warn("snapshot_corrupt", "error", err)
		return nil, false
	}
	return records, true
}

// Save replaces the stored collection
func (s *SnapshotStore) Save(records []models.Complaint) {
	if records == nil {
		records = []models.Complaint{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		s.log.Warn("snapshot_encode_failed", "error", err)
		return
	}
	_, err = s.db.conn.Exec(`
		INSERT INTO snapshots (name, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at
	`, s.name, string(payload), time.Now().UTC())
	if err != nil {
		s.log.Warn("snapshot_save_failed", "error", err, "records", len(records))
	}
}
