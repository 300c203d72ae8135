package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/twistedatrocity/swgaide/internal/models"
)

// SaveSnapshot caches snap, replacing any earlier snapshot of its galaxy.
func (s *Store) SaveSnapshot(snap *models.CatalogSnapshot) error {
	recs := snap.Records()
	flat := make([]models.CatalogRecord, len(recs))
	for i, r := range recs {
		flat[i] = *r
	}
	data, err := json.Marshal(flat)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO snapshots (galaxy, fetched_at, records) VALUES (?, ?, ?)
		 ON CONFLICT(galaxy) DO UPDATE SET fetched_at = excluded.fetched_at, records = excluded.records`,
		snap.Galaxy(), snap.FetchedAt().UTC(), string(data),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the cached snapshot of galaxy, or nil if none.
func (s *Store) LoadSnapshot(galaxy string) (*models.CatalogSnapshot, error) {
	var fetched sql.NullTime
	var data string
	err := s.db.QueryRow(`SELECT fetched_at, records FROM snapshots WHERE galaxy = ?`, galaxy).Scan(&fetched, &data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var recs []models.CatalogRecord
	if err := json.Unmarshal([]byte(data), &recs); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return models.NewSnapshot(galaxy, fetched.Time, recs), nil
}
