package models

import (
	"sort"
	"time"
)

// CatalogRecord is a resource as known by the remote catalog.
type CatalogRecord struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Class        string     `json:"class"`
	Stats        *StatBlock `json:"stats,omitempty"`
	Depleted     bool       `json:"depleted"`
	AgeSeconds   int64      `json:"age_seconds"`
	Availability PlanetSet  `json:"availability"`
}

// HasStats reports whether the catalog holds statistics for the record.
func (r *CatalogRecord) HasStats() bool {
	return r.Stats != nil && !r.Stats.IsZero()
}

// AvailableOn reports whether the catalog lists the record on p.
func (r *CatalogRecord) AvailableOn(p Planet) bool {
	return r.Availability.Has(p)
}

// CatalogSnapshot is an immutable point-in-time view of one galaxy's catalog.
// Records handed out by a snapshot must not be modified.
type CatalogSnapshot struct {
	galaxy    string
	fetchedAt time.Time
	records   []*CatalogRecord
	byName    map[string]*CatalogRecord
}

// NewSnapshot copies records into a new snapshot.
func NewSnapshot(galaxy string, fetchedAt time.Time, records []CatalogRecord) *CatalogSnapshot {
	s := &CatalogSnapshot{
		galaxy:    galaxy,
		fetchedAt: fetchedAt,
		records:   make([]*CatalogRecord, 0, len(records)),
		byName:    make(map[string]*CatalogRecord, len(records)),
	}
	for i := range records {
		rec := records[i]
		rec.Availability = rec.Availability.Clone()
		if rec.Stats != nil {
			st := *rec.Stats
			rec.Stats = &st
		}
		s.records = append(s.records, &rec)
		s.byName[rec.Name] = &rec
	}
	sort.Slice(s.records, func(i, j int) bool { return s.records[i].Name < s.records[j].Name })
	return s
}

// Galaxy returns the galaxy the snapshot describes.
func (s *CatalogSnapshot) Galaxy() string { return s.galaxy }

// FetchedAt returns when the snapshot was downloaded.
func (s *CatalogSnapshot) FetchedAt() time.Time { return s.fetchedAt }

// Age returns how old the snapshot is at now.
func (s *CatalogSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.fetchedAt)
}

// IsStale reports whether the snapshot is older than maxAge at now.
func (s *CatalogSnapshot) IsStale(now time.Time, maxAge time.Duration) bool {
	return s.Age(now) > maxAge
}

// Lookup returns the record with the exact name, or nil.
func (s *CatalogSnapshot) Lookup(name string) *CatalogRecord {
	return s.byName[name]
}

// Records returns all records ordered by name.
func (s *CatalogSnapshot) Records() []*CatalogRecord {
	out := make([]*CatalogRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *CatalogSnapshot) Len() int { return len(s.records) }
