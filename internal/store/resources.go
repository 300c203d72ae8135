package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twistedatrocity/swgaide/internal/models"
)

// ErrNotFound is returned when a resource does not exist.
var ErrNotFound = errors.New("resource not found")

// Resource is a row of the local catalog.
type Resource struct {
	models.CatalogRecord
	Galaxy     string
	DepletedAt *time.Time
	UpdatedAt  time.Time
}

const resourceColumns = `id, galaxy, name, class, stats, depleted, depleted_at, updated_at`

func encodeStats(st *models.StatBlock) sql.NullString {
	if st == nil || st.IsZero() {
		return sql.NullString{}
	}
	data, _ := json.Marshal(st)
	return sql.NullString{String: string(data), Valid: true}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResource(row rowScanner) (*Resource, error) {
	var r Resource
	var stats sql.NullString
	var depletedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.Galaxy, &r.Name, &r.Class, &stats, &r.Depleted, &depletedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if stats.Valid {
		var st models.StatBlock
		if err := json.Unmarshal([]byte(stats.String), &st); err != nil {
			return nil, fmt.Errorf("decode stats of %s: %w", r.Name, err)
		}
		r.Stats = &st
	}
	if depletedAt.Valid {
		r.DepletedAt = &depletedAt.Time
	}
	r.Availability = models.NewPlanetSet()
	return &r, nil
}

func (s *Store) loadAvailability(r *Resource) error {
	rows, err := s.db.Query(`SELECT planet FROM availability WHERE resource_id = ?`, r.ID)
	if err != nil {
		return fmt.Errorf("query availability: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Planet
		if err := rows.Scan(&p); err != nil {
			return fmt.Errorf("scan availability: %w", err)
		}
		r.Availability.Add(p)
	}
	return rows.Err()
}

// GetResource returns the resource with id.
func (s *Store) GetResource(id int64) (*Resource, error) {
	r, err := scanResource(s.db.QueryRow(`SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return r, s.loadAvailability(r)
}

// FindResource returns the resource named name in galaxy.
func (s *Store) FindResource(galaxy, name string) (*Resource, error) {
	r, err := scanResource(s.db.QueryRow(`SELECT `+resourceColumns+` FROM resources WHERE galaxy = ? AND name = ?`, galaxy, name))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find resource: %w", err)
	}
	return r, s.loadAvailability(r)
}

// ListResources returns every resource of galaxy with its availability,
// ordered by name.
func (s *Store) ListResources(galaxy string) ([]Resource, error) {
	rows, err := s.db.Query(`SELECT `+resourceColumns+` FROM resources WHERE galaxy = ? ORDER BY name`, galaxy)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	var out []Resource
	byID := make(map[int64]int)
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		byID[r.ID] = len(out)
		out = append(out, *r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	avail, err := s.db.Query(
		`SELECT a.resource_id, a.planet FROM availability a JOIN resources r ON r.id = a.resource_id WHERE r.galaxy = ?`,
		galaxy,
	)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	defer avail.Close()
	for avail.Next() {
		var id int64
		var p models.Planet
		if err := avail.Scan(&id, &p); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		if i, ok := byID[id]; ok {
			out[i].Availability.Add(p)
		}
	}
	return out, avail.Err()
}

// ResourceNames returns the names of galaxy's resources.
func (s *Store) ResourceNames(galaxy string) ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM resources WHERE galaxy = ? ORDER BY name`, galaxy)
	if err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// InsertResource adds a resource and its availability in one transaction.
func (s *Store) InsertResource(galaxy string, rec *models.CatalogRecord) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.Exec(
		`INSERT INTO resources (galaxy, name, class, stats, depleted, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		galaxy, rec.Name, rec.Class, encodeStats(rec.Stats), rec.Depleted, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert resource: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resource id: %w", err)
	}
	for _, p := range rec.Availability.Sorted() {
		if _, err := tx.Exec(
			`INSERT INTO availability (resource_id, planet, reported_at) VALUES (?, ?, ?)`,
			id, p, now,
		); err != nil {
			return 0, fmt.Errorf("insert availability: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return id, nil
}

// SetStats records stats for a resource.
func (s *Store) SetStats(id int64, stats models.StatBlock) error {
	_, err := s.db.Exec(
		`UPDATE resources SET stats = ?, updated_at = ? WHERE id = ?`,
		encodeStats(&stats), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set stats: %w", err)
	}
	return nil
}

// AddAvailability lists a resource on planet and reports whether it was new.
func (s *Store) AddAvailability(id int64, planet models.Planet) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO availability (resource_id, planet, reported_at) VALUES (?, ?, ?)`,
		id, planet, now,
	)
	if err != nil {
		return false, fmt.Errorf("add availability: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	if n > 0 {
		if _, err := s.db.Exec(`UPDATE resources SET updated_at = ? WHERE id = ?`, now, id); err != nil {
			return true, fmt.Errorf("touch resource: %w", err)
		}
	}
	return n > 0, nil
}

// MarkDepleted flags a resource as out of spawn as of asOf.
func (s *Store) MarkDepleted(id int64, asOf time.Time) error {
	_, err := s.db.Exec(
		`UPDATE resources SET depleted = 1, depleted_at = ?, updated_at = ? WHERE id = ? AND depleted = 0`,
		asOf.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark depleted: %w", err)
	}
	return nil
}

// LastReported returns the latest availability report time of a resource,
// or the zero time when it was never reported.
func (s *Store) LastReported(id int64) (time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRow(
		`SELECT reported_at FROM availability WHERE resource_id = ? ORDER BY reported_at DESC LIMIT 1`,
		id,
	).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("last reported: %w", err)
	}
	return last.Time, nil
}

// Import upserts records into galaxy: new names are inserted, known ones get
// missing stats and availability. It returns how many records were inserted.
func (s *Store) Import(galaxy string, records []models.CatalogRecord) (int, error) {
	inserted := 0
	for i := range records {
		rec := records[i]
		existing, err := s.FindResource(galaxy, rec.Name)
		if errors.Is(err, ErrNotFound) {
			if rec.Availability == nil {
				rec.Availability = models.NewPlanetSet()
			}
			if _, err := s.InsertResource(galaxy, &rec); err != nil {
				return inserted, err
			}
			inserted++
			continue
		}
		if err != nil {
			return inserted, err
		}
		if rec.HasStats() && !existing.HasStats() {
			if err := s.SetStats(existing.ID, *rec.Stats); err != nil {
				return inserted, err
			}
		}
		for _, p := range rec.Availability.Sorted() {
			if _, err := s.AddAvailability(existing.ID, p); err != nil {
				return inserted, err
			}
		}
	}
	return inserted, nil
}
