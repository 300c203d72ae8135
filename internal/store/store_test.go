package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/twistedatrocity/swgaide/internal/models"
)

const galaxy = "Starsider"

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestResourceCRUD(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	id := seed(t, s, "Ironia", "Iron", nil, models.Naboo)

	got, err := s.GetResource(id)
	if err != nil {
		t.Fatalf("GetResource failed: %v", err)
	}
	if got.Name != "Ironia" || got.Class != "Iron" || got.Galaxy != galaxy {
		t.Errorf("Unexpected resource %+v", got)
	}
	if !got.AvailableOn(models.Naboo) || got.HasStats() {
		t.Errorf("Expected Naboo without stats, got %v stats=%v", got.Availability.Sorted(), got.Stats)
	}

	var st models.StatBlock
	st[models.OQ] = 900
	if err := s.SetStats(id, st); err != nil {
		t.Fatalf("SetStats failed: %v", err)
	}
	added, err := s.AddAvailability(id, models.Rori)
	if err != nil || !added {
		t.Fatalf("Expected Rori added, got %v %v", added, err)
	}
	added, err = s.AddAvailability(id, models.Rori)
	if err != nil || added {
		t.Errorf("Expected second add to be a no-op, got %v %v", added, err)
	}

	got, err = s.FindResource(galaxy, "Ironia")
	if err != nil {
		t.Fatalf("FindResource failed: %v", err)
	}
	if !got.HasStats() || got.Stats[models.OQ] != 900 {
		t.Errorf("Expected OQ 900, got %v", got.Stats)
	}
	if len(got.Availability) != 2 {
		t.Errorf("Expected 2 planets, got %v", got.Availability.Sorted())
	}

	if _, err := s.FindResource(galaxy, "Nope"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindResource("Other", "Ironia"); err != ErrNotFound {
		t.Errorf("Expected galaxies to be separate, got %v", err)
	}
}

func TestListResources(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	seed(t, s, "Oakwood", "Hard Wood", nil, models.Naboo, models.Tatooine)
	seed(t, s, "Ironia", "Iron", nil, models.Rori)
	if _, err := s.InsertResource("Other", &models.CatalogRecord{Name: "Elsewhere", Class: "Iron", Availability: models.NewPlanetSet()}); err != nil {
		t.Fatalf("InsertResource failed: %v", err)
	}

	list, err := s.ListResources(galaxy)
	if err != nil {
		t.Fatalf("ListResources failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Ironia" || list[1].Name != "Oakwood" {
		t.Fatalf("Expected [Ironia Oakwood], got %v", list)
	}
	if len(list[1].Availability) != 2 {
		t.Errorf("Expected Oakwood on 2 planets, got %v", list[1].Availability.Sorted())
	}

	names, err := s.ResourceNames(galaxy)
	if err != nil || len(names) != 2 {
		t.Errorf("Expected 2 names, got %v %v", names, err)
	}
}

func TestMarkDepletedAndLastReported(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	id := seed(t, s, "Ironia", "Iron", nil, models.Naboo)
	last, err := s.LastReported(id)
	if err != nil {
		t.Fatalf("LastReported failed: %v", err)
	}
	if last.IsZero() || time.Since(last) > time.Minute {
		t.Errorf("Expected a recent report time, got %v", last)
	}

	asOf := time.Now().Add(time.Hour)
	if err := s.MarkDepleted(id, asOf); err != nil {
		t.Fatalf("MarkDepleted failed: %v", err)
	}
	got, _ := s.GetResource(id)
	if !got.Depleted || got.DepletedAt == nil {
		t.Errorf("Expected depleted with timestamp, got %+v", got)
	}

	empty := seed(t, s, "Ghost", "Iron", nil)
	last, err = s.LastReported(empty)
	if err != nil || !last.IsZero() {
		t.Errorf("Expected zero time for unreported resource, got %v %v", last, err)
	}
}

func TestImport(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	seed(t, s, "Ironia", "Iron", nil, models.Naboo)
	var st models.StatBlock
	st[models.OQ] = 500

	n, err := s.Import(galaxy, []models.CatalogRecord{
		{Name: "Ironia", Class: "Iron", Stats: &st, Availability: models.NewPlanetSet(models.Rori)},
		{Name: "Copperia", Class: "Copper"},
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 inserted, got %d", n)
	}
	got, _ := s.FindResource(galaxy, "Ironia")
	if !got.HasStats() || !got.AvailableOn(models.Rori) {
		t.Errorf("Expected stats and Rori back-filled, got %+v", got)
	}
	if _, err := s.FindResource(galaxy, "Copperia"); err != nil {
		t.Errorf("Expected Copperia imported, got %v", err)
	}
}

func TestSnapshotCache(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if snap, err := s.LoadSnapshot(galaxy); err != nil || snap != nil {
		t.Fatalf("Expected no cached snapshot, got %v %v", snap, err)
	}

	fetched := time.Date(2026, 10, 17, 11, 30, 0, 0, time.UTC)
	var st models.StatBlock
	st[models.DR] = 300
	snap := models.NewSnapshot(galaxy, fetched, []models.CatalogRecord{
		{ID: 1, Name: "Ironia", Class: "Iron", Stats: &st, Availability: models.NewPlanetSet(models.Naboo)},
		{ID: 2, Name: "Oakwood", Class: "Hard Wood", Depleted: true, Availability: models.NewPlanetSet()},
	})
	if err := s.SaveSnapshot(snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if err := s.SaveSnapshot(snap); err != nil {
		t.Fatalf("Expected resave to replace, got %v", err)
	}

	got, err := s.LoadSnapshot(galaxy)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if !got.FetchedAt().Equal(fetched) {
		t.Errorf("Expected fetched_at %v, got %v", fetched, got.FetchedAt())
	}
	if got.Len() != 2 {
		t.Fatalf("Expected 2 records, got %d", got.Len())
	}
	iron := got.Lookup("Ironia")
	if iron == nil || iron.Stats == nil || iron.Stats[models.DR] != 300 || !iron.AvailableOn(models.Naboo) {
		t.Errorf("Unexpected Ironia %+v", iron)
	}
	if oak := got.Lookup("Oakwood"); oak == nil || !oak.Depleted {
		t.Errorf("Expected Oakwood depleted, got %+v", oak)
	}
}

func TestPDR(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	pdr, err := s.WritePDR("submit.new", "abc123", "success", "Ironia", "")
	if err != nil {
		t.Fatalf("WritePDR failed: %v", err)
	}
	if pdr.ID == "" {
		t.Error("PDR ID should not be empty")
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := s.WritePDR("decision.line", "def456", "skip", "Oakwood", "line 5"); err != nil {
		t.Fatalf("WritePDR failed: %v", err)
	}

	all, err := s.ListPDR("", 10)
	if err != nil {
		t.Fatalf("ListPDR failed: %v", err)
	}
	if len(all) != 2 || all[0].Action != "decision.line" {
		t.Errorf("Expected newest first, got %v", all)
	}
	if all[0].Details != "line 5" || all[0].Resource != "Oakwood" {
		t.Errorf("Unexpected entry %+v", all[0])
	}

	only, err := s.ListPDR("submit.new", 0)
	if err != nil || len(only) != 1 || only[0].Resource != "Ironia" {
		t.Errorf("Expected one submit.new entry, got %v %v", only, err)
	}
}

func seed(t *testing.T, s *Store, name, class string, stats *models.StatBlock, planets ...models.Planet) int64 {
	t.Helper()
	id, err := s.InsertResource(galaxy, &models.CatalogRecord{
		Name:         name,
		Class:        class,
		Stats:        stats,
		Availability: models.NewPlanetSet(planets...),
	})
	if err != nil {
		t.Fatalf("InsertResource %s failed: %v", name, err)
	}
	return id
}

func newTestStore(t *testing.T) *Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}
