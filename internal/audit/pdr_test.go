package audit

import (
	"path/filepath"
	"testing"

	"github.com/twistedatrocity/swgaide/internal/store"
)

func TestHashInputsStable(t *testing.T) {
	a := hashInputs(map[string]string{"name": "Ironia", "planet": "Naboo"})
	b := hashInputs(map[string]string{"planet": "Naboo", "name": "Ironia"})
	if a != b {
		t.Errorf("Expected map key order not to matter, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Expected hex sha256, got %q", a)
	}
	if got := hashInputs(func() {}); got != "hash_error" {
		t.Errorf("Expected hash_error for unencodable input, got %q", got)
	}
}

func TestRecordAndRecent(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	w := NewPDRWriter(s)
	entry, err := w.Record(ActionCollision, map[string]string{"use": "Ironium"}, "edit", "Ironia", "candidates: Ironium")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if entry.InputsHash == "" || entry.Resource != "Ironia" {
		t.Errorf("Unexpected entry %+v", entry)
	}

	recent, err := w.Recent(ActionCollision, 5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != entry.ID {
		t.Errorf("Expected the recorded entry, got %v", recent)
	}
}
