package classes

import (
	"errors"
	"testing"

	"github.com/twistedatrocity/swgaide/internal/models"
)

func TestDefaultTreeRank(t *testing.T) {
	tree := Default()
	if tree.Rank("Mineral") >= tree.Rank("Wood") {
		t.Errorf("Expected Mineral to sort before Wood, got %d >= %d", tree.Rank("Mineral"), tree.Rank("Wood"))
	}
	if tree.Rank("Hard Wood") <= tree.Rank("Wood") {
		t.Error("Expected child to sort after its parent")
	}
	if got := tree.Rank("No Such Class"); got != len(tree.Classes()) {
		t.Errorf("Expected unknown class to sort last, got %d", got)
	}
}

func TestIsUnder(t *testing.T) {
	tree := Default()
	tests := []struct {
		class, ancestor string
		want            bool
	}{
		{"Hard Wood", "Wood", true},
		{"Hard Wood", "Organic", true},
		{"Wood", "Wood", true},
		{"iron", "METAL", true},
		{"Iron", "Wood", false},
		{"Wood", "Hard Wood", false},
		{"Unknown", "Resource", false},
	}
	for _, tt := range tests {
		if got := tree.IsUnder(tt.class, tt.ancestor); got != tt.want {
			t.Errorf("IsUnder(%q, %q) = %v, want %v", tt.class, tt.ancestor, got, tt.want)
		}
	}
	if !tree.UnderAny("Copper", []string{"Wood", "Non-Ferrous Metal"}) {
		t.Error("Expected Copper to be under Non-Ferrous Metal")
	}
}

func TestStatOrderInherited(t *testing.T) {
	tree := Default()
	stats, err := tree.StatOrder("Hard Wood")
	if err != nil {
		t.Fatalf("StatOrder failed: %v", err)
	}
	want := []models.Stat{models.DR, models.HR, models.OQ, models.SR, models.UT}
	if len(stats) != len(want) {
		t.Fatalf("Expected %d stats, got %d", len(want), len(stats))
	}
	for i := range want {
		if stats[i] != want[i] {
			t.Errorf("stat %d: expected %s, got %s", i, want[i], stats[i])
		}
	}

	if _, err := tree.StatOrder("Plasma"); !errors.Is(err, ErrUnknownClass) {
		t.Errorf("Expected ErrUnknownClass, got %v", err)
	}
}

func TestLoadRejectsBadTrees(t *testing.T) {
	bad := map[string]string{
		"duplicate":  "name: A\nchildren:\n  - name: B\n  - name: b\n",
		"stat":       "name: A\nstats: [XX]\n",
		"empty name": "name: A\nchildren:\n  - name: ''\n",
	}
	for name, data := range bad {
		if _, err := Load([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestCategory(t *testing.T) {
	tree := Default()
	tests := map[string]string{
		"Hard Wood": "Flora",
		"Iron":      "Mineral",
		"Mineral":   "Mineral",
		"Inorganic": "Inorganic",
		"Water":     "Water",
		"Unobtain":  "Unobtain",
	}
	for class, want := range tests {
		if got := tree.Category(class); got != want {
			t.Errorf("Category(%q) = %q, want %q", class, got, want)
		}
	}
}
