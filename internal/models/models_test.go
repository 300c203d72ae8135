package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParsePlanet(t *testing.T) {
	tests := map[string]Planet{
		"naboo":     Naboo,
		" Tatooine": Tatooine,
		"yavin4":    Yavin4,
		"Yavin 4":   Yavin4,
	}
	for in, want := range tests {
		got, ok := ParsePlanet(in)
		if !ok || got != want {
			t.Errorf("ParsePlanet(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParsePlanet("Hoth"); ok {
		t.Error("Expected Hoth to be unknown")
	}
}

func TestPlanetSetJSON(t *testing.T) {
	s := NewPlanetSet(Tatooine, Corellia, Naboo)
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `["Corellia","Naboo","Tatooine"]` {
		t.Errorf("Unexpected encoding: %s", data)
	}

	var back PlanetSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(back) != 3 || !back.Has(Naboo) {
		t.Errorf("Unexpected decoded set: %v", back.Sorted())
	}
}

func TestSnapshotIsImmutableCopy(t *testing.T) {
	stats := StatBlock{}
	stats[OQ] = 900
	recs := []CatalogRecord{{ID: 1, Name: "Oakwood", Class: "Wood", Stats: &stats, Availability: NewPlanetSet(Naboo)}}
	fetched := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	snap := NewSnapshot("Starsider", fetched, recs)

	recs[0].Availability.Add(Tatooine)
	stats[OQ] = 1

	got := snap.Lookup("Oakwood")
	if got == nil {
		t.Fatal("Expected record")
	}
	if got.AvailableOn(Tatooine) {
		t.Error("Snapshot availability changed with caller's slice")
	}
	if got.Stats[OQ] != 900 {
		t.Errorf("Snapshot stats changed with caller's value: %d", got.Stats[OQ])
	}

	if !snap.IsStale(fetched.Add(46*time.Minute), 45*time.Minute) {
		t.Error("Expected snapshot to be stale after 46 minutes")
	}
	if snap.IsStale(fetched.Add(10*time.Minute), 45*time.Minute) {
		t.Error("Expected snapshot to be fresh after 10 minutes")
	}
}

func TestSortByClassNamePlanet(t *testing.T) {
	rank := func(class string) int {
		if class == "Mineral" {
			return 0
		}
		return 1
	}
	w := func(name, class string, p Planet) *Wrapper {
		return &Wrapper{Resource: &ResourceDraft{Name: name, Class: class}, Planet: p}
	}
	ws := []*Wrapper{
		w("OakB", "Wood", Naboo),
		w("OakA", "Wood", Tatooine),
		w("OakA", "Wood", Corellia),
		w("Iron", "Mineral", Rori),
	}
	SortByClassNamePlanet(ws, rank)

	want := []string{"Iron/Rori", "OakA/Corellia", "OakA/Tatooine", "OakB/Naboo"}
	for i, x := range ws {
		if got := x.Name() + "/" + string(x.Planet); got != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got)
		}
	}
}

func TestOutcomeSucceeded(t *testing.T) {
	if !Success().Succeeded() || !(Outcome{Kind: OutcomeAlreadyExists}).Succeeded() {
		t.Error("Expected success and already-exists to count as submitted")
	}
	if Failure(OutcomeTransientFailure, "timeout").Succeeded() {
		t.Error("Expected transient failure not to count as submitted")
	}
	if got := Collision("Oakwod").Candidates; len(got) != 1 {
		t.Errorf("Expected one candidate, got %v", got)
	}
}
