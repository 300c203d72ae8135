// Package models defines the core domain types shared by the merge engine,
// the notes codec and the submission pipeline.
package models

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Planet names a planet in the fixed game order.
type Planet string

const (
	Corellia  Planet = "Corellia"
	Dantooine Planet = "Dantooine"
	Dathomir  Planet = "Dathomir"
	Endor     Planet = "Endor"
	Kashyyyk  Planet = "Kashyyyk"
	Lok       Planet = "Lok"
	Mustafar  Planet = "Mustafar"
	Naboo     Planet = "Naboo"
	Rori      Planet = "Rori"
	Talus     Planet = "Talus"
	Tatooine  Planet = "Tatooine"
	Yavin4    Planet = "Yavin 4"
)

var planetOrder = []Planet{
	Corellia, Dantooine, Dathomir, Endor, Kashyyyk, Lok,
	Mustafar, Naboo, Rori, Talus, Tatooine, Yavin4,
}

// Planets returns the planets in their fixed order.
func Planets() []Planet {
	out := make([]Planet, len(planetOrder))
	copy(out, planetOrder)
	return out
}

// Index returns the position of p in the fixed planet order, or -1.
func (p Planet) Index() int {
	for i, q := range planetOrder {
		if p == q {
			return i
		}
	}
	return -1
}

// ParsePlanet resolves a planet name case-insensitively. Spaces are optional,
// so "yavin4" resolves to Yavin 4.
func ParsePlanet(s string) (Planet, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	for _, p := range planetOrder {
		if strings.ToLower(strings.ReplaceAll(string(p), " ", "")) == key {
			return p, true
		}
	}
	return "", false
}

// PlanetSet is a set of planets.
type PlanetSet map[Planet]struct{}

// NewPlanetSet returns a set holding the given planets.
func NewPlanetSet(planets ...Planet) PlanetSet {
	s := make(PlanetSet, len(planets))
	for _, p := range planets {
		s[p] = struct{}{}
	}
	return s
}

// Add inserts p and reports whether it was absent.
func (s PlanetSet) Add(p Planet) bool {
	if _, ok := s[p]; ok {
		return false
	}
	s[p] = struct{}{}
	return true
}

// Has reports whether p is in the set.
func (s PlanetSet) Has(p Planet) bool {
	_, ok := s[p]
	return ok
}

// Sorted returns the members in the fixed planet order.
func (s PlanetSet) Sorted() []Planet {
	out := make([]Planet, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index() < out[j].Index() })
	return out
}

// Clone returns a copy of the set.
func (s PlanetSet) Clone() PlanetSet {
	c := make(PlanetSet, len(s))
	for p := range s {
		c[p] = struct{}{}
	}
	return c
}

// MarshalJSON encodes the set as an ordered list.
func (s PlanetSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an ordered list into the set.
func (s *PlanetSet) UnmarshalJSON(data []byte) error {
	var list []Planet
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = NewPlanetSet(list...)
	return nil
}

// Stat is one of the eleven resource quality statistics.
type Stat int

const (
	ER Stat = iota
	CR
	CD
	DR
	FL
	HR
	MA
	PE
	OQ
	SR
	UT
	NumStats
)

var statNames = [NumStats]string{"ER", "CR", "CD", "DR", "FL", "HR", "MA", "PE", "OQ", "SR", "UT"}

func (s Stat) String() string {
	if s < 0 || s >= NumStats {
		return "??"
	}
	return statNames[s]
}

// ParseStat resolves a two-letter stat abbreviation.
func ParseStat(s string) (Stat, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range statNames {
		if n == s {
			return Stat(i), true
		}
	}
	return 0, false
}

// StatBlock holds one value per stat; zero means the stat is not recorded.
type StatBlock [NumStats]int

// IsZero reports whether no stat is recorded.
func (b StatBlock) IsZero() bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// SurveyReport is one scan of resource availability for one planet.
type SurveyReport struct {
	ID         string    `json:"id" yaml:"id"`
	Galaxy     string    `json:"galaxy" yaml:"galaxy"`
	Planet     Planet    `json:"planet" yaml:"planet"`
	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
	SourceID   string    `json:"source_id" yaml:"source_id"`
	Character  string    `json:"character,omitempty" yaml:"character"`
	Findings   []Finding `json:"findings,omitempty" yaml:"resources"`
}

// Finding is one resource seen by a survey.
type Finding struct {
	Name  string `json:"name" yaml:"name"`
	Class string `json:"class" yaml:"class"`
}

// ResourceDraft is the mutable, locally accumulated view of a resource.
type ResourceDraft struct {
	Name         string    `json:"name"`
	Class        string    `json:"class"`
	Galaxy       string    `json:"galaxy"`
	Stats        StatBlock `json:"stats"`
	Availability PlanetSet `json:"availability"`
	// ForceNew asks the catalog to accept the name even if it resembles an existing one.
	ForceNew bool `json:"force_new,omitempty"`
}

// HasStats reports whether any stat has been recorded on the draft.
func (d *ResourceDraft) HasStats() bool {
	return !d.Stats.IsZero()
}

// Wrapper is the per-resource record threaded through merge, notes and submission.
type Wrapper struct {
	Resource *ResourceDraft
	// Catalog is nil for resources unknown to the catalog.
	Catalog *CatalogRecord
	Origin  *SurveyReport
	// Planet is set for elements that concern one planet (new, unreported).
	Planet Planet

	// Written is the write-cycle flag: set once the resource has been emitted
	// into a planet block, cleared when the document is complete.
	Written bool
	// Submitted is the pipeline flag: set once the catalog accepted the record.
	Submitted bool
}

// Name returns the resource name.
func (w *Wrapper) Name() string { return w.Resource.Name }

// Class returns the resource class name.
func (w *Wrapper) Class() string { return w.Resource.Class }

// IsNew reports whether the resource is unknown to the catalog.
func (w *Wrapper) IsNew() bool { return w.Catalog == nil }

// AddsStats reports whether the draft carries stats the catalog record lacks.
func (w *Wrapper) AddsStats() bool {
	if !w.Resource.HasStats() {
		return false
	}
	return w.Catalog == nil || !w.Catalog.HasStats()
}
