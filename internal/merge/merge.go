// Package merge reconciles several partial survey reports against one
// catalog snapshot.
package merge

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twistedatrocity/swgaide/internal/connectors"
	"github.com/twistedatrocity/swgaide/internal/models"
)

// Classifier compares one report with a snapshot.
type Classifier interface {
	Classify(report *models.SurveyReport, snap *models.CatalogSnapshot) (*connectors.Classification, error)
}

// View is the reconciled outcome of one batch.
type View struct {
	Galaxy string
	// Reports is the number of reports merged.
	Reports int

	// Unreported holds one element per (resource, missing planet).
	Unreported []*models.Wrapper
	// Depleted holds one element per resource.
	Depleted []*models.Wrapper
	// New holds one element per (resource, planet) it was found at.
	New []*models.Wrapper
	// Statless holds one element per resource.
	Statless []*models.Wrapper

	rank models.ClassRank
}

// Engine merges classified reports.
type Engine struct {
	classifier Classifier
	rank       models.ClassRank
	log        zerolog.Logger
}

// New creates a merge engine. rank orders resource classes.
func New(classifier Classifier, rank models.ClassRank, log zerolog.Logger) *Engine {
	return &Engine{
		classifier: classifier,
		rank:       rank,
		log:        log.With().Str("component", "merge").Logger(),
	}
}

type pair struct {
	name   string
	planet models.Planet
}

// Merge classifies every report against snap and unions the results.
//
// A resource found available by any report is never reported depleted, even
// if other reports lack it. This only holds up when the batch covers enough
// planets; a resource spawned solely on unsurveyed planets is still reported.
func (e *Engine) Merge(reports []models.SurveyReport, snap *models.CatalogSnapshot) (*View, error) {
	v := &View{Galaxy: snap.Galaxy(), Reports: len(reports), rank: e.rank}
	if len(reports) == 0 {
		return v, nil
	}

	classified := make([]*connectors.Classification, len(reports))
	available := make(map[string]bool)
	for i := range reports {
		c, err := e.classifier.Classify(&reports[i], snap)
		if err != nil {
			return nil, fmt.Errorf("classify report %s: %w", reports[i].SourceID, err)
		}
		classified[i] = c
		for _, name := range c.Available {
			available[name] = true
		}
	}

	drafts := make(map[string]*models.ResourceDraft)
	draftFor := func(rec *models.CatalogRecord) *models.ResourceDraft {
		d, ok := drafts[rec.Name]
		if !ok {
			d = &models.ResourceDraft{
				Name:         rec.Name,
				Class:        rec.Class,
				Galaxy:       snap.Galaxy(),
				Availability: rec.Availability.Clone(),
			}
			drafts[rec.Name] = d
		}
		return d
	}

	newPairs := make(map[pair]bool)
	newNames := make(map[string]bool)
	unreported := make(map[pair]bool)
	statless := make(map[string]bool)

	for i, c := range classified {
		rep := &reports[i]

		for _, f := range c.New {
			d, ok := drafts[f.Name]
			if !ok {
				d = &models.ResourceDraft{
					Name:         f.Name,
					Class:        f.Class,
					Galaxy:       snap.Galaxy(),
					Availability: models.NewPlanetSet(),
				}
				drafts[f.Name] = d
			}
			d.Availability.Add(rep.Planet)
			newNames[f.Name] = true
			key := pair{f.Name, rep.Planet}
			if newPairs[key] {
				continue
			}
			newPairs[key] = true
			v.New = append(v.New, &models.Wrapper{Resource: d, Origin: rep, Planet: rep.Planet})
		}

		for _, rec := range c.Statless {
			if statless[rec.Name] {
				continue
			}
			statless[rec.Name] = true
			v.Statless = append(v.Statless, &models.Wrapper{Resource: draftFor(rec), Catalog: rec, Origin: rep})
		}

		for _, rec := range c.Unreported {
			key := pair{rec.Name, rep.Planet}
			if unreported[key] {
				continue
			}
			unreported[key] = true
			d := draftFor(rec)
			d.Availability.Add(rep.Planet)
			v.Unreported = append(v.Unreported, &models.Wrapper{Resource: d, Catalog: rec, Origin: rep, Planet: rep.Planet})
		}
	}

	depleted := make(map[string]bool)
	for i, c := range classified {
		rep := &reports[i]
		for _, rec := range c.Depleted {
			if depleted[rec.Name] {
				continue
			}
			if available[rec.Name] {
				e.log.Debug().Str("resource", rec.Name).Str("report", rep.SourceID).
					Msg("depleted candidate rejected: available in another report")
				continue
			}
			if newNames[rec.Name] {
				continue
			}
			depleted[rec.Name] = true
			v.Depleted = append(v.Depleted, &models.Wrapper{Resource: draftFor(rec), Catalog: rec, Origin: rep})
		}
	}

	models.SortByClassNamePlanet(v.Unreported, e.rank)
	models.SortByClassNamePlanet(v.New, e.rank)
	models.SortByClassName(v.Depleted, e.rank)
	models.SortByClassName(v.Statless, e.rank)

	e.log.Info().
		Int("reports", len(reports)).
		Int("unreported", len(v.Unreported)).
		Int("depleted", len(v.Depleted)).
		Int("new", len(v.New)).
		Int("statless", len(v.Statless)).
		Msg("reports merged")
	return v, nil
}

// WriteResources returns the resources offered for stat augmentation: every
// new resource once, whatever the number of planets it was found at, plus the
// stat-less ones, ordered by (class, name).
func (v *View) WriteResources() []*models.Wrapper {
	seen := make(map[string]bool)
	var out []*models.Wrapper
	for _, w := range v.New {
		if seen[w.Name()] {
			continue
		}
		seen[w.Name()] = true
		out = append(out, w)
	}
	for _, w := range v.Statless {
		if seen[w.Name()] {
			continue
		}
		seen[w.Name()] = true
		out = append(out, w)
	}
	if v.rank != nil {
		models.SortByClassName(out, v.rank)
	}
	return out
}

// Empty reports whether the view holds nothing at all.
func (v *View) Empty() bool {
	return len(v.Unreported)+len(v.Depleted)+len(v.New)+len(v.Statless) == 0
}
