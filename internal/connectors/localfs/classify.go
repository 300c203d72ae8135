package localfs

import (
	"github.com/twistedatrocity/swgaide/internal/classes"
	"github.com/twistedatrocity/swgaide/internal/connectors"
	"github.com/twistedatrocity/swgaide/internal/models"
)

// Classify compares one report with a snapshot using the default class tree.
func (r *ReportDir) Classify(report *models.SurveyReport, snap *models.CatalogSnapshot) (*connectors.Classification, error) {
	return Classify(classes.Default(), report, snap), nil
}

// Classify sorts the findings of report into the per-report categories.
//
// A catalog record counts as depleted for the report when it is listed on
// the report's planet, is not yet marked depleted, belongs to a survey
// category the report covers, and the report does not mention it.
func Classify(tree *classes.Tree, report *models.SurveyReport, snap *models.CatalogSnapshot) *connectors.Classification {
	c := &connectors.Classification{}
	seen := make(map[string]bool, len(report.Findings))
	covered := make(map[string]bool)

	for _, f := range report.Findings {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		covered[tree.Category(f.Class)] = true

		rec := snap.Lookup(f.Name)
		if rec == nil {
			c.New = append(c.New, f)
			continue
		}
		c.Available = append(c.Available, rec.Name)
		if !rec.HasStats() {
			c.Statless = append(c.Statless, rec)
		}
		if !rec.AvailableOn(report.Planet) {
			c.Unreported = append(c.Unreported, rec)
		}
	}

	for _, rec := range snap.Records() {
		if rec.Depleted || seen[rec.Name] || !rec.AvailableOn(report.Planet) {
			continue
		}
		if !covered[tree.Category(rec.Class)] {
			continue
		}
		c.Depleted = append(c.Depleted, rec)
	}
	return c
}
