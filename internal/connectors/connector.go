// Package connectors defines the external collaborators of the reconciliation engine.
package connectors

import (
	"context"
	"time"

	"github.com/twistedatrocity/swgaide/internal/models"
)

// Classification is the per-report view of one survey against a catalog snapshot.
type Classification struct {
	// Available lists names found by the report that the catalog knows.
	Available []string
	// Depleted lists catalog records the report's planet should carry but the report lacks.
	Depleted []*models.CatalogRecord
	// New lists findings the catalog does not know.
	New []models.Finding
	// Statless lists found catalog records that have no stats.
	Statless []*models.CatalogRecord
	// Unreported lists found catalog records not yet listed on the report's planet.
	Unreported []*models.CatalogRecord
}

// ReportSource supplies survey reports and classifies them.
type ReportSource interface {
	// Name returns the source identifier.
	Name() string

	// FetchReports returns the surveys captured by character.
	FetchReports(ctx context.Context, character string) ([]models.SurveyReport, error)

	// Classify compares one report with a snapshot.
	Classify(report *models.SurveyReport, snap *models.CatalogSnapshot) (*Classification, error)
}

// CatalogClient talks to the shared resource catalog. Submissions return
// already classified outcomes.
type CatalogClient interface {
	// Name returns the client identifier.
	Name() string

	// FetchSnapshot downloads the galaxy's catalog; its age derives from FetchedAt.
	FetchSnapshot(ctx context.Context, galaxy string) (*models.CatalogSnapshot, error)

	SubmitNew(ctx context.Context, draft *models.ResourceDraft) models.Outcome
	SubmitEdit(ctx context.Context, ref *models.CatalogRecord, draft *models.ResourceDraft) models.Outcome
	SubmitAvailability(ctx context.Context, ref *models.CatalogRecord, planet models.Planet) models.Outcome
	SubmitDepleted(ctx context.Context, ref *models.CatalogRecord, asOf time.Time) models.Outcome
}

// ArtifactStore reads and writes the notes document.
type ArtifactStore interface {
	// Path returns where the artifact lives.
	Path() string

	// Read returns the artifact content; a missing artifact reads as empty.
	Read() ([]byte, error)

	// Append adds data at the end of the artifact, creating it if needed.
	Append(data []byte) error

	// Erase removes the artifact.
	Erase() error
}
