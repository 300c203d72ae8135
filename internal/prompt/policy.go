package prompt

import (
	"context"
	"time"

	"github.com/twistedatrocity/swgaide/internal/models"
	"github.com/twistedatrocity/swgaide/internal/notes"
	"github.com/twistedatrocity/swgaide/internal/submit"
)

// Policy answers every question from fixed settings, for unattended runs.
type Policy struct {
	// AcceptStale proceeds with outdated snapshots and documents.
	AcceptStale bool
	// Line is applied to every malformed line; Edit is treated as Skip.
	Line notes.Action
	// ForceCollisions submits colliding names as new instead of skipping them.
	ForceCollisions bool
	// AutoDelete allows erasing the artifact.
	AutoDelete bool
}

// ResolveLine applies the line policy.
func (p Policy) ResolveLine(ctx context.Context, lerr *notes.LineError) (notes.Decision, error) {
	if p.Line == notes.Edit {
		return notes.Decision{Action: notes.Skip}, nil
	}
	return notes.Decision{Action: p.Line}, nil
}

// ConfirmStale applies AcceptStale.
func (p Policy) ConfirmStale(ctx context.Context, subject string, age time.Duration) (bool, error) {
	return p.AcceptStale, nil
}

// AcknowledgeExisting suppresses the notice for the rest of the batch.
func (p Policy) AcknowledgeExisting(ctx context.Context, w *models.Wrapper, offerSuppress bool) (bool, error) {
	return offerSuppress, nil
}

// ResolveCollision forces or skips per ForceCollisions.
func (p Policy) ResolveCollision(ctx context.Context, c *submit.Collision) (submit.CollisionDecision, error) {
	return submit.CollisionDecision{Force: p.ForceCollisions}, nil
}

// ConfirmAutoDelete applies AutoDelete.
func (p Policy) ConfirmAutoDelete(ctx context.Context, path string) (bool, error) {
	return p.AutoDelete, nil
}
