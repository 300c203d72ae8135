package submit

import (
	"context"

	"github.com/twistedatrocity/swgaide/internal/models"
)

// SubmitAvailability reports unreported planets and then depleted resources.
// Each list runs its own bounded retry loop; an abort in the first list
// skips the second. Prior successes are kept whatever happens later.
func (p *Pipeline) SubmitAvailability(ctx context.Context, unreported, depleted []*models.Wrapper) (*Result, error) {
	res := &Result{State: Running}

	first, err := p.run(ctx, unreported, p.attemptAvailability, p.handleAvailability)
	res.absorb(first)
	if err != nil || first.State.Aborted() {
		return res, err
	}

	second, err := p.run(ctx, depleted, p.attemptDepleted, p.handleAvailability)
	res.absorb(second)
	if res.PartialFailure() {
		p.log.Warn().Int("unresolved", len(res.Unresolved)).Msg("availability batch finished with unresolved records")
	}
	return res, err
}

func (p *Pipeline) attemptAvailability(ctx context.Context, w *models.Wrapper) (string, models.Outcome) {
	return "submit.availability", p.client.SubmitAvailability(ctx, w.Catalog, w.Planet)
}

func (p *Pipeline) attemptDepleted(ctx context.Context, w *models.Wrapper) (string, models.Outcome) {
	asOf := p.now()
	if w.Origin != nil && !w.Origin.CapturedAt.IsZero() {
		asOf = w.Origin.CapturedAt
	}
	return "submit.depleted", p.client.SubmitDepleted(ctx, w.Catalog, asOf)
}

func (p *Pipeline) handleAvailability(ctx context.Context, w *models.Wrapper, o models.Outcome, res *Result) (bool, error) {
	switch o.Kind {
	case models.OutcomeSuccess:
		w.Submitted = true
	case models.OutcomeAlreadyExists:
		p.log.Debug().Str("resource", w.Name()).Msg("already reported")
		w.Submitted = true
	default:
		p.warn(w, o, res)
	}
	return true, nil
}
