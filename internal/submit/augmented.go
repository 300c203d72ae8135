package submit

import (
	"context"
	"strings"

	"github.com/twistedatrocity/swgaide/internal/models"
)

// Resolver answers the questions the augmented flow raises. Calls block
// until the user has answered.
type Resolver interface {
	// AcknowledgeExisting reports that a new resource already existed. When
	// offerSuppress is set the user may silence the notice for the rest of the batch.
	AcknowledgeExisting(ctx context.Context, w *models.Wrapper, offerSuppress bool) (suppress bool, err error)

	// ResolveCollision asks how to settle a name collision.
	ResolveCollision(ctx context.Context, c *Collision) (CollisionDecision, error)
}

// Session is batch-scoped state threaded through the augmented flow.
type Session struct {
	// SuppressExisting silences already-exists notices for the rest of the batch.
	SuppressExisting bool
	asked            bool
}

// Collision is a new resource whose name resembles existing ones.
type Collision struct {
	Wrapper    *models.Wrapper
	Candidates []string
}

// CollisionDecision settles a collision. With neither field set the
// resource is left unresolved.
type CollisionDecision struct {
	// Use names the existing resource the user meant.
	Use string
	// Force submits the name as new despite the resemblance.
	Force bool
}

// SubmitAugmented submits resources the user augmented: unknown resources as
// new, known ones that gained stats as edits; anything else needs no action.
// Name collisions are deferred to Result.Collisions.
func (p *Pipeline) SubmitAugmented(ctx context.Context, wrappers []*models.Wrapper, sess *Session, r Resolver) (*Result, error) {
	if sess == nil {
		sess = &Session{}
	}
	handle := func(ctx context.Context, w *models.Wrapper, o models.Outcome, res *Result) (bool, error) {
		switch o.Kind {
		case models.OutcomeSuccess:
			w.Submitted = true
		case models.OutcomeAlreadyExists:
			w.Submitted = true
			if !w.IsNew() {
				return true, nil
			}
			if sess.SuppressExisting {
				p.log.Debug().Str("resource", w.Name()).Msg("already existed, notice suppressed")
				return true, nil
			}
			offer := !sess.asked
			sess.asked = true
			suppress, err := r.AcknowledgeExisting(ctx, w, offer)
			if err != nil {
				return true, err
			}
			if offer && suppress {
				sess.SuppressExisting = true
			}
		case models.OutcomeNameCollision:
			res.Collisions = append(res.Collisions, &Collision{Wrapper: w, Candidates: o.Candidates})
			p.log.Info().Str("resource", w.Name()).Strs("candidates", o.Candidates).Msg("name collision deferred")
		default:
			p.warn(w, o, res)
		}
		return true, nil
	}
	return p.run(ctx, wrappers, p.attemptAugmented, handle)
}

func (p *Pipeline) attemptAugmented(ctx context.Context, w *models.Wrapper) (string, models.Outcome) {
	switch {
	case w.IsNew():
		return "submit.new", p.client.SubmitNew(ctx, w.Resource)
	case w.AddsStats():
		return "submit.edit", p.client.SubmitEdit(ctx, w.Catalog, w.Resource)
	default:
		return "submit.noop", models.Success()
	}
}

// ResolveCollisions walks deferred collisions through r and resubmits the
// ones the user settled. lookup finds existing catalog records by name.
func (p *Pipeline) ResolveCollisions(ctx context.Context, collisions []*Collision, lookup func(name string) *models.CatalogRecord, sess *Session, r Resolver) (*Result, error) {
	var retry []*models.Wrapper
	var warnings []string
	for _, c := range collisions {
		d, err := r.ResolveCollision(ctx, c)
		if err != nil {
			return &Result{State: Completed}, err
		}
		w := c.Wrapper
		switch {
		case d.Use != "":
			rec := lookup(d.Use)
			if rec == nil {
				warnings = append(warnings, w.Name()+": chosen resource "+d.Use+" is not in the catalog")
				continue
			}
			p.log.Info().Str("resource", w.Name()).Str("existing", rec.Name).Msg("collision resolved to existing resource")
			w.Catalog = rec
			w.Resource.Name = rec.Name
			w.Resource.Class = rec.Class
			retry = append(retry, w)
		case d.Force:
			w.Resource.ForceNew = true
			retry = append(retry, w)
		default:
			warnings = append(warnings, w.Name()+": name collision left unresolved")
		}
	}

	res, err := p.SubmitAugmented(ctx, retry, sess, r)
	res.Warnings = append(warnings, res.Warnings...)
	for _, c := range res.Collisions {
		res.Warnings = append(res.Warnings, c.Wrapper.Name()+": still collides with "+strings.Join(c.Candidates, ", "))
	}
	res.Collisions = nil
	return res, err
}
