// Package submit pushes reconciled records to the resource catalog with
// bounded retries, per-record idempotency and conflict escalation.
package submit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/twistedatrocity/swgaide/internal/connectors"
	"github.com/twistedatrocity/swgaide/internal/models"
)

// DefaultMaxPasses bounds the retry loop of one list.
const DefaultMaxPasses = 10

// ProtocolErrorSignature marks a transient failure whose diagnostic shows the
// endpoint answered with non-protocol content, such as an HTML error page.
// The match is a plain case-insensitive substring check and is kept that narrow.
const ProtocolErrorSignature = "unsupported content-type"

// State is the lifecycle of one batch.
type State int

const (
	Idle State = iota
	Running
	Completed
	AbortedAuth
	AbortedProtocolError
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case AbortedAuth:
		return "aborted_auth"
	case AbortedProtocolError:
		return "aborted_protocol_error"
	default:
		return "idle"
	}
}

// Aborted reports whether the batch ended on a hard abort.
func (s State) Aborted() bool {
	return s == AbortedAuth || s == AbortedProtocolError
}

// Recorder keeps an audit trail of submission outcomes.
type Recorder interface {
	Record(action string, inputs interface{}, outcome, resource, details string) (*models.PDREntry, error)
}

// Options tunes the retry loop.
type Options struct {
	MaxPasses int
	// PassDelay is the pause between two passes.
	PassDelay time.Duration
}

// Result summarizes one batch.
type Result struct {
	State     State
	Passes    int
	Attempts  int
	Submitted int
	// Unresolved lists records still pending when the pass budget ran out or the batch aborted.
	Unresolved []*models.Wrapper
	// Warnings lists domain conflicts that were reported and not retried.
	Warnings []string
	// Collisions lists name collisions deferred to manual resolution.
	Collisions []*Collision
	// Detail carries the abort diagnostic.
	Detail string
}

// PartialFailure reports whether the batch completed with records left over.
func (r *Result) PartialFailure() bool {
	return r.State == Completed && len(r.Unresolved) > 0
}

func (r *Result) absorb(o *Result) {
	r.State = o.State
	r.Passes += o.Passes
	r.Attempts += o.Attempts
	r.Submitted += o.Submitted
	r.Unresolved = append(r.Unresolved, o.Unresolved...)
	r.Warnings = append(r.Warnings, o.Warnings...)
	r.Collisions = append(r.Collisions, o.Collisions...)
	r.Detail = o.Detail
}

// Pipeline submits wrappers through a catalog client.
type Pipeline struct {
	client connectors.CatalogClient
	rec    Recorder
	opts   Options
	log    zerolog.Logger
	now    func() time.Time
}

// New creates a pipeline. rec may be nil.
func New(client connectors.CatalogClient, rec Recorder, opts Options, log zerolog.Logger) *Pipeline {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = DefaultMaxPasses
	}
	return &Pipeline{
		client: client,
		rec:    rec,
		opts:   opts,
		log:    log.With().Str("component", "submit").Logger(),
		now:    time.Now,
	}
}

// ResetSubmitted clears the submission flag at the start of a pipeline run.
func ResetSubmitted(lists ...[]*models.Wrapper) {
	for _, ws := range lists {
		for _, w := range ws {
			w.Submitted = false
		}
	}
}

// attemptFunc submits one wrapper.
type attemptFunc func(ctx context.Context, w *models.Wrapper) (action string, o models.Outcome)

// outcomeFunc reacts to a non-fatal outcome; it returns true when the
// wrapper needs no further pass.
type outcomeFunc func(ctx context.Context, w *models.Wrapper, o models.Outcome, res *Result) (bool, error)

// run is the bounded pass loop shared by every flow. Each pass attempts all
// pending wrappers in order; authentication failures and protocol errors end
// the batch at once.
func (p *Pipeline) run(ctx context.Context, items []*models.Wrapper, attempt attemptFunc, handle outcomeFunc) (*Result, error) {
	res := &Result{State: Running}
	settled := make(map[*models.Wrapper]bool, len(items))

	pending := func() []*models.Wrapper {
		var out []*models.Wrapper
		for _, w := range items {
			if !w.Submitted && !settled[w] {
				out = append(out, w)
			}
		}
		return out
	}

	for pass := 1; pass <= p.opts.MaxPasses; pass++ {
		todo := pending()
		if len(todo) == 0 {
			break
		}
		if pass > 1 && p.opts.PassDelay > 0 {
			select {
			case <-ctx.Done():
				res.State = Completed
				res.Unresolved = todo
				return res, ctx.Err()
			case <-time.After(p.opts.PassDelay):
			}
		}
		res.Passes = pass
		p.log.Debug().Int("pass", pass).Int("pending", len(todo)).Msg("submission pass")

		for _, w := range todo {
			action, o := attempt(ctx, w)
			res.Attempts++
			p.record(action, w, o)

			switch {
			case o.Kind == models.OutcomeAuthenticationFailure:
				res.State = AbortedAuth
				res.Detail = o.Detail
				res.Unresolved = pending()
				p.log.Error().Str("resource", w.Name()).Str("detail", o.Detail).Msg("authentication failed, batch aborted")
				return res, nil
			case isProtocolError(o):
				res.State = AbortedProtocolError
				res.Detail = o.Detail
				res.Unresolved = pending()
				p.log.Error().Str("resource", w.Name()).Str("detail", o.Detail).Msg("catalog answered with non-protocol content, batch aborted")
				return res, nil
			case o.Kind == models.OutcomeTransientFailure || o.Kind == models.OutcomeUnknownFailure:
				p.log.Warn().Str("resource", w.Name()).Str("outcome", o.String()).Int("pass", pass).Msg("submission failed, will retry")
				continue
			}

			done, err := handle(ctx, w, o, res)
			if w.Submitted {
				res.Submitted++
			} else if done {
				settled[w] = true
			}
			if err != nil {
				res.State = Completed
				res.Unresolved = pending()
				return res, err
			}
		}
	}

	res.State = Completed
	res.Unresolved = pending()
	if len(res.Unresolved) > 0 {
		p.log.Warn().Int("unresolved", len(res.Unresolved)).Int("passes", res.Passes).Msg("pass budget exhausted")
	}
	return res, nil
}

func isProtocolError(o models.Outcome) bool {
	return o.Kind == models.OutcomeTransientFailure &&
		strings.Contains(strings.ToLower(o.Detail), ProtocolErrorSignature)
}

func (p *Pipeline) record(action string, w *models.Wrapper, o models.Outcome) {
	if p.rec == nil {
		return
	}
	inputs := map[string]interface{}{
		"name":   w.Name(),
		"class":  w.Class(),
		"galaxy": w.Resource.Galaxy,
		"planet": w.Planet,
	}
	if _, err := p.rec.Record(action, inputs, o.Kind.String(), w.Name(), o.Detail); err != nil {
		p.log.Warn().Err(err).Msg("audit record failed")
	}
}

// warn settles a domain conflict that is reported and not retried.
func (p *Pipeline) warn(w *models.Wrapper, o models.Outcome, res *Result) {
	msg := fmt.Sprintf("%s: %s", w.Name(), o)
	if w.Planet != "" {
		msg = fmt.Sprintf("%s (%s): %s", w.Name(), w.Planet, o)
	}
	res.Warnings = append(res.Warnings, msg)
	p.log.Warn().Str("resource", w.Name()).Str("outcome", o.String()).Msg("submission conflict")
}
