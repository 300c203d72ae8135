package prompt

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/twistedatrocity/swgaide/internal/audit"
	"github.com/twistedatrocity/swgaide/internal/models"
	"github.com/twistedatrocity/swgaide/internal/notes"
	"github.com/twistedatrocity/swgaide/internal/submit"
)

// Audited records every answer of the wrapped resolver.
type Audited struct {
	inner Resolver
	rec   submit.Recorder
	log   zerolog.Logger
}

// WithAudit wraps r so its decisions land in rec.
func WithAudit(r Resolver, rec submit.Recorder, log zerolog.Logger) *Audited {
	return &Audited{inner: r, rec: rec, log: log.With().Str("component", "prompt").Logger()}
}

func (a *Audited) record(action string, inputs interface{}, outcome, resource, details string) {
	if _, err := a.rec.Record(action, inputs, outcome, resource, details); err != nil {
		a.log.Warn().Err(err).Str("action", action).Msg("audit record failed")
	}
}

func lineOutcome(d notes.Decision) string {
	switch d.Action {
	case notes.Edit:
		return "edit"
	case notes.Skip:
		return "skip"
	default:
		return "abort"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (a *Audited) ResolveLine(ctx context.Context, lerr *notes.LineError) (notes.Decision, error) {
	d, err := a.inner.ResolveLine(ctx, lerr)
	if err == nil {
		a.record(audit.ActionLineError, lerr, lineOutcome(d), "", "line "+strconv.Itoa(lerr.Line)+": "+lerr.Msg)
	}
	return d, err
}

func (a *Audited) ConfirmStale(ctx context.Context, subject string, age time.Duration) (bool, error) {
	ok, err := a.inner.ConfirmStale(ctx, subject, age)
	if err == nil {
		action := audit.ActionStaleArtifact
		if strings.Contains(subject, "snapshot") {
			action = audit.ActionStaleSnapshot
		}
		a.record(action, map[string]interface{}{"subject": subject, "age": age.String()}, yesNo(ok), "", subject+" age "+age.Round(time.Second).String())
	}
	return ok, err
}

func (a *Audited) AcknowledgeExisting(ctx context.Context, w *models.Wrapper, offerSuppress bool) (bool, error) {
	return a.inner.AcknowledgeExisting(ctx, w, offerSuppress)
}

func (a *Audited) ResolveCollision(ctx context.Context, c *submit.Collision) (submit.CollisionDecision, error) {
	d, err := a.inner.ResolveCollision(ctx, c)
	if err == nil {
		outcome := "skip"
		switch {
		case d.Use != "":
			outcome = "use:" + d.Use
		case d.Force:
			outcome = "force"
		}
		a.record(audit.ActionCollision, c.Candidates, outcome, c.Wrapper.Name(), "candidates: "+strings.Join(c.Candidates, ", "))
	}
	return d, err
}

func (a *Audited) ConfirmAutoDelete(ctx context.Context, path string) (bool, error) {
	ok, err := a.inner.ConfirmAutoDelete(ctx, path)
	if err == nil {
		a.record(audit.ActionAutoDelete, path, yesNo(ok), "", path)
	}
	return ok, err
}
