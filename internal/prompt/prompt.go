// Package prompt suspends engine work on a user decision and resumes it with
// the answer. A Broker hands each Request to whatever front end drains
// Requests(); Policy answers without asking.
package prompt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/twistedatrocity/swgaide/internal/models"
	"github.com/twistedatrocity/swgaide/internal/notes"
	"github.com/twistedatrocity/swgaide/internal/submit"
)

// Resolver answers every decision the engine can ask for.
type Resolver interface {
	notes.Resolver
	submit.Resolver
	// ConfirmAutoDelete asks whether the artifact at path may be erased.
	ConfirmAutoDelete(ctx context.Context, path string) (bool, error)
}

// Kind identifies the question of a Request.
type Kind int

const (
	KindLineError Kind = iota
	KindStale
	KindExisting
	KindCollision
	KindAutoDelete
)

func (k Kind) String() string {
	switch k {
	case KindLineError:
		return "line_error"
	case KindStale:
		return "stale"
	case KindExisting:
		return "already_exists"
	case KindCollision:
		return "collision"
	default:
		return "auto_delete"
	}
}

// Request is one pending question. Exactly one of the payload fields
// matching Kind is set.
type Request struct {
	ID   string
	Kind Kind

	LineError     *notes.LineError
	Subject       string
	Age           time.Duration
	Wrapper       *models.Wrapper
	OfferSuppress bool
	Collision     *submit.Collision
	Path          string

	reply chan Answer
	once  sync.Once
}

// Answer is the user's reply. Only the fields relevant to the Request's
// Kind are read.
type Answer struct {
	// Confirm answers yes/no questions.
	Confirm bool
	// Line answers a line error.
	Line notes.Decision
	// Suppress silences later already-exists notices.
	Suppress bool
	// Collision settles a name collision.
	Collision submit.CollisionDecision
}

// Reply delivers the answer; later calls are ignored.
func (r *Request) Reply(a Answer) {
	r.once.Do(func() {
		r.reply <- a
	})
}

// Title is a one-line summary of the question.
func (r *Request) Title() string {
	switch r.Kind {
	case KindLineError:
		return fmt.Sprintf("Line %d cannot be read", r.LineError.Line)
	case KindStale:
		return fmt.Sprintf("The %s is %s old", r.Subject, r.Age.Round(time.Minute))
	case KindExisting:
		return fmt.Sprintf("%s already exists in the catalog", r.Wrapper.Name())
	case KindCollision:
		return fmt.Sprintf("%s resembles existing resources", r.Collision.Wrapper.Name())
	default:
		return fmt.Sprintf("Delete %s?", r.Path)
	}
}

// Broker routes requests to a front end. All methods are safe for
// concurrent use; each blocks until answered or ctx ends.
type Broker struct {
	requests chan *Request
}

// NewBroker creates a broker.
func NewBroker() *Broker {
	return &Broker{requests: make(chan *Request)}
}

// Requests delivers pending questions.
func (b *Broker) Requests() <-chan *Request {
	return b.requests
}

func (b *Broker) ask(ctx context.Context, req *Request) (Answer, error) {
	req.ID = uuid.New().String()
	req.reply = make(chan Answer, 1)
	select {
	case b.requests <- req:
	case <-ctx.Done():
		return Answer{}, ctx.Err()
	}
	select {
	case a := <-req.reply:
		return a, nil
	case <-ctx.Done():
		return Answer{}, ctx.Err()
	}
}

// ResolveLine asks how to handle a malformed line.
func (b *Broker) ResolveLine(ctx context.Context, lerr *notes.LineError) (notes.Decision, error) {
	a, err := b.ask(ctx, &Request{Kind: KindLineError, LineError: lerr})
	return a.Line, err
}

// ConfirmStale asks whether to proceed with outdated data.
func (b *Broker) ConfirmStale(ctx context.Context, subject string, age time.Duration) (bool, error) {
	a, err := b.ask(ctx, &Request{Kind: KindStale, Subject: subject, Age: age})
	return a.Confirm, err
}

// AcknowledgeExisting shows the already-exists notice.
func (b *Broker) AcknowledgeExisting(ctx context.Context, w *models.Wrapper, offerSuppress bool) (bool, error) {
	a, err := b.ask(ctx, &Request{Kind: KindExisting, Wrapper: w, OfferSuppress: offerSuppress})
	return offerSuppress && a.Suppress, err
}

// ResolveCollision asks how to settle a name collision.
func (b *Broker) ResolveCollision(ctx context.Context, c *submit.Collision) (submit.CollisionDecision, error) {
	a, err := b.ask(ctx, &Request{Kind: KindCollision, Collision: c})
	return a.Collision, err
}

// ConfirmAutoDelete asks whether the artifact may be erased.
func (b *Broker) ConfirmAutoDelete(ctx context.Context, path string) (bool, error) {
	a, err := b.ask(ctx, &Request{Kind: KindAutoDelete, Path: path})
	return a.Confirm, err
}
