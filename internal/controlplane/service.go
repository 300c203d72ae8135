// Package controlplane provides the service layer the application drives:
// batches, the notes artifact and submission of what the user augmented.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/twistedatrocity/swgaide/internal/batch"
	"github.com/twistedatrocity/swgaide/internal/classes"
	"github.com/twistedatrocity/swgaide/internal/connectors"
	"github.com/twistedatrocity/swgaide/internal/merge"
	"github.com/twistedatrocity/swgaide/internal/models"
	"github.com/twistedatrocity/swgaide/internal/notes"
	"github.com/twistedatrocity/swgaide/internal/prompt"
	"github.com/twistedatrocity/swgaide/internal/submit"
)

// SnapshotCache persists fetched snapshots.
type SnapshotCache interface {
	SaveSnapshot(snap *models.CatalogSnapshot) error
	LoadSnapshot(galaxy string) (*models.CatalogSnapshot, error)
}

// Options configures the service.
type Options struct {
	Galaxy         string
	SnapshotMaxAge time.Duration
	Notes          NotesOptions
	Submit         submit.Options
}

// NotesOptions configures the notes artifact.
type NotesOptions struct {
	Mode       notes.Mode
	Dedup      notes.DedupPolicy
	Blacklist  []string
	Footer     bool
	MaxAge     time.Duration
	AutoDelete bool
}

// Deps are the collaborators of the service. Cache and Recorder may be nil.
type Deps struct {
	Source   connectors.ReportSource
	Catalog  connectors.CatalogClient
	Artifact connectors.ArtifactStore
	Cache    SnapshotCache
	Recorder submit.Recorder
	Tree     *classes.Tree
	Runner   *batch.Runner
}

// Service provides the control plane business logic.
type Service struct {
	deps     Deps
	opts     Options
	log      zerolog.Logger
	merger   *merge.Engine
	codec    *notes.Codec
	pipeline *submit.Pipeline
	now      func() time.Time

	mu   sync.Mutex
	view *merge.View
	snap *models.CatalogSnapshot
}

// NewService creates a new control plane service.
func NewService(deps Deps, opts Options, log zerolog.Logger) *Service {
	if deps.Tree == nil {
		deps.Tree = classes.Default()
	}
	if deps.Runner == nil {
		deps.Runner = batch.New(log)
	}
	if opts.SnapshotMaxAge <= 0 {
		opts.SnapshotMaxAge = 45 * time.Minute
	}
	return &Service{
		deps:     deps,
		opts:     opts,
		log:      log.With().Str("component", "controlplane").Logger(),
		merger:   merge.New(deps.Source, deps.Tree.Rank, log),
		codec:    notes.New(deps.Tree, log),
		pipeline: submit.New(deps.Catalog, deps.Recorder, opts.Submit, log),
		now:      time.Now,
	}
}

// Runner returns the batch runner guarding the service.
func (s *Service) Runner() *batch.Runner { return s.deps.Runner }

// View returns the reconciled view of the last batch, or nil.
func (s *Service) View() *merge.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Snapshot fetches the galaxy's catalog and caches it. When the catalog is
// unreachable the cached copy is used. A snapshot older than the freshness
// threshold needs the user's confirmation.
func (s *Service) Snapshot(ctx context.Context, r notes.Resolver) (*models.CatalogSnapshot, error) {
	if s.opts.Galaxy == "" {
		return nil, ErrNoGalaxy
	}
	snap, err := s.deps.Catalog.FetchSnapshot(ctx, s.opts.Galaxy)
	if err != nil {
		if s.deps.Cache == nil {
			return nil, fmt.Errorf("fetch snapshot: %w", err)
		}
		cached, cerr := s.deps.Cache.LoadSnapshot(s.opts.Galaxy)
		if cerr != nil || cached == nil {
			return nil, fmt.Errorf("fetch snapshot: %w", err)
		}
		s.log.Warn().Err(err).Msg("catalog unreachable, using cached snapshot")
		snap = cached
	} else if s.deps.Cache != nil {
		if err := s.deps.Cache.SaveSnapshot(snap); err != nil {
			s.log.Warn().Err(err).Msg("failed to cache snapshot")
		}
	}

	now := s.now()
	if snap.IsStale(now, s.opts.SnapshotMaxAge) {
		ok, err := r.ConfirmStale(ctx, "catalog snapshot", snap.Age(now))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrStaleSnapshot
		}
		s.log.Warn().Dur("age", snap.Age(now)).Msg("proceeding with stale snapshot")
	}
	return snap, nil
}

// Reconcile merges the character's reports with a fresh snapshot without
// submitting anything. The view becomes the service's current view.
func (s *Service) Reconcile(ctx context.Context, character string, r notes.Resolver) (*merge.View, error) {
	var view *merge.View
	err := s.deps.Runner.Run(ctx, func(ctx context.Context, emit func(string, string)) error {
		var err error
		view, err = s.reconcile(ctx, character, r, emit)
		return err
	})
	return view, err
}

// reconcile fetches reports and the snapshot and merges them.
func (s *Service) reconcile(ctx context.Context, character string, r notes.Resolver, emit func(string, string)) (*merge.View, error) {
	if character == "" {
		return nil, ErrNoCharacter
	}
	reports, err := s.deps.Source.FetchReports(ctx, character)
	if err != nil {
		return nil, fmt.Errorf("fetch reports: %w", err)
	}
	emit("reports", fmt.Sprintf("%d reports from %s", len(reports), s.deps.Source.Name()))

	snap, err := s.Snapshot(ctx, r)
	if err != nil {
		return nil, err
	}
	emit("snapshot", fmt.Sprintf("%d catalog records", snap.Len()))

	view, err := s.merger.Merge(reports, snap)
	if err != nil {
		return nil, err
	}
	view.Galaxy = s.opts.Galaxy
	emit("merge", fmt.Sprintf("%d unreported, %d depleted, %d new, %d without stats",
		len(view.Unreported), len(view.Depleted), len(view.New), len(view.Statless)))

	s.mu.Lock()
	s.view = view
	s.snap = snap
	s.mu.Unlock()
	return view, nil
}

// Summary reports one batch.
type Summary struct {
	Character  string
	Galaxy     string
	Reports    int
	Unreported int
	Depleted   int
	New        int
	Statless   int
	// Availability is the result of submitting unreported and depleted records.
	Availability *submit.Result
	// ArtifactWritten is set when resources were appended to the notes artifact.
	ArtifactWritten bool
}

// RunBatch reconciles the character's reports, submits unreported and
// depleted records, and appends resources that need stats to the artifact.
func (s *Service) RunBatch(ctx context.Context, character string, r prompt.Resolver) (*Summary, error) {
	var sum *Summary
	err := s.deps.Runner.Run(ctx, func(ctx context.Context, emit func(string, string)) error {
		var err error
		sum, err = s.runBatch(ctx, character, r, emit)
		return err
	})
	return sum, err
}

// StartBatch runs RunBatch in the background. Progress and the final result
// arrive on the returned channel; the summary is available from the
// callback once the batch is done.
func (s *Service) StartBatch(character string, r prompt.Resolver, done func(*Summary)) (<-chan batch.Event, error) {
	_, events, err := s.deps.Runner.Go(func(ctx context.Context, emit func(string, string)) error {
		sum, err := s.runBatch(ctx, character, r, emit)
		if done != nil {
			done(sum)
		}
		return err
	})
	return events, err
}

func (s *Service) runBatch(ctx context.Context, character string, r prompt.Resolver, emit func(string, string)) (*Summary, error) {
	view, err := s.reconcile(ctx, character, r, emit)
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		Character:  character,
		Galaxy:     s.opts.Galaxy,
		Reports:    view.Reports,
		Unreported: len(view.Unreported),
		Depleted:   len(view.Depleted),
		New:        len(view.New),
		Statless:   len(view.Statless),
	}

	submit.ResetSubmitted(view.Unreported, view.Depleted)
	res, err := s.pipeline.SubmitAvailability(ctx, view.Unreported, view.Depleted)
	sum.Availability = res
	if err != nil {
		return sum, err
	}
	emit("submit", fmt.Sprintf("%s: %d submitted in %d passes", res.State, res.Submitted, res.Passes))
	s.record("batch.availability", res, character)
	if res.State.Aborted() {
		return sum, nil
	}

	if len(view.WriteResources()) > 0 {
		if err := s.writeArtifact(view); err != nil {
			return sum, err
		}
		sum.ArtifactWritten = true
		emit("notes", "resources appended to "+s.deps.Artifact.Path())
	}
	return sum, nil
}

func (s *Service) record(action string, res *submit.Result, resource string) {
	if s.deps.Recorder == nil || res == nil {
		return
	}
	inputs := map[string]interface{}{"passes": res.Passes, "attempts": res.Attempts, "submitted": res.Submitted}
	details := fmt.Sprintf("%d submitted, %d unresolved, %d warnings", res.Submitted, len(res.Unresolved), len(res.Warnings))
	if res.Detail != "" {
		details += ": " + res.Detail
	}
	if _, err := s.deps.Recorder.Record(action, inputs, res.State.String(), resource, details); err != nil {
		s.log.Warn().Err(err).Msg("audit record failed")
	}
}

// WriteArtifact appends the resources of view that need stats to the artifact.
func (s *Service) WriteArtifact(view *merge.View) error {
	if view == nil {
		return ErrNoWrappers
	}
	return s.writeArtifact(view)
}

func (s *Service) writeArtifact(view *merge.View) error {
	text := s.codec.Write(view.WriteResources(), notes.WriteOptions{
		Mode:      s.opts.Notes.Mode,
		Galaxy:    s.opts.Galaxy,
		Blacklist: s.opts.Notes.Blacklist,
		Dedup:     s.opts.Notes.Dedup,
		Footer:    s.opts.Notes.Footer,
		Now:       s.now(),
	})
	if text == "" {
		return nil
	}
	if err := s.deps.Artifact.Append([]byte(text)); err != nil {
		return fmt.Errorf("append artifact: %w", err)
	}
	return nil
}

// ensureView returns the last view, rebuilding it for character when the
// service has none.
func (s *Service) ensureView(ctx context.Context, character string, r prompt.Resolver) (*merge.View, error) {
	if v := s.View(); v != nil {
		return v, nil
	}
	return s.reconcile(ctx, character, r, func(step, msg string) {
		s.log.Debug().Str("step", step).Msg(msg)
	})
}

// ReadArtifact parses the artifact into the resources of the last batch,
// rebuilding them for character if needed.
func (s *Service) ReadArtifact(ctx context.Context, character string, r prompt.Resolver) (*notes.ReadResult, error) {
	view, err := s.ensureView(ctx, character, r)
	if err != nil {
		return nil, err
	}
	return s.readArtifact(ctx, view, r)
}

func (s *Service) readArtifact(ctx context.Context, view *merge.View, r prompt.Resolver) (*notes.ReadResult, error) {
	wrappers := view.WriteResources()
	if len(wrappers) == 0 {
		return nil, ErrNoWrappers
	}
	data, err := s.deps.Artifact.Read()
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return s.codec.ReadInteractive(ctx, string(data), wrappers, notes.ReadOptions{
		Mode:   s.opts.Notes.Mode,
		Galaxy: s.opts.Galaxy,
		MaxAge: s.opts.Notes.MaxAge,
		Now:    s.now(),
	}, r)
}

// ArtifactSummary reports the submission of an edited artifact.
type ArtifactSummary struct {
	Read *notes.ReadResult
	// Augmented is the result of submitting new and edited resources.
	Augmented *submit.Result
	// Collisions is the result of resubmitting resolved name collisions.
	Collisions *submit.Result
	Deleted    bool
}

// SubmitArtifact reads the artifact and submits what it names: unknown
// resources as new, known ones that gained stats as edits. Name collisions
// are then resolved with the user. The artifact is erased afterwards when
// auto-delete is on; a read with skipped lines asks first.
func (s *Service) SubmitArtifact(ctx context.Context, character string, r prompt.Resolver) (*ArtifactSummary, error) {
	var sum *ArtifactSummary
	err := s.deps.Runner.Run(ctx, func(ctx context.Context, emit func(string, string)) error {
		var err error
		sum, err = s.submitArtifact(ctx, character, r, emit)
		return err
	})
	return sum, err
}

func (s *Service) submitArtifact(ctx context.Context, character string, r prompt.Resolver, emit func(string, string)) (*ArtifactSummary, error) {
	view, err := s.ensureView(ctx, character, r)
	if err != nil {
		return nil, err
	}
	read, err := s.readArtifact(ctx, view, r)
	sum := &ArtifactSummary{Read: read}
	if err != nil {
		if errors.Is(err, notes.ErrAborted) {
			emit("notes", "read aborted, nothing submitted")
		}
		return sum, err
	}
	emit("notes", fmt.Sprintf("%d lines matched, %d with stats, %d skipped", len(read.Matched), read.Augmented, read.Unrecovered()))

	wrappers := unique(read.Matched)
	submit.ResetSubmitted(wrappers)
	sess := &submit.Session{}
	res, err := s.pipeline.SubmitAugmented(ctx, wrappers, sess, r)
	sum.Augmented = res
	s.record("batch.augmented", res, character)
	if err != nil {
		return sum, err
	}
	emit("submit", fmt.Sprintf("%s: %d submitted, %d collisions", res.State, res.Submitted, len(res.Collisions)))
	if res.State.Aborted() {
		return sum, nil
	}

	if len(res.Collisions) > 0 {
		s.mu.Lock()
		snap := s.snap
		s.mu.Unlock()
		lookup := func(name string) *models.CatalogRecord {
			if snap == nil {
				return nil
			}
			return snap.Lookup(name)
		}
		cres, err := s.pipeline.ResolveCollisions(ctx, res.Collisions, lookup, sess, r)
		sum.Collisions = cres
		s.record("batch.collisions", cres, character)
		if err != nil {
			return sum, err
		}
		if cres.State.Aborted() {
			return sum, nil
		}
	}

	if s.opts.Notes.AutoDelete {
		erase := true
		if read.Unrecovered() > 0 {
			erase, err = r.ConfirmAutoDelete(ctx, s.deps.Artifact.Path())
			if err != nil {
				return sum, err
			}
			if !erase {
				s.log.Info().Msg("auto-delete declined for this run")
			}
		}
		if erase {
			if err := s.deps.Artifact.Erase(); err != nil {
				return sum, fmt.Errorf("erase artifact: %w", err)
			}
			sum.Deleted = true
			emit("notes", "artifact erased")
		}
	}
	return sum, nil
}

func unique(ws []*models.Wrapper) []*models.Wrapper {
	seen := make(map[*models.Wrapper]bool, len(ws))
	out := make([]*models.Wrapper, 0, len(ws))
	for _, w := range ws {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// Describe renders a short human summary of a batch.
func (sum *Summary) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%s: %d reports, %d unreported, %d depleted, %d new, %d without stats",
		sum.Character, sum.Galaxy, sum.Reports, sum.Unreported, sum.Depleted, sum.New, sum.Statless)
	if sum.Availability != nil {
		fmt.Fprintf(&b, "; %s", sum.Availability.State)
	}
	return b.String()
}
