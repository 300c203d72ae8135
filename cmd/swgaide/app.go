package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/twistedatrocity/swgaide/internal/audit"
	"github.com/twistedatrocity/swgaide/internal/auth"
	"github.com/twistedatrocity/swgaide/internal/batch"
	"github.com/twistedatrocity/swgaide/internal/classes"
	"github.com/twistedatrocity/swgaide/internal/config"
	"github.com/twistedatrocity/swgaide/internal/connectors"
	"github.com/twistedatrocity/swgaide/internal/connectors/localfs"
	"github.com/twistedatrocity/swgaide/internal/connectors/remote"
	"github.com/twistedatrocity/swgaide/internal/controlplane"
	"github.com/twistedatrocity/swgaide/internal/logger"
	"github.com/twistedatrocity/swgaide/internal/notes"
	"github.com/twistedatrocity/swgaide/internal/prompt"
	"github.com/twistedatrocity/swgaide/internal/store"
	"github.com/twistedatrocity/swgaide/internal/submit"
	"github.com/twistedatrocity/swgaide/internal/tui"
)

// app holds the components one command works with.
type app struct {
	store    *store.Store
	pdr      *audit.PDRWriter
	artifact *localfs.Artifact
	service  *controlplane.Service
	log      zerolog.Logger
}

func openApp() (*app, error) {
	if cfg.Galaxy == "" {
		return nil, controlplane.ErrNoGalaxy
	}
	mode, err := notes.ParseMode(cfg.Notes.Mode)
	if err != nil {
		return nil, err
	}
	dedup, err := notes.ParseDedupPolicy(cfg.Notes.Dedup)
	if err != nil {
		return nil, err
	}

	s, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	tree := classes.Default()

	var catalog connectors.CatalogClient
	switch cfg.Catalog.Backend {
	case "remote":
		creds, err := auth.NewManager(config.DataDir())
		if err != nil {
			s.Close()
			return nil, err
		}
		token := creds.Token(cfg.Catalog.URL, cfg.Catalog.Token)
		if token == "" {
			log := logger.Get()
			log.Warn().Str("catalog", cfg.Catalog.URL).Msg("no catalog token; run swgaide login")
		}
		catalog = remote.NewClient(cfg.Catalog.URL, token, cfg.Catalog.Timeout)
	default:
		catalog = store.NewCatalog(s, tree)
	}

	artifact, err := openArtifact()
	if err != nil {
		s.Close()
		return nil, err
	}

	log := logger.Get()
	pdr := audit.NewPDRWriter(s)
	svc := controlplane.NewService(controlplane.Deps{
		Source:   localfs.NewReportDir(cfg.ReportsDir, cfg.Galaxy),
		Catalog:  catalog,
		Artifact: artifact,
		Cache:    s,
		Recorder: pdr,
		Tree:     tree,
		Runner:   batch.New(log),
	}, controlplane.Options{
		Galaxy:         cfg.Galaxy,
		SnapshotMaxAge: cfg.Catalog.MaxAge,
		Notes: controlplane.NotesOptions{
			Mode:       mode,
			Dedup:      dedup,
			Blacklist:  cfg.Notes.Blacklist,
			Footer:     cfg.Notes.Footer,
			MaxAge:     cfg.Notes.MaxAge,
			AutoDelete: cfg.Notes.AutoDelete,
		},
		Submit: submit.Options{
			MaxPasses: cfg.Submit.MaxPasses,
			PassDelay: cfg.Submit.PassDelay,
		},
	}, log)

	log.Debug().
		Str("galaxy", cfg.Galaxy).
		Str("catalog", catalog.Name()).
		Str("notes", artifact.Path()).
		Msg("components ready")

	return &app{store: s, pdr: pdr, artifact: artifact, service: svc, log: log}, nil
}

// openArtifact places a relative notes path in the working directory.
func openArtifact() (*localfs.Artifact, error) {
	root := "."
	if filepath.IsAbs(cfg.Notes.Path) {
		root = filepath.Dir(cfg.Notes.Path)
	}
	return localfs.NewArtifact(root, cfg.Notes.Path)
}

func (a *app) Close() error {
	a.service.Runner().Stop()
	return a.store.Close()
}

func (a *app) character() (string, error) {
	if cfg.Character == "" {
		return "", controlplane.ErrNoCharacter
	}
	return cfg.Character, nil
}

// policy answers questions during unattended runs.
func (a *app) policy() prompt.Policy {
	return policyFor(cfg)
}

// policyFor answers every question conservatively unless c opts in.
func policyFor(c config.Config) prompt.Policy {
	return prompt.Policy{
		AcceptStale: c.Catalog.AcceptStale,
		Line:        notes.Skip,
		AutoDelete:  c.Notes.DeleteOnPartial,
	}
}

// interact runs work with a resolver: the TUI when interactive, the policy
// otherwise. Decisions are recorded either way.
func (a *app) interact(ctx context.Context, title string, work func(ctx context.Context, r prompt.Resolver) error) error {
	if !cfg.Interactive {
		return work(ctx, prompt.WithAudit(a.policy(), a.pdr, a.log))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	broker := prompt.NewBroker()
	events := make(chan batch.Event, 1)
	result := make(chan error, 1)
	go func() {
		err := work(ctx, prompt.WithAudit(broker, a.pdr, a.log))
		result <- err
		events <- batch.Event{Step: "done", At: time.Now(), Done: true, Err: err}
		close(events)
	}()

	uiErr := tui.New(title, broker, events).Run(ctx)
	cancel()
	if err := <-result; err != nil {
		return err
	}
	return uiErr
}

// runBatch drives a batch in the background with the TUI following its
// progress, or synchronously when unattended.
func (a *app) runBatch(ctx context.Context, character string) (*controlplane.Summary, error) {
	if !cfg.Interactive {
		return a.service.RunBatch(ctx, character, prompt.WithAudit(a.policy(), a.pdr, a.log))
	}

	broker := prompt.NewBroker()
	var sum *controlplane.Summary
	events, err := a.service.StartBatch(character, prompt.WithAudit(broker, a.pdr, a.log), func(s *controlplane.Summary) {
		sum = s
	})
	if err != nil {
		return nil, err
	}
	ui := tui.New(fmt.Sprintf("batch %s@%s", character, cfg.Galaxy), broker, events)
	uiErr := ui.Run(ctx)
	// Stop cancels a batch the user walked away from and waits for it.
	a.service.Runner().Stop()
	if err := ui.Err(); err != nil {
		return sum, err
	}
	return sum, uiErr
}
