package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/twistedatrocity/swgaide/internal/controlplane"
	"github.com/twistedatrocity/swgaide/internal/notes"
	"github.com/twistedatrocity/swgaide/internal/prompt"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Work with the notes file",
}

var notesWriteCmd = &cobra.Command{
	Use:   "write",
	Short: "Append resources that need stats without submitting anything",
	RunE:  runNotesWrite,
}

var notesReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Parse the notes file and show what it contains",
	RunE:  runNotesRead,
}

var notesSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit new resources and stats from the notes file",
	RunE:  runNotesSubmit,
}

var notesWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-read the notes file every time it is saved",
	RunE:  runNotesWatch,
}

// watchDebounce collapses the burst of events editors produce on save.
const watchDebounce = 300 * time.Millisecond

func init() {
	notesCmd.AddCommand(notesWriteCmd, notesReadCmd, notesSubmitCmd, notesWatchCmd)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func runNotesWrite(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	character, err := a.character()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	var written int
	err = a.interact(ctx, "notes write", func(ctx context.Context, r prompt.Resolver) error {
		view, err := a.service.Reconcile(ctx, character, r)
		if err != nil {
			return err
		}
		written = len(view.WriteResources())
		return a.service.WriteArtifact(view)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d resources need stats; see %s\n", written, a.artifact.Path())
	return nil
}

func runNotesRead(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	character, err := a.character()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	var res *notes.ReadResult
	err = a.interact(ctx, "notes read", func(ctx context.Context, r prompt.Resolver) error {
		var err error
		res, err = a.service.ReadArtifact(ctx, character, r)
		return err
	})
	if err != nil {
		return err
	}
	printRead(cmd.OutOrStdout(), res)
	return nil
}

func printRead(out io.Writer, res *notes.ReadResult) {
	if res == nil {
		return
	}
	if len(res.Matched) == 0 {
		fmt.Fprintln(out, "No resources found in the notes file")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCLASS\tPLANET\tSTATS")
		for _, wr := range res.Matched {
			stats := "-"
			if wr.Resource.HasStats() {
				stats = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", wr.Name(), wr.Class(), wr.Planet, stats)
		}
		w.Flush()
	}
	for _, lerr := range res.Skipped {
		fmt.Fprintf(out, "skipped %s\n", lerr.Error())
	}
}

func runNotesSubmit(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	character, err := a.character()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	var sum *controlplane.ArtifactSummary
	err = a.interact(ctx, "notes submit", func(ctx context.Context, r prompt.Resolver) error {
		var err error
		sum, err = a.service.SubmitArtifact(ctx, character, r)
		return err
	})
	if errors.Is(err, notes.ErrAborted) {
		fmt.Fprintln(cmd.OutOrStdout(), "Read aborted; nothing was submitted")
		return nil
	}
	if sum != nil {
		out := cmd.OutOrStdout()
		printRead(out, sum.Read)
		printResult(out, "resources", sum.Augmented)
		printResult(out, "collisions", sum.Collisions)
		if sum.Deleted {
			fmt.Fprintf(out, "\n%s erased\n", a.artifact.Path())
		}
	}
	return err
}

func runNotesWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	character, err := a.character()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often save by renaming a temp file, so watch the directory.
	path := a.artifact.Path()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	out := cmd.OutOrStdout()
	resolver := prompt.WithAudit(a.policy(), a.pdr, a.log)
	read := func() {
		res, err := a.service.ReadArtifact(ctx, character, resolver)
		fmt.Fprintf(out, "\n[%s] %s\n", time.Now().Format(time.TimeOnly), filepath.Base(path))
		if err != nil {
			fmt.Fprintf(out, "read failed: %v\n", err)
			return
		}
		printRead(out, res)
	}

	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", path)
	read()

	ticker := time.NewTicker(watchDebounce)
	defer ticker.Stop()
	var pending time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.Now()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.log.Warn().Err(err).Msg("watcher error")
		case now := <-ticker.C:
			if !pending.IsZero() && now.Sub(pending) >= watchDebounce {
				pending = time.Time{}
				read()
			}
		}
	}
}
