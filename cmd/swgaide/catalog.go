package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/twistedatrocity/swgaide/internal/connectors/localfs"
	"github.com/twistedatrocity/swgaide/internal/models"
	"github.com/twistedatrocity/swgaide/internal/prompt"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and seed the resource catalog",
}

var catalogFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the galaxy's catalog snapshot and cache it",
	RunE:  runCatalogFetch,
}

var catalogImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a catalog export (YAML or JSON) into the local catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogImport,
}

var catalogList bool

func init() {
	catalogCmd.AddCommand(catalogFetchCmd, catalogImportCmd)
	catalogFetchCmd.Flags().BoolVar(&catalogList, "list", false, "List every record")
}

func runCatalogFetch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	ctx, stop := signalContext(cmd)
	defer stop()

	var snap *models.CatalogSnapshot
	err = a.interact(ctx, "catalog fetch", func(ctx context.Context, r prompt.Resolver) error {
		var err error
		snap, err = a.service.Snapshot(ctx, r)
		return err
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d records, fetched %s ago\n",
		snap.Galaxy(), snap.Len(), snap.Age(time.Now()).Round(time.Second))
	if !catalogList {
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCLASS\tPLANETS\tSTATS\tDEPLETED")
	for _, rec := range snap.Records() {
		stats := "-"
		if rec.HasStats() {
			stats = "yes"
		}
		depleted := ""
		if rec.Depleted {
			depleted = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", rec.Name, rec.Class, len(rec.Availability), stats, depleted)
	}
	w.Flush()
	return nil
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := localfs.ReadCatalogFile(args[0])
	if err != nil {
		return err
	}
	n, err := a.store.Import(cfg.Galaxy, records)
	if err != nil {
		return err
	}
	a.log.Info().Str("file", args[0]).Int("inserted", n).Msg("catalog imported")
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d records into %s\n", n, len(records), cfg.Galaxy)
	return nil
}
