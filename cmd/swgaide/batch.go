package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/twistedatrocity/swgaide/internal/controlplane"
	"github.com/twistedatrocity/swgaide/internal/submit"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Reconcile reports and submit availability",
	Long: `Merges the character's survey reports with the catalog, submits resources
missing on a planet and resources no longer found, and appends resources that
need stats to the notes file.`,
	RunE: runBatchCmd,
}

func runBatchCmd(cmd *cobra.Command, args []string) error {
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

	sum, err := a.runBatch(ctx, character)
	if sum != nil {
		printSummary(cmd.OutOrStdout(), sum)
		if sum.ArtifactWritten {
			fmt.Fprintf(cmd.OutOrStdout(), "\nAdd stats to %s, then run: swgaide notes submit\n", a.artifact.Path())
		}
		if err == nil && sum.Availability != nil && sum.Availability.State.Aborted() {
			return fmt.Errorf("batch aborted: %s", sum.Availability.State)
		}
	}
	return err
}

func printSummary(out io.Writer, sum *controlplane.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "CHARACTER\t%s@%s\n", sum.Character, sum.Galaxy)
	fmt.Fprintf(w, "REPORTS\t%d\n", sum.Reports)
	fmt.Fprintf(w, "UNREPORTED\t%d\n", sum.Unreported)
	fmt.Fprintf(w, "DEPLETED\t%d\n", sum.Depleted)
	fmt.Fprintf(w, "NEW\t%d\n", sum.New)
	fmt.Fprintf(w, "WITHOUT STATS\t%d\n", sum.Statless)
	w.Flush()
	printResult(out, "availability", sum.Availability)
}

func printResult(out io.Writer, label string, res *submit.Result) {
	if res == nil {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "\n%s\t%s\n", label, res.State)
	fmt.Fprintf(w, "  submitted\t%d\n", res.Submitted)
	fmt.Fprintf(w, "  passes\t%d\n", res.Passes)
	fmt.Fprintf(w, "  attempts\t%d\n", res.Attempts)
	if res.Detail != "" {
		fmt.Fprintf(w, "  detail\t%s\n", res.Detail)
	}
	w.Flush()

	for _, wr := range res.Unresolved {
		fmt.Fprintf(out, "  unresolved: %s (%s)\n", wr.Name(), wr.Class())
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", warn)
	}
	for _, c := range res.Collisions {
		fmt.Fprintf(out, "  collision: %s\n", c.Wrapper.Name())
	}
	if res.PartialFailure() {
		fmt.Fprintln(out, "  some records were not accepted; run again later")
	}
}
