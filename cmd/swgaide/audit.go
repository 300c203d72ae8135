package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/twistedatrocity/swgaide/internal/audit"
	"github.com/twistedatrocity/swgaide/internal/store"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recorded submission outcomes and decisions",
	RunE:  runAudit,
}

var (
	auditAction string
	auditLimit  int
	auditJSON   bool
)

func init() {
	auditCmd.Flags().StringVar(&auditAction, "action", "", "Filter by action (e.g. batch.availability, decision.collision)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum number of records")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Print records as JSON")
}

func runAudit(cmd *cobra.Command, args []string) error {
	s, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := audit.NewPDRWriter(s).Recent(auditAction, auditLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if auditJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No records found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tACTION\tOUTCOME\tRESOURCE\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(e.ID), e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Action, e.Outcome, e.Resource, truncate(e.Details, 50))
	}
	w.Flush()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
