package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/monitoring"
	"github.com/sells-group/docintel/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded pipeline runs",
	Long:  "Commands for listing runs, viewing a run, and listing the extractions recorded for it.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		document, _ := cmd.Flags().GetString("document")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:     model.RunStatus(status),
			DocumentID: document,
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		return writeJSON(os.Stdout, run)
	},
}

// -- runs extractions --

var runsExtractionsCmd = &cobra.Command{
	Use:   "extractions <run-id>",
	Short: "List the findings and concepts extracted by a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ex, err := st.ListExtractions(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs extractions")
		}
		if len(ex) == 0 {
			fmt.Fprintln(os.Stderr, "No extractions recorded.")
			return nil
		}

		formatExtractions(os.Stdout, ex)
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run health and any threshold alerts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hours, _ := cmd.Flags().GetInt("hours")
		notify, _ := cmd.Flags().GetBool("notify")

		mcfg := cfg.Monitoring
		if hours > 0 {
			mcfg.LookbackWindowHours = hours
		}
		if !notify {
			mcfg.WebhookURL = ""
		}

		checker := monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(mcfg), mcfg)
		report, err := checker.Check(ctx)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatReport(os.Stdout, report)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (complete, failed, canceled)")
	runsListCmd.Flags().String("document", "", "filter by document id")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExtractionsCmd)
	runsStatsCmd.Flags().Int("hours", 0, "lookback window in hours (default from config)")
	runsStatsCmd.Flags().Bool("notify", false, "send triggered alerts to the monitoring webhook")
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a table of runs.
func formatRunsList(w io.Writer, runs []store.RunRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tDOCUMENT\tSTATE\tSCORE\tLAYERS\tCOST USD\tDURATION\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.6f\t%s\t%s\n",
			shortID(r.ID),
			r.DocumentID,
			r.State,
			r.CompositeScore,
			len(r.Layers),
			r.TotalCost.USD(),
			r.TotalDuration.Round(time.Millisecond),
			r.StartedAt.Format(time.DateTime),
		)
	}
	tw.Flush() //nolint:errcheck
}

// formatExtractions writes a table of extraction tuples.
func formatExtractions(w io.Writer, ex []model.Extraction) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LAYER\tTYPE\tCONFIDENCE\tVALUE")
	for _, e := range ex {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\n", e.LayerID, e.Type, e.Confidence, e.Value)
	}
	tw.Flush() //nolint:errcheck
}

// formatReport writes a run health snapshot followed by any alerts.
func formatReport(w io.Writer, r *monitoring.Report) {
	s := r.Snapshot
	fmt.Fprintf(w, "Runs (last %dh): %d total\n", s.LookbackHours, s.RunsTotal)
	fmt.Fprintf(w, "  Complete:     %d\n", s.RunsComplete)
	fmt.Fprintf(w, "  Failed:       %d (%.1f%%)\n", s.RunsFailed, s.FailRate*100)
	fmt.Fprintf(w, "  Canceled:     %d\n", s.RunsCanceled)
	fmt.Fprintf(w, "  In progress:  %d\n", s.RunsInProgress)
	fmt.Fprintf(w, "Avg score:      %.1f\n", s.AvgScore)
	fmt.Fprintf(w, "Fallbacks:      %d of %d layers (%.1f%%)\n", s.FallbackLayers, s.LayersTotal, s.FallbackRate*100)
	fmt.Fprintf(w, "Cost:           $%.4f\n", s.CostUSD)
	fmt.Fprintf(w, "Reasoning:      %d tokens\n", s.ReasoningTokens)

	if len(r.Alerts) == 0 {
		fmt.Fprintln(w, "\nNo alerts.")
		return
	}
	fmt.Fprintf(w, "\nAlerts (%d, %d sent):\n", len(r.Alerts), r.Sent)
	for _, a := range r.Alerts {
		fmt.Fprintf(w, "  [%s] %s\n", a.Severity, a.Message)
	}
}
