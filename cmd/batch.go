package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/pipeline"
)

var (
	batchConcurrency int
	batchLimit       int
)

// documentExts are the file extensions picked up from a batch directory.
var documentExts = map[string]bool{".txt": true, ".md": true, ".text": true}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Analyze every text document in a directory concurrently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		docs, err := readDocuments(args[0], batchLimit)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Fprintln(os.Stderr, "No documents found.")
			return nil
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentDocuments
		}

		zap.L().Info("starting batch",
			zap.Int("documents", len(docs)),
			zap.Int("concurrency", concurrency),
		)

		result, err := env.Orchestrator.RunBatch(ctx, docs, env.Layers, concurrency, env.Store)
		if result != nil {
			formatBatchResult(os.Stdout, docs, result)
		}
		if err != nil {
			return err
		}
		if result.Failed > 0 {
			return eris.Errorf("batch: %d of %d documents failed", result.Failed, len(docs))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max documents analyzed at once (default from config)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max documents to process (0 = all)")
	rootCmd.AddCommand(batchCmd)
}

// readDocuments loads the text documents of dir in name order.
func readDocuments(dir string, limit int) ([]pipeline.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read directory %s", dir)
	}

	var docs []pipeline.Document
	for _, e := range entries {
		if !e.Type().IsRegular() || !documentExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		if limit > 0 && len(docs) >= limit {
			break
		}
		path := filepath.Join(dir, e.Name())
		text, err := readDocument(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, pipeline.Document{ID: documentIDFromPath(path), Text: text})
	}
	return docs, nil
}

// maxErrorColumn caps the error column of the batch table, in characters.
const maxErrorColumn = 60

func formatBatchResult(w io.Writer, docs []pipeline.Document, result *pipeline.BatchResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tRUN\tSTATUS\tSCORE\tFALLBACKS\tCOST USD\tERROR")
	for i, doc := range docs {
		run := result.Runs[i]
		errText := ""
		if result.Errors[i] != nil {
			errText = pipeline.Truncate(result.Errors[i].Error(), maxErrorColumn)
		}
		if run == nil {
			fmt.Fprintf(tw, "%s\t-\tskipped\t-\t-\t-\t%s\n", doc.ID, errText)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.6f\t%s\n",
			doc.ID, shortID(run.ID), run.Status, run.CompositeScore,
			run.FallbackCount(), run.TotalCost.USD(), errText)
	}
	tw.Flush() //nolint:errcheck

	usage := result.Ledger.Usage()
	fmt.Fprintf(w, "\n%d succeeded, %d failed, %d canceled; total cost $%.6f (%d input, %d output, %d reasoning tokens)\n",
		result.Succeeded, result.Failed, result.Canceled, result.Ledger.Total().USD(),
		usage.InputTokens, usage.OutputTokens, usage.ReasoningTokens)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
