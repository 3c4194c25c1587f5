package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var analyzeDocID string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a single UTF-8 text document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		text, err := readDocument(args[0])
		if err != nil {
			return err
		}
		docID := analyzeDocID
		if docID == "" {
			docID = documentIDFromPath(args[0])
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, runErr := analyzeAndRecord(ctx, env.Orchestrator, env.Store, docID, text, env.Layers)
		if run != nil {
			if err := writeJSON(os.Stdout, run); err != nil {
				return err
			}
		}
		return runErr
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDocID, "id", "", "document id (default: file name without extension)")
	rootCmd.AddCommand(analyzeCmd)
}

// readDocument reads a text file and rejects content that is not UTF-8.
func readDocument(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "read document %s", path)
	}
	if !utf8.Valid(data) {
		return "", eris.Errorf("document %s is not valid UTF-8", path)
	}
	return string(data), nil
}

// documentIDFromPath derives a document id from a file name.
func documentIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}
