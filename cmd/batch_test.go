package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docintel/internal/cost"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/pipeline"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b-plan.md", "plan")
	writeFile(t, dir, "a-report.txt", "report")
	writeFile(t, dir, "image.png", "binary")
	writeFile(t, dir, "C-NOTES.TXT", "notes")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0o755))

	docs, err := readDocuments(dir, 0)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, pipeline.Document{ID: "C-NOTES", Text: "notes"}, docs[0])
	assert.Equal(t, pipeline.Document{ID: "a-report", Text: "report"}, docs[1])
	assert.Equal(t, pipeline.Document{ID: "b-plan", Text: "plan"}, docs[2])
}

func TestReadDocuments_Limit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1.txt", "one")
	writeFile(t, dir, "2.txt", "two")
	writeFile(t, dir, "3.txt", "three")

	docs, err := readDocuments(dir, 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "2", docs[1].ID)
}

func TestReadDocuments_Errors(t *testing.T) {
	_, err := readDocuments(filepath.Join(t.TempDir(), "missing"), 0)
	assert.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "bad.txt", "\xff\xfe")
	_, err = readDocuments(dir, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid UTF-8")
}

func TestFormatBatchResult(t *testing.T) {
	docs := []pipeline.Document{{ID: "alpha"}, {ID: "beta"}, {ID: "gamma"}}
	ok := completeRun("11111111-aaaa")
	bad := failedRun("22222222-bbbb")

	ledger := cost.NewLedger()
	ledger.Record(ok)
	ledger.Record(bad)

	result := &pipeline.BatchResult{
		Runs:      []*model.PipelineRun{ok, bad, nil},
		Errors:    []error{nil, errors.New("layer 2 (Strategic): auth"), errors.New("batch canceled")},
		Succeeded: 1,
		Failed:    1,
		Canceled:  1,
		Ledger:    ledger,
	}

	var buf bytes.Buffer
	formatBatchResult(&buf, docs, result)
	out := buf.String()

	assert.Contains(t, out, "DOCUMENT")
	assert.Contains(t, out, "11111111")
	assert.NotContains(t, out, "11111111-aaaa")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "layer 2 (Strategic): auth")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "1 succeeded, 1 failed, 1 canceled")
}

func TestFormatBatchResult_LongMultibyteError(t *testing.T) {
	docs := []pipeline.Document{{ID: "alpha"}}
	msg := "layer 1 (Foundation): " + strings.Repeat("ü", 80)
	result := &pipeline.BatchResult{
		Runs:   []*model.PipelineRun{nil},
		Errors: []error{errors.New(msg)},
		Failed: 1,
		Ledger: cost.NewLedger(),
	}

	var buf bytes.Buffer
	formatBatchResult(&buf, docs, result)
	out := buf.String()

	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, "…[truncated]")
	assert.NotContains(t, out, msg)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "12345678", shortID("123456789"))
}
