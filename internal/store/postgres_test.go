package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docintel/internal/model"
)

var runColumnNames = []string{
	"id", "document_id", "state", "status", "complete", "failed_layer",
	"error", "layers", "started_at", "completed_at", "updated_at",
}

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs .* ON CONFLICT \(id\) DO UPDATE SET state = \$3`).
		WithArgs("run-1", "doc-1", "layer_2_running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpdateRunStatus(context.Background(), "run-1", "doc-1", model.LayerRunning(2))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", "doc-1", "pending", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := s.UpdateRunStatus(context.Background(), "run-1", "doc-1", model.StatePending)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update run status run-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := sampleRun("run-1")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs .* ON CONFLICT \(id\) DO UPDATE SET .* started_at = \$9`).
		WithArgs("run-1", "doc-run-1", "complete", "complete", true,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			run.StartedAt.UTC(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM extractions WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"extractions"}, extractionColumns).
		WillReturnResult(8)
	mock.ExpectCommit()

	require.NoError(t, s.SaveRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_NoExtractions(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := sampleRun("run-1")
	for i := range run.Layers {
		run.Layers[i].Content = nil
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM extractions`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 8))
	mock.ExpectCommit()

	require.NoError(t, s.SaveRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_CopyError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM extractions`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"extractions"}, extractionColumns).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	err := s.SaveRun(context.Background(), sampleRun("run-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy extractions run-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_BeginError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("pool closed"))

	err := s.SaveRun(context.Background(), sampleRun("run-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := sampleRun("run-1")
	layersJSON, err := json.Marshal(run.Layers)
	require.NoError(t, err)
	updated := run.CompletedAt.Add(time.Second)

	mock.ExpectQuery(`SELECT id, document_id, state, .* FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(mock.NewRows(runColumnNames).AddRow(
			"run-1", "doc-run-1", "complete", ptr("complete"), true, nil,
			nil, layersJSON, run.StartedAt, ptr(run.CompletedAt), updated,
		))

	got, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.StateComplete, got.State)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.True(t, got.Complete)
	assert.Len(t, got.Layers, 4)
	assert.Equal(t, 80, got.CompositeScore)
	assert.Equal(t, run.CompletedAt, got.CompletedAt)
	assert.Equal(t, updated, got.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_Failed(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("run-2").
		WillReturnRows(mock.NewRows(runColumnNames).AddRow(
			"run-2", "doc-2", "failed", ptr("failed"), false, ptr(2),
			ptr("auth"), []byte("[]"), started, nil, started,
		))

	got, err := s.GetRun(context.Background(), "run-2")
	require.NoError(t, err)
	assert.Equal(t, 2, got.FailedLayer)
	assert.Equal(t, "auth", got.Error)
	assert.True(t, got.CompletedAt.IsZero())
	assert.Empty(t, got.Layers)
	assert.Zero(t, got.CompositeScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM runs WHERE 1=1 AND status = \$1 AND document_id = \$2 ORDER BY started_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("complete", "doc-1", 5, 10).
		WillReturnRows(mock.NewRows(runColumnNames).AddRow(
			"run-1", "doc-1", "complete", ptr("complete"), true, nil,
			nil, []byte("[]"), started, ptr(started), started,
		))

	runs, err := s.ListRuns(context.Background(), RunFilter{
		Status:     model.RunStatusComplete,
		DocumentID: "doc-1",
		Limit:      5,
		Offset:     10,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE 1=1 ORDER BY started_at DESC LIMIT \$1$`).
		WithArgs(defaultListLimit).
		WillReturnRows(mock.NewRows(runColumnNames))

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListExtractions(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(mock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT layer_id, type, value, confidence FROM extractions WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnRows(mock.NewRows([]string{"layer_id", "type", "value", "confidence"}).
			AddRow(1, "key_finding", "revenue grew", 0.8).
			AddRow(1, "concept", "unit economics", 0.8))

	ex, err := s.ListExtractions(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, ex, 2)
	assert.Equal(t, model.Extraction{LayerID: 1, Type: model.ExtractionKeyFinding, Value: "revenue grew", Confidence: 0.8}, ex[0])
	assert.Equal(t, model.ExtractionConcept, ex[1].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListExtractions_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM runs`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.ListExtractions(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseWithoutPool(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())
}

func TestPostgresStore_ListRuns_StartedAfter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM runs WHERE 1=1 AND started_at >= \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs(cutoff, defaultListLimit).
		WillReturnRows(mock.NewRows(runColumnNames))

	_, err := s.ListRuns(context.Background(), RunFilter{StartedAfter: cutoff})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
