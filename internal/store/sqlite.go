package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/docintel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL,
	state        TEXT NOT NULL DEFAULT 'pending',
	status       TEXT,
	complete     INTEGER NOT NULL DEFAULT 0,
	failed_layer INTEGER,
	error        TEXT,
	layers       TEXT,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS extractions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	layer_id   INTEGER NOT NULL,
	type       TEXT NOT NULL,
	value      TEXT NOT NULL,
	confidence REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_document_id ON runs(document_id);
CREATE INDEX IF NOT EXISTS idx_extractions_run_id ON extractions(run_id);
`

const runColumns = `id, document_id, state, status, complete, failed_layer, error, layers, started_at, completed_at, updated_at`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID, documentID string, state model.RunState) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, document_id, state, started_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		runID, documentID, string(state), now, now,
	)
	return eris.Wrapf(err, "sqlite: update run status %s", runID)
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.PipelineRun) error {
	layersJSON, err := json.Marshal(run.Layers)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal layers")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state = excluded.state, status = excluded.status, complete = excluded.complete,
			failed_layer = excluded.failed_layer, error = excluded.error, layers = excluded.layers,
			started_at = excluded.started_at, completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		run.ID, run.DocumentID, string(terminalState(run)), string(run.Status), run.Complete,
		nullInt(run.FailedLayer), nullString(run.Error), string(layersJSON),
		run.StartedAt.UTC(), nullTime(run.CompletedAt), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert run %s", run.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM extractions WHERE run_id = ?`, run.ID); err != nil {
		return eris.Wrapf(err, "sqlite: clear extractions %s", run.ID)
	}

	rows := extractionRows(run)
	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO extractions (run_id, layer_id, type, value, confidence) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare extraction insert")
		}
		defer stmt.Close() //nolint:errcheck
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r...); err != nil {
				return eris.Wrapf(err, "sqlite: insert extraction for run %s", run.ID)
			}
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.DocumentID != "" {
		query += ` AND document_id = ?`
		args = append(args, filter.DocumentID)
	}
	if !filter.StartedAfter.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.StartedAfter.UTC())
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	runs := []RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListExtractions(ctx context.Context, runID string) ([]model.Extraction, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: list extractions %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list extractions %s", runID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT layer_id, type, value, confidence FROM extractions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list extractions %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Extraction{}
	for rows.Next() {
		var e model.Extraction
		if err := rows.Scan(&e.LayerID, &e.Type, &e.Value, &e.Confidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan extraction")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list extractions iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*RunRecord, error) {
	var (
		r           RunRecord
		state       string
		status      sql.NullString
		failedLayer sql.NullInt64
		errText     sql.NullString
		layersJSON  sql.NullString
		completedAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.DocumentID, &state, &status, &r.Complete, &failedLayer,
		&errText, &layersJSON, &r.StartedAt, &completedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.State = model.RunState(state)
	r.Status = model.RunStatus(status.String)
	r.FailedLayer = int(failedLayer.Int64)
	r.Error = errText.String
	if completedAt.Valid {
		r.CompletedAt = completedAt.Time
	}
	if layersJSON.Valid && layersJSON.String != "" {
		if err := json.Unmarshal([]byte(layersJSON.String), &r.Layers); err != nil {
			return nil, eris.Wrap(err, "unmarshal layers")
		}
	}
	finishRecord(&r)
	return &r, nil
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
