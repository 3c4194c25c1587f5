package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/docintel/internal/db"
	"github.com/sells-group/docintel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL,
	state        TEXT NOT NULL DEFAULT 'pending',
	status       TEXT,
	complete     BOOLEAN NOT NULL DEFAULT false,
	failed_layer INTEGER,
	error        TEXT,
	layers       JSONB,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS extractions (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	layer_id   INTEGER NOT NULL,
	type       TEXT NOT NULL,
	value      TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_document_id ON runs(document_id);
CREATE INDEX IF NOT EXISTS idx_extractions_run_id ON extractions(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID, documentID string, state model.RunState) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, document_id, state, started_at, updated_at) VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (id) DO UPDATE SET state = $3, updated_at = $4`,
		runID, documentID, string(state), now,
	)
	return eris.Wrapf(err, "postgres: update run status %s", runID)
}

// SaveRun upserts the run row and replaces its extractions in one
// transaction. Extractions are loaded with COPY.
func (s *PostgresStore) SaveRun(ctx context.Context, run *model.PipelineRun) error {
	layersJSON, err := json.Marshal(run.Layers)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal layers")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   state = $3, status = $4, complete = $5, failed_layer = $6, error = $7,
		   layers = $8, started_at = $9, completed_at = $10, updated_at = $11`,
		run.ID, run.DocumentID, string(terminalState(run)), string(run.Status), run.Complete,
		optionalInt(run.FailedLayer), optionalString(run.Error), layersJSON,
		run.StartedAt.UTC(), optionalTime(run.CompletedAt), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert run %s", run.ID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM extractions WHERE run_id = $1`, run.ID); err != nil {
		return eris.Wrapf(err, "postgres: clear extractions %s", run.ID)
	}

	if _, err := db.CopyFrom(ctx, tx, "extractions", extractionColumns, extractionRows(run)); err != nil {
		return eris.Wrapf(err, "postgres: copy extractions %s", run.ID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.DocumentID != "" {
		query += fmt.Sprintf(` AND document_id = $%d`, argIdx)
		args = append(args, filter.DocumentID)
		argIdx++
	}
	if !filter.StartedAfter.IsZero() {
		query += fmt.Sprintf(` AND started_at >= $%d`, argIdx)
		args = append(args, filter.StartedAfter.UTC())
		argIdx++
	}

	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListExtractions(ctx context.Context, runID string) ([]model.Extraction, error) {
	var exists int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM runs WHERE id = $1`, runID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: list extractions %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list extractions %s", runID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT layer_id, type, value, confidence FROM extractions WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list extractions %s", runID)
	}
	defer rows.Close()

	out := []model.Extraction{}
	for rows.Next() {
		var (
			e   model.Extraction
			typ string
		)
		if err := rows.Scan(&e.LayerID, &typ, &e.Value, &e.Confidence); err != nil {
			return nil, eris.Wrap(err, "postgres: scan extraction")
		}
		e.Type = model.ExtractionType(typ)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list extractions iterate")
}

func scanPgRun(row scannable) (*RunRecord, error) {
	var (
		r           RunRecord
		state       string
		status      *string
		failedLayer *int
		errText     *string
		layersJSON  []byte
		completedAt *time.Time
	)
	err := row.Scan(&r.ID, &r.DocumentID, &state, &status, &r.Complete, &failedLayer,
		&errText, &layersJSON, &r.StartedAt, &completedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.State = model.RunState(state)
	if status != nil {
		r.Status = model.RunStatus(*status)
	}
	if failedLayer != nil {
		r.FailedLayer = *failedLayer
	}
	if errText != nil {
		r.Error = *errText
	}
	if completedAt != nil {
		r.CompletedAt = *completedAt
	}
	if len(layersJSON) > 0 {
		if err := json.Unmarshal(layersJSON, &r.Layers); err != nil {
			return nil, eris.Wrap(err, "unmarshal layers")
		}
	}
	finishRecord(&r)
	return &r, nil
}

func optionalInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
