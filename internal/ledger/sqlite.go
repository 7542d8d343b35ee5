package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/intake-cli/internal/model"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_messages (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	message_id   TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT,
	customer_id  TEXT,
	project_id   TEXT,
	estimate_id  TEXT,
	processed_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, message_id)
);

CREATE TABLE IF NOT EXISTS continuations (
	id         TEXT PRIMARY KEY,
	params     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	claimed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_messages_run_id ON run_messages(run_id);
CREATE INDEX IF NOT EXISTS idx_continuations_claimed ON continuations(claimed_at, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		StartedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, summary, started_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)

	var r model.Run
	var summaryJSON sql.NullString
	if err := row.Scan(&r.ID, &r.Status, &summaryJSON, &r.StartedAt, &r.UpdatedAt); err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	if summaryJSON.Valid && summaryJSON.String != "null" {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, summary, started_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var summaryJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.Status, &summaryJSON, &r.StartedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if summaryJSON.Valid && summaryJSON.String != "null" {
			r.Summary = &model.RunSummary{}
			if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal summary")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) RecordMessage(ctx context.Context, rec model.MessageRecord) error {
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now().UTC()
	}

	// A message reprocessed by a continuation run overwrites its old row.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_messages (run_id, message_id, status, error, customer_id, project_id, estimate_id, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, message_id) DO UPDATE SET
		   status = excluded.status, error = excluded.error,
		   customer_id = excluded.customer_id, project_id = excluded.project_id,
		   estimate_id = excluded.estimate_id, processed_at = excluded.processed_at`,
		rec.RunID, rec.MessageID, string(rec.Status), rec.Error,
		rec.CustomerID, rec.ProjectID, rec.EstimateID, rec.ProcessedAt,
	)
	return eris.Wrapf(err, "sqlite: record message %s", rec.MessageID)
}

func (s *SQLiteStore) ListMessages(ctx context.Context, runID string) ([]model.MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, message_id, status, error, customer_id, project_id, estimate_id, processed_at
		 FROM run_messages WHERE run_id = ? ORDER BY processed_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list messages for %s", runID)
	}
	defer rows.Close()

	var recs []model.MessageRecord
	for rows.Next() {
		var rec model.MessageRecord
		var errMsg, customerID, projectID, estimateID sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.MessageID, &rec.Status, &errMsg,
			&customerID, &projectID, &estimateID, &rec.ProcessedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan message")
		}
		rec.Error = errMsg.String
		rec.CustomerID = customerID.String
		rec.ProjectID = projectID.String
		rec.EstimateID = estimateID.String
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list messages iterate")
}

func (s *SQLiteStore) EnqueueContinuation(ctx context.Context, params model.ContinuationParams) (string, error) {
	id := uuid.New().String()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal continuation params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO continuations (id, params, created_at) VALUES (?, ?, ?)`,
		id, string(paramsJSON), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: enqueue continuation")
	}
	return id, nil
}

// DequeueContinuation claims the oldest unclaimed continuation, or returns
// (nil, nil) when the queue is empty.
func (s *SQLiteStore) DequeueContinuation(ctx context.Context) (*model.Continuation, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE continuations SET claimed_at = datetime('now')
		 WHERE id = (SELECT id FROM continuations WHERE claimed_at IS NULL ORDER BY created_at LIMIT 1)
		 RETURNING id, params, created_at`,
	)

	var c model.Continuation
	var paramsJSON string
	err := row.Scan(&c.ID, &paramsJSON, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue continuation")
	}
	if err := json.Unmarshal([]byte(paramsJSON), &c.Params); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal continuation params")
	}
	return &c, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
