package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pixelbooth/internal/modules/printing/domain"
	printingout "pixelbooth/internal/modules/printing/port/out"
	apperrors "pixelbooth/internal/platform/errors"
	"pixelbooth/internal/platform/sqlitedb"
)

type SQLiteJobStore struct {
	db *sql.DB
}

func NewSQLiteJobStore(ctx context.Context, db *sql.DB) (printingout.JobStore, error) {
	store := &SQLiteJobStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteJobStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS print_jobs (
  id TEXT PRIMARY KEY,
  spooler_id TEXT NOT NULL,
  session_id TEXT NOT NULL,
  artifact_index INTEGER NOT NULL,
  artifact_url TEXT,
  copies INTEGER NOT NULL,
  state TEXT NOT NULL,
  reason TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_print_jobs_session ON print_jobs(session_id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create print_jobs table: %w", err)
	}
	return nil
}

func (s *SQLiteJobStore) Save(ctx context.Context, job domain.Job) error {
	const stmt = `
INSERT INTO print_jobs (id, spooler_id, session_id, artifact_index, artifact_url, copies, state, reason, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  spooler_id=excluded.spooler_id,
  state=excluded.state,
  reason=excluded.reason,
  updated_at=excluded.updated_at;
`
	_, err := s.db.ExecContext(ctx, stmt,
		job.ID,
		job.SpoolerID,
		job.SessionID,
		job.ArtifactIndex,
		job.ArtifactURL,
		job.Copies,
		string(job.State),
		job.Reason,
		job.CreatedAt.UTC().Format(sqlitedb.TimeLayout),
		job.UpdatedAt.UTC().Format(sqlitedb.TimeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert print job: %w", err)
	}
	return nil
}

func (s *SQLiteJobStore) Get(ctx context.Context, jobID string) (domain.Job, error) {
	const query = `
SELECT id, spooler_id, session_id, artifact_index, artifact_url, copies, state, reason, created_at, updated_at
FROM print_jobs WHERE id = ?;
`
	var job domain.Job
	var url, reason sql.NullString
	var state, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID,
		&job.SpoolerID,
		&job.SessionID,
		&job.ArtifactIndex,
		&url,
		&job.Copies,
		&state,
		&reason,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, fmt.Errorf("%w: print job %s", apperrors.ErrNotFound, jobID)
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("query print job: %w", err)
	}
	job.ArtifactURL = url.String
	job.Reason = reason.String
	job.State = domain.JobState(state)
	job.CreatedAt, _ = time.Parse(sqlitedb.TimeLayout, createdAt)
	job.UpdatedAt, _ = time.Parse(sqlitedb.TimeLayout, updatedAt)
	return job, nil
}
