package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pixelbooth/internal/modules/generation/domain"
	generationout "pixelbooth/internal/modules/generation/port/out"
	apperrors "pixelbooth/internal/platform/errors"
	"pixelbooth/internal/platform/sqlitedb"
)

type SQLiteJobStore struct {
	db *sql.DB
}

func NewSQLiteJobStore(ctx context.Context, db *sql.DB) (generationout.JobStore, error) {
	store := &SQLiteJobStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteJobStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS generation_jobs (
  session_id TEXT PRIMARY KEY,
  generation_id TEXT NOT NULL,
  prompt TEXT NOT NULL,
  style_prompt TEXT NOT NULL,
  translated_prompt TEXT,
  translated_style TEXT,
  upload_id TEXT,
  style_image_id TEXT,
  image_count INTEGER NOT NULL,
  width INTEGER NOT NULL,
  height INTEGER NOT NULL,
  degraded INTEGER NOT NULL,
  failure_stage TEXT,
  created_at TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create generation_jobs table: %w", err)
	}
	return nil
}

func (s *SQLiteJobStore) Save(ctx context.Context, job domain.Job) error {
	const stmt = `
INSERT INTO generation_jobs (session_id, generation_id, prompt, style_prompt, translated_prompt, translated_style, upload_id, style_image_id, image_count, width, height, degraded, failure_stage, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
  generation_id=excluded.generation_id,
  prompt=excluded.prompt,
  style_prompt=excluded.style_prompt,
  translated_prompt=excluded.translated_prompt,
  translated_style=excluded.translated_style,
  upload_id=excluded.upload_id,
  style_image_id=excluded.style_image_id,
  image_count=excluded.image_count,
  width=excluded.width,
  height=excluded.height,
  degraded=excluded.degraded,
  failure_stage=excluded.failure_stage,
  created_at=excluded.created_at;
`
	_, err := s.db.ExecContext(ctx, stmt,
		job.SessionID,
		job.GenerationID,
		job.Prompt,
		job.StylePrompt,
		job.TranslatedPrompt,
		job.TranslatedStyle,
		job.UploadID,
		job.StyleImageID,
		job.ImageCount,
		job.Width,
		job.Height,
		boolToInt(job.Degraded),
		string(job.FailureStage),
		job.CreatedAt.UTC().Format(sqlitedb.TimeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert generation job: %w", err)
	}
	return nil
}

func (s *SQLiteJobStore) Get(ctx context.Context, sessionID string) (domain.Job, error) {
	const query = `
SELECT session_id, generation_id, prompt, style_prompt, translated_prompt, translated_style, upload_id, style_image_id, image_count, width, height, degraded, failure_stage, created_at
FROM generation_jobs WHERE session_id = ?;
`
	var job domain.Job
	var translated, translatedStyle, upload, styleImage, stage sql.NullString
	var degraded int
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&job.SessionID,
		&job.GenerationID,
		&job.Prompt,
		&job.StylePrompt,
		&translated,
		&translatedStyle,
		&upload,
		&styleImage,
		&job.ImageCount,
		&job.Width,
		&job.Height,
		&degraded,
		&stage,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, fmt.Errorf("%w: generation job for session %s", apperrors.ErrNotFound, sessionID)
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("query generation job: %w", err)
	}
	job.TranslatedPrompt = translated.String
	job.TranslatedStyle = translatedStyle.String
	job.UploadID = upload.String
	job.StyleImageID = styleImage.String
	job.Degraded = degraded != 0
	job.FailureStage = domain.Stage(stage.String)
	if t, err := time.Parse(sqlitedb.TimeLayout, createdAt); err == nil {
		job.CreatedAt = t
	}
	return job, nil
}

func (s *SQLiteJobStore) Delete(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM generation_jobs WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete generation job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: generation job for session %s", apperrors.ErrNotFound, sessionID)
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
