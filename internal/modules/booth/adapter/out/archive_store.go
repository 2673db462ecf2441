package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pixelbooth/internal/modules/booth/domain"
	boothout "pixelbooth/internal/modules/booth/port/out"
	apperrors "pixelbooth/internal/platform/errors"
	"pixelbooth/internal/platform/markdown"
	"pixelbooth/internal/platform/sqlitedb"
)

const archiveSchemaVersion = 1

// ArchiveStore writes one markdown note per finished session and keeps a
// sqlite index of them for listing. The notes are the source of truth; the
// index can be rebuilt from them with Reindex.
type ArchiveStore struct {
	dir string
	db  *sql.DB
}

type archiveNote struct {
	SchemaVersion int               `yaml:"schema_version"`
	SessionID     string            `yaml:"session_id"`
	VisitorName   string            `yaml:"visitor_name,omitempty"`
	VisitorEmail  string            `yaml:"visitor_email,omitempty"`
	StartedAt     string            `yaml:"started_at,omitempty"`
	EndedAt       string            `yaml:"ended_at"`
	FinalPhase    string            `yaml:"final_phase"`
	Prompt        string            `yaml:"prompt,omitempty"`
	StylePrompt   string            `yaml:"style_prompt,omitempty"`
	GenerationID  string            `yaml:"generation_id,omitempty"`
	Degraded      bool              `yaml:"degraded"`
	Selected      int               `yaml:"selected"`
	PrintJobID    string            `yaml:"print_job_id,omitempty"`
	Artifacts     []archiveArtifact `yaml:"artifacts,omitempty"`
}

type archiveArtifact struct {
	ID     string `yaml:"id"`
	URL    string `yaml:"url"`
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
}

func NewArchiveStore(ctx context.Context, dir string, db *sql.DB) (boothout.SessionArchive, error) {
	store := &ArchiveStore{dir: dir, db: db}
	if err := store.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *ArchiveStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS archived_sessions (
  session_id TEXT PRIMARY KEY,
  visitor_name TEXT,
  visitor_email TEXT,
  started_at TEXT,
  ended_at TEXT NOT NULL,
  final_phase TEXT NOT NULL,
  prompt TEXT,
  style_prompt TEXT,
  generation_id TEXT,
  degraded INTEGER NOT NULL,
  image_count INTEGER NOT NULL,
  selected INTEGER NOT NULL,
  print_job_id TEXT,
  note_path TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archived_sessions_ended ON archived_sessions(ended_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create archived_sessions table: %w", err)
	}
	return nil
}

func (s *ArchiveStore) Save(ctx context.Context, session domain.ArchivedSession) (string, error) {
	ended := session.EndedAt.UTC()
	dir := filepath.Join(s.dir, ended.Format("2006"), ended.Format("01"), ended.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.md", ended.Format("150405"), session.SessionID))

	rendered, err := markdown.RenderNote(toNote(session), noteBody(session))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write session note: %w", err)
	}
	session.NotePath = path
	session.ImageCount = len(session.Artifacts)
	if err := index(ctx, s.db, session); err != nil {
		return "", err
	}
	return path, nil
}

func (s *ArchiveStore) List(ctx context.Context, limit int) ([]domain.ArchivedSession, error) {
	query := `
SELECT session_id, visitor_name, visitor_email, started_at, ended_at, final_phase, prompt, style_prompt, generation_id, degraded, image_count, selected, print_job_id, note_path
FROM archived_sessions ORDER BY ended_at DESC, session_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query archived sessions: %w", err)
	}
	defer rows.Close()

	out := []domain.ArchivedSession{}
	for rows.Next() {
		session, err := scanArchived(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived sessions: %w", err)
	}
	return out, nil
}

// Get returns the full record, artifacts included, read back from the note.
func (s *ArchiveStore) Get(ctx context.Context, sessionID string) (domain.ArchivedSession, error) {
	var notePath string
	err := s.db.QueryRowContext(ctx, `SELECT note_path FROM archived_sessions WHERE session_id = ?`, sessionID).Scan(&notePath)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ArchivedSession{}, fmt.Errorf("%w: archived session %s", apperrors.ErrNotFound, sessionID)
	}
	if err != nil {
		return domain.ArchivedSession{}, fmt.Errorf("query archived session: %w", err)
	}
	return readNote(notePath)
}

// Reindex rebuilds the index from the notes under the archive directory and
// returns the number of sessions indexed. A failed walk leaves the previous
// index in place.
func (s *ArchiveStore) Reindex(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin reindex: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM archived_sessions`); err != nil {
		return 0, fmt.Errorf("reset archive index: %w", err)
	}
	count := 0
	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		session, err := readNote(path)
		if err != nil {
			return err
		}
		if err := index(ctx, tx, session); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reindex archive: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit reindex: %w", err)
	}
	return count, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func index(ctx context.Context, db execer, session domain.ArchivedSession) error {
	const stmt = `
INSERT INTO archived_sessions (session_id, visitor_name, visitor_email, started_at, ended_at, final_phase, prompt, style_prompt, generation_id, degraded, image_count, selected, print_job_id, note_path)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
  visitor_name=excluded.visitor_name,
  visitor_email=excluded.visitor_email,
  started_at=excluded.started_at,
  ended_at=excluded.ended_at,
  final_phase=excluded.final_phase,
  prompt=excluded.prompt,
  style_prompt=excluded.style_prompt,
  generation_id=excluded.generation_id,
  degraded=excluded.degraded,
  image_count=excluded.image_count,
  selected=excluded.selected,
  print_job_id=excluded.print_job_id,
  note_path=excluded.note_path;
`
	degraded := 0
	if session.Degraded {
		degraded = 1
	}
	_, err := db.ExecContext(ctx, stmt,
		session.SessionID,
		session.Visitor.FullName,
		session.Visitor.Email,
		formatTime(session.StartedAt),
		formatTime(session.EndedAt),
		string(session.FinalPhase),
		session.Prompt,
		session.StylePrompt,
		session.GenerationID,
		degraded,
		session.ImageCount,
		session.Selected,
		session.PrintJobID,
		session.NotePath,
	)
	if err != nil {
		return fmt.Errorf("index archived session: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArchived(row rowScanner) (domain.ArchivedSession, error) {
	var session domain.ArchivedSession
	var name, email, started, prompt, style, generation, printJob sql.NullString
	var ended, phase string
	var degraded int
	err := row.Scan(
		&session.SessionID,
		&name,
		&email,
		&started,
		&ended,
		&phase,
		&prompt,
		&style,
		&generation,
		&degraded,
		&session.ImageCount,
		&session.Selected,
		&printJob,
		&session.NotePath,
	)
	if err != nil {
		return domain.ArchivedSession{}, fmt.Errorf("scan archived session: %w", err)
	}
	session.Visitor = domain.Visitor{FullName: name.String, Email: email.String}
	session.StartedAt = parseTime(started.String)
	session.EndedAt = parseTime(ended)
	session.FinalPhase = domain.Phase(phase)
	session.Prompt = prompt.String
	session.StylePrompt = style.String
	session.GenerationID = generation.String
	session.Degraded = degraded != 0
	session.PrintJobID = printJob.String
	return session, nil
}

func readNote(path string) (domain.ArchivedSession, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.ArchivedSession{}, fmt.Errorf("read session note: %w", err)
	}
	var note archiveNote
	if _, err := markdown.SplitFrontmatter(string(raw), &note); err != nil {
		return domain.ArchivedSession{}, fmt.Errorf("parse session note %s: %w", path, err)
	}
	if note.SessionID == "" {
		return domain.ArchivedSession{}, fmt.Errorf("session note %s has no session id", path)
	}
	session := domain.ArchivedSession{
		SessionID:    note.SessionID,
		Visitor:      domain.Visitor{FullName: note.VisitorName, Email: note.VisitorEmail},
		StartedAt:    parseTime(note.StartedAt),
		EndedAt:      parseTime(note.EndedAt),
		FinalPhase:   domain.Phase(note.FinalPhase),
		Prompt:       note.Prompt,
		StylePrompt:  note.StylePrompt,
		GenerationID: note.GenerationID,
		Degraded:     note.Degraded,
		Selected:     note.Selected,
		PrintJobID:   note.PrintJobID,
		NotePath:     path,
	}
	for _, a := range note.Artifacts {
		session.Artifacts = append(session.Artifacts, domain.Artifact{ID: a.ID, URL: a.URL, Width: a.Width, Height: a.Height})
	}
	session.ImageCount = len(session.Artifacts)
	return session, nil
}

func toNote(session domain.ArchivedSession) archiveNote {
	note := archiveNote{
		SchemaVersion: archiveSchemaVersion,
		SessionID:     session.SessionID,
		VisitorName:   session.Visitor.FullName,
		VisitorEmail:  session.Visitor.Email,
		StartedAt:     formatTime(session.StartedAt),
		EndedAt:       formatTime(session.EndedAt),
		FinalPhase:    string(session.FinalPhase),
		Prompt:        session.Prompt,
		StylePrompt:   session.StylePrompt,
		GenerationID:  session.GenerationID,
		Degraded:      session.Degraded,
		Selected:      session.Selected,
		PrintJobID:    session.PrintJobID,
	}
	for _, a := range session.Artifacts {
		note.Artifacts = append(note.Artifacts, archiveArtifact{ID: a.ID, URL: a.URL, Width: a.Width, Height: a.Height})
	}
	return note
}

func noteBody(session domain.ArchivedSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\n", session.SessionID)
	if session.Visitor.FullName != "" {
		fmt.Fprintf(&b, "- Visitor: %s\n", session.Visitor.FullName)
	}
	fmt.Fprintf(&b, "- Final phase: %s\n", session.FinalPhase)
	if session.Degraded {
		b.WriteString("- Placeholder images (generation service unavailable)\n")
	}
	if session.Prompt != "" {
		fmt.Fprintf(&b, "\n## Prompt\n\n%s\n", session.Prompt)
		if session.StylePrompt != "" && session.StylePrompt != session.Prompt {
			fmt.Fprintf(&b, "\nStyle: %s\n", session.StylePrompt)
		}
	}
	if len(session.Artifacts) > 0 {
		b.WriteString("\n## Images\n\n")
		for i, a := range session.Artifacts {
			marker := ""
			if i == session.Selected {
				marker = " (printed)"
				if session.PrintJobID == "" {
					marker = " (selected)"
				}
			}
			fmt.Fprintf(&b, "%d. ![image %d](%s)%s\n", i+1, i+1, a.URL, marker)
		}
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(sqlitedb.TimeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(sqlitedb.TimeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
