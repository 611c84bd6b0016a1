// Package audit maintains the session's task journal: every dispatched
// task's terminal outcome is appended to a sqlite database in the evidence
// directory, preserving a reviewable record of what was run against which
// evidence.
package audit

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // database/sql driver

	"github.com/Ashfaaq98/porsha/internal/models"
	"github.com/Ashfaaq98/porsha/internal/utils"
)

const journalFile = "porsha-journal.db"

const schema = `
CREATE TABLE IF NOT EXISTS task_journal (
	id          TEXT PRIMARY KEY,
	session     TEXT NOT NULL,
	kind        TEXT NOT NULL,
	resource    TEXT NOT NULL,
	subject     TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	detail      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_journal_session ON task_journal(session, started_at);
`

// Journal records task outcomes for one session.
type Journal struct {
	db      *sql.DB
	session string
}

// Open creates or opens the journal database under dir and starts a new
// session.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create evidence directory %s", dir)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, journalFile))
	if err != nil {
		return nil, errors.Wrap(err, "open task journal")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize task journal schema")
	}
	j := &Journal{db: db, session: uuid.NewString()}
	utils.LogInfo("task journal opened", map[string]string{"session": j.session})
	return j, nil
}

// Session returns the current session identifier.
func (j *Journal) Session() string { return j.session }

// Record appends one task record. Journal failures are logged, never
// propagated: auditing must not fail the task it describes.
func (j *Journal) Record(rec models.TaskRecord) {
	rec.Session = j.session
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.FinishedAt == 0 {
		rec.FinishedAt = time.Now().Unix()
	}
	_, err := j.db.Exec(
		`INSERT INTO task_journal (id, session, kind, resource, subject, outcome, detail, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Session, rec.Kind, rec.Resource, rec.Subject,
		rec.Outcome, rec.Detail, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		utils.LogError("failed to journal task", map[string]string{
			"task": rec.ID, "error": err.Error(),
		})
	}
}

// List returns this session's records ordered by start time.
func (j *Journal) List(ctx context.Context) ([]models.TaskRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session, kind, resource, subject, outcome, detail, started_at, finished_at
		 FROM task_journal WHERE session = ? ORDER BY started_at, id`, j.session)
	if err != nil {
		return nil, errors.Wrap(err, "query task journal")
	}
	defer rows.Close()

	var records []models.TaskRecord
	for rows.Next() {
		var rec models.TaskRecord
		if err := rows.Scan(&rec.ID, &rec.Session, &rec.Kind, &rec.Resource,
			&rec.Subject, &rec.Outcome, &rec.Detail, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, errors.Wrap(err, "scan task record")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
