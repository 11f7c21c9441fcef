package webapp

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Journal is the sqlite backed task record. It survives restarts and feeds
// the task listing with runs from previous processes.
type Journal struct {
	db *sql.DB
}

// NewJournal opens the journal at dbPath and creates the schema when
// missing. ":memory:" keeps the journal ephemeral.
func NewJournal(dbPath string) (*Journal, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open task journal: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	journal := &Journal{db: db}
	if err := journal.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize task journal: %w", err)
	}
	return journal, nil
}

func (j *Journal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		org TEXT NOT NULL,
		repo TEXT,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		started_at INTEGER,
		completed_at INTEGER,
		duration_ms INTEGER,
		result TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
	CREATE INDEX IF NOT EXISTS idx_tasks_org ON tasks(org);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record upserts the current state of a task.
func (j *Journal) Record(ctx context.Context, task *Task) error {
	var startedAt, completedAt *int64
	if task.StartedAt != nil {
		v := task.StartedAt.Unix()
		startedAt = &v
	}
	if task.CompletedAt != nil {
		v := task.CompletedAt.Unix()
		completedAt = &v
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tasks
			(id, type, org, repo, status, created_at, started_at, completed_at, duration_ms, result, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, string(task.Type), task.Org, task.Repo, string(task.Status),
		task.CreatedAt.Unix(), startedAt, completedAt,
		task.Duration.Milliseconds(), task.Result, task.Error)
	if err != nil {
		return fmt.Errorf("failed to record task %s: %w", task.ID, err)
	}
	return nil
}

// Recent returns the most recent task records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]*Task, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, type, org, repo, status, created_at, started_at, completed_at, duration_ms, result, error
		FROM tasks
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query task journal: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		var (
			task                   Task
			taskType, status       string
			createdAt, durationMS  int64
			startedAt, completedAt sql.NullInt64
		)
		if err := rows.Scan(&task.ID, &taskType, &task.Org, &task.Repo, &status,
			&createdAt, &startedAt, &completedAt, &durationMS, &task.Result, &task.Error); err != nil {
			return nil, fmt.Errorf("failed to scan task record: %w", err)
		}

		task.Type = TaskType(taskType)
		task.Status = TaskStatus(status)
		task.CreatedAt = time.Unix(createdAt, 0)
		if startedAt.Valid {
			v := time.Unix(startedAt.Int64, 0)
			task.StartedAt = &v
		}
		if completedAt.Valid {
			v := time.Unix(completedAt.Int64, 0)
			task.CompletedAt = &v
		}
		task.Duration = time.Duration(durationMS) * time.Millisecond
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read task journal: %w", err)
	}
	return tasks, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
