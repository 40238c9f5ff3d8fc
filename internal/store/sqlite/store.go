// Package sqlite backs the task manager with a durable sqlite database. The
// artifact table and message log are append-only; rows are never updated or
// deleted by the application.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vidsmith/internal/domain"
	"vidsmith/internal/task"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL,
	state TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	status_message TEXT NOT NULL DEFAULT '',
	repair_attempts INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS artifacts (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL,
	task_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	data TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_artifacts_task ON artifacts(task_id, seq);

CREATE TABLE IF NOT EXISTS task_messages (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL,
	task_id TEXT NOT NULL,
	from_agent TEXT NOT NULL,
	to_agent TEXT NOT NULL,
	type TEXT NOT NULL,
	payload TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_task_messages_task ON task_messages(task_id, seq);
`

type Store struct {
	db *sql.DB
}

var _ task.Store = (*Store)(nil)

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) CreateTask(ctx context.Context, t domain.Task) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO tasks(id, project_id, description, state, stage, status_message, repair_attempts, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Description, string(t.State), string(t.Stage), t.StatusMessage,
		t.RepairAttempts, t.CreatedAt.Unix(), t.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, project_id, description, state, stage, status_message, repair_attempts, created_at, updated_at
		FROM tasks WHERE id = ?`,
		taskID,
	)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, task.ErrTaskNotFound
		}
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, project_id, description, state, stage, status_message, repair_attempts, created_at, updated_at
		FROM tasks ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return result, nil
}

func (s *Store) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks
		SET state = ?, stage = ?, status_message = ?, repair_attempts = ?, updated_at = ?
		WHERE id = ?`,
		string(t.State), string(t.Stage), t.StatusMessage, t.RepairAttempts, t.UpdatedAt.Unix(), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task affected rows: %w", err)
	}
	if affected == 0 {
		return task.ErrTaskNotFound
	}
	return nil
}

func (s *Store) AppendArtifact(ctx context.Context, taskID string, artifact domain.Artifact) error {
	data := ""
	if artifact.Data != nil {
		data = string(artifact.Data)
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO artifacts(id, task_id, kind, mime_type, data, url, name, description, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		artifact.ID, taskID, string(artifact.Kind), artifact.MimeType, data, artifact.URL,
		artifact.Name, artifact.Description, artifact.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append artifact: %w", err)
	}
	return nil
}

func (s *Store) ListArtifacts(ctx context.Context, taskID string) ([]domain.Artifact, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, kind, mime_type, data, url, name, description, created_at
		FROM artifacts WHERE task_id = ? ORDER BY seq ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Artifact, 0)
	for rows.Next() {
		var a domain.Artifact
		var kind, data string
		var created int64
		if err := rows.Scan(&a.ID, &kind, &a.MimeType, &data, &a.URL, &a.Name, &a.Description, &created); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.Kind = domain.ArtifactKind(kind)
		if data != "" {
			a.Data = json.RawMessage(data)
		}
		a.CreatedAt = unixToTime(created)
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return result, nil
}

func (s *Store) AppendMessage(ctx context.Context, taskID string, msg domain.AgentMessage) error {
	body := ""
	if msg.Message != nil {
		encoded, err := json.Marshal(msg.Message)
		if err != nil {
			return fmt.Errorf("marshal message body: %w", err)
		}
		body = string(encoded)
	}
	payload := string(msg.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO task_messages(id, task_id, from_agent, to_agent, type, payload, body, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, taskID, msg.From, msg.To, string(msg.Type), payload, body, msg.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, taskID string, limit int) ([]domain.AgentMessage, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, from_agent, to_agent, type, payload, body, created_at
		FROM task_messages WHERE task_id = ?
		ORDER BY seq ASC LIMIT ?`,
		taskID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	result := make([]domain.AgentMessage, 0, limit)
	for rows.Next() {
		var m domain.AgentMessage
		var typ, payload, body string
		var created int64
		if err := rows.Scan(&m.ID, &m.From, &m.To, &typ, &payload, &body, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Type = domain.MessageType(typ)
		m.Payload = json.RawMessage(payload)
		if body != "" {
			var hm domain.HumanMessage
			if err := json.Unmarshal([]byte(body), &hm); err == nil {
				m.Message = &hm
			}
		}
		m.CreatedAt = unixToTime(created)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var state, stage string
	var created, updated int64
	if err := row.Scan(
		&t.ID, &t.ProjectID, &t.Description, &state, &stage, &t.StatusMessage,
		&t.RepairAttempts, &created, &updated,
	); err != nil {
		return domain.Task{}, err
	}
	t.State = domain.TaskState(state)
	t.Stage = domain.StageLabel(stage)
	t.CreatedAt = unixToTime(created)
	t.UpdatedAt = unixToTime(updated)
	return t, nil
}

func unixToTime(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}
