// Package history persists execution records (tool calls and agent runs) in
// a local SQLite database. All hot-path writes are best-effort from the
// caller's perspective: the dispatcher and scheduler log failures and move on.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"codesquad/internal/logging"
	"codesquad/internal/tools"
)

// ToolCall is one dispatched tool call row.
type ToolCall struct {
	ID           string
	SessionID    string
	AgentID      string
	Tool         string
	ArgsJSON     string
	Success      bool
	Output       string
	Error        string
	DurationMs   int64
	CheckpointID string
	CreatedAt    time.Time
}

// AgentRun is one settled agent row, written after scoring.
type AgentRun struct {
	ID          string
	SessionID   string
	AgentID     string
	Role        string
	Task        string
	Success     bool
	Score       float64
	Confidence  float64
	ExecutionMs int64
	Error       string
	CreatedAt   time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS tool_calls (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	agent_id      TEXT NOT NULL DEFAULT '',
	tool          TEXT NOT NULL,
	args_json     TEXT NOT NULL DEFAULT '{}',
	success       INTEGER NOT NULL,
	output        TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	checkpoint_id TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_calls_session ON tool_calls(session_id, created_at);

CREATE TABLE IF NOT EXISTS agent_runs (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	agent_id     TEXT NOT NULL,
	role         TEXT NOT NULL,
	task         TEXT NOT NULL DEFAULT '',
	success      INTEGER NOT NULL,
	score        REAL NOT NULL DEFAULT 0,
	confidence   REAL NOT NULL DEFAULT 0,
	execution_ms INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agent_runs_created ON agent_runs(created_at);
`

// Store is the SQLite-backed execution history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	// Single writer keeps the pure-Go driver simple under concurrent agents.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	logging.History("opened %s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordToolCall implements tools.AuditSink.
func (s *Store) RecordToolCall(rec tools.ToolCallRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO tool_calls (id, session_id, agent_id, tool, args_json, success, output, error, duration_ms, checkpoint_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), rec.SessionID, rec.AgentID, rec.Tool, rec.ArgsJSON,
		boolToInt(rec.Success), rec.Output, rec.Error, rec.DurationMs, rec.CheckpointID, rec.CreatedAt,
	)
	return err
}

// RecordAgentRun persists one settled agent result.
func (s *Store) RecordAgentRun(run AgentRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO agent_runs (id, session_id, agent_id, role, task, success, score, confidence, execution_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, run.AgentID, run.Role, run.Task,
		boolToInt(run.Success), run.Score, run.Confidence, run.ExecutionMs, run.Error, run.CreatedAt,
	)
	return err
}

// RecentToolCalls returns the latest tool calls, newest first. sessionID
// filters when non-empty.
func (s *Store) RecentToolCalls(sessionID string, limit int) ([]ToolCall, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, session_id, agent_id, tool, args_json, success, output, error, duration_ms, checkpoint_id, created_at
	          FROM tool_calls`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ToolCall
	for rows.Next() {
		var tc ToolCall
		var success int
		if err := rows.Scan(&tc.ID, &tc.SessionID, &tc.AgentID, &tc.Tool, &tc.ArgsJSON,
			&success, &tc.Output, &tc.Error, &tc.DurationMs, &tc.CheckpointID, &tc.CreatedAt); err != nil {
			return nil, err
		}
		tc.Success = success != 0
		out = append(out, tc)
	}
	return out, rows.Err()
}

// RecentRuns returns the latest agent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]AgentRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, session_id, agent_id, role, task, success, score, confidence, execution_ms, error, created_at
		 FROM agent_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AgentRun
	for rows.Next() {
		var run AgentRun
		var success int
		if err := rows.Scan(&run.ID, &run.SessionID, &run.AgentID, &run.Role, &run.Task,
			&success, &run.Score, &run.Confidence, &run.ExecutionMs, &run.Error, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.Success = success != 0
		out = append(out, run)
	}
	return out, rows.Err()
}

// Prune deletes rows older than the cutoff, returning how many went.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	var total int64
	for _, table := range []string{"tool_calls", "agent_runs"} {
		res, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE created_at < ?`, table), cutoff)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}

	logging.History("pruned %d rows older than %s", total, olderThan)
	return total, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
