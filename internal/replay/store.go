// Package replay implements the Record/Replay Store (spec.md §4.7): a
// SQLite-backed table of prior successful task runs, keyed by a stable
// hash of the task text, so a repeated task can be driven from recorded
// model turns instead of calling the model fresh every time.
package replay

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	"github.com/haasonsaas/surfari-go/pkg/models"
)

// Store wraps the replay_tasks table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and
// ensures the replay_tasks table and its indexes exist. path may be
// ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("replay: open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS replay_tasks (
			task_id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
			site_id INTEGER NOT NULL,
			site_name TEXT NOT NULL,
			task_hash TEXT NOT NULL,
			task_description TEXT NOT NULL,
			parameterized_task_hash TEXT,
			parameterized_task_desc TEXT,
			chat_history TEXT NOT NULL,
			history_variables TEXT,
			created_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("replay: create replay_tasks table: %w", err)
	}
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_replay_site_hash ON replay_tasks(site_id, task_hash)",
		"CREATE INDEX IF NOT EXISTS idx_replay_site_param_hash ON replay_tasks(site_id, parameterized_task_hash)",
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("replay: create index: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// TaskHash returns a stable, low-collision identifier for a task's text:
// the first 16 hex characters of SHA-256 over the trimmed UTF-8 text.
func TaskHash(text string) string {
	trimmed := strings.TrimSpace(text)
	sum := sha256.Sum256([]byte(trimmed))
	return hex.EncodeToString(sum[:])[:16]
}

// Recording is one stored successful run: the chat history the
// navigation loop replayed turn-by-turn, plus whatever variables were
// substituted into it if it was saved in parameterized form.
type Recording struct {
	TaskID                 int64
	SiteID                 int64
	SiteName               string
	TaskHash               string
	TaskDescription        string
	ParameterizedTaskHash  string
	ParameterizedTaskDesc  string
	ChatHistory            []models.ChatMessage
	HistoryVariables       map[string]string
	CreatedAt              time.Time
}

// Save deletes any existing row matching (site_name, task_hash,
// parameterized_task_hash) and inserts rec as a new row, mirroring the
// original implementation's delete-then-insert save protocol so a
// re-recorded task replaces its prior recording rather than
// accumulating duplicates.
func (s *Store) Save(ctx context.Context, rec Recording) (int64, error) {
	historyJSON, err := json.Marshal(rec.ChatHistory)
	if err != nil {
		return 0, fmt.Errorf("replay: marshal chat history: %w", err)
	}
	var variablesJSON []byte
	if len(rec.HistoryVariables) > 0 {
		variablesJSON, err = json.Marshal(rec.HistoryVariables)
		if err != nil {
			return 0, fmt.Errorf("replay: marshal history variables: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("replay: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM replay_tasks
		WHERE site_name = ? AND task_hash = ? AND parameterized_task_hash IS ?
	`, rec.SiteName, rec.TaskHash, nullableString(rec.ParameterizedTaskHash)); err != nil {
		return 0, fmt.Errorf("replay: delete existing recording: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO replay_tasks (
			site_id, site_name, task_hash, task_description,
			parameterized_task_hash, parameterized_task_desc,
			chat_history, history_variables, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.SiteID, rec.SiteName, rec.TaskHash, rec.TaskDescription,
		nullableString(rec.ParameterizedTaskHash), nullableString(rec.ParameterizedTaskDesc),
		string(historyJSON), nullableBytes(variablesJSON), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("replay: insert recording: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("replay: commit: %w", err)
	}
	return result.LastInsertId()
}

// FetchExact returns the most recent recording whose task_hash matches
// taskHash for the given site, or (nil, false) if none exists.
func (s *Store) FetchExact(ctx context.Context, siteID int64, taskHash string) (*Recording, bool, error) {
	return s.fetch(ctx, `
		SELECT task_id, site_id, site_name, task_hash, task_description,
		       parameterized_task_hash, parameterized_task_desc,
		       chat_history, history_variables, created_at
		FROM replay_tasks
		WHERE site_id = ? AND task_hash = ?
		ORDER BY task_id DESC LIMIT 1
	`, siteID, taskHash)
}

// FetchParameterized returns the most recent recording whose
// parameterized_task_hash matches paramHash for the given site, or (nil,
// false) if none exists.
func (s *Store) FetchParameterized(ctx context.Context, siteID int64, paramHash string) (*Recording, bool, error) {
	return s.fetch(ctx, `
		SELECT task_id, site_id, site_name, task_hash, task_description,
		       parameterized_task_hash, parameterized_task_desc,
		       chat_history, history_variables, created_at
		FROM replay_tasks
		WHERE site_id = ? AND parameterized_task_hash = ?
		ORDER BY task_id DESC LIMIT 1
	`, siteID, paramHash)
}

// RecordingSummary is one row of --list_recorded_tasks output: enough to
// identify a recording without paying to decode its full chat history.
type RecordingSummary struct {
	TaskID          int64
	SiteID          int64
	SiteName        string
	TaskDescription string
	Parameterized   bool
	CreatedAt       time.Time
}

// ListRecordings returns every stored recording's summary, most recent
// first, optionally filtered to one site.
func (s *Store) ListRecordings(ctx context.Context, siteID int64) ([]RecordingSummary, error) {
	query := `
		SELECT task_id, site_id, site_name, task_description,
		       parameterized_task_hash, created_at
		FROM replay_tasks
	`
	var args []any
	if siteID != 0 {
		query += " WHERE site_id = ?"
		args = append(args, siteID)
	}
	query += " ORDER BY task_id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("replay: list recordings: %w", err)
	}
	defer rows.Close()

	var out []RecordingSummary
	for rows.Next() {
		var (
			summary       RecordingSummary
			paramHash     sql.NullString
			createdAtText string
		)
		if err := rows.Scan(&summary.TaskID, &summary.SiteID, &summary.SiteName,
			&summary.TaskDescription, &paramHash, &createdAtText); err != nil {
			return nil, fmt.Errorf("replay: scan recording summary: %w", err)
		}
		summary.Parameterized = paramHash.Valid && paramHash.String != ""
		if t, err := time.Parse(time.RFC3339, createdAtText); err == nil {
			summary.CreatedAt = t
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("replay: list recordings: %w", err)
	}
	return out, nil
}

func (s *Store) fetch(ctx context.Context, query string, args ...any) (*Recording, bool, error) {
	row := s.db.QueryRowContext(ctx, query, args...)

	var (
		rec            Recording
		paramHash      sql.NullString
		paramDesc      sql.NullString
		historyJSON    string
		variablesJSON  sql.NullString
		createdAtText  string
	)
	err := row.Scan(
		&rec.TaskID, &rec.SiteID, &rec.SiteName, &rec.TaskHash, &rec.TaskDescription,
		&paramHash, &paramDesc, &historyJSON, &variablesJSON, &createdAtText,
	)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("replay: scan recording: %w", err)
	}
	rec.ParameterizedTaskHash = paramHash.String
	rec.ParameterizedTaskDesc = paramDesc.String

	if err := json.Unmarshal([]byte(historyJSON), &rec.ChatHistory); err != nil {
		return nil, false, fmt.Errorf("replay: decode chat history: %w", err)
	}
	if variablesJSON.Valid && variablesJSON.String != "" {
		if err := json.Unmarshal([]byte(variablesJSON.String), &rec.HistoryVariables); err != nil {
			return nil, false, fmt.Errorf("replay: decode history variables: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAtText); err == nil {
		rec.CreatedAt = t
	}
	return &rec, true, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
