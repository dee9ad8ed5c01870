package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"jiradash/internal/models"
)

// Page sizes for ListActivity. A limit of zero or less uses the default and
// larger limits are capped at the maximum.
const (
	DefaultActivityLimit = 50
	MaxActivityLimit     = 500
)

// ErrNotFound is returned when an activity entry does not exist.
var ErrNotFound = errors.New("activity not found")

// Store is the local journal of writes made through the dashboard.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("activity journal opened", slog.String("path", dbPath))
	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS activity (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            action TEXT NOT NULL,
            issue_key TEXT NOT NULL,
            project_key TEXT NOT NULL DEFAULT '',
            detail TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_activity_issue ON activity(issue_key);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Record appends an entry and returns it with its id and timestamp.
func (s *Store) Record(ctx context.Context, a models.Activity) (models.Activity, error) {
	action := strings.TrimSpace(a.Action)
	issueKey := strings.TrimSpace(a.IssueKey)
	if action == "" || issueKey == "" {
		return models.Activity{}, fmt.Errorf("activity needs an action and an issue key")
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO activity(action, issue_key, project_key, detail) VALUES(?, ?, ?, ?)`,
		action, issueKey, strings.TrimSpace(a.ProjectKey), strings.TrimSpace(a.Detail))
	if err != nil {
		return models.Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Activity{}, fmt.Errorf("activity id: %w", err)
	}
	s.logger.Debug("activity recorded", slog.Int64("id", id), slog.String("action", action), slog.String("issue", issueKey))
	return s.GetActivity(ctx, id)
}

// GetActivity fetches a single entry by id.
func (s *Store) GetActivity(ctx context.Context, id int64) (models.Activity, error) {
	var a models.Activity
	err := s.db.QueryRowContext(ctx, `SELECT id, action, issue_key, project_key, detail, created_at FROM activity WHERE id = ?`, id).
		Scan(&a.ID, &a.Action, &a.IssueKey, &a.ProjectKey, &a.Detail, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Activity{}, ErrNotFound
	}
	if err != nil {
		return models.Activity{}, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

// ListActivity returns up to limit entries, newest first. An empty issueKey
// lists every issue.
func (s *Store) ListActivity(ctx context.Context, issueKey string, limit int) ([]models.Activity, error) {
	switch {
	case limit < 1:
		limit = DefaultActivityLimit
	case limit > MaxActivityLimit:
		limit = MaxActivityLimit
	}

	query := `SELECT id, action, issue_key, project_key, detail, created_at FROM activity`
	args := []any{}
	if issueKey = strings.TrimSpace(issueKey); issueKey != "" {
		query += ` WHERE issue_key = ?`
		args = append(args, issueKey)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	entries := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.Action, &a.IssueKey, &a.ProjectKey, &a.Detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}
