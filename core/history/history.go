package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultWindow is how many decisions are retained.
const DefaultWindow = 200

const decisionHistorySchema = `
CREATE TABLE IF NOT EXISTS decision_history (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id            TEXT NOT NULL UNIQUE,
    generated_at      TEXT NOT NULL,
    overall_passed    INTEGER NOT NULL,
    failed_categories TEXT NOT NULL DEFAULT '',
    policy_digest     TEXT NOT NULL,
    report_digest     TEXT NOT NULL
);
`

type Entry struct {
	RunID            string    `json:"run_id"`
	GeneratedAt      time.Time `json:"generated_at"`
	OverallPassed    bool      `json:"overall_passed"`
	FailedCategories []string  `json:"failed_categories"`
	PolicyDigest     string    `json:"policy_digest"`
	ReportDigest     string    `json:"report_digest"`
}

// Store keeps a rolling window of gate decisions in SQLite.
type Store struct {
	db     *sql.DB
	window int
}

// Open opens (creating if needed) a SQLite history database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create history dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)
	store, err := NewStore(db, DefaultWindow)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore initializes the decision_history table on db. window <= 0 means DefaultWindow.
func NewStore(db *sql.DB, window int) (*Store, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	if _, err := db.Exec(decisionHistorySchema); err != nil {
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db, window: window}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends entry and prunes rows beyond the window. An empty RunID is
// assigned a fresh UUID; the stored entry is returned.
func (s *Store) Record(ctx context.Context, entry Entry) (Entry, error) {
	if entry.RunID == "" {
		entry.RunID = uuid.NewString()
	}
	if entry.FailedCategories == nil {
		entry.FailedCategories = []string{}
	}
	entry.GeneratedAt = entry.GeneratedAt.UTC()
	passed := 0
	if entry.OverallPassed {
		passed = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("begin history tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO decision_history
		(run_id, generated_at, overall_passed, failed_categories, policy_digest, report_digest)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.GeneratedAt.Format(time.RFC3339Nano),
		passed,
		strings.Join(entry.FailedCategories, ","),
		entry.PolicyDigest,
		entry.ReportDigest,
	); err != nil {
		return Entry{}, fmt.Errorf("insert history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM decision_history
		WHERE id NOT IN (SELECT id FROM decision_history ORDER BY id DESC LIMIT ?)`,
		s.window,
	); err != nil {
		return Entry{}, fmt.Errorf("prune history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("commit history: %w", err)
	}
	return entry, nil
}

// List returns up to limit entries, newest first. limit <= 0 returns the whole window.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.window {
		limit = s.window
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, generated_at, overall_passed, failed_categories, policy_digest, report_digest
		FROM decision_history
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			entry       Entry
			generatedAt string
			passed      int
			failed      string
		)
		if err := rows.Scan(&entry.RunID, &generatedAt, &passed, &failed, &entry.PolicyDigest, &entry.ReportDigest); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entry.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse history timestamp: %w", err)
		}
		entry.OverallPassed = passed == 1
		entry.FailedCategories = []string{}
		if failed != "" {
			entry.FailedCategories = strings.Split(failed, ",")
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
