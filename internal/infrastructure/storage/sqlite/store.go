// Package sqlite persists per-page conversations and settings in a local
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
)

var (
	_ output.ConversationStore = (*Store)(nil)
	_ output.SettingsStore     = (*Store)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    url TEXT PRIMARY KEY,
    turns TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// apiKeySetting keeps the name the extension stored the key under.
const apiKeySetting = "geminiApiKey"

type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store dir: %w", err)
		}
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database otherwise
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(ctx context.Context, url string) ([]entity.ConversationTurn, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT turns FROM conversations WHERE url = ?`, url).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	var turns []entity.ConversationTurn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return turns, nil
}

func (s *Store) Save(ctx context.Context, url string, turns []entity.ConversationTurn) error {
	raw, err := json.Marshal(entity.History(turns).Window())
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (url, turns, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET turns = excluded.turns, updated_at = excluded.updated_at`,
		url, string(raw), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, url string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE url = ?`, url); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (s *Store) APIKey(ctx context.Context) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, apiKeySetting).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read api key: %w", err)
	}
	return key, nil
}

func (s *Store) SetAPIKey(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		apiKeySetting, key)
	if err != nil {
		return fmt.Errorf("store api key: %w", err)
	}
	return nil
}
