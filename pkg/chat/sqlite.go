package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// SQLiteStore persists chats in an embedded SQLite database. Concurrency
// is handled by the driver's connection-level serialization.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	chat_id      TEXT PRIMARY KEY,
	messages     TEXT NOT NULL,
	usage        TEXT NOT NULL,
	project_root TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
`

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Str("path", path).Msg("Chat store opened")
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the chat for an ID, or ErrNotFound
func (s *SQLiteStore) Get(ctx context.Context, chatID string) (*Chat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT chat_id, messages, usage, project_root, created_at, updated_at FROM chats WHERE chat_id = ?`,
		chatID)

	var chat Chat
	var messagesJSON, usageJSON string
	err := row.Scan(&chat.ID, &messagesJSON, &usageJSON, &chat.ProjectRoot, &chat.CreatedAt, &chat.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}

	if err := json.Unmarshal([]byte(messagesJSON), &chat.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	if err := json.Unmarshal([]byte(usageJSON), &chat.Usage); err != nil {
		return nil, fmt.Errorf("failed to decode usage: %w", err)
	}

	return &chat, nil
}

// Save inserts or replaces a chat record
func (s *SQLiteStore) Save(ctx context.Context, chat *Chat) error {
	messagesJSON, err := json.Marshal(chat.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	usageJSON, err := json.Marshal(chat.Usage)
	if err != nil {
		return fmt.Errorf("failed to encode usage: %w", err)
	}

	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now()
	}
	if chat.UpdatedAt.IsZero() {
		chat.UpdatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chats (chat_id, messages, usage, project_root, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		chat.ID, string(messagesJSON), string(usageJSON), chat.ProjectRoot, chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

// Update applies a mutation to a stored chat
func (s *SQLiteStore) Update(ctx context.Context, chatID string, mutate func(*Chat) error) error {
	chat, err := s.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if err := mutate(chat); err != nil {
		return err
	}
	chat.UpdatedAt = time.Now()
	return s.Save(ctx, chat)
}

// Clear removes one chat record
func (s *SQLiteStore) Clear(ctx context.Context, chatID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("failed to clear chat: %w", err)
	}
	return nil
}

// List enumerates stored chats
func (s *SQLiteStore) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id, updated_at FROM chats ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.ID, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Compile-time interface checks
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
