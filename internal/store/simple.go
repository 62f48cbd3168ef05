package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const simpleSchemaSQLite = `
CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	content     TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	topic_tags  TEXT,
	importance  REAL NOT NULL DEFAULT 0.5,
	created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id, created_at DESC);
`

const simpleSchemaPostgres = `
CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	content     TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	topic_tags  TEXT,
	importance  DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id, created_at DESC);
`

// SimpleStore is the simple-store backend: plain rows in SQLite or
// PostgreSQL with substring search. No decay, no keyword index.
type SimpleStore struct {
	db       *sql.DB
	postgres bool
}

// OpenSimpleSQLite opens the simple store on a sqlite database file.
func OpenSimpleSQLite(path string) (*SimpleStore, error) {
	db, err := openSQLite(path, simpleSchemaSQLite)
	if err != nil {
		return nil, err
	}
	return &SimpleStore{db: db}, nil
}

// OpenSimplePostgres opens the simple store on a PostgreSQL database.
func OpenSimplePostgres(dsn string) (*SimpleStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to ping database: %w", err)
	}
	if _, err := db.Exec(simpleSchemaPostgres); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to apply schema: %w", err)
	}
	return &SimpleStore{db: db, postgres: true}, nil
}

// rebind rewrites ? placeholders to $n for postgres. Queries are written in
// sqlite form and rebound once here instead of maintained twice.
func (s *SimpleStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SimpleStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" || rec.UserID == "" {
		return fmt.Errorf("store: record id and user id are required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	tagsJSON, err := json.Marshal(rec.TopicTags)
	if err != nil {
		return fmt.Errorf("store: failed to marshal topic tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO memories (id, user_id, content, detail, topic_tags, importance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			detail = excluded.detail,
			topic_tags = excluded.topic_tags,
			importance = excluded.importance
	`), rec.ID, rec.UserID, rec.Content, rec.Detail, string(tagsJSON), rec.Importance, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: failed to save record: %w", err)
	}
	return nil
}

func (s *SimpleStore) Get(ctx context.Context, userID, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, user_id, content, detail, topic_tags, importance, created_at
		FROM memories WHERE user_id = ? AND id = ?
	`), userID, id)
	rec, err := scanKeywordRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SimpleStore) Search(ctx context.Context, userID, query string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, user_id, content, detail, topic_tags, importance, created_at
		FROM memories
		WHERE user_id = ? AND (content LIKE ? OR detail LIKE ?)
		ORDER BY importance DESC, created_at DESC
		LIMIT ?
	`), userID, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search query failed: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *SimpleStore) Recent(ctx context.Context, userID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, user_id, content, detail, topic_tags, importance, created_at
		FROM memories WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?
	`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent query failed: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *SimpleStore) Delete(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM memories WHERE user_id = ? AND id = ?`), userID, id)
	if err != nil {
		return fmt.Errorf("store: failed to delete record: %w", err)
	}
	return nil
}

func (s *SimpleStore) Close() error { return s.db.Close() }

var _ Backend = (*SimpleStore)(nil)
