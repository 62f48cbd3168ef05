package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/scrypster/keepsake/internal/relevance"
)

// keywordSchema stores one row per record plus the pre-extracted keyword set,
// so search only has to score candidates instead of re-tokenising content.
const keywordSchema = `
CREATE TABLE IF NOT EXISTS keyword_memories (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	content     TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	topic_tags  TEXT,
	keywords    TEXT,
	importance  REAL NOT NULL DEFAULT 0.5,
	created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_keyword_memories_user ON keyword_memories(user_id, created_at DESC);
`

// KeywordStore is the keyword-vector backend: records live in SQLite with a
// keyword set extracted at write time, and search ranks candidates by
// keyword-set similarity blended with importance.
type KeywordStore struct {
	db *sql.DB
}

// OpenKeywordStore opens (and if needed creates) the sqlite database at path.
func OpenKeywordStore(path string) (*KeywordStore, error) {
	db, err := openSQLite(path, keywordSchema)
	if err != nil {
		return nil, err
	}
	return &KeywordStore{db: db}, nil
}

func (s *KeywordStore) Save(ctx context.Context, rec *Record) error {
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
	keywords := keywordList(relevance.Keywords(rec.Content + " " + rec.Detail))
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("store: failed to marshal keywords: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO keyword_memories (id, user_id, content, detail, topic_tags, keywords, importance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			detail = excluded.detail,
			topic_tags = excluded.topic_tags,
			keywords = excluded.keywords,
			importance = excluded.importance
	`, rec.ID, rec.UserID, rec.Content, rec.Detail, string(tagsJSON), string(keywordsJSON), rec.Importance, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: failed to save record: %w", err)
	}
	return nil
}

func (s *KeywordStore) Get(ctx context.Context, userID, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, content, detail, topic_tags, importance, created_at
		FROM keyword_memories WHERE user_id = ? AND id = ?
	`, userID, id)
	rec, err := scanKeywordRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

// Search scores every record of the user against the query keyword set and
// returns the best matches. Records with no keyword overlap are dropped.
func (s *KeywordStore) Search(ctx context.Context, userID, query string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 10
	}
	queryKeywords := relevance.Keywords(query)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, detail, topic_tags, keywords, importance, created_at
		FROM keyword_memories WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: search query failed: %w", err)
	}
	defer rows.Close()

	type scored struct {
		rec   *Record
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var (
			rec          Record
			tagsJSON     sql.NullString
			keywordsJSON sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Content, &rec.Detail, &tagsJSON, &keywordsJSON, &rec.Importance, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: failed to scan record: %w", err)
		}
		rec.TopicTags = decodeStringSlice(tagsJSON)
		sim := relevance.Jaccard(queryKeywords, keywordSet(decodeStringSlice(keywordsJSON)))
		if sim <= 0 {
			continue
		}
		candidates = append(candidates, scored{rec: &rec, score: 0.7*sim + 0.3*rec.Importance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: search scan failed: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]*Record, len(candidates))
	for i, c := range candidates {
		out[i] = c.rec
	}
	return out, nil
}

func (s *KeywordStore) Recent(ctx context.Context, userID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, detail, topic_tags, importance, created_at
		FROM keyword_memories WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent query failed: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *KeywordStore) Delete(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM keyword_memories WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("store: failed to delete record: %w", err)
	}
	return nil
}

func (s *KeywordStore) Close() error { return s.db.Close() }

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanKeywordRecord(row rowScanner) (*Record, error) {
	var (
		rec      Record
		tagsJSON sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Content, &rec.Detail, &tagsJSON, &rec.Importance, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.TopicTags = decodeStringSlice(tagsJSON)
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		rec, err := scanKeywordRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: failed to scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: row iteration failed: %w", err)
	}
	return out, nil
}

func keywordList(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func keywordSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, k := range list {
		set[k] = struct{}{}
	}
	return set
}

func decodeStringSlice(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil
	}
	return out
}

var _ Backend = (*KeywordStore)(nil)
