// Package store provides the persistence backends for memory records. The
// backend set is closed: temporal-tree (the in-process memory engine),
// keyword-vector (sqlite keyword index) and simple-store (plain SQL rows on
// sqlite or postgres). Selection happens once at construction from
// configuration, never by runtime registry lookup.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/keepsake/internal/config"
)

// ErrNotFound is returned for absent record ids.
var ErrNotFound = errors.New("store: record not found")

// Record is the backend-neutral persisted form of one memory.
type Record struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	Detail     string    `json:"detail,omitempty"`
	TopicTags  []string  `json:"topic_tags,omitempty"`
	Importance float64   `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// Backend stores and retrieves memory records for all users.
type Backend interface {
	// Save upserts a record.
	Save(ctx context.Context, rec *Record) error
	// Get returns one record or ErrNotFound.
	Get(ctx context.Context, userID, id string) (*Record, error)
	// Search returns up to limit records matching the query, most relevant
	// first.
	Search(ctx context.Context, userID, query string, limit int) ([]*Record, error)
	// Recent returns up to limit records newest first.
	Recent(ctx context.Context, userID string, limit int) ([]*Record, error)
	// Delete removes a record; absent ids are not an error.
	Delete(ctx context.Context, userID, id string) error
	// Close releases underlying resources.
	Close() error
}

// Open constructs the backend selected by cfg.
func Open(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendKeywordVector:
		return OpenKeywordStore(cfg.SQLitePath)
	case config.BackendSimpleStore:
		if cfg.Engine == config.EnginePostgres {
			return OpenSimplePostgres(cfg.PostgresDSN)
		}
		return OpenSimpleSQLite(cfg.SQLitePath)
	case config.BackendTemporalTree:
		// The temporal-tree backend is constructed by the caller around its
		// memory managers; it has no standalone database form.
		return nil, fmt.Errorf("store: temporal-tree backend is built from a memory manager, not opened from storage config")
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
