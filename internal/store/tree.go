package store

import (
	"context"
	"sync"

	"github.com/scrypster/keepsake/internal/memory"
	"github.com/scrypster/keepsake/pkg/types"
)

// Managers caches one memory manager per user, constructing lazily with a
// shared option set.
type Managers struct {
	opts memory.Options

	mu     sync.Mutex
	byUser map[string]*memory.Manager
}

// NewManagers creates an empty manager cache.
func NewManagers(opts memory.Options) *Managers {
	return &Managers{opts: opts, byUser: make(map[string]*memory.Manager)}
}

// Manager returns the cached manager for userID, constructing it on first use.
func (r *Managers) Manager(userID string) (*memory.Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.byUser[userID]; ok {
		return m, nil
	}
	m, err := memory.NewManager(userID, r.opts)
	if err != nil {
		return nil, err
	}
	r.byUser[userID] = m
	return m, nil
}

// SaveAll flushes every cached manager's snapshots. The first error is
// returned; remaining managers are still flushed.
func (r *Managers) SaveAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for _, m := range r.byUser {
		if err := m.Save(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// TreeBackend exposes the temporal-tree memory engine through the Backend
// interface, so callers that only need record-level access do not have to
// know about trees and graphs.
type TreeBackend struct {
	managers *Managers
}

// NewTreeBackend wraps a manager cache.
func NewTreeBackend(managers *Managers) *TreeBackend {
	return &TreeBackend{managers: managers}
}

// Managers returns the underlying per-user manager cache.
func (b *TreeBackend) Managers() *Managers {
	return b.managers
}

func (b *TreeBackend) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.UserID == "" {
		return ErrNotFound
	}
	m, err := b.managers.Manager(rec.UserID)
	if err != nil {
		return err
	}
	if rec.ID != "" {
		if node := m.Get(rec.ID); node != nil {
			node.Content = rec.Content
			node.Detail = rec.Detail
			node.TopicTags = rec.TopicTags
			if rec.Importance > 0 {
				node.BaseImportance = rec.Importance
			}
			return nil
		}
	}
	node := m.AddMemory(memory.AddMemoryInput{
		Content:    rec.Content,
		Detail:     rec.Detail,
		Timestamp:  rec.CreatedAt,
		Importance: rec.Importance,
		TopicTags:  rec.TopicTags,
	})
	rec.ID = node.ID
	return nil
}

func (b *TreeBackend) Get(ctx context.Context, userID, id string) (*Record, error) {
	m, err := b.managers.Manager(userID)
	if err != nil {
		return nil, err
	}
	node := m.Get(id)
	if node == nil {
		return nil, ErrNotFound
	}
	return nodeRecord(userID, node), nil
}

func (b *TreeBackend) Search(ctx context.Context, userID, query string, limit int) ([]*Record, error) {
	m, err := b.managers.Manager(userID)
	if err != nil {
		return nil, err
	}
	nodes := m.SearchMemories(memory.SearchQuery{Keyword: query, Limit: limit})
	return nodeRecords(userID, nodes), nil
}

func (b *TreeBackend) Recent(ctx context.Context, userID string, limit int) ([]*Record, error) {
	m, err := b.managers.Manager(userID)
	if err != nil {
		return nil, err
	}
	nodes := m.SearchMemories(memory.SearchQuery{Limit: limit})
	return nodeRecords(userID, nodes), nil
}

func (b *TreeBackend) Delete(ctx context.Context, userID, id string) error {
	m, err := b.managers.Manager(userID)
	if err != nil {
		return err
	}
	m.Delete(id)
	return nil
}

func (b *TreeBackend) Close() error {
	return b.managers.SaveAll()
}

func nodeRecord(userID string, node *types.MemoryNode) *Record {
	return &Record{
		ID:         node.ID,
		UserID:     userID,
		Content:    node.Content,
		Detail:     node.Detail,
		TopicTags:  node.TopicTags,
		Importance: node.BaseImportance,
		CreatedAt:  node.Timestamp,
	}
}

func nodeRecords(userID string, nodes []*types.MemoryNode) []*Record {
	out := make([]*Record, len(nodes))
	for i, n := range nodes {
		out[i] = nodeRecord(userID, n)
	}
	return out
}

var _ Backend = (*TreeBackend)(nil)
