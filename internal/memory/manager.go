// Package memory composes the temporal tree, knowledge graph, forgetting
// curve, consolidator and relevance selector into the per-user memory engine.
package memory

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/scrypster/keepsake/internal/consolidation"
	"github.com/scrypster/keepsake/internal/forgetting"
	"github.com/scrypster/keepsake/internal/graph"
	"github.com/scrypster/keepsake/internal/memtree"
	"github.com/scrypster/keepsake/internal/relevance"
	"github.com/scrypster/keepsake/pkg/types"
)

// Options tunes a manager instance.
type Options struct {
	// CoreImportanceThreshold partitions core memories (default 0.8).
	CoreImportanceThreshold float64
	// RelevanceLimit bounds the ranked context pool (default 30).
	RelevanceLimit int
	// Scorer overrides the relevance scoring strategy; nil uses keyword
	// matching.
	Scorer relevance.Scorer
	// Consolidation tunes the maintenance batch; zero fields use defaults.
	Consolidation consolidation.Config
	// DataPath is the directory for JSON snapshots; empty disables
	// persistence.
	DataPath string
}

// Manager owns one user's memory state. All mutating operations are
// serialized by an internal mutex; read-modify-write sequences such as
// reinforcement during search are atomic with respect to each other.
type Manager struct {
	userID string
	opts   Options

	mu           sync.Mutex
	tree         *memtree.Tree
	graph        *graph.Graph
	curve        *forgetting.Curve
	consolidator *consolidation.Consolidator
	selector     *relevance.Selector
}

// NewManager constructs a manager for userID, reloading persisted snapshots
// from opts.DataPath when present. Missing snapshot files start empty;
// structurally invalid ones are an error.
func NewManager(userID string, opts Options) (*Manager, error) {
	if opts.CoreImportanceThreshold <= 0 {
		opts.CoreImportanceThreshold = relevance.DefaultCoreThreshold
	}
	if opts.RelevanceLimit <= 0 {
		opts.RelevanceLimit = relevance.DefaultLimit
	}

	curve := forgetting.NewCurve(forgetting.Config{})
	m := &Manager{
		userID:       userID,
		opts:         opts,
		tree:         memtree.New(),
		graph:        graph.New(),
		curve:        curve,
		consolidator: consolidation.New(opts.Consolidation, curve),
		selector:     relevance.NewSelector(opts.Scorer, opts.RelevanceLimit, opts.CoreImportanceThreshold),
	}

	if opts.DataPath != "" {
		if err := m.load(); err != nil {
			return nil, fmt.Errorf("load memory snapshots for %s: %w", userID, err)
		}
	}
	return m, nil
}

// UserID returns the owning user id.
func (m *Manager) UserID() string {
	return m.userID
}

// EntityRef names an entity mentioned by a memory.
type EntityRef struct {
	Name string `json:"name"`
	Type string `json:"entity_type,omitempty"`
}

// RelationRef describes a relationship asserted by a memory. Source defaults
// to the user when empty.
type RelationRef struct {
	Source      string `json:"source,omitempty"`
	Target      string `json:"target"`
	Type        string `json:"relation_type"`
	Description string `json:"description,omitempty"`
}

// AddMemoryInput is the material for one new memory event.
type AddMemoryInput struct {
	Content     string        `json:"content"`
	Detail      string        `json:"detail,omitempty"`
	Raw         string        `json:"raw,omitempty"`
	Timestamp   time.Time     `json:"timestamp,omitempty"`
	Type        string        `json:"memory_type,omitempty"`
	Importance  float64       `json:"importance,omitempty"`
	EmotionTags []string      `json:"emotion_tags,omitempty"`
	TopicTags   []string      `json:"topic_tags,omitempty"`
	Entities    []EntityRef   `json:"entities,omitempty"`
	Relations   []RelationRef `json:"relations,omitempty"`
}

// AddMemory inserts a memory event, registers its entities in the knowledge
// graph (person entities without an explicit relation get a related_to edge
// from the user) and records asserted relationships with the memory as
// evidence. Returns the stored node.
func (m *Manager) AddMemory(in AddMemoryInput) *types.MemoryNode {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	node := types.NewMemoryNode(in.Content, ts)
	node.Detail = in.Detail
	node.Raw = in.Raw
	node.EmotionTags = in.EmotionTags
	node.TopicTags = in.TopicTags
	if in.Importance > 0 {
		node.BaseImportance = in.Importance
	}
	if in.Type != "" {
		node.Type = types.MemoryType(in.Type)
	}

	m.tree.Add(node)

	// Entity refs register first so an explicitly typed entity is not
	// pre-created by a relation endpoint with the default type.
	related := map[string]bool{}
	for _, rel := range in.Relations {
		related[rel.Target] = true
	}

	for _, ref := range in.Entities {
		entity := m.graph.GetOrCreateEntity(ref.Name, types.ParseEntityType(ref.Type))
		m.graph.RecordMention(entity.ID, node.ID, ts)
		node.LinkedEntities = append(node.LinkedEntities, entity.ID)

		if entity.Type == types.EntityPerson && !related[ref.Name] {
			m.graph.CreateRelationshipBetween("用户", ref.Name,
				types.RelationRelatedTo, "", node.ID)
		}
	}

	for _, rel := range in.Relations {
		source := rel.Source
		if source == "" {
			source = "用户"
		}
		m.graph.CreateRelationshipBetween(source, rel.Target,
			types.ParseRelationType(rel.Type), rel.Description, node.ID)
	}

	return node
}

// Get returns a memory by id, nil when absent.
func (m *Manager) Get(id string) *types.MemoryNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.Get(id)
}

// Delete removes an event memory. Entities and relationships keep their
// evidence references; absent ids return false.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.Delete(id)
}

// Reinforce strengthens a memory on access. Returns false for unknown ids.
func (m *Manager) Reinforce(id string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	node := m.tree.Get(id)
	if node == nil || !node.IsEvent() {
		return false
	}
	m.curve.Reinforce(node, now)
	return true
}

// Consolidate runs the maintenance batch if due (or forced) and returns its
// report, nil when skipped.
func (m *Manager) Consolidate(now time.Time, force bool) *consolidation.Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := m.consolidator.Run(m.tree, now, force)
	if report != nil {
		log.Printf("memory: consolidation for %s scanned=%d consolidated=%d pruned=%d",
			m.userID, report.EventsScanned, report.EventsConsolidated, report.DetailsPruned)
	}
	return report
}

// Graph exposes read access to the knowledge graph. Callers must not retain
// the pointer across requests.
func (m *Manager) Graph() *graph.Graph {
	return m.graph
}

// Tree exposes read access to the temporal tree.
func (m *Manager) Tree() *memtree.Tree {
	return m.tree
}

// UpdateUserProfile merges a profile update.
func (m *Manager) UpdateUserProfile(upd types.ProfileUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph.UpdateUserProfile(upd)
}

// ImportanceDist buckets events by effective importance.
type ImportanceDist struct {
	High   int `json:"high"`   // >= 0.7
	Medium int `json:"medium"` // >= 0.4
	Low    int `json:"low"`
}

// Stats summarizes the engine state.
type Stats struct {
	UserID        string         `json:"user_id"`
	Tree          memtree.Stats  `json:"tree"`
	Entities      int            `json:"entities"`
	Relationships int            `json:"relationships"`
	CoreMemories  int            `json:"core_memories"`
	AvgImportance float64        `json:"avg_importance"`
	Importance    ImportanceDist `json:"importance_distribution"`
	LastConsolid  time.Time      `json:"last_consolidation,omitempty"`
}

// Stats computes a point-in-time summary.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	core := 0
	sum := 0.0
	var dist ImportanceDist
	events := m.tree.AllEvents()
	for _, e := range events {
		imp := e.EffectiveImportance()
		sum += imp
		switch {
		case imp >= 0.7:
			dist.High++
		case imp >= 0.4:
			dist.Medium++
		default:
			dist.Low++
		}
		if imp >= m.opts.CoreImportanceThreshold {
			core++
		}
	}
	avg := 0.0
	if len(events) > 0 {
		avg = sum / float64(len(events))
	}
	return Stats{
		UserID:        m.userID,
		Tree:          m.tree.ComputeStats(),
		Entities:      m.graph.EntityCount(),
		Relationships: m.graph.RelationshipCount(),
		CoreMemories:  core,
		AvgImportance: avg,
		Importance:    dist,
		LastConsolid:  m.consolidator.LastRun(),
	}
}
