package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scrypster/keepsake/internal/memtree"
)

// snapshot filenames under <DataPath>/<userID>/.
const (
	treeSnapshotFile  = "tree.json"
	graphSnapshotFile = "graph.json"
)

func (m *Manager) snapshotDir() string {
	return filepath.Join(m.opts.DataPath, m.userID)
}

// Save serializes the tree and graph to their two independent JSON documents,
// overwriting whole files. A manager without a data path is a no-op.
func (m *Manager) Save() error {
	if m.opts.DataPath == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dir := m.snapshotDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	treeData, err := json.Marshal(m.tree)
	if err != nil {
		return fmt.Errorf("marshal memory tree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, treeSnapshotFile), treeData, 0o644); err != nil {
		return fmt.Errorf("write memory tree: %w", err)
	}

	graphData, err := json.Marshal(m.graph)
	if err != nil {
		return fmt.Errorf("marshal knowledge graph: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, graphSnapshotFile), graphData, 0o644); err != nil {
		return fmt.Errorf("write knowledge graph: %w", err)
	}
	return nil
}

// load restores both snapshots if they exist. Missing files start empty;
// invalid documents are fatal.
func (m *Manager) load() error {
	dir := m.snapshotDir()

	treeData, err := os.ReadFile(filepath.Join(dir, treeSnapshotFile))
	switch {
	case err == nil:
		if err := json.Unmarshal(treeData, m.tree); err != nil {
			return err
		}
	case os.IsNotExist(err):
	default:
		return err
	}

	graphData, err := os.ReadFile(filepath.Join(dir, graphSnapshotFile))
	switch {
	case err == nil:
		if err := json.Unmarshal(graphData, m.graph); err != nil {
			return err
		}
	case os.IsNotExist(err):
	default:
		return err
	}
	return nil
}

// Export is a combined snapshot document for data migration.
type Export struct {
	Version    int             `json:"version"`
	UserID     string          `json:"user_id"`
	ExportedAt time.Time       `json:"exported_at"`
	Tree       json.RawMessage `json:"tree"`
	Graph      json.RawMessage `json:"graph"`
	Stats      Stats           `json:"stats"`
	Summary    string          `json:"migration_summary"`
}

const exportVersion = 1

// ExportSnapshot bundles both documents plus stats into one export payload.
// When includeRaw is false, raw conversation excerpts are stripped from the
// tree document so the export can leave the machine.
func (m *Manager) ExportSnapshot(now time.Time, includeRaw bool) (*Export, error) {
	stats := m.Stats()

	m.mu.Lock()
	defer m.mu.Unlock()

	treeData, err := json.Marshal(m.tree)
	if err != nil {
		return nil, fmt.Errorf("marshal memory tree: %w", err)
	}
	if !includeRaw {
		treeData, err = stripRawText(treeData)
		if err != nil {
			return nil, err
		}
	}
	graphData, err := json.Marshal(m.graph)
	if err != nil {
		return nil, fmt.Errorf("marshal knowledge graph: %w", err)
	}
	exp := &Export{
		Version:    exportVersion,
		UserID:     m.userID,
		ExportedAt: now,
		Tree:       treeData,
		Graph:      graphData,
		Stats:      stats,
	}
	exp.Summary = migrationSummary(exp)
	return exp, nil
}

// stripRawText decodes the tree document into a scratch tree, clears each
// event's raw conversation excerpt, and re-encodes.
func stripRawText(treeData []byte) ([]byte, error) {
	scratch := memtree.New()
	if err := json.Unmarshal(treeData, scratch); err != nil {
		return nil, fmt.Errorf("decode tree for export: %w", err)
	}
	for _, e := range scratch.AllEvents() {
		e.Raw = ""
	}
	out, err := json.Marshal(scratch)
	if err != nil {
		return nil, fmt.Errorf("re-encode stripped tree: %w", err)
	}
	return out, nil
}

// migrationSummary renders a short human-readable account of what the export
// contains.
func migrationSummary(exp *Export) string {
	s := exp.Stats
	return fmt.Sprintf(
		"记忆快照 v%d（用户 %s）：%d 条事件，覆盖 %d 年 %d 天；实体 %d 个，关系 %d 条；核心记忆 %d 条，已巩固 %d 条，平均重要性 %.2f。",
		exp.Version, exp.UserID,
		s.Tree.EventCount, s.Tree.Years, s.Tree.Days,
		s.Entities, s.Relationships,
		s.CoreMemories, s.Tree.Consolidated, s.AvgImportance,
	)
}
