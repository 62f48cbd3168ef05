package memtree

import (
	"sort"
	"time"

	"github.com/scrypster/keepsake/pkg/types"
)

// ViewNode is a read-only projection of one tree node for display.
type ViewNode struct {
	ID         string      `json:"id"`
	Grain      string      `json:"grain"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	Importance float64     `json:"importance"`
	Strength   float64     `json:"strength"`
	Children   []*ViewNode `json:"children,omitempty"`
}

// ViewOptions controls the tree-view projection.
type ViewOptions struct {
	// Grain is the deepest level rendered (default event).
	Grain types.TimeGrain
	// Year and Month restrict the projection to one branch when non-zero.
	Year  int
	Month int
	// ExpandImportant inlines events above Threshold even below the Grain
	// cutoff.
	ExpandImportant bool
	// Threshold is the effective-importance floor for inlined events.
	Threshold float64
}

var grainDepth = map[types.TimeGrain]int{
	types.GrainYear:  0,
	types.GrainMonth: 1,
	types.GrainWeek:  2,
	types.GrainDay:   3,
	types.GrainEvent: 4,
}

// TreeView projects the hierarchy into nested ViewNodes, years first and
// children in timestamp order at every level. Rendering stops at opts.Grain;
// with ExpandImportant set, events whose effective importance reaches
// opts.Threshold are inlined regardless of the grain cutoff.
func (t *Tree) TreeView(opts ViewOptions) []*ViewNode {
	if opts.Grain == "" {
		opts.Grain = types.GrainEvent
	}
	maxDepth := grainDepth[opts.Grain]

	yearIDs := t.sortedByTimestamp(t.rootChildren)
	views := make([]*ViewNode, 0, len(yearIDs))
	for _, id := range yearIDs {
		node := t.nodes[id]
		if node == nil {
			continue
		}
		if opts.Year != 0 && node.Timestamp.Year() != opts.Year {
			continue
		}
		if v := t.viewOf(id, 0, maxDepth, opts); v != nil {
			views = append(views, v)
		}
	}
	return views
}

func (t *Tree) viewOf(id string, depth, maxDepth int, opts ViewOptions) *ViewNode {
	node, ok := t.nodes[id]
	if !ok {
		return nil
	}
	if node.Grain == types.GrainMonth && opts.Month != 0 &&
		int(node.Timestamp.Month()) != opts.Month {
		return nil
	}
	if node.IsEvent() && opts.Threshold > 0 && node.EffectiveImportance() < opts.Threshold {
		return nil
	}

	view := &ViewNode{
		ID:         node.ID,
		Grain:      string(node.Grain),
		Content:    node.Content,
		Timestamp:  node.Timestamp,
		Importance: node.EffectiveImportance(),
		Strength:   node.CurrentStrength,
	}

	for _, cid := range t.sortedByTimestamp(node.ChildrenIDs) {
		child, ok := t.nodes[cid]
		if !ok {
			continue
		}
		if depth+1 > maxDepth {
			// Below the grain cutoff only important events are inlined.
			if !opts.ExpandImportant || !child.IsEvent() ||
				child.EffectiveImportance() < opts.Threshold {
				continue
			}
		}
		if cv := t.viewOf(cid, depth+1, maxDepth, opts); cv != nil {
			view.Children = append(view.Children, cv)
		}
	}
	return view
}

func (t *Tree) sortedByTimestamp(ids []string) []string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := t.nodes[sorted[i]], t.nodes[sorted[j]]
		if a == nil || b == nil {
			return false
		}
		return a.Timestamp.Before(b.Timestamp)
	})
	return sorted
}

// Stats summarizes the tree for diagnostics.
type Stats struct {
	TotalNodes   int     `json:"total_nodes"`
	EventCount   int     `json:"event_count"`
	Consolidated int     `json:"consolidated"`
	AvgStrength  float64 `json:"avg_strength"`
	Years        int     `json:"years"`
	Days         int     `json:"days"`
}

// ComputeStats walks the arena once.
func (t *Tree) ComputeStats() Stats {
	s := Stats{
		TotalNodes: len(t.nodes),
		Years:      len(t.yearIndex),
		Days:       len(t.dayIndex),
	}
	var strengthSum float64
	for _, node := range t.nodes {
		if !node.IsEvent() {
			continue
		}
		s.EventCount++
		strengthSum += node.CurrentStrength
		if node.Consolidated {
			s.Consolidated++
		}
	}
	if s.EventCount > 0 {
		s.AvgStrength = strengthSum / float64(s.EventCount)
	}
	return s
}
