package memtree

import (
	"encoding/json"
	"fmt"

	"github.com/scrypster/keepsake/pkg/types"
)

// snapshot is the persisted form of a tree. Indices are stored explicitly so
// a load never has to re-derive calendar keys from node timestamps.
type snapshot struct {
	Nodes        map[string]*types.MemoryNode `json:"nodes"`
	YearIndex    map[string]string            `json:"year_index"`
	MonthIndex   map[string]string            `json:"month_index"`
	WeekIndex    map[string]string            `json:"week_index"`
	DayIndex     map[string]string            `json:"day_index"`
	RootChildren []string                     `json:"root_children"`
}

// MarshalJSON serializes the full tree state.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot{
		Nodes:        t.nodes,
		YearIndex:    t.yearIndex,
		MonthIndex:   t.monthIndex,
		WeekIndex:    t.weekIndex,
		DayIndex:     t.dayIndex,
		RootChildren: t.rootChildren,
	})
}

// UnmarshalJSON restores a tree previously produced by MarshalJSON,
// replacing any existing state.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode memory tree snapshot: %w", err)
	}

	t.nodes = snap.Nodes
	t.yearIndex = snap.YearIndex
	t.monthIndex = snap.MonthIndex
	t.weekIndex = snap.WeekIndex
	t.dayIndex = snap.DayIndex
	t.rootChildren = snap.RootChildren

	if t.nodes == nil {
		t.nodes = map[string]*types.MemoryNode{}
	}
	if t.yearIndex == nil {
		t.yearIndex = map[string]string{}
	}
	if t.monthIndex == nil {
		t.monthIndex = map[string]string{}
	}
	if t.weekIndex == nil {
		t.weekIndex = map[string]string{}
	}
	if t.dayIndex == nil {
		t.dayIndex = map[string]string{}
	}
	return nil
}
