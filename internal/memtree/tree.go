// Package memtree implements the temporal memory tree: discrete memory
// events indexed by calendar time under a lazily-built
// year → month → week → day hierarchy.
//
// The tree is an arena of nodes keyed by opaque ids; parent/child links are
// id references, never pointers, so the structure serializes cleanly and has
// no ownership cycles.
package memtree

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/scrypster/keepsake/pkg/types"
)

// daySummaryTopEvents is how many top events a day rollup summarizes.
const daySummaryTopEvents = 3

// daySummarySeparator joins rollup fragments (full-width semicolon).
const daySummarySeparator = "；"

// Tree is the temporal memory tree for one user. Not safe for concurrent
// writers; the owning manager serializes access.
type Tree struct {
	nodes map[string]*types.MemoryNode

	// Time indices: calendar key -> node id.
	yearIndex  map[string]string // "2024"
	monthIndex map[string]string // "2024-01"
	weekIndex  map[string]string // "2024-W01" (ISO week number)
	dayIndex   map[string]string // "2024-01-01"

	// rootChildren lists year node ids under the virtual root.
	rootChildren []string
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{
		nodes:      map[string]*types.MemoryNode{},
		yearIndex:  map[string]string{},
		monthIndex: map[string]string{},
		weekIndex:  map[string]string{},
		dayIndex:   map[string]string{},
	}
}

// timeKeys returns the calendar keys for each hierarchy level of ts.
func timeKeys(ts time.Time) (year, month, week, day string) {
	year = ts.Format("2006")
	month = ts.Format("2006-01")
	_, isoWeek := ts.ISOWeek()
	week = fmt.Sprintf("%d-W%02d", ts.Year(), isoWeek)
	day = ts.Format("2006-01-02")
	return
}

// ensureHierarchy creates any missing year/month/week/day ancestors for ts
// and returns the day node id. Aggregate nodes are keyed by calendar fields,
// so two events on the same day share one ancestor chain.
func (t *Tree) ensureHierarchy(ts time.Time) string {
	yearKey, monthKey, weekKey, dayKey := timeKeys(ts)

	yearID, ok := t.yearIndex[yearKey]
	if !ok {
		node := aggregateNode(types.GrainYear, time.Date(ts.Year(), 1, 1, 0, 0, 0, 0, ts.Location()),
			fmt.Sprintf("%d年的记忆", ts.Year()))
		t.nodes[node.ID] = node
		t.yearIndex[yearKey] = node.ID
		t.rootChildren = append(t.rootChildren, node.ID)
		yearID = node.ID
	}

	monthID, ok := t.monthIndex[monthKey]
	if !ok {
		node := aggregateNode(types.GrainMonth, time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, ts.Location()),
			fmt.Sprintf("%d年%d月的记忆", ts.Year(), int(ts.Month())))
		node.ParentID = yearID
		t.nodes[node.ID] = node
		t.monthIndex[monthKey] = node.ID
		t.appendChild(yearID, node.ID)
		monthID = node.ID
	}

	weekID, ok := t.weekIndex[weekKey]
	if !ok {
		_, isoWeek := ts.ISOWeek()
		node := aggregateNode(types.GrainWeek, weekStart(ts),
			fmt.Sprintf("%d年第%d周的记忆", ts.Year(), isoWeek))
		node.ParentID = monthID
		t.nodes[node.ID] = node
		t.weekIndex[weekKey] = node.ID
		t.appendChild(monthID, node.ID)
		weekID = node.ID
	}

	dayID, ok := t.dayIndex[dayKey]
	if !ok {
		node := aggregateNode(types.GrainDay, time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location()),
			fmt.Sprintf("%d月%d日的记忆", int(ts.Month()), ts.Day()))
		node.ParentID = weekID
		t.nodes[node.ID] = node
		t.dayIndex[dayKey] = node.ID
		t.appendChild(weekID, node.ID)
		dayID = node.ID
	}

	return dayID
}

func aggregateNode(grain types.TimeGrain, ts time.Time, content string) *types.MemoryNode {
	node := types.NewMemoryNode(content, ts)
	node.Grain = grain
	node.BaseImportance = 0.5
	return node
}

// weekStart returns the Monday 00:00 of the week containing ts.
func weekStart(ts time.Time) time.Time {
	weekday := int(ts.Weekday())
	if weekday == 0 { // Sunday
		weekday = 7
	}
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	return day.AddDate(0, 0, -(weekday - 1))
}

func (t *Tree) appendChild(parentID, childID string) {
	if parent, ok := t.nodes[parentID]; ok {
		parent.ChildrenIDs = append(parent.ChildrenIDs, childID)
	}
}

// Add inserts an event-grain memory, creating any missing calendar ancestors
// and refreshing the owning day node's rollup. Returns the memory id.
func (t *Tree) Add(memory *types.MemoryNode) string {
	dayID := t.ensureHierarchy(memory.Timestamp)

	memory.Grain = types.GrainEvent
	memory.ParentID = dayID

	t.nodes[memory.ID] = memory
	t.appendChild(dayID, memory.ID)
	t.updateDaySummary(dayID)

	return memory.ID
}

// updateDaySummary recomputes a day node's rollup from its children: the
// top-3 events by effective importance joined into a summary string, base
// importance the max over all children.
func (t *Tree) updateDaySummary(dayID string) {
	day, ok := t.nodes[dayID]
	if !ok {
		return
	}

	events := make([]*types.MemoryNode, 0, len(day.ChildrenIDs))
	for _, id := range day.ChildrenIDs {
		if child, ok := t.nodes[id]; ok {
			events = append(events, child)
		}
	}
	if len(events) == 0 {
		return
	}

	ranked := make([]*types.MemoryNode, len(events))
	copy(ranked, events)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EffectiveImportance() > ranked[j].EffectiveImportance()
	})
	if len(ranked) > daySummaryTopEvents {
		ranked = ranked[:daySummaryTopEvents]
	}

	parts := make([]string, len(ranked))
	for i, e := range ranked {
		parts[i] = e.Content
	}
	day.Content = strings.Join(parts, daySummarySeparator)

	maxImportance := 0.0
	for _, e := range events {
		if e.BaseImportance > maxImportance {
			maxImportance = e.BaseImportance
		}
	}
	day.BaseImportance = maxImportance
	day.UpdatedAt = time.Now()
}

// Get returns the node with id, or nil when absent. Absent ids are not an
// error anywhere in the tree.
func (t *Tree) Get(id string) *types.MemoryNode {
	return t.nodes[id]
}

// Delete removes an event node: it is unlinked from its parent's child list
// and evicted from the arena, and the day rollup is recomputed. Aggregate
// nodes are never deleted. Returns false for unknown or non-event ids.
func (t *Tree) Delete(id string) bool {
	node, ok := t.nodes[id]
	if !ok || !node.IsEvent() {
		return false
	}

	if parent, ok := t.nodes[node.ParentID]; ok {
		for i, cid := range parent.ChildrenIDs {
			if cid == id {
				parent.ChildrenIDs = append(parent.ChildrenIDs[:i], parent.ChildrenIDs[i+1:]...)
				break
			}
		}
	}
	delete(t.nodes, id)
	t.updateDaySummary(node.ParentID)
	return true
}

// DayMemories returns the event nodes recorded on the calendar day of date.
func (t *Tree) DayMemories(date time.Time) []*types.MemoryNode {
	dayID, ok := t.dayIndex[date.Format("2006-01-02")]
	if !ok {
		return nil
	}
	day := t.nodes[dayID]
	if day == nil {
		return nil
	}

	events := make([]*types.MemoryNode, 0, len(day.ChildrenIDs))
	for _, id := range day.ChildrenIDs {
		if child, ok := t.nodes[id]; ok {
			events = append(events, child)
		}
	}
	return events
}

// RangeQuery returns event nodes with timestamps in [start, end) whose
// effective importance is at least minImportance, walking day buckets.
func (t *Tree) RangeQuery(start, end time.Time, minImportance float64) []*types.MemoryNode {
	var out []*types.MemoryNode
	for day := start; day.Before(end) || sameDay(day, end); day = day.AddDate(0, 0, 1) {
		for _, mem := range t.DayMemories(day) {
			if mem.Timestamp.Before(start) || !mem.Timestamp.Before(end) {
				continue
			}
			if mem.EffectiveImportance() >= minImportance {
				out = append(out, mem)
			}
		}
	}
	return out
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// SearchByContent performs a case-insensitive substring search over event
// content and detail, ranked by effective importance descending and capped
// at limit.
func (t *Tree) SearchByContent(query string, limit int, minImportance float64) []*types.MemoryNode {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(query)

	var results []*types.MemoryNode
	for _, node := range t.nodes {
		if !node.IsEvent() {
			continue
		}
		if node.EffectiveImportance() < minImportance {
			continue
		}
		if strings.Contains(strings.ToLower(node.Content), q) ||
			(node.Detail != "" && strings.Contains(strings.ToLower(node.Detail), q)) {
			results = append(results, node)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].EffectiveImportance() > results[j].EffectiveImportance()
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// SearchByTimeAndTopic resolves a time hint ("昨天", "上周", ...) against
// refTime, gathers the events in that window, and optionally filters them to
// those mentioning topic in their content or topic tags.
func (t *Tree) SearchByTimeAndTopic(timeHint, topic string, refTime time.Time) []*types.MemoryNode {
	if refTime.IsZero() {
		refTime = time.Now()
	}
	start, end := ParseTimeHint(timeHint, refTime)
	memories := t.RangeQuery(start, end, 0)

	if topic == "" {
		return memories
	}

	topicLower := strings.ToLower(topic)
	var filtered []*types.MemoryNode
	for _, mem := range memories {
		if strings.Contains(strings.ToLower(mem.Content), topicLower) {
			filtered = append(filtered, mem)
			continue
		}
		for _, tag := range mem.TopicTags {
			if strings.Contains(strings.ToLower(tag), topicLower) {
				filtered = append(filtered, mem)
				break
			}
		}
	}
	return filtered
}

// AllEvents returns every event-grain node, in no particular order.
func (t *Tree) AllEvents() []*types.MemoryNode {
	var events []*types.MemoryNode
	for _, node := range t.nodes {
		if node.IsEvent() {
			events = append(events, node)
		}
	}
	return events
}

// RecentEvents returns up to limit events sorted by timestamp descending.
func (t *Tree) RecentEvents(limit int) []*types.MemoryNode {
	events := t.AllEvents()
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}

// EventCount returns the number of event-grain nodes.
func (t *Tree) EventCount() int {
	n := 0
	for _, node := range t.nodes {
		if node.IsEvent() {
			n++
		}
	}
	return n
}

// Years returns the indexed year keys in ascending order.
func (t *Tree) Years() []string {
	years := make([]string, 0, len(t.yearIndex))
	for y := range t.yearIndex {
		years = append(years, y)
	}
	sort.Strings(years)
	return years
}
