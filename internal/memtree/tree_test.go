package memtree

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/keepsake/pkg/types"
)

func eventAt(content string, ts time.Time, importance float64) *types.MemoryNode {
	node := types.NewMemoryNode(content, ts)
	node.BaseImportance = importance
	return node
}

func TestAddSharedDayHierarchy(t *testing.T) {
	tree := New()
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	tree.Add(eventAt("morning run", ts, 0.5))
	tree.Add(eventAt("team lunch", ts.Add(3*time.Hour), 0.6))

	assert.Equal(t, 2, tree.EventCount())
	// 2 events + one year, month, week, day node each.
	assert.Len(t, tree.nodes, 6)
	assert.Len(t, tree.yearIndex, 1)
	assert.Len(t, tree.monthIndex, 1)
	assert.Len(t, tree.weekIndex, 1)
	assert.Len(t, tree.dayIndex, 1)
	assert.Len(t, tree.rootChildren, 1)
}

func TestAddSeparateDaysShareWeek(t *testing.T) {
	tree := New()
	// Monday and Tuesday of the same ISO week.
	tree.Add(eventAt("a", time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), 0.5))
	tree.Add(eventAt("b", time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC), 0.5))

	assert.Len(t, tree.dayIndex, 2)
	assert.Len(t, tree.weekIndex, 1)
	assert.Len(t, tree.monthIndex, 1)
}

func TestDaySummaryRollup(t *testing.T) {
	tree := New()
	ts := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

	tree.Add(eventAt("low", ts, 0.2))
	tree.Add(eventAt("high", ts.Add(time.Hour), 0.9))
	tree.Add(eventAt("mid", ts.Add(2*time.Hour), 0.5))
	tree.Add(eventAt("lowest", ts.Add(3*time.Hour), 0.1))

	dayID := tree.dayIndex["2024-03-15"]
	day := tree.Get(dayID)
	require.NotNil(t, day)

	parts := strings.Split(day.Content, "；")
	require.Len(t, parts, 3)
	assert.Equal(t, "high", parts[0])
	assert.Equal(t, "mid", parts[1])
	assert.Equal(t, "low", parts[2])
	assert.InDelta(t, 0.9, day.BaseImportance, 1e-9)
}

func TestDeleteEvent(t *testing.T) {
	tree := New()
	ts := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	keep := eventAt("keep", ts, 0.8)
	drop := eventAt("drop", ts.Add(time.Hour), 0.4)
	tree.Add(keep)
	tree.Add(drop)

	require.True(t, tree.Delete(drop.ID))
	assert.Nil(t, tree.Get(drop.ID))
	assert.Equal(t, 1, tree.EventCount())

	day := tree.Get(tree.dayIndex["2024-03-15"])
	assert.Equal(t, "keep", day.Content)
	assert.Len(t, day.ChildrenIDs, 1)

	// Aggregate nodes and unknown ids are refused.
	assert.False(t, tree.Delete(day.ID))
	assert.False(t, tree.Delete("missing"))
}

func TestRangeQuery(t *testing.T) {
	tree := New()
	tree.Add(eventAt("before", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), 0.5))
	tree.Add(eventAt("inside", time.Date(2024, 3, 12, 12, 0, 0, 0, time.UTC), 0.5))
	tree.Add(eventAt("faint", time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC), 0.1))
	tree.Add(eventAt("after", time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC), 0.5))

	start := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	got := tree.RangeQuery(start, end, 0.3)
	require.Len(t, got, 1)
	assert.Equal(t, "inside", got[0].Content)

	got = tree.RangeQuery(start, end, 0)
	assert.Len(t, got, 2)
}

func TestSearchByContent(t *testing.T) {
	tree := New()
	ts := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	tree.Add(eventAt("went hiking with Anna", ts, 0.4))
	important := eventAt("Hiking trip to the alps", ts.Add(time.Hour), 0.9)
	tree.Add(important)
	withDetail := eventAt("quiet day", ts.Add(2*time.Hour), 0.5)
	withDetail.Detail = "read a book about hiking"
	tree.Add(withDetail)

	got := tree.SearchByContent("hiking", 10, 0)
	require.Len(t, got, 3)
	assert.Equal(t, important.ID, got[0].ID)

	got = tree.SearchByContent("hiking", 1, 0)
	assert.Len(t, got, 1)
}

func TestParseTimeHint(t *testing.T) {
	ref := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC) // a Friday

	start, end := ParseTimeHint("昨天发生了什么", ref)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), end)

	start, end = ParseTimeHint("前天", ref)
	assert.Equal(t, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), end)

	start, end = ParseTimeHint("上周", ref)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), end)

	start, end = ParseTimeHint("上个月", ref)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), end)

	start, end = ParseTimeHint("去年", ref)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), end)

	// Unknown hints fall back to the trailing week.
	start, end = ParseTimeHint("最近", ref)
	assert.Equal(t, ref.AddDate(0, 0, -7), start)
	assert.Equal(t, ref, end)
}

func TestSearchByTimeAndTopic(t *testing.T) {
	tree := New()
	ref := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

	tagged := eventAt("下午去了健身房", ref.AddDate(0, 0, -1), 0.6)
	tagged.TopicTags = []string{"运动"}
	tree.Add(tagged)
	tree.Add(eventAt("看了一部电影", ref.AddDate(0, 0, -1), 0.5))
	tree.Add(eventAt("运动会开幕", ref.AddDate(0, 0, -10), 0.5))

	got := tree.SearchByTimeAndTopic("昨天", "运动", ref)
	require.Len(t, got, 1)
	assert.Equal(t, tagged.ID, got[0].ID)

	got = tree.SearchByTimeAndTopic("昨天", "", ref)
	assert.Len(t, got, 2)
}

func TestSnapshotRoundTrip(t *testing.T) {
	tree := New()
	ts := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	mem := eventAt("persisted", ts, 0.7)
	tree.Add(mem)

	data, err := json.Marshal(tree)
	require.NoError(t, err)

	restored := New()
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, 1, restored.EventCount())
	got := restored.Get(mem.ID)
	require.NotNil(t, got)
	assert.Equal(t, "persisted", got.Content)

	// Inserting into the restored tree reuses the existing hierarchy.
	restored.Add(eventAt("later", ts.Add(time.Hour), 0.4))
	assert.Len(t, restored.dayIndex, 1)
}

func TestTreeViewFiltersEvents(t *testing.T) {
	tree := New()
	ts := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	tree.Add(eventAt("strong", ts, 0.9))
	tree.Add(eventAt("weak", ts.Add(time.Hour), 0.05))

	views := tree.TreeView(ViewOptions{Threshold: 0.3})
	require.Len(t, views, 1)

	day := views[0].Children[0].Children[0].Children[0]
	require.Len(t, day.Children, 1)
	assert.Equal(t, "strong", day.Children[0].Content)
}

func TestTreeViewGrainCutoffWithExpansion(t *testing.T) {
	tree := New()
	ts := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	tree.Add(eventAt("milestone", ts, 0.95))
	tree.Add(eventAt("routine", ts.Add(time.Hour), 0.3))

	// Day-grain cutoff hides events entirely.
	views := tree.TreeView(ViewOptions{Grain: types.GrainDay})
	day := views[0].Children[0].Children[0].Children[0]
	assert.Empty(t, day.Children)

	// With expansion, only events past the threshold are inlined.
	views = tree.TreeView(ViewOptions{
		Grain:           types.GrainDay,
		ExpandImportant: true,
		Threshold:       0.8,
	})
	day = views[0].Children[0].Children[0].Children[0]
	require.Len(t, day.Children, 1)
	assert.Equal(t, "milestone", day.Children[0].Content)
}

func TestTreeViewYearMonthFilter(t *testing.T) {
	tree := New()
	tree.Add(eventAt("march", time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC), 0.5))
	tree.Add(eventAt("april", time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC), 0.5))
	tree.Add(eventAt("old", time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC), 0.5))

	views := tree.TreeView(ViewOptions{Year: 2024, Month: 3})
	require.Len(t, views, 1)
	require.Len(t, views[0].Children, 1)
	assert.Equal(t, "2024年3月的记忆", views[0].Children[0].Content)
}
