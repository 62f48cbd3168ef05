package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/keepsake/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("u1", Options{})
	require.NoError(t, err)
	return m
}

func TestAddMemoryLinksEntities(t *testing.T) {
	m := newTestManager(t)

	node := m.AddMemory(AddMemoryInput{
		Content:    "和小明去爬山",
		Importance: 0.7,
		TopicTags:  []string{"运动"},
		Entities:   []EntityRef{{Name: "小明", Type: "person"}},
	})

	require.NotNil(t, node)
	require.Len(t, node.LinkedEntities, 1)

	entity := m.Graph().EntityByName("小明")
	require.NotNil(t, entity)
	assert.Equal(t, types.EntityPerson, entity.Type)
	assert.Equal(t, 1, entity.MentionCount)
	assert.Equal(t, node.ID, entity.FirstMemoryID)

	// A person without an explicit relation gets a related_to edge from
	// the user carrying the memory as evidence.
	rel := m.Graph().FindRelationship("user", entity.ID, types.RelationRelatedTo)
	require.NotNil(t, rel)
	assert.Contains(t, rel.EvidenceMemoryIDs, node.ID)
}

func TestAddMemoryExplicitRelation(t *testing.T) {
	m := newTestManager(t)

	node := m.AddMemory(AddMemoryInput{
		Content:   "妈妈打电话来了",
		Entities:  []EntityRef{{Name: "妈妈", Type: "person"}},
		Relations: []RelationRef{{Target: "妈妈", Type: "family", Description: "母亲"}},
	})

	entity := m.Graph().EntityByName("妈妈")
	rel := m.Graph().FindRelationship("user", entity.ID, types.RelationFamily)
	require.NotNil(t, rel)
	assert.Equal(t, "母亲", rel.Description)
	assert.Contains(t, rel.EvidenceMemoryIDs, node.ID)

	// No duplicate generic edge for explicitly related entities.
	assert.Nil(t, m.Graph().FindRelationship("user", entity.ID, types.RelationRelatedTo))
}

func TestAddMemoryRelationKeepsPersonType(t *testing.T) {
	m := newTestManager(t)

	m.AddMemory(AddMemoryInput{
		Content:   "和小明吃了饭",
		Entities:  []EntityRef{{Name: "小明", Type: "person"}},
		Relations: []RelationRef{{Target: "小明", Type: "friend"}},
	})

	entity := m.Graph().EntityByName("小明")
	require.NotNil(t, entity)
	assert.Equal(t, types.EntityPerson, entity.Type)

	circle := m.Graph().SocialCircleOf("")
	require.Len(t, circle.Friends, 1)
	assert.Equal(t, entity.ID, circle.Friends[0].Entity.ID)
}

func TestReinforce(t *testing.T) {
	m := newTestManager(t)
	node := m.AddMemory(AddMemoryInput{Content: "重要约定"})

	require.True(t, m.Reinforce(node.ID, time.Now().Add(48*time.Hour)))
	assert.Equal(t, 1, node.MentionCount)
	assert.False(t, m.Reinforce("missing", time.Now()))
}

func TestSearchMemoriesMultiCondition(t *testing.T) {
	m := newTestManager(t)
	ref := time.Date(2024, 3, 15, 14, 0, 0, 0, time.Local)

	m.AddMemory(AddMemoryInput{
		Content:   "昨晚和小红吃了火锅",
		Timestamp: ref.AddDate(0, 0, -1),
		TopicTags: []string{"饮食"},
		Entities:  []EntityRef{{Name: "小红", Type: "person"}},
	})
	m.AddMemory(AddMemoryInput{
		Content:   "上周去了健身房",
		Timestamp: ref.AddDate(0, 0, -9),
		TopicTags: []string{"运动"},
	})

	// Keyword alone.
	hits := m.SearchMemories(SearchQuery{Keyword: "火锅", RefTime: ref})
	require.Len(t, hits, 1)

	// Keyword ∩ time hint.
	hits = m.SearchMemories(SearchQuery{Keyword: "火锅", TimeHint: "昨天", RefTime: ref})
	require.Len(t, hits, 1)

	// Conflicting conditions intersect to empty.
	hits = m.SearchMemories(SearchQuery{Keyword: "健身房", TimeHint: "昨天", RefTime: ref})
	assert.Empty(t, hits)

	// Entity condition.
	hits = m.SearchMemories(SearchQuery{Entity: "小红", RefTime: ref})
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Content, "火锅")

	// No condition: recent-N fallback.
	hits = m.SearchMemories(SearchQuery{RefTime: ref, Limit: 1})
	require.Len(t, hits, 1)
}

func TestSearchReinforcesHits(t *testing.T) {
	m := newTestManager(t)
	node := m.AddMemory(AddMemoryInput{Content: "去了海边"})

	m.SearchMemories(SearchQuery{Keyword: "海边", Reinforce: true})
	assert.Equal(t, 1, node.MentionCount)

	m.SearchMemories(SearchQuery{Keyword: "海边"})
	assert.Equal(t, 1, node.MentionCount)
}

func TestCoreMemoriesThreshold(t *testing.T) {
	m := newTestManager(t)
	now := time.Now()

	m.AddMemory(AddMemoryInput{Content: "搬家到了北京", Importance: 0.9, Timestamp: now.AddDate(0, 0, -2)})
	m.AddMemory(AddMemoryInput{Content: "买了新书", Importance: 0.5, Timestamp: now.AddDate(0, 0, -1)})
	m.AddMemory(AddMemoryInput{Content: "下了场雨", Importance: 0.3, Timestamp: now})

	core := m.CoreMemories()
	require.Len(t, core, 1)
	assert.Equal(t, "搬家到了北京", core[0].Content)
}

func TestContextForQueryPartitionsAndReinforces(t *testing.T) {
	m := newTestManager(t)
	now := time.Now()

	coreNode := m.AddMemory(AddMemoryInput{Content: "核心:家在北京", Importance: 0.95, Timestamp: now})
	relevant := m.AddMemory(AddMemoryInput{Content: "昨天去爬山了", Importance: 0.5, Timestamp: now})
	m.AddMemory(AddMemoryInput{Content: "无关记录", Importance: 0.5, Timestamp: now})

	ctx := m.ContextForQuery("爬山好玩吗", now)

	require.Len(t, ctx.Core, 1)
	assert.Equal(t, coreNode.ID, ctx.Core[0].ID)
	require.Len(t, ctx.Relevant, 1)
	assert.Equal(t, relevant.ID, ctx.Relevant[0].Memory.ID)
	// Selected library memories are reinforced; core ones are not.
	assert.Equal(t, 1, relevant.MentionCount)
	assert.Zero(t, coreNode.MentionCount)

	cards := ctx.Cards()
	require.Len(t, cards, 2)
	assert.Contains(t, cards[0], "核心:家在北京")
}

func TestAnswerMemoryQuery(t *testing.T) {
	m := newTestManager(t)
	// Mid-month anchor: "昨天" and "上个月" resolve to disjoint windows.
	ref := time.Date(2026, 5, 15, 20, 0, 0, 0, time.Local)

	m.AddMemory(AddMemoryInput{
		Content:   "晚上吃了火锅",
		Timestamp: ref.AddDate(0, 0, -1),
		TopicTags: []string{"饮食"},
	})

	answer := m.AnswerMemoryQuery("昨天晚上吃了什么", ref)
	assert.Contains(t, answer, "火锅")

	assert.Equal(t, "我没有找到相关的记忆。", m.AnswerMemoryQuery("上个月去了哪里", ref))
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()

	m, err := NewManager("u1", Options{DataPath: dir})
	require.NoError(t, err)
	node := m.AddMemory(AddMemoryInput{
		Content:  "记得这件事",
		Entities: []EntityRef{{Name: "小明", Type: "person"}},
	})
	require.NoError(t, m.Save())

	reloaded, err := NewManager("u1", Options{DataPath: dir})
	require.NoError(t, err)

	got := reloaded.Get(node.ID)
	require.NotNil(t, got)
	assert.Equal(t, "记得这件事", got.Content)
	require.NotNil(t, reloaded.Graph().EntityByName("小明"))

	stats := reloaded.Stats()
	assert.Equal(t, 1, stats.Tree.EventCount)
}

func TestLoadInvalidSnapshotFails(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager("u1", Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, m.Save())

	// Corrupt the tree document.
	require.NoError(t,
		os.WriteFile(filepath.Join(dir, "u1", "tree.json"), []byte("{not json"), 0o644))

	_, err = NewManager("u1", Options{DataPath: dir})
	assert.Error(t, err)
}

func TestExportSnapshotStripsRawText(t *testing.T) {
	m := newTestManager(t)
	m.AddMemory(AddMemoryInput{
		Content:    "和小明去爬山",
		Raw:        "用户: 今天和小明去爬山了\n助手: 听起来很开心",
		Importance: 0.8,
	})

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	exp, err := m.ExportSnapshot(now, false)
	require.NoError(t, err)
	assert.NotContains(t, string(exp.Tree), "听起来很开心")
	assert.Contains(t, string(exp.Tree), "和小明去爬山")
	assert.NotEmpty(t, exp.Summary)
	assert.Equal(t, 1, exp.Stats.Tree.EventCount)

	full, err := m.ExportSnapshot(now, true)
	require.NoError(t, err)
	assert.Contains(t, string(full.Tree), "听起来很开心")
}

func TestStatsImportanceDistribution(t *testing.T) {
	m := newTestManager(t)
	m.AddMemory(AddMemoryInput{Content: "高", Importance: 0.9})
	m.AddMemory(AddMemoryInput{Content: "中", Importance: 0.5})
	m.AddMemory(AddMemoryInput{Content: "低", Importance: 0.1})

	stats := m.Stats()
	assert.Equal(t, 1, stats.Importance.High)
	assert.Equal(t, 1, stats.Importance.Medium)
	assert.Equal(t, 1, stats.Importance.Low)
	assert.Greater(t, stats.AvgImportance, 0.0)
}
