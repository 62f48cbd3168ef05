package graph

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/keepsake/pkg/types"
)

func TestGetOrCreateEntityCaseInsensitive(t *testing.T) {
	g := New()

	a := g.GetOrCreateEntity("小明", types.EntityPerson)
	b := g.GetOrCreateEntity("小明", types.EntityConcept)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, types.EntityPerson, b.Type)

	x := g.GetOrCreateEntity("Beijing", types.EntityPlace)
	y := g.GetOrCreateEntity("beijing", types.EntityPlace)
	assert.Equal(t, x.ID, y.ID)

	// The user entity exists from construction.
	assert.Equal(t, 3, g.EntityCount())
	require.NotNil(t, g.Entity(UserEntityID))
}

func TestRecordMention(t *testing.T) {
	g := New()
	e := g.GetOrCreateEntity("小红", types.EntityPerson)
	ts := time.Now()

	g.RecordMention(e.ID, "mem-1", ts)
	g.RecordMention(e.ID, "mem-2", ts.Add(time.Hour))

	assert.Equal(t, 2, e.MentionCount)
	assert.Equal(t, "mem-1", e.FirstMemoryID)
	assert.Equal(t, []string{"mem-1", "mem-2"}, e.RecentMemoryIDs)
	assert.InDelta(t, 0.54, e.Importance, 1e-9)
}

func TestCreateRelationshipIdempotent(t *testing.T) {
	g := New()

	rel := g.CreateRelationshipBetween("用户", "小明", types.RelationFriend, "大学室友", "mem-1")
	require.NotNil(t, rel)
	assert.Equal(t, UserEntityID, rel.SourceID)
	assert.Equal(t, 1, g.RelationshipCount())

	// Same pair and type: evidence accrues, no duplicate edge.
	again := g.CreateRelationshipBetween("小明", "用户", types.RelationFriend, "", "mem-2")
	assert.Equal(t, rel.ID, again.ID)
	assert.Equal(t, 1, g.RelationshipCount())
	assert.Len(t, rel.EvidenceMemoryIDs, 2)

	// A different type between the same pair is a new edge.
	g.CreateRelationshipBetween("用户", "小明", types.RelationColleague, "", "")
	assert.Equal(t, 2, g.RelationshipCount())
}

func TestRelationEndpointsDefaultToPerson(t *testing.T) {
	g := New()
	g.CreateRelationshipBetween("用户", "小明", types.RelationFriend, "", "")

	e := g.EntityByName("小明")
	require.NotNil(t, e)
	assert.Equal(t, types.EntityPerson, e.Type)

	circle := g.SocialCircleOf(UserEntityID)
	require.Len(t, circle.Friends, 1)
	assert.Equal(t, e.ID, circle.Friends[0].Entity.ID)
}

func TestRepeatedRelationshipKeepsDescription(t *testing.T) {
	g := New()
	rel := g.CreateRelationshipBetween("用户", "小明", types.RelationFriend, "大学室友", "mem-1")
	rel.Confidence = 0.5

	// Re-assertion bumps confidence even without evidence and never
	// overwrites the original description.
	again := g.CreateRelationshipBetween("用户", "小明", types.RelationFriend, "邻居", "")
	assert.Equal(t, rel.ID, again.ID)
	assert.Equal(t, "大学室友", again.Description)
	assert.InDelta(t, 0.6, again.Confidence, 1e-9)
}

func TestFindRelationshipEitherDirection(t *testing.T) {
	g := New()
	g.CreateRelationshipBetween("小明", "小红", types.RelationFamily, "兄妹", "")

	a := g.EntityByName("小明")
	b := g.EntityByName("小红")
	require.NotNil(t, g.FindRelationship(a.ID, b.ID, types.RelationFamily))
	require.NotNil(t, g.FindRelationship(b.ID, a.ID, types.RelationFamily))
	assert.Nil(t, g.FindRelationship(a.ID, b.ID, types.RelationFriend))
}

func TestRelatedEntitiesBFS(t *testing.T) {
	g := New()
	g.CreateRelationshipBetween("用户", "小明", types.RelationFriend, "", "")
	g.CreateRelationshipBetween("小明", "小红", types.RelationColleague, "", "")
	g.CreateRelationshipBetween("小红", "老王", types.RelationFriend, "", "")

	depth1 := g.RelatedEntities(UserEntityID, 1)
	require.Len(t, depth1, 1)
	assert.Equal(t, "小明", depth1[0].Entity.Name)
	assert.Equal(t, 1, depth1[0].Distance)

	depth3 := g.RelatedEntities(UserEntityID, 3)
	assert.Len(t, depth3, 3)
	for _, re := range depth3 {
		if re.Entity.Name == "老王" {
			assert.Equal(t, 3, re.Distance)
			assert.Len(t, re.Path, 4)
			assert.Equal(t, UserEntityID, re.Path[0])
		}
	}

	// Type filter restricts traversal edges.
	friendsOnly := g.RelatedEntities(UserEntityID, 3, types.RelationFriend)
	require.Len(t, friendsOnly, 1)
	assert.Equal(t, "小明", friendsOnly[0].Entity.Name)
}

func TestFindPath(t *testing.T) {
	g := New()
	g.CreateRelationshipBetween("用户", "小明", types.RelationFriend, "", "")
	g.CreateRelationshipBetween("小明", "小红", types.RelationColleague, "", "")

	xiaohong := g.EntityByName("小红")
	path := g.FindPath(UserEntityID, xiaohong.ID, 3)
	require.Len(t, path, 3)
	assert.Equal(t, UserEntityID, path[0])
	assert.Equal(t, xiaohong.ID, path[2])

	// Unreachable within depth.
	assert.Nil(t, g.FindPath(UserEntityID, xiaohong.ID, 1))
	assert.Nil(t, g.FindPath(UserEntityID, "missing", 3))
	assert.Equal(t, []string{UserEntityID}, g.FindPath(UserEntityID, UserEntityID, 3))
}

func TestSocialCircle(t *testing.T) {
	g := New()
	mom := g.GetOrCreateEntity("妈妈", types.EntityPerson)
	g.CreateRelationshipBetween("用户", "妈妈", types.RelationFamily, "母亲", "")
	g.GetOrCreateEntity("小明", types.EntityPerson)
	g.CreateRelationshipBetween("用户", "小明", types.RelationFriend, "", "")
	g.GetOrCreateEntity("路人", types.EntityPerson)
	// A non-person entity must not appear in any bucket.
	g.GetOrCreateEntity("北京", types.EntityPlace)

	circle := g.SocialCircleOf("")
	require.Len(t, circle.Family, 1)
	assert.Equal(t, mom.ID, circle.Family[0].Entity.ID)
	assert.Len(t, circle.Friends, 1)
	require.Len(t, circle.Others, 1)
	assert.Equal(t, "路人", circle.Others[0].Entity.Name)
	assert.Nil(t, circle.Others[0].Relationship)
}

func TestContextSummaryOrderingAndTruncation(t *testing.T) {
	g := New()
	g.UpdateUserProfile(types.ProfileUpdate{Name: "李雷", Interests: []string{"登山", "摄影"}})

	low := g.GetOrCreateEntity("路人", types.EntityPerson)
	low.Importance = 0.3
	high := g.GetOrCreateEntity("妈妈", types.EntityPerson)
	high.Importance = 0.95
	mid := g.GetOrCreateEntity("小明", types.EntityPerson)
	mid.Importance = 0.6
	g.CreateRelationshipBetween("用户", "妈妈", types.RelationFamily, "母亲", "")

	text := g.ContextSummary(2)
	assert.Contains(t, text, "用户: 李雷")
	assert.Contains(t, text, "登山、摄影")
	assert.Contains(t, text, "妈妈（母亲）")
	assert.Contains(t, text, "小明")
	assert.NotContains(t, text, "路人")

	// Importance-descending order.
	momIdx := indexOf(text, "妈妈")
	midIdx := indexOf(text, "小明")
	assert.Less(t, momIdx, midIdx)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestProfileMerge(t *testing.T) {
	g := New()
	g.UpdateUserProfile(types.ProfileUpdate{
		Name:        "李雷",
		Preferences: map[string]any{"tone": "casual"},
	})
	g.UpdateUserProfile(types.ProfileUpdate{
		Preferences: map[string]any{"length": "short"},
	})

	p := g.Profile()
	assert.Equal(t, "李雷", p.Name)
	assert.Equal(t, "casual", p.Preferences["tone"])
	assert.Equal(t, "short", p.Preferences["length"])
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := New()
	g.GetOrCreateEntity("小明", types.EntityPerson)
	g.CreateRelationshipBetween("用户", "小明", types.RelationFriend, "朋友", "mem-1")
	g.UpdateUserProfile(types.ProfileUpdate{Name: "李雷"})

	data, err := json.Marshal(g)
	require.NoError(t, err)

	restored := New()
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, g.EntityCount(), restored.EntityCount())
	assert.Equal(t, 1, restored.RelationshipCount())
	assert.Equal(t, "李雷", restored.Profile().Name)

	// Indices survive: name lookup and type lookup still work.
	require.NotNil(t, restored.EntityByName("小明"))
	assert.Len(t, restored.EntitiesByType(types.EntityPerson), 1)

	// And the restored graph accepts new edges without duplicating.
	rel := restored.CreateRelationshipBetween("小明", "用户", types.RelationFriend, "", "mem-2")
	assert.Equal(t, 1, restored.RelationshipCount())
	assert.Len(t, rel.EvidenceMemoryIDs, 2)
}
