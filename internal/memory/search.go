package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/scrypster/keepsake/internal/forgetting"
	"github.com/scrypster/keepsake/internal/relevance"
	"github.com/scrypster/keepsake/pkg/types"
)

// SearchQuery is a multi-condition memory search. Conditions are intersected;
// with no condition set the most recent memories are returned.
type SearchQuery struct {
	Keyword  string `json:"keyword,omitempty"`
	TimeHint string `json:"time_hint,omitempty"`
	Topic    string `json:"topic,omitempty"`
	Entity   string `json:"entity,omitempty"`
	Limit    int    `json:"limit,omitempty"`

	// Reinforce strengthens every hit as a mention.
	Reinforce bool `json:"reinforce,omitempty"`

	// RefTime anchors time-hint resolution; zero means now.
	RefTime time.Time `json:"-"`
}

// SearchMemories intersects the query's conditions over the event set and
// returns up to Limit results ordered by effective importance. When
// Reinforce is set each hit is reinforced, which mutates strength and
// mention stats atomically with the search.
func (m *Manager) SearchMemories(q SearchQuery) []*types.MemoryNode {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	ref := q.RefTime
	if ref.IsZero() {
		ref = time.Now()
	}

	var results []*types.MemoryNode
	constrained := false

	if q.Keyword != "" {
		results = m.tree.SearchByContent(q.Keyword, m.tree.EventCount(), 0)
		constrained = true
	}

	if q.TimeHint != "" || q.Topic != "" {
		hits := m.tree.SearchByTimeAndTopic(q.TimeHint, q.Topic, ref)
		if constrained {
			results = intersect(results, hits)
		} else {
			results = hits
		}
		constrained = true
	}

	if q.Entity != "" {
		hits := m.entityMemoriesLocked(q.Entity)
		if constrained {
			results = intersect(results, hits)
		} else {
			results = hits
		}
		constrained = true
	}

	if !constrained {
		results = m.tree.RecentEvents(limit)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].EffectiveImportance() > results[j].EffectiveImportance()
	})
	if len(results) > limit {
		results = results[:limit]
	}

	if q.Reinforce {
		for _, node := range results {
			m.curve.Reinforce(node, ref)
		}
	}
	return results
}

// entityMemoriesLocked gathers the events linked to a named entity.
func (m *Manager) entityMemoriesLocked(name string) []*types.MemoryNode {
	entity := m.graph.EntityByName(name)
	if entity == nil {
		return nil
	}
	var out []*types.MemoryNode
	for _, event := range m.tree.AllEvents() {
		for _, id := range event.LinkedEntities {
			if id == entity.ID {
				out = append(out, event)
				break
			}
		}
	}
	return out
}

func intersect(a, b []*types.MemoryNode) []*types.MemoryNode {
	inB := make(map[string]bool, len(b))
	for _, n := range b {
		inB[n.ID] = true
	}
	var out []*types.MemoryNode
	for _, n := range a {
		if inB[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// CoreMemories returns every event at or above the core importance
// threshold, most important first.
func (m *Manager) CoreMemories() []*types.MemoryNode {
	m.mu.Lock()
	defer m.mu.Unlock()

	core, _ := m.selector.Partition(m.tree.AllEvents())
	sort.SliceStable(core, func(i, j int) bool {
		return core[i].EffectiveImportance() > core[j].EffectiveImportance()
	})
	return core
}

// Context is the memory material selected for one prompt.
type Context struct {
	// Core memories are surfaced unconditionally.
	Core []*types.MemoryNode
	// Relevant holds the ranked library selection for the query.
	Relevant []relevance.Scored
	// GraphSummary is the knowledge-graph context block.
	GraphSummary string
}

// ContextForQuery partitions the event set into core and library, ranks the
// library against the query and attaches the graph summary. Selected
// memories are reinforced as accessed.
func (m *Manager) ContextForQuery(query string, now time.Time) Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	core, library := m.selector.Partition(m.tree.AllEvents())
	sort.SliceStable(core, func(i, j int) bool {
		return core[i].EffectiveImportance() > core[j].EffectiveImportance()
	})
	selected := m.selector.Select(query, library)

	for _, s := range selected {
		m.curve.Reinforce(s.Memory, now)
	}

	return Context{
		Core:         core,
		Relevant:     selected,
		GraphSummary: m.graph.ContextSummary(5),
	}
}

// Cards renders the context as memory-card strings for the assembler, core
// first.
func (c Context) Cards() []string {
	cards := make([]string, 0, len(c.Core)+len(c.Relevant))
	for _, node := range c.Core {
		cards = append(cards, formatCard(node))
	}
	for _, s := range c.Relevant {
		cards = append(cards, formatCard(s.Memory))
	}
	return cards
}

func formatCard(node *types.MemoryNode) string {
	return fmt.Sprintf("[%s] %s", node.Timestamp.Format("2006-01-02"), node.Content)
}

// AnswerMemoryQuery resolves a natural-language memory question ("昨天吃了
// 什么") into a direct textual answer built from matching memories, without
// any LLM involvement. Empty result yields a fixed not-found phrase.
func (m *Manager) AnswerMemoryQuery(question string, now time.Time) string {
	hits := m.SearchMemories(SearchQuery{
		Keyword:   extractTopicWord(question),
		TimeHint:  question,
		Limit:     5,
		Reinforce: true,
		RefTime:   now,
	})
	if len(hits) == 0 {
		hits = m.SearchMemories(SearchQuery{
			TimeHint: question,
			Limit:    5,
			RefTime:  now,
		})
	}
	if len(hits) == 0 {
		return "我没有找到相关的记忆。"
	}

	var b strings.Builder
	b.WriteString("我记得：")
	for i, node := range hits {
		if i > 0 {
			b.WriteString("；")
		}
		b.WriteString(node.Timestamp.Format("1月2日"))
		b.WriteString("，")
		b.WriteString(node.Content)
	}
	return b.String()
}

// extractTopicWord picks the densest keyword of the question to use as a
// content filter; empty when the question is all stop-ish time phrasing.
func extractTopicWord(question string) string {
	best := ""
	for kw := range relevance.Keywords(question) {
		if isTimeWord(kw) {
			continue
		}
		if len([]rune(kw)) > len([]rune(best)) {
			best = kw
		}
	}
	return best
}

var timeWords = map[string]bool{
	"昨天": true, "前天": true, "上周": true, "今天": true,
	"上个月": true, "上月": true, "去年": true, "晚上": true,
	"早上": true, "中午": true, "最近": true,
}

func isTimeWord(word string) bool {
	if timeWords[word] {
		return true
	}
	for tw := range timeWords {
		if strings.Contains(tw, word) {
			return true
		}
	}
	return false
}

// MemoriesToSurface proposes review candidates per the forgetting curve.
func (m *Manager) MemoriesToSurface(now time.Time, limit int) []*types.MemoryNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.curve.MemoriesToSurface(m.tree.AllEvents(), now, 0.3, limit)
}

// FadingMemories returns events whose strength dropped below threshold.
func (m *Manager) FadingMemories(now time.Time, threshold float64) []*types.MemoryNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.curve.IdentifyFading(m.tree.AllEvents(), now, threshold)
}

// RetentionForecast projects a memory's retention over the coming days.
func (m *Manager) RetentionForecast(id string, now time.Time, days int) []forgetting.ForecastPoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	node := m.tree.Get(id)
	if node == nil {
		return nil
	}
	return m.curve.Forecast(node, now, days)
}
