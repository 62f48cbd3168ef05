package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/keepsake/internal/llm"
	"github.com/scrypster/keepsake/pkg/types"
)

// stubClient returns a fixed completion or error.
type stubClient struct {
	content string
	err     error
	calls   int
}

func (c *stubClient) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Response{Content: c.content}, nil
}

func (c *stubClient) Model() string { return "stub" }

func TestAppendTurnCapsRawHistory(t *testing.T) {
	m := NewManager(Config{MaxTurns: 3}, nil)

	for i := 0; i < 10; i++ {
		m.AppendTurn("s1", fmt.Sprintf("u%d", i), fmt.Sprintf("a%d", i))
	}

	msgs := m.Messages("s1")
	require.Len(t, msgs, 6)
	assert.Equal(t, "u7", msgs[0].Content)
	assert.Equal(t, "a9", msgs[5].Content)
}

func TestLoadReplacesSession(t *testing.T) {
	m := NewManager(Config{}, nil)
	m.AppendTurn("s1", "old", "reply")

	m.Load("s1", []types.ChatMessage{
		{Role: types.RoleUser, Content: "imported"},
		{Role: types.RoleAssistant, Content: "ok"},
	})

	msgs := m.Messages("s1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "imported", msgs[0].Content)

	m.Clear("s1")
	assert.Empty(t, m.Messages("s1"))
}

func TestSlidingWindowNewestFirst(t *testing.T) {
	m := NewManager(Config{
		Strategy:     types.HistoryStrategySlidingWindow,
		WindowBudget: 30,
	}, nil)

	// Each message: 40 ASCII chars = 10 tokens + 4 overhead = 14.
	m.AppendTurn("s1", strings.Repeat("a", 40), strings.Repeat("b", 40))
	m.AppendTurn("s1", strings.Repeat("c", 40), strings.Repeat("d", 40))

	text := m.HistoryText(context.Background(), "s1")

	// Budget 30 fits the two newest messages only.
	assert.NotContains(t, text, "a")
	assert.NotContains(t, text, "b")
	assert.Contains(t, text, strings.Repeat("c", 40))
	assert.Contains(t, text, strings.Repeat("d", 40))
}

func TestSlidingWindowEmptySession(t *testing.T) {
	m := NewManager(Config{Strategy: types.HistoryStrategySlidingWindow}, nil)
	assert.Empty(t, m.HistoryText(context.Background(), "nope"))
}

func TestCompressionUnderThresholdKeepsHotTail(t *testing.T) {
	client := &stubClient{content: "unused"}
	m := NewManager(Config{HotTailMessages: 2}, client)

	m.AppendTurn("s1", "第一轮", "回应一")
	m.AppendTurn("s1", "第二轮", "回应二")

	text := m.HistoryText(context.Background(), "s1")

	// Under threshold: no LLM call, hot tail rendered verbatim.
	assert.Zero(t, client.calls)
	assert.Contains(t, text, "用户: 第二轮")
	assert.Contains(t, text, "助手: 回应二")
	assert.NotContains(t, text, "第一轮")
}

func TestCompressionTriggersAndCollapses(t *testing.T) {
	client := &stubClient{content: "用户在规划旅行，偏好安静的地方"}
	m := NewManager(Config{
		HotTailMessages:      2,
		CompressionThreshold: 10,
	}, client)

	long := strings.Repeat("x", 200)
	m.AppendTurn("s1", long, long)
	m.AppendTurn("s1", "最新问题", "最新回答")

	text := m.HistoryText(context.Background(), "s1")

	assert.Equal(t, 1, client.calls)
	assert.Contains(t, text, "（前情摘要）用户在规划旅行，偏好安静的地方")
	assert.Contains(t, text, "用户: 最新问题")
	assert.NotContains(t, text, long)

	// Stored state collapsed to the hot tail.
	msgs := m.Messages("s1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "最新问题", msgs[0].Content)
}

func TestCompressionFailureFallsBackToSlidingWindow(t *testing.T) {
	client := &stubClient{err: errors.New("upstream down")}
	m := NewManager(Config{
		HotTailMessages:      2,
		CompressionThreshold: 10,
		WindowBudget:         2000,
	}, client)

	m.AppendTurn("s1", "问题一", "回答一")
	m.AppendTurn("s1", "问题二", "回答二")

	before := m.Messages("s1")
	text := m.HistoryText(context.Background(), "s1")

	// The returned text equals the sliding-window output at this instant.
	assert.Equal(t, m.slidingWindowText("s1"), text)
	assert.Contains(t, text, "问题一")

	// Stored state untouched.
	assert.Equal(t, before, m.Messages("s1"))
	s := m.sessions["s1"]
	assert.Empty(t, s.summary)
	assert.False(t, s.compressing)
}

func TestCompressionInFlightGuard(t *testing.T) {
	client := &stubClient{content: "摘要"}
	m := NewManager(Config{
		HotTailMessages:      2,
		CompressionThreshold: 10,
	}, client)

	m.AppendTurn("s1", "问题一", "回答一")
	m.AppendTurn("s1", "问题二", "回答二")
	m.sessions["s1"].compressing = true

	text := m.HistoryText(context.Background(), "s1")

	// The in-flight flag forces the sliding-window path without an LLM call.
	assert.Zero(t, client.calls)
	assert.Equal(t, m.slidingWindowText("s1"), text)
	assert.True(t, m.sessions["s1"].compressing)
}

func TestCompressionWithoutClientFallsBack(t *testing.T) {
	m := NewManager(Config{
		HotTailMessages:      2,
		CompressionThreshold: 10,
	}, nil)

	m.AppendTurn("s1", "问题一", "回答一")
	m.AppendTurn("s1", "问题二", "回答二")

	text := m.HistoryText(context.Background(), "s1")
	assert.Equal(t, m.slidingWindowText("s1"), text)
}

func TestSetStrategy(t *testing.T) {
	m := NewManager(Config{}, nil)
	m.SetStrategy(types.HistoryStrategySlidingWindow)
	assert.Equal(t, types.HistoryStrategySlidingWindow, m.strategy())

	// Unknown names are ignored.
	m.SetStrategy("bogus")
	assert.Equal(t, types.HistoryStrategySlidingWindow, m.strategy())
}

func TestSetCompressionOverridesTuning(t *testing.T) {
	m := NewManager(Config{}, nil)
	m.SetCompression(500, 80)
	assert.Equal(t, 500, m.cfg.CompressionThreshold)
	assert.Equal(t, 80, m.cfg.CompressionTarget)

	// Non-positive values keep the current tuning.
	m.SetCompression(0, -1)
	assert.Equal(t, 500, m.cfg.CompressionThreshold)
	assert.Equal(t, 80, m.cfg.CompressionTarget)
}
