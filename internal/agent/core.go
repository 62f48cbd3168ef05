// Package agent implements the chat turn pipeline: memory retrieval, context
// assembly, the outbound model call and the write-back of the finished turn.
package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/scrypster/keepsake/internal/contextpack"
	"github.com/scrypster/keepsake/internal/history"
	"github.com/scrypster/keepsake/internal/llm"
	"github.com/scrypster/keepsake/internal/memory"
	"github.com/scrypster/keepsake/internal/notify"
	"github.com/scrypster/keepsake/internal/store"
	"github.com/scrypster/keepsake/pkg/types"
)

// DefaultPersona is the system persona used when settings carry no custom
// system prompt.
const DefaultPersona = `你是一个终身陪伴型AI助手。风格：亲密、聪明、简洁、带一点俏皮。
规则：
- 默认输出短一些（150~250 tokens），除非用户明确要求展开。
- 重要决定前先给出简短方案与影响范围。
- 记忆要克制：只把长期稳定且对未来有用的信息写入长期记忆。`

// notConfiguredMessage is returned before any outbound call when provider
// credentials are missing.
const notConfiguredMessage = "我现在还没配置模型 API。请在设置里填入 base_url / api_key / model，然后再来找我聊天～"

// Conversation modes chosen by the keyword heuristic.
const (
	ModeChat = "chat"
	ModeTask = "task"
)

// taskKeywords switch a turn into task mode.
var taskKeywords = []string{"帮我", "做一个", "计划", "整理", "写", "生成", "安排", "安装", "代码", "方案"}

// preferenceMarkers trigger the light preference capture after a turn.
var preferenceMarkers = []string{"我喜欢", "我不喜欢", "我希望你", "以后都", "从现在起"}

const (
	chatMaxTokens   = 220
	taskMaxTokens   = 400
	taskTemperature = 0.5

	// preferenceMaxRunes caps the captured preference text.
	preferenceMaxRunes = 200
)

// SettingsSource yields the current settings document for a user.
type SettingsSource interface {
	Get(userID string) (types.Settings, error)
}

// ClientFactory builds a chat client from settings. Swappable for tests.
type ClientFactory func(types.Settings) (llm.ChatClient, error)

// Core runs chat turns.
type Core struct {
	managers  *store.Managers
	history   *history.Manager
	settings  SettingsSource
	assembler *contextpack.Assembler
	sink      notify.Sink
	clients   ClientFactory
}

// New wires the agent core. A nil sink drops activity events; a nil factory
// uses the settings-driven OpenAI-compatible client.
func New(managers *store.Managers, hist *history.Manager, settings SettingsSource, assembler *contextpack.Assembler, sink notify.Sink) *Core {
	if sink == nil {
		sink = notify.NopSink{}
	}
	return &Core{
		managers:  managers,
		history:   hist,
		settings:  settings,
		assembler: assembler,
		sink:      sink,
		clients:   llm.FromSettings,
	}
}

// SetClientFactory overrides how chat clients are built.
func (c *Core) SetClientFactory(f ClientFactory) {
	c.clients = f
}

// SetSink replaces the activity event sink. Used when the sink (the
// websocket hub) is constructed after the core.
func (c *Core) SetSink(sink notify.Sink) {
	if sink == nil {
		sink = notify.NopSink{}
	}
	c.sink = sink
}

// ChatRequest is one user turn.
type ChatRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse is always well formed: model failures degrade to an
// explanatory assistant message instead of an error.
type ChatResponse struct {
	AssistantMessage string           `json:"assistant_message"`
	Mode             string           `json:"mode"`
	UsedMemoryCards  []string         `json:"used_memory_cards"`
	Usage            types.TokenUsage `json:"usage"`
}

// Chat runs one turn of the pipeline.
func (c *Core) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	userID := req.UserID
	if userID == "" {
		userID = "default"
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = userID
	}
	now := time.Now()
	mode := modeOf(req.Message)

	mgr, err := c.managers.Manager(userID)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to open memory for %s: %w", userID, err)
	}

	settings, err := c.settings.Get(userID)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to load settings: %w", err)
	}
	c.history.SetStrategy(settings.HistoryStrategy)
	c.history.SetCompression(settings.CompressionThreshold, settings.CompressionTarget)

	memCtx := mgr.ContextForQuery(req.Message, now)
	cards := memCtx.Cards()

	persona := settings.SystemPrompt
	if persona == "" {
		persona = DefaultPersona
	}
	state := stateText(mode, memCtx.GraphSummary)

	pack := c.assembler.Assemble(contextpack.Input{
		Persona:     persona,
		State:       state,
		MemoryCards: cards,
		UserInput:   req.Message,
	})

	// Credential check happens before any outbound call.
	if !settings.Configured() {
		return &ChatResponse{
			AssistantMessage: notConfiguredMessage,
			Mode:             mode,
			UsedMemoryCards:  pack.Memory,
		}, nil
	}

	client, err := c.clients(settings)
	if err != nil {
		return &ChatResponse{
			AssistantMessage: notConfiguredMessage,
			Mode:             mode,
			UsedMemoryCards:  pack.Memory,
		}, nil
	}
	// Compression needs a model; history keeps falling back to the sliding
	// window until one is configured.
	c.history.SetClient(client)

	// The system message carries the assembled context and is never trimmed;
	// the history sub-section lives in the user message where the trimmer can
	// drop its oldest lines.
	system := pack.Render()
	userMsg := req.Message
	if historyText := c.history.HistoryText(ctx, sessionID); historyText != "" {
		userMsg = "对话历史:\n" + historyText + "\n\n当前输入: " + req.Message
	}
	userMsg, trimmed := llm.TrimToBudget(system, userMsg, settings.MaxInputTokens)
	if trimmed {
		log.Printf("agent: trimmed history to fit input budget for session %s", sessionID)
	}

	maxTokens, temperature := modeParams(mode, settings)
	resp, err := client.Chat(ctx, llm.Request{
		Messages: []types.ChatMessage{
			{Role: types.RoleSystem, Content: system},
			{Role: types.RoleUser, Content: userMsg},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})

	out := &ChatResponse{Mode: mode, UsedMemoryCards: pack.Memory}
	if err != nil {
		// Outbound failures degrade to an assistant-visible message.
		out.AssistantMessage = fmt.Sprintf("调用模型失败了：%v", err)
		c.lightMemoryWrite(mgr, req.Message, now)
		return out, nil
	}

	out.AssistantMessage = resp.Content
	out.Usage = resp.Usage
	c.history.AppendTurn(sessionID, req.Message, resp.Content)
	c.lightMemoryWrite(mgr, req.Message, now)
	return out, nil
}

// modeOf picks task mode when the message carries a task keyword.
func modeOf(message string) string {
	for _, kw := range taskKeywords {
		if strings.Contains(message, kw) {
			return ModeTask
		}
	}
	return ModeChat
}

// modeParams resolves output tokens and temperature for the mode, bounded by
// the settings document.
func modeParams(mode string, settings types.Settings) (int, float64) {
	maxTokens := taskMaxTokens
	temperature := taskTemperature
	if mode == ModeChat {
		maxTokens = chatMaxTokens
		temperature = settings.Temperature
	}
	if settings.MaxOutputTokens > 0 && maxTokens > settings.MaxOutputTokens {
		maxTokens = settings.MaxOutputTokens
	}
	return maxTokens, temperature
}

func stateText(mode, graphSummary string) string {
	state := fmt.Sprintf("当前模式: %s. 目标: 给出有帮助且简洁的回答。", mode)
	if graphSummary != "" {
		state += "\n" + graphSummary
	}
	return state
}

// lightMemoryWrite captures stated preferences as semantic memories.
func (c *Core) lightMemoryWrite(mgr *memory.Manager, message string, now time.Time) {
	matched := false
	for _, marker := range preferenceMarkers {
		if strings.Contains(message, marker) {
			matched = true
			break
		}
	}
	if !matched {
		return
	}

	content := message
	if runes := []rune(content); len(runes) > preferenceMaxRunes {
		content = string(runes[:preferenceMaxRunes])
	}
	node := mgr.AddMemory(memory.AddMemoryInput{
		Content:    content,
		Timestamp:  now,
		Type:       string(types.MemorySemantic),
		Importance: 0.6,
		TopicTags:  []string{"偏好"},
	})
	c.sink.Publish(notify.NewEvent(notify.EventMemoryAdded, mgr.UserID(), node.Content))
}
