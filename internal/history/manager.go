// Package history manages per-session conversation history with two
// interchangeable strategies: a token-budgeted sliding window and LLM-backed
// compression with a hot tail of recent turns.
package history

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/scrypster/keepsake/internal/llm"
	"github.com/scrypster/keepsake/internal/tokens"
	"github.com/scrypster/keepsake/pkg/types"
)

// Config tunes the history manager.
type Config struct {
	// Strategy is types.HistoryStrategyCompression or
	// types.HistoryStrategySlidingWindow.
	Strategy string
	// WindowBudget is the sliding-window token budget.
	WindowBudget int
	// MaxTurns caps raw per-session history at 2×MaxTurns messages.
	MaxTurns int
	// HotTailMessages is how many trailing messages stay verbatim under
	// compression (2 turns = 4 messages).
	HotTailMessages int
	// CompressionThreshold is the token estimate above which the summary
	// plus cold history is recompressed.
	CompressionThreshold int
	// CompressionTarget is the requested output size of a compression call.
	CompressionTarget int
}

// DefaultConfig returns the standard history tuning.
func DefaultConfig() Config {
	return Config{
		Strategy:             types.HistoryStrategyCompression,
		WindowBudget:         1200,
		MaxTurns:             10,
		HotTailMessages:      4,
		CompressionThreshold: 1000,
		CompressionTarget:    200,
	}
}

// session is one conversation's mutable history state. The compressing flag
// guards against two overlapping compression calls for the same session; it
// does not protect ordinary appends.
type session struct {
	messages    []types.ChatMessage
	summary     string
	compressing bool
}

// Manager owns all session histories for one process.
type Manager struct {
	cfg    Config
	client llm.ChatClient // nil until the provider is configured

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager returns a manager; zero config fields fall back to defaults.
func NewManager(cfg Config, client llm.ChatClient) *Manager {
	def := DefaultConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.WindowBudget <= 0 {
		cfg.WindowBudget = def.WindowBudget
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = def.MaxTurns
	}
	if cfg.HotTailMessages <= 0 {
		cfg.HotTailMessages = def.HotTailMessages
	}
	if cfg.CompressionThreshold <= 0 {
		cfg.CompressionThreshold = def.CompressionThreshold
	}
	if cfg.CompressionTarget <= 0 {
		cfg.CompressionTarget = def.CompressionTarget
	}
	return &Manager{
		cfg:      cfg,
		client:   client,
		sessions: map[string]*session{},
	}
}

// SetClient swaps the compression client, e.g. after a settings change.
func (m *Manager) SetClient(client llm.ChatClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = client
}

// SetStrategy switches the active strategy for subsequent calls.
func (m *Manager) SetStrategy(strategy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strategy == types.HistoryStrategyCompression || strategy == types.HistoryStrategySlidingWindow {
		m.cfg.Strategy = strategy
	}
}

// SetCompression applies the per-user compression tuning from the settings
// document. Non-positive values leave the current tuning in place.
func (m *Manager) SetCompression(threshold, target int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if threshold > 0 {
		m.cfg.CompressionThreshold = threshold
	}
	if target > 0 {
		m.cfg.CompressionTarget = target
	}
}

func (m *Manager) sessionLocked(id string) *session {
	s, ok := m.sessions[id]
	if !ok {
		s = &session{}
		m.sessions[id] = s
	}
	return s
}

// AppendTurn records one completed turn: the user message then the assistant
// reply. Raw history is hard-capped at 2×MaxTurns messages, trimming
// oldest-first, regardless of strategy.
func (m *Manager) AppendTurn(sessionID, userContent, assistantContent string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessionLocked(sessionID)
	s.messages = append(s.messages,
		types.ChatMessage{Role: types.RoleUser, Content: userContent},
		types.ChatMessage{Role: types.RoleAssistant, Content: assistantContent},
	)

	maxMessages := 2 * m.cfg.MaxTurns
	if len(s.messages) > maxMessages {
		s.messages = s.messages[len(s.messages)-maxMessages:]
	}
}

// Load clears and replaces a session's history with an externally stored
// transcript. The stored summary is discarded.
func (m *Manager) Load(sessionID string, messages []types.ChatMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessionLocked(sessionID)
	s.messages = append([]types.ChatMessage{}, messages...)
	s.summary = ""

	maxMessages := 2 * m.cfg.MaxTurns
	if len(s.messages) > maxMessages {
		s.messages = s.messages[len(s.messages)-maxMessages:]
	}
}

// Clear drops a session entirely.
func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Messages returns a copy of the raw message list for a session.
func (m *Manager) Messages(sessionID string) []types.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	return append([]types.ChatMessage{}, s.messages...)
}

// HistoryText renders the session history for prompt injection according to
// the active strategy. Compression failures degrade to the sliding window
// for this call only.
func (m *Manager) HistoryText(ctx context.Context, sessionID string) string {
	if m.strategy() == types.HistoryStrategyCompression {
		return m.compressedText(ctx, sessionID)
	}
	return m.slidingWindowText(sessionID)
}

func (m *Manager) strategy() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Strategy
}

// formatMessages renders messages one per line with role labels.
func formatMessages(messages []types.ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleUser:
			b.WriteString("用户: ")
		case types.RoleAssistant:
			b.WriteString("助手: ")
		default:
			b.WriteString(msg.Role + ": ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// estimateMessages sums token estimates with per-message overhead.
func estimateMessages(messages []types.ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += tokens.EstimateMessages(msg.Content, 1)
	}
	return total
}

func logCompressionFallback(sessionID string, err error) {
	log.Printf("history: compression failed for session %s, falling back to sliding window: %v", sessionID, err)
}
