package history

import (
	"context"
	"errors"
	"strings"

	"github.com/scrypster/keepsake/internal/llm"
	"github.com/scrypster/keepsake/internal/tokens"
	"github.com/scrypster/keepsake/pkg/types"
)

// compressionTemperature keeps summaries stable across runs.
const compressionTemperature = 0.3

// compressionInstruction is the fixed system prompt for a compression call.
const compressionInstruction = "你是对话压缩助手。请将以下对话历史压缩成简洁的摘要，" +
	"必须保留：用户的核心需求与偏好、已做出的决定、未完成的任务、关键技术细节。" +
	"省略寒暄和无信息量的内容。直接输出摘要文本。"

// summaryLabel prefixes the stored summary when rendered.
const summaryLabel = "（前情摘要）"

// compressedText implements the compression strategy: the stored summary
// plus the cold history are re-compressed through the LLM once their
// estimate crosses the threshold; the hot tail always stays verbatim. Any
// failure, including a compression already in flight for this session,
// falls back to the sliding window for this call only and leaves stored
// state untouched.
func (m *Manager) compressedText(ctx context.Context, sessionID string) string {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok || len(s.messages) == 0 {
		summary := ""
		if ok {
			summary = s.summary
		}
		m.mu.Unlock()
		if summary != "" {
			return summaryLabel + summary
		}
		return ""
	}

	hotStart := len(s.messages) - m.cfg.HotTailMessages
	if hotStart < 0 {
		hotStart = 0
	}
	cold := append([]types.ChatMessage{}, s.messages[:hotStart]...)
	hot := append([]types.ChatMessage{}, s.messages[hotStart:]...)
	summary := s.summary

	coldText := formatMessages(cold)
	combined := summary
	if coldText != "" {
		if combined != "" {
			combined += "\n"
		}
		combined += coldText
	}

	if tokens.Estimate(combined) < m.cfg.CompressionThreshold {
		m.mu.Unlock()
		return renderCompressed(summary, hot)
	}

	if s.compressing {
		out := formatMessages(m.windowLocked(s))
		m.mu.Unlock()
		return out
	}
	client := m.client
	if client == nil {
		out := formatMessages(m.windowLocked(s))
		m.mu.Unlock()
		logCompressionFallback(sessionID, errors.New("no llm client configured"))
		return out
	}
	s.compressing = true
	m.mu.Unlock()

	newSummary, err := m.compress(ctx, client, combined)

	m.mu.Lock()
	s.compressing = false
	if err != nil {
		out := formatMessages(m.windowLocked(s))
		m.mu.Unlock()
		logCompressionFallback(sessionID, err)
		return out
	}

	// Collapse stored history down to the hot tail and keep the new summary.
	s.summary = newSummary
	s.messages = append([]types.ChatMessage{}, hot...)
	m.mu.Unlock()

	return renderCompressed(newSummary, hot)
}

func (m *Manager) compress(ctx context.Context, client llm.ChatClient, text string) (string, error) {
	resp, err := client.Chat(ctx, llm.Request{
		Messages: []types.ChatMessage{
			{Role: types.RoleSystem, Content: compressionInstruction},
			{Role: types.RoleUser, Content: text},
		},
		Temperature: compressionTemperature,
		MaxTokens:   m.cfg.CompressionTarget,
	})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", errors.New("compression returned empty summary")
	}
	return summary, nil
}

// renderCompressed joins the summary line and the verbatim tail.
func renderCompressed(summary string, tail []types.ChatMessage) string {
	tailText := formatMessages(tail)
	if summary == "" {
		return tailText
	}
	if tailText == "" {
		return summaryLabel + summary
	}
	return summaryLabel + summary + "\n" + tailText
}
