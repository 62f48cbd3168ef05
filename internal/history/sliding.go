package history

import (
	"github.com/scrypster/keepsake/pkg/types"
)

// slidingWindowText renders the most recent messages whose cumulative token
// estimate fits the window budget, walking newest to oldest and stopping at
// the first message that would overflow.
func (m *Manager) slidingWindowText(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || len(s.messages) == 0 {
		return ""
	}
	return formatMessages(m.windowLocked(s))
}

func (m *Manager) windowLocked(s *session) []types.ChatMessage {
	used := 0
	start := len(s.messages)
	for i := len(s.messages) - 1; i >= 0; i-- {
		cost := estimateMessages(s.messages[i : i+1])
		if used+cost > m.cfg.WindowBudget {
			break
		}
		used += cost
		start = i
	}
	return s.messages[start:]
}
