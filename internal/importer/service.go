package importer

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/scrypster/keepsake/internal/history"
	"github.com/scrypster/keepsake/internal/memory"
	"github.com/scrypster/keepsake/internal/store"
	"github.com/scrypster/keepsake/pkg/types"
)

// Service loads parsed transcripts into conversation history and, for session
// files that carry enough context, into memory.
type Service struct {
	history     *history.Manager
	managers    *store.Managers
	defaultUser string
}

// NewService wires the importer to the history manager and the per-user
// memory managers. defaultUser receives transcripts that do not name a user.
func NewService(hist *history.Manager, managers *store.Managers, defaultUser string) *Service {
	if defaultUser == "" {
		defaultUser = "default"
	}
	return &Service{history: hist, managers: managers, defaultUser: defaultUser}
}

// LoadConversation replaces userID's history with the conversation's user and
// assistant turns. Returns the number of loaded messages.
func (s *Service) LoadConversation(userID string, detail *types.ConversationDetail) int {
	if userID == "" {
		userID = s.defaultUser
	}
	var msgs []types.ChatMessage
	for _, m := range detail.Messages {
		if m.Role == types.RoleUser || m.Role == types.RoleAssistant {
			msgs = append(msgs, m)
		}
	}
	s.history.Load(userID, msgs)
	return len(msgs)
}

// ImportSession loads a markdown session's transcript into history and
// records the session itself as a memory when it has a title or tags.
func (s *Service) ImportSession(sess *Session) error {
	userID := sess.UserID
	if userID == "" {
		userID = s.defaultUser
	}
	s.history.Load(userID, sess.Messages)

	if sess.Title == "" && len(sess.Tags) == 0 {
		return nil
	}
	mgr, err := s.managers.Manager(userID)
	if err != nil {
		return fmt.Errorf("importer: failed to open memory for %s: %w", userID, err)
	}
	content := sess.Title
	if content == "" {
		content = "导入了一段对话记录"
	}
	mgr.AddMemory(memory.AddMemoryInput{
		Content:   content,
		Timestamp: sess.Date,
		TopicTags: sess.Tags,
	})
	return nil
}

// ImportFile imports one dropped transcript file by extension: .md session
// files and .json conversation exports. For exports, the most recently
// updated conversation is loaded.
func (s *Service) ImportFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("importer: failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		sess, err := ParseSessionMarkdown(data)
		if err != nil {
			return err
		}
		if err := s.ImportSession(sess); err != nil {
			return err
		}
		log.Printf("importer: loaded session %s (%d messages)", filepath.Base(path), len(sess.Messages))
		return nil
	case ".json":
		summaries, err := ParseSummaries(data)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			return fmt.Errorf("importer: no conversations in %s", path)
		}
		detail, err := ParseDetail(data, summaries[0].ConversationID)
		if err != nil {
			return err
		}
		if detail == nil {
			return fmt.Errorf("importer: conversation %s not found in %s", summaries[0].ConversationID, path)
		}
		n := s.LoadConversation(s.defaultUser, detail)
		log.Printf("importer: loaded conversation %q (%d messages)", detail.Title, n)
		return nil
	default:
		return fmt.Errorf("importer: unsupported file type %s", path)
	}
}
