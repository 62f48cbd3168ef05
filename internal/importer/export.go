// Package importer parses exported conversation documents so their turns can
// be loaded into history and memory.
package importer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/scrypster/keepsake/pkg/types"
)

// exportConversation mirrors one conversation in an exported conversations
// JSON document. Messages live in a mapping of tree nodes rather than a flat
// list.
type exportConversation struct {
	ConversationID string                `json:"conversation_id"`
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	CreateTime     float64               `json:"create_time"`
	UpdateTime     float64               `json:"update_time"`
	Mapping        map[string]exportNode `json:"mapping"`
}

func (c *exportConversation) id() string {
	if c.ConversationID != "" {
		return c.ConversationID
	}
	return c.ID
}

func (c *exportConversation) title() string {
	if c.Title == "" {
		return "Untitled"
	}
	return c.Title
}

type exportNode struct {
	Message  *exportMessage `json:"message"`
	Parent   *string        `json:"parent"`
	Children []string       `json:"children"`
}

type exportMessage struct {
	ID         string        `json:"id"`
	Author     exportAuthor  `json:"author"`
	Content    exportContent `json:"content"`
	CreateTime float64       `json:"create_time"`
}

type exportAuthor struct {
	Role string `json:"role"`
}

type exportContent struct {
	ContentType string            `json:"content_type"`
	Parts       []json.RawMessage `json:"parts"`
}

// text joins the string parts of a text message. Non-text content types and
// non-string parts (image references) yield an empty string.
func (c exportContent) text() string {
	if c.ContentType != "text" {
		return ""
	}
	var parts []string
	for _, raw := range c.Parts {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n")
}

// ParseSummaries returns the title-level view of an exported conversations
// document, most recently updated first.
func ParseSummaries(data []byte) ([]types.ConversationSummary, error) {
	var doc []exportConversation
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("importer: invalid conversations document: %w", err)
	}

	summaries := make([]types.ConversationSummary, 0, len(doc))
	for i := range doc {
		conv := &doc[i]
		count := 0
		for _, node := range conv.Mapping {
			if node.Message != nil {
				count++
			}
		}
		summaries = append(summaries, types.ConversationSummary{
			ConversationID: conv.id(),
			Title:          conv.title(),
			CreateTime:     conv.CreateTime,
			UpdateTime:     conv.UpdateTime,
			MessageCount:   count,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdateTime > summaries[j].UpdateTime
	})
	return summaries, nil
}

// ParseDetail extracts one conversation's ordered messages from the document.
// The mapping tree is walked from its roots and messages are ordered by
// create time. Returns nil when the conversation id is absent.
func ParseDetail(data []byte, conversationID string) (*types.ConversationDetail, error) {
	var doc []exportConversation
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("importer: invalid conversations document: %w", err)
	}

	var conv *exportConversation
	for i := range doc {
		if doc[i].id() == conversationID {
			conv = &doc[i]
			break
		}
	}
	if conv == nil {
		return nil, nil
	}

	type stamped struct {
		msg        types.ChatMessage
		createTime float64
	}
	var collected []stamped
	visited := make(map[string]bool)

	var walk func(nodeID string)
	walk = func(nodeID string) {
		if visited[nodeID] {
			return
		}
		node, ok := conv.Mapping[nodeID]
		if !ok {
			return
		}
		visited[nodeID] = true

		if node.Message != nil {
			if text := node.Message.Content.text(); text != "" {
				role := node.Message.Author.Role
				if role == "" {
					role = "unknown"
				}
				collected = append(collected, stamped{
					msg:        types.ChatMessage{Role: role, Content: text},
					createTime: node.Message.CreateTime,
				})
			}
		}
		for _, child := range node.Children {
			walk(child)
		}
	}

	// Roots are nodes whose parent is absent from the mapping.
	var roots []string
	for nodeID, node := range conv.Mapping {
		if node.Parent == nil {
			roots = append(roots, nodeID)
			continue
		}
		if _, ok := conv.Mapping[*node.Parent]; !ok {
			roots = append(roots, nodeID)
		}
	}
	sort.Strings(roots)
	for _, root := range roots {
		walk(root)
	}

	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].createTime < collected[j].createTime
	})
	messages := make([]types.ChatMessage, len(collected))
	for i, s := range collected {
		messages[i] = s.msg
	}

	return &types.ConversationDetail{
		ConversationID: conversationID,
		Title:          conv.title(),
		Messages:       messages,
		CreateTime:     conv.CreateTime,
		UpdateTime:     conv.UpdateTime,
	}, nil
}

// SearchSummaries filters summaries by case-insensitive title substring.
func SearchSummaries(data []byte, query string, limit int) ([]types.ConversationSummary, error) {
	all, err := ParseSummaries(data)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10000
	}
	q := strings.ToLower(query)
	var out []types.ConversationSummary
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.Title), q) {
			out = append(out, s)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
