package importer

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/keepsake/pkg/types"
)

// sessionFrontmatter is the YAML header of a markdown session file.
type sessionFrontmatter struct {
	User  string   `yaml:"user"`
	Title string   `yaml:"title"`
	Date  string   `yaml:"date"`
	Tags  []string `yaml:"tags"`
}

// Session is a parsed markdown session transcript.
type Session struct {
	UserID   string
	Title    string
	Date     time.Time
	Tags     []string
	Messages []types.ChatMessage
}

// Speaker prefixes recognised in session bodies. The formats match the
// rendered history text, so exported sessions round-trip.
const (
	userPrefix      = "用户: "
	assistantPrefix = "助手: "
)

// ParseSessionMarkdown parses a markdown session file: optional YAML
// frontmatter between --- delimiters, then a transcript of 用户:/助手: lines.
// Lines without a speaker prefix continue the previous message.
func ParseSessionMarkdown(content []byte) (*Session, error) {
	fm, body, err := splitFrontmatter(string(content))
	if err != nil {
		return nil, err
	}

	session := &Session{
		UserID: fm.User,
		Title:  fm.Title,
		Tags:   fm.Tags,
	}
	if fm.Date != "" {
		ts, err := parseDate(fm.Date)
		if err != nil {
			return nil, fmt.Errorf("importer: invalid session date %q: %w", fm.Date, err)
		}
		session.Date = ts
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, userPrefix):
			session.Messages = append(session.Messages, types.ChatMessage{
				Role:    types.RoleUser,
				Content: strings.TrimPrefix(line, userPrefix),
			})
		case strings.HasPrefix(line, assistantPrefix):
			session.Messages = append(session.Messages, types.ChatMessage{
				Role:    types.RoleAssistant,
				Content: strings.TrimPrefix(line, assistantPrefix),
			})
		default:
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || len(session.Messages) == 0 {
				continue
			}
			last := &session.Messages[len(session.Messages)-1]
			last.Content += "\n" + line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("importer: failed to scan session body: %w", err)
	}
	return session, nil
}

// splitFrontmatter separates the YAML frontmatter from the body. Files
// without a leading --- line have no frontmatter.
func splitFrontmatter(text string) (sessionFrontmatter, string, error) {
	var fm sessionFrontmatter

	lines := strings.SplitAfter(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return fm, text, nil
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			header := strings.Join(lines[1:i], "")
			if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
				return fm, "", fmt.Errorf("importer: invalid frontmatter: %w", err)
			}
			return fm, strings.Join(lines[i+1:], ""), nil
		}
	}
	return fm, "", fmt.Errorf("importer: unterminated frontmatter")
}

// parseDate accepts a date with or without a time of day.
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date format")
}
