package types

import "time"

// recentMemoryCap bounds the per-entity ring of recent memory references.
const recentMemoryCap = 10

// Entity is a node in the knowledge graph: any named thing the user has
// mentioned: people, places, organizations, events, concepts, objects.
type Entity struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Aliases []string   `json:"aliases,omitempty"`
	Type    EntityType `json:"entity_type"`

	// Free-form attributes accumulated over time
	// (occupation, likes, important dates, ...).
	Attributes map[string]any `json:"attributes,omitempty"`

	// Sentiment is the user's affective stance toward the entity, in [-1,1].
	Sentiment      float64  `json:"sentiment"`
	SentimentNotes []string `json:"sentiment_notes,omitempty"`

	// Salience tracking, mirroring memory nodes.
	Importance    float64    `json:"importance"`
	MentionCount  int        `json:"mention_count"`
	LastMentioned *time.Time `json:"last_mentioned,omitempty"`

	// Memory links: first mention ever, and a capped ring of recent mentions.
	FirstMemoryID   string   `json:"first_memory_id,omitempty"`
	RecentMemoryIDs []string `json:"recent_memory_ids,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an entity with default importance.
func NewEntity(name string, et EntityType) *Entity {
	now := time.Now()
	return &Entity{
		ID:         NewID(),
		Name:       name,
		Type:       et,
		Attributes: map[string]any{},
		Importance: 0.5,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// RecordMention registers that memoryID mentioned this entity at ts. It
// increments the mention count, appends to the recent-memory ring (capped at
// 10, oldest dropped), sets the first-memory link if unset, and nudges
// importance by 0.02 up to the 1.0 cap.
func (e *Entity) RecordMention(memoryID string, ts time.Time) {
	e.MentionCount++
	e.LastMentioned = &ts

	e.RecentMemoryIDs = append(e.RecentMemoryIDs, memoryID)
	if len(e.RecentMemoryIDs) > recentMemoryCap {
		e.RecentMemoryIDs = e.RecentMemoryIDs[len(e.RecentMemoryIDs)-recentMemoryCap:]
	}

	if e.FirstMemoryID == "" {
		e.FirstMemoryID = memoryID
	}

	e.Importance += 0.02
	if e.Importance > 1.0 {
		e.Importance = 1.0
	}
	e.UpdatedAt = ts
}
