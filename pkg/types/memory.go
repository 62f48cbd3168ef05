package types

import "time"

// MemoryNode is the basic unit of the temporal memory tree. Event-grain nodes
// hold discrete memories; year/month/week/day nodes are synthetic aggregates
// created lazily as events are inserted.
//
// Nodes never hold pointers to each other: ParentID and ChildrenIDs are
// opaque id references resolved through the owning tree's node arena.
type MemoryNode struct {
	ID string `json:"id"`

	// Time placement
	Timestamp time.Time `json:"timestamp"`
	Grain     TimeGrain `json:"time_grain"`

	// Content
	Content string `json:"content"`                    // summary line
	Detail  string `json:"detail,omitempty"`           // expandable detail
	Raw     string `json:"raw_conversation,omitempty"` // raw dialogue excerpt; pruned by consolidation

	// Classification
	Type        MemoryType `json:"memory_type"`
	EmotionTags []string   `json:"emotion_tags,omitempty"`
	TopicTags   []string   `json:"topic_tags,omitempty"`

	// Forgetting-curve state
	BaseImportance  float64     `json:"base_importance"`  // [0,1]
	CurrentStrength float64     `json:"current_strength"` // [0,1], retention output
	MentionCount    int         `json:"mention_count"`
	LastMentioned   *time.Time  `json:"last_mentioned,omitempty"`
	MentionHistory  []time.Time `json:"mention_history,omitempty"`

	// Tree structure (id references, no owning pointers)
	ParentID    string   `json:"parent_id,omitempty"`
	ChildrenIDs []string `json:"children_ids,omitempty"`

	// Graph links
	LinkedEntities []string `json:"linked_entities,omitempty"`

	// Metadata
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Consolidated bool      `json:"is_consolidated"`
}

// NewMemoryNode returns an event-grain node with the system defaults: medium
// base importance and full initial strength.
func NewMemoryNode(content string, ts time.Time) *MemoryNode {
	now := time.Now()
	if ts.IsZero() {
		ts = now
	}
	return &MemoryNode{
		ID:              NewID(),
		Timestamp:       ts,
		Grain:           GrainEvent,
		Content:         content,
		Type:            MemoryEpisodic,
		BaseImportance:  0.5,
		CurrentStrength: 1.0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// EffectiveImportance combines base importance, the decayed strength, and a
// mention-frequency bonus (0.05 per mention, capped at 0.3). The result is
// capped at 1.0.
func (n *MemoryNode) EffectiveImportance() float64 {
	bonus := float64(n.MentionCount) * 0.05
	if bonus > 0.3 {
		bonus = 0.3
	}
	v := n.BaseImportance*n.CurrentStrength + bonus
	if v > 1.0 {
		return 1.0
	}
	return v
}

// ReinforcementBaseline returns the timestamp decay is measured from: the
// last mention when one exists, otherwise the creation time.
func (n *MemoryNode) ReinforcementBaseline() time.Time {
	if n.LastMentioned != nil && !n.LastMentioned.IsZero() {
		return *n.LastMentioned
	}
	return n.CreatedAt
}

// IsEvent reports whether the node is an event-grain leaf.
func (n *MemoryNode) IsEvent() bool {
	return n.Grain == GrainEvent
}
