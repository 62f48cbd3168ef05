package types

import "time"

// Relationship is an edge in the knowledge graph connecting two entities.
// Bidirectional relationships are indexed in both directions by the graph.
type Relationship struct {
	ID       string       `json:"id"`
	SourceID string       `json:"source_id"`
	TargetID string       `json:"target_id"`
	Type     RelationType `json:"relation_type"`

	// Description is the human phrasing ("college roommate", "Xiaoming's mom").
	Description string `json:"description,omitempty"`

	Attributes map[string]any `json:"attributes,omitempty"`

	// Sentiment is the affective color of the relationship, in [-1,1].
	Sentiment float64 `json:"sentiment"`

	Bidirectional bool `json:"is_bidirectional"`

	// EvidenceMemoryIDs lists the memories supporting this relationship.
	// Confidence rises by 0.1 (capped at 1.0) per repeated evidence.
	EvidenceMemoryIDs []string `json:"evidence_memory_ids,omitempty"`
	Confidence        float64  `json:"confidence"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRelationship returns a bidirectional relationship with full confidence,
// matching how first-sighting relationships are recorded.
func NewRelationship(sourceID, targetID string, rt RelationType) *Relationship {
	now := time.Now()
	return &Relationship{
		ID:            NewID(),
		SourceID:      sourceID,
		TargetID:      targetID,
		Type:          rt,
		Bidirectional: true,
		Confidence:    1.0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AddEvidence appends a supporting memory id and bumps confidence by 0.1,
// capped at 1.0. Empty ids are ignored but the confidence bump still applies.
func (r *Relationship) AddEvidence(memoryID string) {
	if memoryID != "" {
		r.EvidenceMemoryIDs = append(r.EvidenceMemoryIDs, memoryID)
	}
	r.Confidence += 0.1
	if r.Confidence > 1.0 {
		r.Confidence = 1.0
	}
	r.UpdatedAt = time.Now()
}

// Other returns the entity on the opposite end of the edge from entityID.
// If entityID is on neither end the target is returned.
func (r *Relationship) Other(entityID string) string {
	if r.SourceID == entityID {
		return r.TargetID
	}
	return r.SourceID
}
