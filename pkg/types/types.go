// Package types defines the shared data model for the Keepsake memory system:
// memory nodes organized in a temporal tree, knowledge-graph entities and
// relationships, the user profile, chat messages, and the persisted settings
// document.
package types

import (
	"strings"

	"github.com/google/uuid"
)

// TimeGrain identifies the hierarchy level of a node in the temporal memory tree.
type TimeGrain string

const (
	GrainYear  TimeGrain = "year"
	GrainMonth TimeGrain = "month"
	GrainWeek  TimeGrain = "week"
	GrainDay   TimeGrain = "day"
	GrainEvent TimeGrain = "event"
)

// MemoryType classifies what kind of memory an event node holds.
type MemoryType string

const (
	// MemoryEpisodic is a concrete event ("had hotpot with Xiaoming").
	MemoryEpisodic MemoryType = "episodic"
	// MemorySemantic is abstract knowledge ("user works as an engineer").
	MemorySemantic MemoryType = "semantic"
	// MemoryProcedural is a habit or preference ("prefers short replies").
	MemoryProcedural MemoryType = "procedural"
)

// EntityType classifies knowledge-graph entities.
type EntityType string

const (
	EntityUser         EntityType = "user"
	EntityPerson       EntityType = "person"
	EntityPlace        EntityType = "place"
	EntityOrganization EntityType = "organization"
	EntityEvent        EntityType = "event"
	EntityConcept      EntityType = "concept"
	EntityObject       EntityType = "object"
)

// ValidEntityTypes lists every recognized entity type.
var ValidEntityTypes = []EntityType{
	EntityUser, EntityPerson, EntityPlace, EntityOrganization,
	EntityEvent, EntityConcept, EntityObject,
}

// ParseEntityType maps a free-form string to an EntityType, defaulting to
// EntityConcept for unrecognized values.
func ParseEntityType(s string) EntityType {
	et := EntityType(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range ValidEntityTypes {
		if et == v {
			return v
		}
	}
	return EntityConcept
}

// RelationType classifies knowledge-graph relationships.
type RelationType string

const (
	// Interpersonal relations.
	RelationFamily    RelationType = "family"
	RelationFriend    RelationType = "friend"
	RelationColleague RelationType = "colleague"
	RelationRomantic  RelationType = "romantic"

	// Organizational relations.
	RelationWorksAt   RelationType = "works_at"
	RelationStudiesAt RelationType = "studies_at"
	RelationBelongsTo RelationType = "belongs_to"

	// Event relations.
	RelationParticipatedIn RelationType = "participated_in"
	RelationCaused         RelationType = "caused"
	RelationRelatedTo      RelationType = "related_to"

	// Affective relations.
	RelationLikes    RelationType = "likes"
	RelationDislikes RelationType = "dislikes"
	RelationFears    RelationType = "fears"
	RelationWants    RelationType = "wants"
)

// relationAliases maps user-facing relation labels (including the Chinese
// labels the original conversations use) to canonical relation types.
var relationAliases = map[string]RelationType{
	"family":    RelationFamily,
	"家人":        RelationFamily,
	"friend":    RelationFriend,
	"朋友":        RelationFriend,
	"colleague": RelationColleague,
	"同事":        RelationColleague,
	"romantic":  RelationRomantic,
	"恋人":        RelationRomantic,
}

// ParseRelationType maps a free-form relation label to a RelationType,
// defaulting to RelationRelatedTo.
func ParseRelationType(s string) RelationType {
	key := strings.ToLower(strings.TrimSpace(s))
	if rt, ok := relationAliases[key]; ok {
		return rt
	}
	switch rt := RelationType(key); rt {
	case RelationWorksAt, RelationStudiesAt, RelationBelongsTo,
		RelationParticipatedIn, RelationCaused, RelationRelatedTo,
		RelationLikes, RelationDislikes, RelationFears, RelationWants:
		return rt
	}
	return RelationRelatedTo
}

// NewID returns a fresh opaque identifier. All node, entity and relationship
// ids in the system come from here.
func NewID() string {
	return uuid.NewString()
}
