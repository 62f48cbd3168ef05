// Package graph maintains the knowledge graph: entities the user has
// mentioned, typed relationships between them, and the user profile built up
// from conversation.
package graph

import (
	"strings"
	"time"

	"github.com/scrypster/keepsake/pkg/types"
)

// UserEntityID is the reserved id for the entity representing the user.
const UserEntityID = "user"

// Graph holds entities and relationships for one user. Not safe for
// concurrent writers; the owning manager serializes access.
type Graph struct {
	entities      map[string]*types.Entity
	relationships map[string]*types.Relationship

	nameIndex map[string]string   // lower(name) -> entity id
	typeIndex map[types.EntityType][]string

	// Adjacency lists relationship ids per entity. Bidirectional
	// relationships appear in the outgoing list of both endpoints.
	outgoing map[string][]string
	incoming map[string][]string

	profile *types.UserProfile
}

// New returns an empty graph with the user entity pre-created.
func New() *Graph {
	g := &Graph{
		entities:      map[string]*types.Entity{},
		relationships: map[string]*types.Relationship{},
		nameIndex:     map[string]string{},
		typeIndex:     map[types.EntityType][]string{},
		outgoing:      map[string][]string{},
		incoming:      map[string][]string{},
		profile:       types.NewUserProfile(),
	}
	user := &types.Entity{
		ID:         UserEntityID,
		Name:       "用户",
		Type:       types.EntityUser,
		Importance: 1.0,
		CreatedAt:  time.Now(),
	}
	g.indexEntity(user)
	return g
}

func (g *Graph) indexEntity(e *types.Entity) {
	g.entities[e.ID] = e
	g.nameIndex[strings.ToLower(e.Name)] = e.ID
	g.typeIndex[e.Type] = append(g.typeIndex[e.Type], e.ID)
}

// GetOrCreateEntity resolves name case-insensitively and creates the entity
// when absent. The entity type is only set at creation time; a later lookup
// with a different type does not retype an existing entity.
func (g *Graph) GetOrCreateEntity(name string, entityType types.EntityType) *types.Entity {
	if id, ok := g.nameIndex[strings.ToLower(name)]; ok {
		return g.entities[id]
	}
	e := types.NewEntity(name, entityType)
	g.indexEntity(e)
	return e
}

// Entity returns the entity with id, or nil.
func (g *Graph) Entity(id string) *types.Entity {
	return g.entities[id]
}

// EntityByName resolves a name case-insensitively, or returns nil.
func (g *Graph) EntityByName(name string) *types.Entity {
	if id, ok := g.nameIndex[strings.ToLower(name)]; ok {
		return g.entities[id]
	}
	return nil
}

// EntitiesByType returns all entities of the given type.
func (g *Graph) EntitiesByType(entityType types.EntityType) []*types.Entity {
	ids := g.typeIndex[entityType]
	out := make([]*types.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := g.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// RecordMention bumps an entity's mention stats for a memory observed at ts.
func (g *Graph) RecordMention(entityID, memoryID string, ts time.Time) {
	if e, ok := g.entities[entityID]; ok {
		e.RecordMention(memoryID, ts)
	}
}

// CreateRelationshipBetween links two entities by name, creating missing
// endpoints as persons since relations are asserted between people in the
// common case. When a relationship of the same type already exists between
// the pair, the memory is added as evidence instead of creating a duplicate
// edge. Returns the resulting relationship.
func (g *Graph) CreateRelationshipBetween(sourceName, targetName string, relType types.RelationType, description, memoryID string) *types.Relationship {
	source := g.resolveEndpoint(sourceName)
	target := g.resolveEndpoint(targetName)

	if existing := g.FindRelationship(source.ID, target.ID, relType); existing != nil {
		// Repetition strengthens the edge; the first description stays.
		existing.AddEvidence(memoryID)
		return existing
	}

	rel := types.NewRelationship(source.ID, target.ID, relType)
	rel.Description = description
	if memoryID != "" {
		rel.EvidenceMemoryIDs = append(rel.EvidenceMemoryIDs, memoryID)
	}

	g.relationships[rel.ID] = rel
	g.outgoing[source.ID] = append(g.outgoing[source.ID], rel.ID)
	g.incoming[target.ID] = append(g.incoming[target.ID], rel.ID)
	if rel.Bidirectional {
		g.outgoing[target.ID] = append(g.outgoing[target.ID], rel.ID)
		g.incoming[source.ID] = append(g.incoming[source.ID], rel.ID)
	}
	return rel
}

// resolveEndpoint maps the literal names "用户"/"user"/"我" to the user
// entity and anything else through GetOrCreateEntity.
func (g *Graph) resolveEndpoint(name string) *types.Entity {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "用户", "user", "我":
		return g.entities[UserEntityID]
	}
	return g.GetOrCreateEntity(name, types.EntityPerson)
}

// FindRelationship returns the relationship of relType between a and b, in
// either direction, or nil.
func (g *Graph) FindRelationship(aID, bID string, relType types.RelationType) *types.Relationship {
	for _, relID := range g.outgoing[aID] {
		rel, ok := g.relationships[relID]
		if !ok || rel.Type != relType {
			continue
		}
		if (rel.SourceID == aID && rel.TargetID == bID) ||
			(rel.SourceID == bID && rel.TargetID == aID) {
			return rel
		}
	}
	return nil
}

// Relationships returns every relationship touching the entity.
func (g *Graph) Relationships(entityID string) []*types.Relationship {
	seen := map[string]bool{}
	var out []*types.Relationship
	for _, relID := range append(append([]string{}, g.outgoing[entityID]...), g.incoming[entityID]...) {
		if seen[relID] {
			continue
		}
		seen[relID] = true
		if rel, ok := g.relationships[relID]; ok {
			out = append(out, rel)
		}
	}
	return out
}

// EntityCount returns the number of entities, excluding none.
func (g *Graph) EntityCount() int {
	return len(g.entities)
}

// RelationshipCount returns the number of relationship edges.
func (g *Graph) RelationshipCount() int {
	return len(g.relationships)
}

// Profile returns the mutable user profile.
func (g *Graph) Profile() *types.UserProfile {
	return g.profile
}

// UpdateUserProfile merges an update into the profile.
func (g *Graph) UpdateUserProfile(update types.ProfileUpdate) {
	g.profile.Apply(update)
}
