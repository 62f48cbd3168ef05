package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scrypster/keepsake/pkg/types"
)

// ContextSummary renders a bounded plain-text block for prompt injection:
// profile basics followed by the top maxEntities persons by importance, each
// with its relationship description to the user. Ordering is importance
// descending; the person list is hard-truncated at maxEntities.
func (g *Graph) ContextSummary(maxEntities int) string {
	if maxEntities <= 0 {
		maxEntities = 5
	}

	var b strings.Builder

	if g.profile.Name != "" {
		fmt.Fprintf(&b, "用户: %s", g.profile.Name)
		if g.profile.Nickname != "" {
			fmt.Fprintf(&b, "（称呼: %s）", g.profile.Nickname)
		}
		b.WriteString("\n")
	}
	if len(g.profile.Interests) > 0 {
		fmt.Fprintf(&b, "兴趣: %s\n", strings.Join(g.profile.Interests, "、"))
	}

	persons := g.EntitiesByType(types.EntityPerson)
	sort.SliceStable(persons, func(i, j int) bool {
		return persons[i].Importance > persons[j].Importance
	})
	if len(persons) > maxEntities {
		persons = persons[:maxEntities]
	}

	if len(persons) > 0 {
		b.WriteString("重要的人:\n")
		for _, p := range persons {
			desc := g.relationDescriptionToUser(p.ID)
			if desc != "" {
				fmt.Fprintf(&b, "- %s（%s）\n", p.Name, desc)
			} else {
				fmt.Fprintf(&b, "- %s\n", p.Name)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// relationDescriptionToUser returns the description (falling back to the
// relation type) of the entity's edge to the user, or "".
func (g *Graph) relationDescriptionToUser(entityID string) string {
	for _, rel := range g.Relationships(entityID) {
		if rel.Other(entityID) != UserEntityID {
			continue
		}
		if rel.Description != "" {
			return rel.Description
		}
		return string(rel.Type)
	}
	return ""
}

// EntityProfile is the full read view of one entity: the entity itself, its
// relationships, and recent memory links.
type EntityProfile struct {
	Entity          *types.Entity         `json:"entity"`
	Relationships   []*types.Relationship `json:"relationships"`
	RecentMemoryIDs []string              `json:"recent_memory_ids"`
}

// EntityProfileByName resolves name and assembles its profile, or nil.
func (g *Graph) EntityProfileByName(name string) *EntityProfile {
	e := g.EntityByName(name)
	if e == nil {
		return nil
	}
	return &EntityProfile{
		Entity:          e,
		Relationships:   g.Relationships(e.ID),
		RecentMemoryIDs: e.RecentMemoryIDs,
	}
}

// TopEntities returns the n most important entities, excluding the user.
func (g *Graph) TopEntities(n int) []*types.Entity {
	out := make([]*types.Entity, 0, len(g.entities))
	for id, e := range g.entities {
		if id == UserEntityID {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
