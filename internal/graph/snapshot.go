package graph

import (
	"encoding/json"
	"fmt"

	"github.com/scrypster/keepsake/pkg/types"
)

type snapshot struct {
	Entities      map[string]*types.Entity       `json:"entities"`
	Relationships map[string]*types.Relationship `json:"relationships"`
	NameIndex     map[string]string              `json:"name_index"`
	Outgoing      map[string][]string            `json:"outgoing"`
	Incoming      map[string][]string            `json:"incoming"`
	Profile       *types.UserProfile             `json:"user_profile"`
}

// MarshalJSON serializes the full graph state. The type index is derived, so
// it is rebuilt on load rather than stored.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot{
		Entities:      g.entities,
		Relationships: g.relationships,
		NameIndex:     g.nameIndex,
		Outgoing:      g.outgoing,
		Incoming:      g.incoming,
		Profile:       g.profile,
	})
}

// UnmarshalJSON restores a graph previously produced by MarshalJSON,
// replacing any existing state and rebuilding the type index.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode knowledge graph snapshot: %w", err)
	}

	g.entities = snap.Entities
	g.relationships = snap.Relationships
	g.nameIndex = snap.NameIndex
	g.outgoing = snap.Outgoing
	g.incoming = snap.Incoming
	g.profile = snap.Profile

	if g.entities == nil {
		g.entities = map[string]*types.Entity{}
	}
	if g.relationships == nil {
		g.relationships = map[string]*types.Relationship{}
	}
	if g.nameIndex == nil {
		g.nameIndex = map[string]string{}
	}
	if g.outgoing == nil {
		g.outgoing = map[string][]string{}
	}
	if g.incoming == nil {
		g.incoming = map[string][]string{}
	}
	if g.profile == nil {
		g.profile = types.NewUserProfile()
	}

	g.typeIndex = map[types.EntityType][]string{}
	for id, e := range g.entities {
		g.typeIndex[e.Type] = append(g.typeIndex[e.Type], id)
	}
	return nil
}
