package graph

import (
	"github.com/scrypster/keepsake/pkg/types"
)

// RelatedEntity is one reachable entity with the relationship edge and path
// that first discovered it. Path lists entity ids from the start entity to
// this one, endpoints included.
type RelatedEntity struct {
	Entity       *types.Entity       `json:"entity"`
	Relationship *types.Relationship `json:"relationship"`
	Distance     int                 `json:"distance"`
	Path         []string            `json:"path"`
}

// RelatedEntities walks the graph breadth-first from entityID up to maxDepth
// hops and returns each reachable entity once, at its shortest distance, with
// the path that first discovered it (no relaxation). When relTypes is
// non-empty, only edges of those types are traversed.
func (g *Graph) RelatedEntities(entityID string, maxDepth int, relTypes ...types.RelationType) []*RelatedEntity {
	if maxDepth <= 0 {
		maxDepth = 1
	}
	if _, ok := g.entities[entityID]; !ok {
		return nil
	}

	allowed := map[types.RelationType]bool{}
	for _, rt := range relTypes {
		allowed[rt] = true
	}

	visited := map[string]bool{entityID: true}
	var out []*RelatedEntity

	type hop struct {
		id    string
		depth int
		path  []string
	}
	queue := []hop{{entityID, 0, []string{entityID}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, relID := range g.outgoing[cur.id] {
			rel, ok := g.relationships[relID]
			if !ok {
				continue
			}
			if len(allowed) > 0 && !allowed[rel.Type] {
				continue
			}
			otherID := rel.Other(cur.id)
			if visited[otherID] {
				continue
			}
			visited[otherID] = true
			other, ok := g.entities[otherID]
			if !ok {
				continue
			}
			path := append(append([]string{}, cur.path...), otherID)
			out = append(out, &RelatedEntity{
				Entity:       other,
				Relationship: rel,
				Distance:     cur.depth + 1,
				Path:         path,
			})
			queue = append(queue, hop{otherID, cur.depth + 1, path})
		}
	}
	return out
}

// FindPath returns the shortest chain of entity ids from fromID to toID, both
// endpoints included, or nil when no path exists within maxDepth hops.
func (g *Graph) FindPath(fromID, toID string, maxDepth int) []string {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if _, ok := g.entities[fromID]; !ok {
		return nil
	}
	if _, ok := g.entities[toID]; !ok {
		return nil
	}
	if fromID == toID {
		return []string{fromID}
	}

	parent := map[string]string{fromID: ""}
	queue := []string{fromID}
	depth := map[string]int{fromID: 0}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if depth[cur] >= maxDepth {
			continue
		}
		for _, relID := range g.outgoing[cur] {
			rel, ok := g.relationships[relID]
			if !ok {
				continue
			}
			otherID := rel.Other(cur)
			if _, seen := parent[otherID]; seen {
				continue
			}
			parent[otherID] = cur
			depth[otherID] = depth[cur] + 1
			if otherID == toID {
				var path []string
				for id := toID; id != ""; id = parent[id] {
					path = append([]string{id}, path...)
				}
				return path
			}
			queue = append(queue, otherID)
		}
	}
	return nil
}

// SocialCircle groups the user's direct relationships by closeness.
type SocialCircle struct {
	Family     []*RelatedEntity `json:"family"`
	Friends    []*RelatedEntity `json:"friends"`
	Colleagues []*RelatedEntity `json:"colleagues"`
	Romantic   []*RelatedEntity `json:"romantic"`
	Others     []*RelatedEntity `json:"others"`
}

// SocialCircleOf buckets every person entity by its relationship type to the
// center (defaulting to the user entity). Persons with no relationship to the
// center land in Others.
func (g *Graph) SocialCircleOf(centerID string) *SocialCircle {
	if centerID == "" {
		centerID = UserEntityID
	}
	circle := &SocialCircle{}

	for _, person := range g.EntitiesByType(types.EntityPerson) {
		if person.ID == centerID {
			continue
		}
		var edge *types.Relationship
		for _, rel := range g.Relationships(person.ID) {
			if rel.Other(person.ID) == centerID {
				edge = rel
				break
			}
		}
		member := &RelatedEntity{Entity: person, Relationship: edge, Distance: 1}
		if edge == nil {
			circle.Others = append(circle.Others, member)
			continue
		}
		switch edge.Type {
		case types.RelationFamily:
			circle.Family = append(circle.Family, member)
		case types.RelationFriend:
			circle.Friends = append(circle.Friends, member)
		case types.RelationColleague:
			circle.Colleagues = append(circle.Colleagues, member)
		case types.RelationRomantic:
			circle.Romantic = append(circle.Romantic, member)
		default:
			circle.Others = append(circle.Others, member)
		}
	}
	return circle
}
