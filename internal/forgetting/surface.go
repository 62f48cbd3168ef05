package forgetting

import (
	"math"
	"sort"
	"time"

	"github.com/scrypster/keepsake/pkg/types"
)

// ForecastPoint is a projected retention value at a future instant.
type ForecastPoint struct {
	At       time.Time `json:"at"`
	Strength float64   `json:"strength"`
}

// MemoriesToSurface ranks candidates worth proactively bringing up at the
// start of a conversation. Only memories with strength strictly between
// strengthThreshold and 0.9 qualify: too fresh needs no review, too faded is
// likely gone. Candidates score urgency × importance × (1 - strength), where
// urgency peaks when the days since the last mention match the ideal review
// interval. Returns the top-k by score.
func (c *Curve) MemoriesToSurface(nodes []*types.MemoryNode, now time.Time, strengthThreshold float64, topK int) []*types.MemoryNode {
	if strengthThreshold <= 0 {
		strengthThreshold = 0.3
	}
	if topK <= 0 {
		topK = 5
	}

	type scored struct {
		node  *types.MemoryNode
		score float64
	}
	var candidates []scored

	for _, node := range nodes {
		strength := c.Retention(node, now)
		if strength >= 0.9 || strength <= strengthThreshold {
			continue
		}

		daysSince := now.Sub(node.ReinforcementBaseline()).Hours() / hoursPerDay
		ideal := float64(c.idealInterval(len(node.MentionHistory)))

		urgency := 1.0 - math.Abs(daysSince-ideal)/ideal
		if urgency < 0 {
			urgency = 0
		}

		candidates = append(candidates, scored{
			node:  node,
			score: urgency * node.BaseImportance * (1 - strength),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]*types.MemoryNode, len(candidates))
	for i, cand := range candidates {
		out[i] = cand.node
	}
	return out
}

// IdentifyFading returns the nodes whose current retention has dropped below
// threshold.
func (c *Curve) IdentifyFading(nodes []*types.MemoryNode, now time.Time, threshold float64) []*types.MemoryNode {
	var fading []*types.MemoryNode
	for _, node := range nodes {
		if c.Retention(node, now) < threshold {
			fading = append(fading, node)
		}
	}
	return fading
}

// Forecast projects node retention at daily offsets from now through
// daysAhead, without mutating the node.
func (c *Curve) Forecast(node *types.MemoryNode, now time.Time, daysAhead int) []ForecastPoint {
	points := make([]ForecastPoint, 0, daysAhead+1)
	for day := 0; day <= daysAhead; day++ {
		at := now.Add(time.Duration(day) * 24 * time.Hour)
		points = append(points, ForecastPoint{At: at, Strength: c.Retention(node, at)})
	}
	return points
}

// SuggestReviewTime recommends when node should next be revisited: the ideal
// interval for its review count, stretched for low-importance memories, from
// the last mention. Suggestions already in the past clamp to now.
func (c *Curve) SuggestReviewTime(node *types.MemoryNode, now time.Time) time.Time {
	ideal := float64(c.idealInterval(len(node.MentionHistory)))
	adjusted := ideal * (1 + (1-node.BaseImportance)*0.5)

	suggested := node.ReinforcementBaseline().Add(time.Duration(adjusted * float64(24*time.Hour)))
	if suggested.Before(now) {
		return now
	}
	return suggested
}
