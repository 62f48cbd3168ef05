// Package forgetting implements the Ebbinghaus-style forgetting curve that
// drives memory decay and reinforcement.
//
// The core formula is R = e^(-t/S): retention R falls exponentially with the
// days t since last reinforcement, moderated by a stability S that grows with
// importance, repetition and emotional salience.
package forgetting

import (
	"math"
	"sort"
	"time"

	"github.com/scrypster/keepsake/pkg/types"
)

const hoursPerDay = 24.0

// Config holds the forgetting-curve parameters.
type Config struct {
	// MinStrength is the floor retention never drops below.
	MinStrength float64

	// MentionBoost is added to the current retention when a memory is
	// reinforced.
	MentionBoost float64

	// ImportanceDecayFactor scales how much base importance slows decay.
	ImportanceDecayFactor float64

	// RepetitionDecayFactor scales how much repeated mentions slow decay
	// (logarithmic, diminishing returns).
	RepetitionDecayFactor float64

	// ReviewIntervals are the ideal spaced-repetition intervals in days,
	// indexed by mention count and clamped to the last entry.
	ReviewIntervals []int
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return Config{
		MinStrength:           0.1,
		MentionBoost:          0.4,
		ImportanceDecayFactor: 0.5,
		RepetitionDecayFactor: 0.2,
		ReviewIntervals:       []int{1, 2, 4, 7, 15, 30, 60, 120},
	}
}

// Curve computes retention and applies reinforcement to memory nodes.
// It is stateless apart from its configuration; all state lives on the nodes.
type Curve struct {
	cfg Config
}

// NewCurve returns a Curve with cfg, falling back to defaults for zero-valued
// fields so a partially specified config stays sane.
func NewCurve(cfg Config) *Curve {
	def := DefaultConfig()
	if cfg.MinStrength <= 0 {
		cfg.MinStrength = def.MinStrength
	}
	if cfg.MentionBoost <= 0 {
		cfg.MentionBoost = def.MentionBoost
	}
	if cfg.ImportanceDecayFactor <= 0 {
		cfg.ImportanceDecayFactor = def.ImportanceDecayFactor
	}
	if cfg.RepetitionDecayFactor <= 0 {
		cfg.RepetitionDecayFactor = def.RepetitionDecayFactor
	}
	if len(cfg.ReviewIntervals) == 0 {
		cfg.ReviewIntervals = def.ReviewIntervals
	}
	return &Curve{cfg: cfg}
}

// Stability returns the memory stability S for node: higher stability means
// slower forgetting. Base 1.0 plus bonuses for importance, repetition
// (log1p, diminishing) and emotional salience (0.1 per emotion tag).
func (c *Curve) Stability(node *types.MemoryNode) float64 {
	importanceBonus := node.BaseImportance * c.cfg.ImportanceDecayFactor
	repetitionBonus := math.Log1p(float64(node.MentionCount)) * c.cfg.RepetitionDecayFactor
	emotionBonus := 0.1 * float64(len(node.EmotionTags))
	return 1.0 + importanceBonus + repetitionBonus + emotionBonus
}

// Retention returns the retention R of node at now, in [MinStrength, 1].
// Elapsed time is measured from the last mention (or creation when never
// mentioned); non-positive elapsed time returns 1.0.
func (c *Curve) Retention(node *types.MemoryNode, now time.Time) float64 {
	daysElapsed := now.Sub(node.ReinforcementBaseline()).Hours() / hoursPerDay
	if daysElapsed <= 0 {
		return 1.0
	}
	retention := math.Exp(-daysElapsed / (c.Stability(node) * 10))
	return math.Max(c.cfg.MinStrength, retention)
}

// UpdateStrength recomputes node.CurrentStrength from the curve without
// reinforcing (no mention-count change). Used by the consolidation tick.
func (c *Curve) UpdateStrength(node *types.MemoryNode, now time.Time) float64 {
	retention := c.Retention(node, now)
	node.CurrentStrength = retention
	node.UpdatedAt = now
	return retention
}

// Reinforce strengthens node at now, called when a memory is mentioned or
// surfaced by a search hit. It sets the strength to the current retention
// plus the mention boost (capped at 1), records the mention, and nudges base
// importance when the user is revisiting faster than the ideal review
// schedule.
func (c *Curve) Reinforce(node *types.MemoryNode, now time.Time) float64 {
	retention := c.Retention(node, now)

	strength := retention + c.cfg.MentionBoost
	if strength > 1.0 {
		strength = 1.0
	}

	node.CurrentStrength = strength
	node.MentionCount++
	node.LastMentioned = &now
	node.MentionHistory = append(node.MentionHistory, now)
	node.UpdatedAt = now

	c.adjustImportanceByReviewTiming(node)

	return strength
}

// adjustImportanceByReviewTiming bumps base importance by 0.05 (capped at 1)
// when the average interval between mentions is under half the ideal review
// interval for the current mention count; frequent revisits signal the
// memory matters to the user.
func (c *Curve) adjustImportanceByReviewTiming(node *types.MemoryNode) {
	if len(node.MentionHistory) < 2 {
		return
	}

	history := make([]time.Time, len(node.MentionHistory))
	copy(history, node.MentionHistory)
	sort.Slice(history, func(i, j int) bool { return history[i].Before(history[j]) })

	var totalDays float64
	for i := 1; i < len(history); i++ {
		totalDays += history[i].Sub(history[i-1]).Hours() / hoursPerDay
	}
	avgInterval := totalDays / float64(len(history)-1)

	ideal := float64(c.idealInterval(len(node.MentionHistory) - 1))
	if avgInterval < ideal*0.5 {
		node.BaseImportance += 0.05
		if node.BaseImportance > 1.0 {
			node.BaseImportance = 1.0
		}
	}
}

// idealInterval returns the ideal review interval in days for the given
// review count, clamped to the last configured entry.
func (c *Curve) idealInterval(reviewCount int) int {
	if reviewCount < 0 {
		reviewCount = 0
	}
	if reviewCount >= len(c.cfg.ReviewIntervals) {
		reviewCount = len(c.cfg.ReviewIntervals) - 1
	}
	return c.cfg.ReviewIntervals[reviewCount]
}

// BatchUpdateStrengths recomputes current strength for every node in nodes
// without reinforcement, returning the new strength keyed by node id.
func (c *Curve) BatchUpdateStrengths(nodes []*types.MemoryNode, now time.Time) map[string]float64 {
	results := make(map[string]float64, len(nodes))
	for _, node := range nodes {
		results[node.ID] = c.UpdateStrength(node, now)
	}
	return results
}

// MinStrength exposes the configured retention floor.
func (c *Curve) MinStrength() float64 {
	return c.cfg.MinStrength
}
