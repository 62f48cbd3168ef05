// Package consolidation runs the periodic memory maintenance batch: decay
// recompute, short-term to long-term summarization by day, and detail
// pruning of faded low-importance memories.
package consolidation

import (
	"sort"
	"strings"
	"time"

	"github.com/scrypster/keepsake/internal/forgetting"
	"github.com/scrypster/keepsake/internal/memtree"
	"github.com/scrypster/keepsake/pkg/types"
)

// Config tunes the consolidation batch.
type Config struct {
	// IntervalHours is the minimum gap between runs.
	IntervalHours int
	// ShortTermRetentionHours is how old an event must be before it is
	// summarized into its day.
	ShortTermRetentionHours int
	// DailySummaryMaxLength caps the generated day summary, in runes.
	DailySummaryMaxLength int
	// MinImportanceToKeep is the effective-importance floor below which a
	// faded memory loses its raw detail.
	MinImportanceToKeep float64
	// PruneStrengthCeiling: detail is pruned only when strength is also
	// below this.
	PruneStrengthCeiling float64
	// SummaryTopEvents is how many events feed each day summary.
	SummaryTopEvents int
}

// DefaultConfig returns the standard consolidation tuning.
func DefaultConfig() Config {
	return Config{
		IntervalHours:           24,
		ShortTermRetentionHours: 48,
		DailySummaryMaxLength:   500,
		MinImportanceToKeep:     0.2,
		PruneStrengthCeiling:    0.3,
		SummaryTopEvents:        5,
	}
}

// summarySeparator joins event fragments in a daily summary.
const summarySeparator = "；"

// DayAction describes what one run did for one calendar day.
type DayAction struct {
	Day          string `json:"day"`
	Summary      string `json:"summary"`
	Consolidated int    `json:"consolidated"`
}

// Report is the structured result of one consolidation run.
type Report struct {
	Timestamp          time.Time   `json:"timestamp"`
	EventsScanned      int         `json:"events_scanned"`
	EventsConsolidated int         `json:"events_consolidated"`
	DetailsPruned      int         `json:"details_pruned"`
	Days               []DayAction `json:"days,omitempty"`
}

// Consolidator owns the batch schedule for one user's tree.
type Consolidator struct {
	cfg   Config
	curve *forgetting.Curve

	lastRun time.Time
}

// New returns a consolidator that has never run.
func New(cfg Config, curve *forgetting.Curve) *Consolidator {
	if cfg.IntervalHours <= 0 {
		cfg.IntervalHours = 24
	}
	if cfg.ShortTermRetentionHours <= 0 {
		cfg.ShortTermRetentionHours = 48
	}
	if cfg.DailySummaryMaxLength <= 0 {
		cfg.DailySummaryMaxLength = 500
	}
	if cfg.SummaryTopEvents <= 0 {
		cfg.SummaryTopEvents = 5
	}
	return &Consolidator{cfg: cfg, curve: curve}
}

// ShouldConsolidate reports whether the interval has elapsed since the last
// run. A consolidator that has never run always returns true.
func (c *Consolidator) ShouldConsolidate(now time.Time) bool {
	if c.lastRun.IsZero() {
		return true
	}
	return now.Sub(c.lastRun) >= time.Duration(c.cfg.IntervalHours)*time.Hour
}

// LastRun returns the time of the previous run, zero if none.
func (c *Consolidator) LastRun() time.Time {
	return c.lastRun
}

// Run executes the batch against the tree. Unless force is set, a run before
// the interval elapses is a no-op returning a nil report. Consolidation never
// deletes a memory; it only summarizes and prunes detail text.
func (c *Consolidator) Run(tree *memtree.Tree, now time.Time, force bool) *Report {
	if !force && !c.ShouldConsolidate(now) {
		return nil
	}

	events := tree.AllEvents()
	c.curve.BatchUpdateStrengths(events, now)

	report := &Report{Timestamp: now, EventsScanned: len(events)}

	cutoff := now.Add(-time.Duration(c.cfg.ShortTermRetentionHours) * time.Hour)
	byDay := map[string][]*types.MemoryNode{}
	for _, e := range events {
		if e.Consolidated || !e.Timestamp.Before(cutoff) {
			continue
		}
		key := e.Timestamp.Format("2006-01-02")
		byDay[key] = append(byDay[key], e)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	for _, day := range days {
		group := byDay[day]
		summary := c.summarize(group)

		for _, e := range group {
			e.Consolidated = true
			e.UpdatedAt = now
		}
		if dayNode := tree.Get(group[0].ParentID); dayNode != nil {
			dayNode.Detail = summary
			dayNode.UpdatedAt = now
		}

		report.EventsConsolidated += len(group)
		report.Days = append(report.Days, DayAction{
			Day:          day,
			Summary:      summary,
			Consolidated: len(group),
		})
	}

	// Detail pruning of faded, unimportant memories. Consolidated events,
	// including ones summarized just above, keep their detail; the content
	// summary always survives.
	for _, e := range events {
		if e.Consolidated {
			continue
		}
		if e.EffectiveImportance() < c.cfg.MinImportanceToKeep &&
			e.CurrentStrength < c.cfg.PruneStrengthCeiling {
			if e.Raw != "" || e.Detail != "" {
				e.Raw = ""
				e.Detail = ""
				e.UpdatedAt = now
				report.DetailsPruned++
			}
		}
	}

	c.lastRun = now
	return report
}

// summarize joins the top events of a day, most important first, truncated
// to the configured rune length.
func (c *Consolidator) summarize(group []*types.MemoryNode) string {
	ranked := make([]*types.MemoryNode, len(group))
	copy(ranked, group)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EffectiveImportance() > ranked[j].EffectiveImportance()
	})
	if len(ranked) > c.cfg.SummaryTopEvents {
		ranked = ranked[:c.cfg.SummaryTopEvents]
	}

	parts := make([]string, len(ranked))
	for i, e := range ranked {
		parts[i] = e.Content
	}
	summary := strings.Join(parts, summarySeparator)

	runes := []rune(summary)
	if len(runes) > c.cfg.DailySummaryMaxLength {
		summary = string(runes[:c.cfg.DailySummaryMaxLength])
	}
	return summary
}
