package memtree

import (
	"strings"
	"time"
)

// defaultLookbackDays is the window used when no known hint matches.
const defaultLookbackDays = 7

// ParseTimeHint maps a natural-language time hint to a half-open [start, end)
// window relative to ref. Recognized hints: 昨天/昨晚, 前天, 上周, 上个月/上月,
// 去年. Anything else falls back to the trailing seven days ending at ref.
func ParseTimeHint(hint string, ref time.Time) (start, end time.Time) {
	midnight := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())

	switch {
	case strings.Contains(hint, "昨天") || strings.Contains(hint, "昨晚"):
		return midnight.AddDate(0, 0, -1), midnight
	case strings.Contains(hint, "前天"):
		return midnight.AddDate(0, 0, -2), midnight.AddDate(0, 0, -1)
	case strings.Contains(hint, "上周"):
		thisMonday := weekStart(ref)
		return thisMonday.AddDate(0, 0, -7), thisMonday
	case strings.Contains(hint, "上个月") || strings.Contains(hint, "上月"):
		thisMonthStart := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		return thisMonthStart.AddDate(0, -1, 0), thisMonthStart
	case strings.Contains(hint, "去年"):
		thisYearStart := time.Date(ref.Year(), 1, 1, 0, 0, 0, 0, ref.Location())
		return thisYearStart.AddDate(-1, 0, 0), thisYearStart
	default:
		return ref.AddDate(0, 0, -defaultLookbackDays), ref
	}
}
