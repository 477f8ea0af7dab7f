// Package recurrence computes occurrence dates for recurring tasks.
//
// Everything here is pure calendar arithmetic over datex.Date; callers own
// persistence, logging, and clock access.
package recurrence

import (
	"slices"
	"time"

	"steeb/internal/task"
	"steeb/pkg/datex"
)

// Next returns the first occurrence strictly after anchor under rule.
// ok is false when the lineage is terminal: the rule never recurs, or the
// computed date would fall past the (inclusive) end date.
//
// Degenerate input never fails: intervals below 1 behave as 1, and an
// unsorted weekday set is sorted internally.
func Next(anchor datex.Date, rule task.RecurrenceRule) (next datex.Date, ok bool) {
	if !rule.Recurs() {
		return datex.Date{}, false
	}
	interval := rule.Every()

	switch rule.Frequency {
	case task.FrequencyDaily:
		next = anchor.AddDays(interval)
	case task.FrequencyWeekly:
		next = nextWeekly(anchor, rule.DaysOfWeek, interval)
	case task.FrequencyMonthly:
		next = anchor.AddMonths(interval)
	default:
		return datex.Date{}, false
	}

	if !rule.EndDate.IsZero() && next.After(rule.EndDate) {
		return datex.Date{}, false
	}
	return next, true
}

func nextWeekly(anchor datex.Date, days []time.Weekday, interval int) datex.Date {
	if len(days) == 0 {
		return anchor.AddDays(7 * interval)
	}
	// Every weekday selected degenerates to "every day".
	if len(uniqueSorted(days)) == 7 {
		return anchor.AddDays(1)
	}

	sorted := uniqueSorted(days)
	anchorDow := anchor.Weekday()

	// Scan forward day by day. A candidate weekday is accepted either in the
	// anchor's own week (later weekday, same week counts regardless of
	// interval) or when its week offset lands on the interval grid.
	for delta := 1; delta <= 7*interval+7; delta++ {
		candidate := anchor.AddDays(delta)
		dow := candidate.Weekday()
		if !slices.Contains(sorted, dow) {
			continue
		}
		weeksDiff := delta / 7
		if weeksDiff == 0 && anchorDow < dow {
			return candidate
		}
		if weeksDiff%interval == 0 {
			return candidate
		}
	}

	// Defensive fallback; unreachable for valid weekday sets but keeps the
	// calculator total. Land on the first selected weekday at or after the
	// next interval boundary.
	first := sorted[0]
	off := (int(first) - int(anchorDow) + 7) % 7
	if off == 0 {
		off = 7
	}
	return anchor.AddDays(7*interval + off)
}

func uniqueSorted(days []time.Weekday) []time.Weekday {
	out := append([]time.Weekday(nil), days...)
	slices.Sort(out)
	return slices.Compact(out)
}

// Backfill lists every occurrence after last up to and including today.
// The result is ascending and duplicate-free; it is empty when the lineage
// is already caught up or terminal.
func Backfill(last datex.Date, rule task.RecurrenceRule, today datex.Date) []datex.Date {
	var dates []datex.Date
	cur := last
	for {
		next, ok := Next(cur, rule)
		if !ok || next.After(today) {
			return dates
		}
		dates = append(dates, next)
		cur = next
	}
}
