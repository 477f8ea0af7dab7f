package recurrence

import (
	"testing"
	"time"

	"steeb/internal/task"
	"steeb/pkg/datex"
)

func d(s string) datex.Date { return datex.MustParse(s) }

func TestNext(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		anchor string
		rule   task.RecurrenceRule
		want   string
		wantOK bool
	}{
		{
			name:   "none never recurs",
			anchor: "2024-01-01",
			rule:   task.RecurrenceRule{Frequency: task.FrequencyNone},
		},
		{
			name:   "empty frequency never recurs",
			anchor: "2024-01-01",
			rule:   task.RecurrenceRule{},
		},
		{
			name:   "daily",
			anchor: "2024-01-01",
			rule:   task.RecurrenceRule{Frequency: task.FrequencyDaily, Interval: 1},
			want:   "2024-01-02", wantOK: true,
		},
		{
			name:   "daily interval three",
			anchor: "2024-01-30",
			rule:   task.RecurrenceRule{Frequency: task.FrequencyDaily, Interval: 3},
			want:   "2024-02-02", wantOK: true,
		},
		{
			name:   "daily zero interval behaves as one",
			anchor: "2024-01-01",
			rule:   task.RecurrenceRule{Frequency: task.FrequencyDaily},
			want:   "2024-01-02", wantOK: true,
		},
		{
			name:   "weekly without weekdays",
			anchor: "2024-01-01",
			rule:   task.RecurrenceRule{Frequency: task.FrequencyWeekly, Interval: 1},
			want:   "2024-01-08", wantOK: true,
		},
		{
			name:   "weekly without weekdays interval two",
			anchor: "2024-01-01",
			rule:   task.RecurrenceRule{Frequency: task.FrequencyWeekly, Interval: 2},
			want:   "2024-01-15", wantOK: true,
		},
		{
			// 2024-01-01 is a Monday; Wednesday is later in the same week.
			name:   "weekly same week later day",
			anchor: "2024-01-01",
			rule: task.RecurrenceRule{
				Frequency:  task.FrequencyWeekly,
				Interval:   1,
				DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
			},
			want: "2024-01-03", wantOK: true,
		},
		{
			// 2024-01-05 is a Friday, last selected day; next is Monday.
			name:   "weekly wraps to next week",
			anchor: "2024-01-05",
			rule: task.RecurrenceRule{
				Frequency:  task.FrequencyWeekly,
				Interval:   1,
				DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
			},
			want: "2024-01-08", wantOK: true,
		},
		{
			// Anything within seven days of the anchor counts toward the
			// anchor's own week and is not subject to the interval grid.
			name:   "weekly interval two within first week",
			anchor: "2024-01-05",
			rule: task.RecurrenceRule{
				Frequency:  task.FrequencyWeekly,
				Interval:   2,
				DaysOfWeek: []time.Weekday{time.Monday, time.Friday},
			},
			want: "2024-01-08", wantOK: true,
		},
		{
			// Monday to Monday with interval 2: one week out is off-grid,
			// two weeks out lands on it.
			name:   "weekly interval two skips off-grid week",
			anchor: "2024-01-01",
			rule: task.RecurrenceRule{
				Frequency:  task.FrequencyWeekly,
				Interval:   2,
				DaysOfWeek: []time.Weekday{time.Monday},
			},
			want: "2024-01-15", wantOK: true,
		},
		{
			name:   "weekly unsorted weekday set",
			anchor: "2024-01-01",
			rule: task.RecurrenceRule{
				Frequency:  task.FrequencyWeekly,
				Interval:   1,
				DaysOfWeek: []time.Weekday{time.Friday, time.Wednesday},
			},
			want: "2024-01-03", wantOK: true,
		},
		{
			name:   "weekly all seven days means daily",
			anchor: "2024-01-01",
			rule: task.RecurrenceRule{
				Frequency: task.FrequencyWeekly,
				Interval:  2,
				DaysOfWeek: []time.Weekday{
					time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
					time.Thursday, time.Friday, time.Saturday,
				},
			},
			want: "2024-01-02", wantOK: true,
		},
		{
			name:   "monthly",
			anchor: "2024-01-15",
			rule:   task.RecurrenceRule{Frequency: task.FrequencyMonthly, Interval: 1},
			want:   "2024-02-15", wantOK: true,
		},
		{
			name:   "monthly clamps to short month",
			anchor: "2024-01-31",
			rule:   task.RecurrenceRule{Frequency: task.FrequencyMonthly, Interval: 1},
			want:   "2024-02-29", wantOK: true,
		},
		{
			name:   "monthly interval two across year",
			anchor: "2023-11-30",
			rule:   task.RecurrenceRule{Frequency: task.FrequencyMonthly, Interval: 2},
			want:   "2024-01-30", wantOK: true,
		},
		{
			name:   "end date on the occurrence is kept",
			anchor: "2024-01-01",
			rule: task.RecurrenceRule{
				Frequency: task.FrequencyDaily,
				Interval:  1,
				EndDate:   d("2024-01-02"),
			},
			want: "2024-01-02", wantOK: true,
		},
		{
			name:   "end date before the occurrence terminates",
			anchor: "2024-01-02",
			rule: task.RecurrenceRule{
				Frequency: task.FrequencyDaily,
				Interval:  1,
				EndDate:   d("2024-01-02"),
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Next(d(tt.anchor), tt.rule)
			if ok != tt.wantOK {
				t.Fatalf("Next ok = %v, want %v (got %v)", ok, tt.wantOK, got)
			}
			if !ok {
				return
			}
			if got.String() != tt.want {
				t.Fatalf("Next = %s, want %s", got, tt.want)
			}
			if !got.After(d(tt.anchor)) {
				t.Fatalf("Next %s is not after anchor %s", got, tt.anchor)
			}
		})
	}
}

// Every rule that recurs must advance strictly forward, so backfill loops
// always terminate.
func TestNextMonotonic(t *testing.T) {
	t.Parallel()
	rules := []task.RecurrenceRule{
		{Frequency: task.FrequencyDaily, Interval: 1},
		{Frequency: task.FrequencyDaily, Interval: 5},
		{Frequency: task.FrequencyWeekly, Interval: 1},
		{Frequency: task.FrequencyWeekly, Interval: 3, DaysOfWeek: []time.Weekday{time.Tuesday, time.Saturday}},
		{Frequency: task.FrequencyMonthly, Interval: 1},
		{Frequency: task.FrequencyMonthly, Interval: 2},
	}
	for _, rule := range rules {
		cur := d("2024-01-31")
		for i := 0; i < 50; i++ {
			next, ok := Next(cur, rule)
			if !ok {
				t.Fatalf("rule %+v became terminal at %s", rule, cur)
			}
			if !next.After(cur) {
				t.Fatalf("rule %+v did not advance: %s -> %s", rule, cur, next)
			}
			cur = next
		}
	}
}

func TestBackfill(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		last  string
		rule  task.RecurrenceRule
		today string
		want  []string
	}{
		{
			name:  "daily catches up",
			last:  "2024-01-01",
			rule:  task.RecurrenceRule{Frequency: task.FrequencyDaily, Interval: 1},
			today: "2024-01-04",
			want:  []string{"2024-01-02", "2024-01-03", "2024-01-04"},
		},
		{
			name:  "already caught up",
			last:  "2024-01-04",
			rule:  task.RecurrenceRule{Frequency: task.FrequencyDaily, Interval: 1},
			today: "2024-01-04",
			want:  nil,
		},
		{
			name:  "non-recurring yields nothing",
			last:  "2023-01-01",
			rule:  task.RecurrenceRule{Frequency: task.FrequencyNone},
			today: "2024-01-04",
			want:  nil,
		},
		{
			name: "end date truncates the run",
			last: "2024-01-01",
			rule: task.RecurrenceRule{
				Frequency: task.FrequencyDaily,
				Interval:  1,
				EndDate:   d("2024-01-03"),
			},
			today: "2024-01-10",
			want:  []string{"2024-01-02", "2024-01-03"},
		},
		{
			name: "weekly weekdays across weeks",
			last: "2024-01-01", // Monday
			rule: task.RecurrenceRule{
				Frequency:  task.FrequencyWeekly,
				Interval:   1,
				DaysOfWeek: []time.Weekday{time.Monday, time.Thursday},
			},
			today: "2024-01-09",
			want:  []string{"2024-01-04", "2024-01-08"},
		},
		{
			name:  "monthly clamp chain",
			last:  "2024-01-31",
			rule:  task.RecurrenceRule{Frequency: task.FrequencyMonthly, Interval: 1},
			today: "2024-04-30",
			want:  []string{"2024-02-29", "2024-03-29", "2024-04-29"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Backfill(d(tt.last), tt.rule, d(tt.today))
			if len(got) != len(tt.want) {
				t.Fatalf("Backfill = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].String() != tt.want[i] {
					t.Fatalf("Backfill[%d] = %s, want %s (full: %v)", i, got[i], tt.want[i], got)
				}
			}
			for i := 1; i < len(got); i++ {
				if !got[i].After(got[i-1]) {
					t.Fatalf("Backfill not strictly ascending: %v", got)
				}
			}
		})
	}
}
