package task

import (
	"time"

	"github.com/google/uuid"

	"steeb/pkg/datex"
)

type Frequency string

const (
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// RecurrenceRule describes how a task repeats.
//
// DaysOfWeek is only meaningful for weekly rules (0=Sunday..6=Saturday,
// matching time.Weekday). EndDate is an inclusive upper bound; the zero
// date means open-ended.
type RecurrenceRule struct {
	Frequency  Frequency      `json:"frequency"`
	Interval   int            `json:"interval,omitempty"`
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`
	EndDate    datex.Date     `json:"end_date,omitempty"`
}

// Recurs reports whether the rule can produce occurrences at all.
func (r RecurrenceRule) Recurs() bool {
	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

// Every returns the rule interval clamped to >= 1.
func (r RecurrenceRule) Every() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

type SubTask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Task is one occurrence of (possibly) a recurring lineage.
//
// EstimatedDuration is in minutes. ScheduledTime is an opaque "HH:MM"
// pass-through; the engine never interprets it.
type Task struct {
	ID                string         `json:"id"`
	Lineage           string         `json:"lineage,omitempty"`
	Title             string         `json:"title"`
	Type              string         `json:"type"`
	Tags              []string       `json:"tags,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	Priority          Priority       `json:"priority,omitempty"`
	EstimatedDuration int            `json:"estimated_duration,omitempty"`
	ScheduledDate     datex.Date     `json:"scheduled_date,omitempty"`
	ScheduledTime     string         `json:"scheduled_time,omitempty"`
	Status            Status         `json:"status"`
	Completed         bool           `json:"completed"`
	Subtasks          []SubTask      `json:"subtasks,omitempty"`
	Recurrence        RecurrenceRule `json:"recurrence,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Draft is the create-request shape accepted by the store. The store assigns
// ID and timestamps; everything else is caller-provided.
type Draft struct {
	Lineage           string         `json:"lineage,omitempty"`
	Title             string         `json:"title"`
	Type              string         `json:"type"`
	Tags              []string       `json:"tags,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	Priority          Priority       `json:"priority,omitempty"`
	EstimatedDuration int            `json:"estimated_duration,omitempty"`
	ScheduledDate     datex.Date     `json:"scheduled_date,omitempty"`
	ScheduledTime     string         `json:"scheduled_time,omitempty"`
	Status            Status         `json:"status"`
	Completed         bool           `json:"completed"`
	Subtasks          []SubTask      `json:"subtasks,omitempty"`
	Recurrence        RecurrenceRule `json:"recurrence,omitempty"`
}

// NewLineage mints a fresh lineage identifier.
func NewLineage() string { return uuid.NewString() }

// NewSubTaskID mints a fresh subtask identifier.
func NewSubTaskID() string { return uuid.NewString() }

// Recurs reports whether this task can spawn successors.
func (t Task) Recurs() bool { return t.Recurrence.Recurs() }

// LineageKey returns the identifier that groups occurrences of one recurring
// task. Tasks persisted before lineage IDs existed fall back to a key derived
// from title+type; NUL keeps distinct pairs from colliding.
func (t Task) LineageKey() string {
	if t.Lineage != "" {
		return t.Lineage
	}
	return t.Title + "\x00" + t.Type
}

// Occurrence builds the draft for a new occurrence of t due on date.
// Pass-through fields are copied verbatim; subtasks are deep-copied with
// completion reset and fresh IDs so the new occurrence never aliases or
// reuses state from its parent.
func (t Task) Occurrence(date datex.Date) Draft {
	var subs []SubTask
	if len(t.Subtasks) > 0 {
		subs = make([]SubTask, len(t.Subtasks))
		for i, st := range t.Subtasks {
			subs[i] = SubTask{ID: NewSubTaskID(), Title: st.Title, Completed: false}
		}
	}
	var tags []string
	if len(t.Tags) > 0 {
		tags = append(tags, t.Tags...)
	}
	return Draft{
		Lineage:           t.LineageKey(),
		Title:             t.Title,
		Type:              t.Type,
		Tags:              tags,
		Notes:             t.Notes,
		Priority:          t.Priority,
		EstimatedDuration: t.EstimatedDuration,
		ScheduledDate:     date,
		ScheduledTime:     t.ScheduledTime,
		Status:            StatusPending,
		Completed:         false,
		Subtasks:          subs,
		Recurrence:        t.Recurrence,
	}
}

// Clone returns a deep copy of t (slices are not shared).
func (t Task) Clone() Task {
	cp := t
	if len(t.Tags) > 0 {
		cp.Tags = append([]string(nil), t.Tags...)
	}
	if len(t.Subtasks) > 0 {
		cp.Subtasks = append([]SubTask(nil), t.Subtasks...)
	}
	if len(t.Recurrence.DaysOfWeek) > 0 {
		cp.Recurrence.DaysOfWeek = append([]time.Weekday(nil), t.Recurrence.DaysOfWeek...)
	}
	return cp
}
