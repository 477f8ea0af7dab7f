package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"steeb/internal/task"
)

// memStore keeps tasks in memory. It is safe for concurrent use and returns
// deep copies so callers can't mutate stored state.
type memStore struct {
	mu     sync.Mutex
	tasks  []task.Task
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memStore{}
}

func (s *memStore) List(ctx context.Context) ([]task.Task, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]task.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out, nil
}

func (s *memStore) Add(ctx context.Context, d task.Draft) (task.Task, error) {
	_ = ctx
	t, err := fromDraft(d)
	if err != nil {
		return task.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return task.Task{}, ErrClosed
	}
	s.tasks = append(s.tasks, t.Clone())
	return t, nil
}

func (s *memStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// fromDraft materializes a draft into a stored task: fresh ID, timestamps,
// and a fresh lineage when the draft doesn't carry one.
func fromDraft(d task.Draft) (task.Task, error) {
	if strings.TrimSpace(d.Title) == "" {
		return task.Task{}, ErrEmptyTitle
	}
	now := time.Now()
	lineage := d.Lineage
	if lineage == "" {
		lineage = task.NewLineage()
	}
	status := d.Status
	if status == "" {
		status = task.StatusPending
	}
	return task.Task{
		ID:                uuid.NewString(),
		Lineage:           lineage,
		Title:             d.Title,
		Type:              d.Type,
		Tags:              append([]string(nil), d.Tags...),
		Notes:             d.Notes,
		Priority:          d.Priority,
		EstimatedDuration: d.EstimatedDuration,
		ScheduledDate:     d.ScheduledDate,
		ScheduledTime:     d.ScheduledTime,
		Status:            status,
		Completed:         d.Completed,
		Subtasks:          append([]task.SubTask(nil), d.Subtasks...),
		Recurrence:        d.Recurrence,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
