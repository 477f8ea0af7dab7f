package housekeeping

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"steeb/internal/eventbus"
	"steeb/internal/recurrence"
	"steeb/internal/store"
	"steeb/pkg/datex"
	"steeb/pkg/logx"
)

// Materializer walks every completed recurring task and creates the
// occurrences missed between its scheduled date and today.
//
// It never mutates existing tasks; the only write it performs is Add.
// Writes are awaited one at a time so the in-pass dedup set always observes
// the effect of earlier creations.
type Materializer struct {
	store   store.Store
	log     logx.Logger
	bus     eventbus.Bus
	limiter *rate.Limiter // nil = unthrottled
}

func NewMaterializer(st store.Store, log logx.Logger, bus eventbus.Bus, writeRatePerSec int) *Materializer {
	if log.IsZero() {
		log = logx.Nop()
	}
	var lim *rate.Limiter
	if writeRatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(writeRatePerSec), writeRatePerSec)
	}
	return &Materializer{store: st, log: log, bus: bus, limiter: lim}
}

func occurrenceKey(lineage string, d datex.Date) string {
	return lineage + "\n" + d.String()
}

// Run executes one full materialization pass against a snapshot of the store.
//
// Per-date failures are collected into the report and do not abort the pass;
// only snapshot or context errors are returned.
func (m *Materializer) Run(ctx context.Context, today datex.Date) (Report, error) {
	rep := Report{Today: today, Started: time.Now()}

	tasks, err := m.store.List(ctx)
	if err != nil {
		return rep, fmt.Errorf("list tasks: %w", err)
	}

	// Index the snapshot: every known (lineage, date) pair, plus lineages
	// that already have a pending occurrence due today.
	existing := make(map[string]struct{}, len(tasks))
	pendingToday := map[string]struct{}{}
	for _, t := range tasks {
		if t.ScheduledDate.IsZero() {
			continue
		}
		existing[occurrenceKey(t.LineageKey(), t.ScheduledDate)] = struct{}{}
		if t.ScheduledDate.Equal(today) && !t.Completed {
			pendingToday[t.LineageKey()] = struct{}{}
		}
	}

	for _, t := range tasks {
		// An occurrence spawns successors only once it is completed; an
		// in-progress one never spawns early, no matter how old it is.
		if !t.Completed || !t.Recurs() || t.ScheduledDate.IsZero() {
			continue
		}
		rep.Lineages++

		lineage := t.LineageKey()
		if _, ok := pendingToday[lineage]; ok {
			rep.CaughtUp++
			continue
		}

		for _, d := range recurrence.Backfill(t.ScheduledDate, t.Recurrence, today) {
			rep.Attempted++
			key := occurrenceKey(lineage, d)
			if _, ok := existing[key]; ok {
				rep.Skipped++
				continue
			}

			if m.limiter != nil {
				if err := m.limiter.Wait(ctx); err != nil {
					return rep, err
				}
			}

			created, err := m.store.Add(ctx, t.Occurrence(d))
			if err != nil {
				rep.Failures = append(rep.Failures, Failure{Lineage: lineage, Title: t.Title, Date: d, Err: err})
				m.log.Warn("occurrence create failed",
					logx.String("title", t.Title),
					logx.String("date", d.String()),
					logx.Err(err),
				)
				m.publish(eventbus.TopicTaskCreateFailed, OccurrenceEvent{
					Lineage: lineage, Title: t.Title, Date: d.String(), Error: err.Error(),
				})
				continue
			}

			existing[key] = struct{}{}
			rep.Created++
			m.log.Debug("occurrence created",
				logx.String("task", created.ID),
				logx.String("title", t.Title),
				logx.String("date", d.String()),
			)
			m.publish(eventbus.TopicTaskCreated, OccurrenceEvent{
				TaskID: created.ID, Lineage: lineage, Title: t.Title, Date: d.String(),
			})
		}
	}

	rep.Took = time.Since(rep.Started)
	return rep, nil
}

func (m *Materializer) publish(topic string, data any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventbus.Event{Type: topic, Data: data})
}
