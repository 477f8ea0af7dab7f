package housekeeping

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"steeb/internal/eventbus"
	"steeb/internal/store"
	"steeb/internal/task"
	"steeb/pkg/logx"
)

func waitFor(t *testing.T, ch <-chan eventbus.Event, topic string) eventbus.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == topic {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", topic)
		}
	}
}

func TestStartRunsStartupPass(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()
	defer st.Close()
	seed(t, st, task.Draft{
		Lineage:       "lin-1",
		Title:         "Journal",
		ScheduledDate: d("2024-01-01"),
		Completed:     true,
		Recurrence:    task.RecurrenceRule{Frequency: task.FrequencyDaily, Interval: 1},
	})

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(16)
	defer unsub()

	s := New(Config{Enabled: true, StartupDelay: 10 * time.Millisecond}, st, logx.Nop(), bus)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	started := waitFor(t, ch, eventbus.TopicPassStarted)
	if pe, ok := started.Data.(PassEvent); !ok || pe.Trigger != "startup" {
		t.Fatalf("pass.started payload = %#v", started.Data)
	}
	finished := waitFor(t, ch, eventbus.TopicPassFinished)
	pe, ok := finished.Data.(PassEvent)
	if !ok {
		t.Fatalf("pass.finished payload = %#v", finished.Data)
	}
	if pe.Error != "" || pe.Failed != 0 {
		t.Fatalf("startup pass reported errors: %+v", pe)
	}
	if pe.Created == 0 {
		t.Fatalf("startup pass created nothing: %+v", pe)
	}
}

func TestDisabledServiceDoesNothing(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()
	defer st.Close()

	s := New(Config{Enabled: false, StartupDelay: time.Millisecond}, st, logx.Nop(), nil)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	if err := s.RunNow(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("RunNow on disabled service: err = %v, want ErrNotStarted", err)
	}
}

func TestRunNowBeforeStart(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, store.NewMemory(), logx.Nop(), nil)
	if err := s.RunNow(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("RunNow before Start: err = %v, want ErrNotStarted", err)
	}
}

// blockingStore parks List until released, keeping a pass in flight.
type blockingStore struct {
	store.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) List(ctx context.Context) ([]task.Task, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.Store.List(ctx)
}

func TestOverlappingPassIsDropped(t *testing.T) {
	t.Parallel()
	bs := &blockingStore{
		Store:   store.NewMemory(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	// Long startup delay: the only pass triggers come from this test.
	s := New(Config{Enabled: true, StartupDelay: time.Hour}, bs, logx.Nop(), nil)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.RunNow() }()
	<-bs.entered

	if err := s.RunNow(); !errors.Is(err, ErrPassRunning) {
		t.Fatalf("concurrent RunNow: err = %v, want ErrPassRunning", err)
	}

	close(bs.release)
	if err := <-errCh; err != nil {
		t.Fatalf("first RunNow: %v", err)
	}

	// Guard released: a new pass is allowed again.
	if err := s.RunNow(); err != nil {
		t.Fatalf("RunNow after pass: %v", err)
	}
}

// panicStore panics on List to exercise pass recovery.
type panicStore struct{ store.Store }

func (panicStore) List(ctx context.Context) ([]task.Task, error) { panic("boom") }

func TestPassRecoversFromPanic(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, StartupDelay: time.Hour}, panicStore{store.NewMemory()}, logx.Nop(), nil)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	if err := s.RunNow(); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	// The panic was swallowed and the guard released; the service is still
	// able to run passes.
	if err := s.RunNow(); err != nil {
		t.Fatalf("RunNow after panic: %v", err)
	}
}

func TestStopPreventsFurtherPasses(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, StartupDelay: time.Hour}, store.NewMemory(), logx.Nop(), nil)
	s.Start(context.Background())
	s.Stop(context.Background())

	if err := s.RunNow(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("RunNow after Stop: err = %v, want ErrNotStarted", err)
	}
}

func TestApplyRestartsSchedule(t *testing.T) {
	t.Parallel()
	st := store.NewMemory()
	defer st.Close()

	s := New(Config{Enabled: true, StartupDelay: time.Hour, Hour: 6}, st, logx.Nop(), nil)
	s.Start(context.Background())
	defer s.Stop(context.Background())

	// Changing the hour rebuilds the cron; the service must stay usable.
	s.Apply(Config{Enabled: true, StartupDelay: time.Hour, Hour: 7})
	if err := s.RunNow(); err != nil {
		t.Fatalf("RunNow after Apply: %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	c := Config{}.withDefaults()
	if c.StartupDelay != time.Second {
		t.Fatalf("StartupDelay = %v", c.StartupDelay)
	}
	if c.Hour != 6 {
		t.Fatalf("Hour = %d", c.Hour)
	}
	c = Config{StartupDelay: time.Minute, Hour: 25}.withDefaults()
	if c.Hour != 6 {
		t.Fatalf("out-of-range Hour = %d, want clamp to 6", c.Hour)
	}
	if c.StartupDelay != time.Minute {
		t.Fatalf("StartupDelay = %v, want unchanged", c.StartupDelay)
	}
}
