package housekeeping

import (
	"errors"
	"sync"
	"time"

	"steeb/pkg/datex"
)

var (
	// ErrPassRunning is returned by RunNow when a pass is already in flight.
	ErrPassRunning = errors.New("housekeeping pass already running")
	// ErrNotStarted is returned by RunNow before Start (or after Stop).
	ErrNotStarted = errors.New("housekeeping not started")
)

// Config controls the housekeeping service.
type Config struct {
	Enabled         bool
	StartupDelay    time.Duration // delay before the first pass after Start
	Hour            int           // local hour of the daily pass (0..23)
	Timezone        string        // IANA TZ, e.g. "Asia/Jakarta"; empty = host local
	WriteRatePerSec int           // store writes per second during a pass; 0 = unthrottled
}

func (c Config) withDefaults() Config {
	if c.StartupDelay <= 0 {
		c.StartupDelay = time.Second
	}
	if c.Hour < 0 || c.Hour > 23 {
		c.Hour = 6
	}
	return c
}

// runState tracks whether a pass is already in flight. It is the only
// synchronization between the startup timer and the daily cron trigger;
// a trigger that fires while a pass runs is dropped, never queued.
type runState struct {
	mu      sync.Mutex
	running bool
}

func (s *runState) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *runState) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Failure records one occurrence that could not be created. The pass keeps
// going after a failure; the caller decides how to surface the summary.
type Failure struct {
	Lineage string
	Title   string
	Date    datex.Date
	Err     error
}

// Report summarizes one materialization pass.
type Report struct {
	Today   datex.Date
	Started time.Time
	Took    time.Duration

	Lineages  int // completed recurring tasks examined
	CaughtUp  int // lineages with a pending occurrence already due today
	Attempted int // backfill dates considered
	Created   int
	Skipped   int // dates deduplicated against existing occurrences

	Failures []Failure
}

// PassEvent is the bus payload for pass.started / pass.finished.
type PassEvent struct {
	Trigger string
	Today   string
	Created int
	Skipped int
	Failed  int
	Took    time.Duration
	Error   string
}

// OccurrenceEvent is the bus payload for task.created / task.create_failed.
type OccurrenceEvent struct {
	TaskID  string
	Lineage string
	Title   string
	Date    string
	Error   string
}
