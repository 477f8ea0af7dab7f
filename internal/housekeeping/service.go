package housekeeping

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"steeb/internal/eventbus"
	"steeb/internal/store"
	"steeb/pkg/datex"
	"steeb/pkg/logx"
)

// Service owns the housekeeping schedule: one pass shortly after Start, then
// one pass per local day at the configured hour.
//
// All timer state lives on the struct; there is no package-level scheduling
// state, so a process owns exactly one schedule per Service it constructs.
type Service struct {
	mu sync.Mutex

	cfg Config
	log logx.Logger
	bus eventbus.Bus
	mat *Materializer

	loc          *time.Location
	parser       cron.Parser
	c            *cron.Cron
	startupTimer *time.Timer
	state        runState

	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg Config, st store.Store, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Service{
		cfg:    cfg,
		log:    log,
		bus:    bus,
		mat:    NewMaterializer(st, log, bus, cfg.WriteRatePerSec),
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		s.log.Info("housekeeping disabled")
		return
	}
	if s.runCtx != nil {
		// already running
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.loc = s.loadLocationLocked()

	s.startupTimer = time.AfterFunc(s.cfg.StartupDelay, func() { s.runPass("startup") })
	s.startCronLocked()

	s.log.Info("housekeeping started",
		logx.Duration("startup_delay", s.cfg.StartupDelay),
		logx.Int("hour", s.cfg.Hour),
		logx.String("tz", s.loc.String()),
	)
}

func (s *Service) startCronLocked() {
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	spec := fmt.Sprintf("0 %d * * *", s.cfg.Hour)
	if _, err := s.c.AddFunc(spec, func() { s.runPass("daily") }); err != nil {
		// Hour is clamped in withDefaults, so this only fires on a bug.
		s.log.Error("invalid daily schedule", logx.String("spec", spec), logx.Err(err))
		s.c = nil
		return
	}
	s.c.Start()
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	timer := s.startupTimer
	c := s.c
	cancel := s.runCancel
	s.startupTimer = nil
	s.c = nil
	s.runCtx = nil
	s.runCancel = nil
	s.mu.Unlock()

	if timer != nil {
		_ = timer.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			// an in-flight pass finishes in the background
		}
	}
	s.log.Info("housekeeping stopped")
}

// Apply swaps config at runtime. Schedule-affecting changes rebuild the cron
// entry; a pass already in flight is unaffected.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cfg
	s.cfg = cfg
	s.mat = NewMaterializer(s.mat.store, s.log, s.bus, cfg.WriteRatePerSec)

	if s.runCtx == nil {
		return
	}
	if cfg.Hour != old.Hour || !strings.EqualFold(strings.TrimSpace(cfg.Timezone), strings.TrimSpace(old.Timezone)) {
		if s.c != nil {
			s.c.Stop()
		}
		s.loc = s.loadLocationLocked()
		s.startCronLocked()
		s.log.Info("housekeeping schedule updated",
			logx.Int("hour", cfg.Hour), logx.String("tz", s.loc.String()))
	}
}

// RunNow triggers a pass immediately, subject to the same overlap guard as
// scheduled passes.
func (s *Service) RunNow() error {
	s.mu.Lock()
	running := s.runCtx != nil
	s.mu.Unlock()
	if !running {
		return ErrNotStarted
	}
	if !s.state.tryAcquire() {
		return ErrPassRunning
	}
	defer s.state.release()
	s.pass("manual")
	return nil
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; using host local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) runPass(trigger string) {
	if !s.state.tryAcquire() {
		s.log.Debug("pass already running; dropping trigger", logx.String("trigger", trigger))
		return
	}
	defer s.state.release()
	s.pass(trigger)
}

// pass runs one materialization under the overlap guard. A panic anywhere in
// the pass is logged and swallowed so the schedule survives to retry.
func (s *Service) pass(trigger string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in housekeeping pass",
				logx.String("trigger", trigger),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()

	s.mu.Lock()
	ctx := s.runCtx
	loc := s.loc
	mat := s.mat
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	today := datex.Today(loc)
	s.publish(eventbus.TopicPassStarted, PassEvent{Trigger: trigger, Today: today.String()})

	rep, err := mat.Run(ctx, today)
	ev := PassEvent{
		Trigger: trigger,
		Today:   today.String(),
		Created: rep.Created,
		Skipped: rep.Skipped,
		Failed:  len(rep.Failures),
		Took:    rep.Took,
	}
	if err != nil {
		ev.Error = err.Error()
		s.log.Error("housekeeping pass failed", logx.String("trigger", trigger), logx.Err(err))
	} else if len(rep.Failures) > 0 {
		s.log.Warn("housekeeping pass finished with failures",
			logx.String("trigger", trigger),
			logx.Int("created", rep.Created),
			logx.Int("failed", len(rep.Failures)),
			logx.Duration("took", rep.Took),
		)
	} else {
		s.log.Info("housekeeping pass finished",
			logx.String("trigger", trigger),
			logx.String("today", today.String()),
			logx.Int("lineages", rep.Lineages),
			logx.Int("created", rep.Created),
			logx.Int("skipped", rep.Skipped),
			logx.Duration("took", rep.Took),
		)
	}
	s.publish(eventbus.TopicPassFinished, ev)
}

func (s *Service) publish(topic string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: topic, Data: data})
}
