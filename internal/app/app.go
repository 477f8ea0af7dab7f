// Package app wires config, logging, storage, and the housekeeping service
// into one process.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"steeb/internal/config"
	"steeb/internal/eventbus"
	"steeb/internal/housekeeping"
	"steeb/internal/store"
	"steeb/pkg/logx"
)

type App struct {
	cm     *config.Manager
	logSvc *logx.Service
	log    logx.Logger
	bus    eventbus.Bus
	st     store.Store
	hk     *housekeeping.Service

	// openedStore is what the store was opened with; live reloads cannot
	// swap a store, so drift is reported instead of applied.
	openedStore store.Config

	watchCancel context.CancelFunc
	subCh       chan *config.Config
	wg          sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cm := config.NewManager(cfgPath)
	cfg, err := cm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logSvc, log := logx.New(logConfig(cfg))
	cm.SetLogger(log.With(logx.String("comp", "config")))
	cm.SetValidator(func(ctx context.Context, c *config.Config) error {
		_ = ctx
		return c.Validate()
	})

	stCfg := storeConfig(cfg)
	st, err := store.Open(stCfg, log.With(logx.String("comp", "store")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	bus := eventbus.New()
	hk := housekeeping.New(housekeepingConfig(cfg), st,
		log.With(logx.String("comp", "housekeeping")), bus)

	return &App{
		cm:          cm,
		logSvc:      logSvc,
		log:         log,
		bus:         bus,
		st:          st,
		hk:          hk,
		openedStore: stCfg,
	}, nil
}

// Bus exposes the process event bus (pass and occurrence lifecycle events).
func (a *App) Bus() eventbus.Bus { return a.bus }

func (a *App) Start(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cm.Watch(watchCtx)
	}()

	a.subCh = a.cm.Subscribe(4)
	a.wg.Add(1)
	go a.applyLoop(watchCtx)

	a.hk.Start(ctx)
	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.hk.Stop(ctx)
	if a.watchCancel != nil {
		a.watchCancel()
	}
	if a.subCh != nil {
		a.cm.Unsubscribe(a.subCh)
	}
	a.wg.Wait()
	err := a.st.Close()
	a.log.Info("app stopped")
	_ = a.logSvc.Close()
	return err
}

// applyLoop pushes validated config reloads into the live services.
// Store driver/path changes need a restart; they are logged, not applied.
func (a *App) applyLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-a.subCh:
			if !ok {
				return
			}
			if cfg == nil {
				continue
			}
			a.logSvc.Apply(logConfig(cfg))
			a.hk.Apply(housekeepingConfig(cfg))
			if storeConfig(cfg) != a.openedStore {
				a.log.Warn("store config changed; restart required to take effect")
			}
		}
	}
}

func logConfig(c *config.Config) logx.Config {
	out := logx.Config{Level: c.Log.Level, Console: true}
	if c.Log.Console != nil {
		out.Console = *c.Log.Console
	}
	if c.Log.File != nil {
		out.File = logx.FileConfig{Enabled: c.Log.File.Enabled, Path: c.Log.File.Path}
	}
	return out
}

func storeConfig(c *config.Config) store.Config {
	if c.Store == nil {
		return store.Config{Driver: "memory"}
	}
	// Validated upstream; a parse error here degrades to the default.
	busy, _ := config.ParseDurationField("store.busy_timeout", c.Store.BusyTimeout)
	return store.Config{
		Driver:      c.Store.Driver,
		Path:        c.Store.Path,
		BusyTimeout: busy,
	}
}

func housekeepingConfig(c *config.Config) housekeeping.Config {
	out := housekeeping.Config{Enabled: true, Hour: 6, StartupDelay: time.Second}
	hk := c.Housekeeping
	if hk == nil {
		return out
	}
	if hk.Enabled != nil {
		out.Enabled = *hk.Enabled
	}
	if d, err := config.ParseDurationOrDefault("housekeeping.startup_delay", hk.StartupDelay, time.Second); err == nil {
		out.StartupDelay = d
	}
	if hk.Hour != nil {
		out.Hour = *hk.Hour
	}
	out.Timezone = hk.Timezone
	out.WriteRatePerSec = hk.WriteRatePerSec
	return out
}
