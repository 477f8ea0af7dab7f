package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"steeb/internal/task"
	"steeb/pkg/logx"
)

var (
	ErrClosed     = errors.New("store closed")
	ErrEmptyTitle = errors.New("task title is required")
)

// Config configures the task store.
//
// Driver values:
//   - "memory": in-process only (default; useful for tests and dry runs)
//   - "file": dependency-free file backend (snapshot + jsonl journal)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API the occurrence engine depends on.
//
// List returns a snapshot of all known tasks. Add creates exactly one task
// from a draft; idempotency (not creating a second occurrence for a date that
// already has one) is the caller's responsibility, not the store's.
type Store interface {
	List(ctx context.Context) ([]task.Task, error)
	Add(ctx context.Context, d task.Draft) (task.Task, error)
	Close() error
}

// Open initializes the configured store. An empty driver means "memory".
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown store driver: " + driver)
	}
}
