package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"steeb/internal/task"
	"steeb/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store.path is required for sqlite driver")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Add(ctx context.Context, d task.Draft) (task.Task, error) {
	if s == nil || s.db == nil {
		return task.Task{}, ErrClosed
	}
	t, err := fromDraft(d)
	if err != nil {
		return task.Task{}, err
	}

	tags, err := jsonOrNull(t.Tags)
	if err != nil {
		return task.Task{}, err
	}
	subs, err := jsonOrNull(t.Subtasks)
	if err != nil {
		return task.Task{}, err
	}
	var rec any
	if t.Recurrence.Recurs() {
		b, err := json.Marshal(t.Recurrence)
		if err != nil {
			return task.Task{}, err
		}
		rec = string(b)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks(id, lineage, title, type, tags, notes, priority, estimated_mins,
		                   scheduled_date, scheduled_time, status, completed, subtasks, recurrence,
		                   created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Lineage, t.Title, t.Type, tags, nullStr(t.Notes), nullStr(string(t.Priority)),
		t.EstimatedDuration, t.ScheduledDate, nullStr(t.ScheduledTime), string(t.Status),
		t.Completed, subs, rec,
		t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]task.Task, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lineage, title, type, tags, notes, priority, estimated_mins,
		        scheduled_date, scheduled_time, status, completed, subtasks, recurrence,
		        created_at, updated_at
		 FROM tasks
		 ORDER BY scheduled_date, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		var (
			t                  task.Task
			tags, subs, rec    sql.NullString
			notes, prio, stime sql.NullString
			status             string
			created, updated   string
		)
		err := rows.Scan(&t.ID, &t.Lineage, &t.Title, &t.Type, &tags, &notes, &prio,
			&t.EstimatedDuration, &t.ScheduledDate, &stime, &status, &t.Completed,
			&subs, &rec, &created, &updated)
		if err != nil {
			return nil, err
		}
		t.Notes = notes.String
		t.Priority = task.Priority(prio.String)
		t.ScheduledTime = stime.String
		t.Status = task.Status(status)
		if tags.Valid && tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &t.Tags); err != nil {
				s.log.Warn("bad tags json; skipping field", logx.String("task", t.ID), logx.Any("err", err))
			}
		}
		if subs.Valid && subs.String != "" {
			if err := json.Unmarshal([]byte(subs.String), &t.Subtasks); err != nil {
				s.log.Warn("bad subtasks json; skipping field", logx.String("task", t.ID), logx.Any("err", err))
			}
		}
		if rec.Valid && rec.String != "" {
			if err := json.Unmarshal([]byte(rec.String), &t.Recurrence); err != nil {
				s.log.Warn("bad recurrence json; skipping field", logx.String("task", t.ID), logx.Any("err", err))
			}
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			t.CreatedAt = ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			t.UpdatedAt = ts
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func jsonOrNull(v any) (any, error) {
	switch x := v.(type) {
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
	case []task.SubTask:
		if len(x) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
