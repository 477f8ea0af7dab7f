package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"steeb/internal/task"
	"steeb/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.tasks.snapshot.json (periodic snapshot, map keyed by task ID)
//   - <prefix>.tasks.journal.jsonl (append-only JSON Lines)
//
// The journal is periodically compacted into the snapshot. On open, the
// snapshot is loaded first and the journal replayed on top, so a crash
// between journal append and compaction loses nothing.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalFile  *os.File

	tasks  map[string]task.Task
	writes int
	closed bool
}

const fileCompactEvery = 256

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".tasks.snapshot.json"
	journalPath := prefix + ".tasks.journal.jsonl"

	tasks := map[string]task.Task{}
	_ = loadTaskSnapshot(snapPath, tasks)
	_ = replayTaskJournal(journalPath, tasks)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journalFile:  jf,
		tasks:        tasks,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	// Best-effort compact so restarts start from a fresh snapshot.
	if err := s.compactLocked(); err != nil {
		s.log.Debug("task snapshot compact on close failed", logx.Any("err", err))
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) List(ctx context.Context) ([]task.Task, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	// Map iteration order is random; keep listings stable for callers.
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].ScheduledDate.Compare(out[j].ScheduledDate); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *fileStore) Add(ctx context.Context, d task.Draft) (task.Task, error) {
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

	// Journal first; only remember the task once it is durable.
	enc := json.NewEncoder(s.journalFile)
	if err := enc.Encode(t); err != nil {
		return task.Task{}, err
	}
	s.tasks[t.ID] = t.Clone()

	s.writes++
	if s.writes%fileCompactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("task snapshot compact failed", logx.Any("err", err))
		}
	}
	return t, nil
}

func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.tasks); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal; its contents are folded into the snapshot now.
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, 2)
	return err
}

func loadTaskSnapshot(path string, out map[string]task.Task) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]task.Task
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayTaskJournal(path string, out map[string]task.Task) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var t task.Task
		if err := json.Unmarshal(sc.Bytes(), &t); err != nil {
			continue
		}
		if t.ID == "" {
			continue
		}
		out[t.ID] = t
	}
	return sc.Err()
}
