package store

// Package store persists tasks.
//
// It currently supports:
//   - In-memory tasks (tests, dry runs)
//   - File-backed tasks (snapshot + jsonl journal)
//   - SQLite-backed tasks
