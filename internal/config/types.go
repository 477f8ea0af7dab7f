package config

type Config struct {
	Log LogConfig `json:"log"`

	// Store controls task persistence. If omitted, tasks live in memory only.
	Store *StoreConfig `json:"store,omitempty"`

	// Housekeeping controls the recurring-task materialization pass.
	// If the whole section is omitted it defaults to enabled with a 1s
	// startup delay and a 06:00 daily pass.
	Housekeeping *HousekeepingConfig `json:"housekeeping,omitempty"`
}

// LogConfig controls sinks and level.
//
// Console is a pointer so we can distinguish "omitted" (default true) from an
// explicit false.
type LogConfig struct {
	Level   string         `json:"level,omitempty"`
	Console *bool          `json:"console,omitempty"`
	File    *LogFileConfig `json:"file,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StoreConfig controls the persistence layer.
//
// Example:
//
//	"store": { "driver": "sqlite", "path": "./steeb.db" }
type StoreConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// HousekeepingConfig controls the daily occurrence pass.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - enabled: true
//   - startup_delay: "1s"
//   - hour: 6 (local hour of the daily pass, 0..23)
//   - timezone: host local
//   - write_rate_per_sec: 0 (unthrottled store writes)
type HousekeepingConfig struct {
	Enabled         *bool  `json:"enabled,omitempty"`
	StartupDelay    string `json:"startup_delay,omitempty"`
	Hour            *int   `json:"hour,omitempty"`
	Timezone        string `json:"timezone,omitempty"` // IANA TZ, e.g. "Asia/Jakarta"
	WriteRatePerSec int    `json:"write_rate_per_sec,omitempty"`
}
