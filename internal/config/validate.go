package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate rejects configs that would fail later at service start.
// It is also installed as the Watch() validator so bad edits never commit.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Store != nil {
		switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
		case "", "memory", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
		}
		if _, err := ParseDurationField("store.busy_timeout", c.Store.BusyTimeout); err != nil {
			return err
		}
	}
	if hk := c.Housekeeping; hk != nil {
		if _, err := ParseDurationField("housekeeping.startup_delay", hk.StartupDelay); err != nil {
			return err
		}
		if hk.Hour != nil && (*hk.Hour < 0 || *hk.Hour > 23) {
			return fmt.Errorf("housekeeping.hour: must be 0..23, got %d", *hk.Hour)
		}
		if tz := strings.TrimSpace(hk.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("housekeeping.timezone: %w", err)
			}
		}
		if hk.WriteRatePerSec < 0 {
			return fmt.Errorf("housekeeping.write_rate_per_sec: must be >= 0")
		}
	}
	return nil
}
