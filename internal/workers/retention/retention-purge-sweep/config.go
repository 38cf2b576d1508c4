// internal/workers/retention/retention-purge-sweep/config.go
package retentionpurgesweep

import (
	"time"

	"admissions-lifecycle/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	LockKey string
	LockTTL time.Duration
	Batch   int
}

func LoadConfig(rc config.RetentionConfig) *Config {
	c := &Config{
		Timeout: 10 * time.Minute,
		LockKey: rc.SweepLockKey,
		LockTTL: time.Duration(rc.SweepLockTTL) * time.Second,
		Batch:   rc.SweepBatch,
	}
	if c.LockKey == "" {
		c.LockKey = "retention:purge-sweep"
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 15 * time.Minute
	}
	if c.Batch <= 0 {
		c.Batch = 200
	}
	return c
}
