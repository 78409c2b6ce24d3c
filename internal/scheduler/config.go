package scheduler

import (
	"time"
)

// Config controls scheduler intervals and job timeouts.
type Config struct {
	TickInterval time.Duration
	JobTimeout   time.Duration
	LockTTL      time.Duration
	EnabledJobs  []string
}

func DefaultConfig() Config {
	return Config{
		TickInterval: time.Minute,
		JobTimeout:   30 * time.Second,
		LockTTL:      45 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = defaults.TickInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
