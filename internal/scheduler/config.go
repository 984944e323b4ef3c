package scheduler

import (
	"time"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
)

// Config controls the reaper schedule and batch sizes.
type Config struct {
	Cron        string
	StaleAfter  time.Duration
	BatchSize   int
	ItemTimeout time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Cron:        "0 3 * * *",
		StaleAfter:  24 * time.Hour,
		BatchSize:   100,
		ItemTimeout: 15 * time.Second,
		JobTimeout:  10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Cron:        cfg.Reaper.Cron,
		StaleAfter:  cfg.Reaper.StaleAfter,
		BatchSize:   cfg.Reaper.BatchSize,
		ItemTimeout: cfg.Reaper.ItemTimeout,
		JobTimeout:  cfg.Reaper.JobTimeout,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Cron == "" {
		c.Cron = defaults.Cron
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaults.StaleAfter
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = defaults.ItemTimeout
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
