package poller

import (
	"cropstudy/internal/config"
	"time"
)

// Hardcoded breaker defaults - these rarely need tuning.
const (
	defaultBreakerThreshold = 10
	defaultBreakerCooldown  = time.Minute
)

// Config holds polling settings.
type Config struct {
	Interval       time.Duration // wait between status polls (default: 15s)
	Retries        int           // extra attempts after a transport or 5xx error; 0 fails fast
	BackoffInitial time.Duration // first retry delay (default: 1s)
	BackoffMax     time.Duration // retry delay cap (default: 30s)
}

// LoadConfigFromEnv loads poller configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Interval:       config.GetDurationEnv("POLL_INTERVAL", 15*time.Second),
		Retries:        config.GetIntEnv("POLL_RETRIES", 3),
		BackoffInitial: config.GetDurationEnv("POLL_RETRY_BACKOFF_INITIAL", time.Second),
		BackoffMax:     config.GetDurationEnv("POLL_RETRY_BACKOFF_MAX", 30*time.Second),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	return c
}
