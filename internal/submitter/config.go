package submitter

import (
	"cropstudy/internal/config"
	"time"
)

// Config holds submission settings.
type Config struct {
	MaxJitter time.Duration // upper bound of the random delay before a submission (default: 5s)
	Rate      float64       // submissions per second across all workers, 0 = unlimited
	Burst     int           // limiter burst (default: 1)
}

// LoadConfigFromEnv loads submitter configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxJitter: config.GetDurationEnv("SUBMIT_MAX_JITTER", 5*time.Second),
		Rate:      config.GetFloatEnv("SUBMIT_RATE", 0),
		Burst:     config.GetIntEnv("SUBMIT_BURST", 1),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MaxJitter < 0 {
		c.MaxJitter = 0
	}
	if c.Rate < 0 {
		c.Rate = 0
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}
