package workpool

import (
	"cropstudy/internal/config"
	"strings"
)

// Default queue length per worker.
const defaultBufferPerWorker = 4

// Config holds configuration for one pool.
type Config struct {
	Name       string // role name, used in logs and metrics
	Workers    int    // concurrent goroutines (default: 8)
	BufferSize int    // pending task queue (default: 4 per worker)
}

// LoadConfigFromEnv reads POOL_<NAME> for the worker count of the named pool.
func LoadConfigFromEnv(name string, workers int) Config {
	cfg := Config{
		Name:    name,
		Workers: config.GetIntEnv("POOL_"+strings.ToUpper(name), workers),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "pool"
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.BufferSize <= 0 {
		c.BufferSize = c.Workers * defaultBufferPerWorker
	}
	return c
}
