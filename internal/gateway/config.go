package gateway

import (
	"cropstudy/internal/config"
	"time"
)

// Config holds timeouts for calls to the remote services.
type Config struct {
	ConnectTimeout time.Duration // TCP dial timeout
	ReadTimeout    time.Duration // whole-request timeout, including the body
}

// LoadConfigFromEnv loads gateway configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		ConnectTimeout: config.GetDurationEnv("GATEWAY_CONNECT_TIMEOUT", 20*time.Second),
		ReadTimeout:    config.GetDurationEnv("GATEWAY_READ_TIMEOUT", 120*time.Second),
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 20 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 120 * time.Second
	}
	return c
}
