package coordinator

import (
	"cropstudy/internal/config"
	"cropstudy/internal/workpool"
	"strings"
)

// Report formats.
const (
	FormatHTML = "html"
	FormatJSON = "json"
)

// Default worker counts per role. Polling mostly waits, so it gets the most.
const (
	defaultSubmitWorkers  = 8
	defaultPollWorkers    = 64
	defaultLogWorkers     = 8
	defaultSummaryWorkers = 8
)

// Config holds coordinator settings.
type Config struct {
	Format string // report format, html or json (default: html)

	SubmitPool  workpool.Config
	PollPool    workpool.Config
	LogPool     workpool.Config
	SummaryPool workpool.Config
}

// LoadConfigFromEnv loads coordinator configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Format:      config.GetEnv("CROPSTUDY_REPORT_FORMAT", FormatHTML),
		SubmitPool:  workpool.LoadConfigFromEnv("submit", defaultSubmitWorkers),
		PollPool:    workpool.LoadConfigFromEnv("poll", defaultPollWorkers),
		LogPool:     workpool.LoadConfigFromEnv("log", defaultLogWorkers),
		SummaryPool: workpool.LoadConfigFromEnv("summary", defaultSummaryWorkers),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	c.Format = strings.ToLower(c.Format)
	if c.Format != FormatJSON {
		c.Format = FormatHTML
	}
	c.SubmitPool = poolDefaults(c.SubmitPool, "submit", defaultSubmitWorkers)
	c.PollPool = poolDefaults(c.PollPool, "poll", defaultPollWorkers)
	c.LogPool = poolDefaults(c.LogPool, "log", defaultLogWorkers)
	c.SummaryPool = poolDefaults(c.SummaryPool, "summary", defaultSummaryWorkers)
	return c
}

func poolDefaults(p workpool.Config, name string, workers int) workpool.Config {
	if p.Name == "" {
		p.Name = name
	}
	if p.Workers <= 0 {
		p.Workers = workers
	}
	return p
}
