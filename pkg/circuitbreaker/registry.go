package circuitbreaker

import "sync"

// Registry hands out one breaker per host, created on first use.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	config   Config
}

// NewRegistry creates a registry whose breakers share cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		config:   cfg,
	}
}

// Get returns the breaker for host, creating it if needed.
func (r *Registry) Get(host string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[host]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[host]; ok {
		return b
	}
	b = New(r.config)
	r.breakers[host] = b
	return b
}

// Stats holds registry statistics.
type Stats struct {
	Total int
	Open  int
}

// Stats counts breakers and how many are currently not closed.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Total: len(r.breakers)}
	for _, b := range r.breakers {
		if b.State() != Closed {
			stats.Open++
		}
	}
	return stats
}
