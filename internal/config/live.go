package config

import "sync/atomic"

// Live holds the current configuration behind an atomic pointer so the
// file watcher can replace it while background jobs read concurrently.
// Readers get a consistent snapshot; they must not mutate it.
type Live struct {
	p atomic.Pointer[Config]
}

// NewLive wraps an initial configuration.
func NewLive(cfg *Config) *Live {
	l := &Live{}
	l.p.Store(cfg)
	return l
}

// Current returns the most recently stored configuration.
func (l *Live) Current() *Config {
	return l.p.Load()
}

// Replace swaps in a new configuration.
func (l *Live) Replace(cfg *Config) {
	l.p.Store(cfg)
}
