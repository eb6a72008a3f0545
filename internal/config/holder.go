package config

import "sync"

// Holder wraps a Config for concurrent access with hot reload. Reload
// re-runs the full defaults < YAML < ENV hierarchy; a config that fails
// validation is rejected and the previous one stays active.
type Holder struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

// NewHolder wraps an already loaded Config and remembers the YAML path
// for subsequent reloads.
func NewHolder(cfg *Config, path string) *Holder {
	return &Holder{cfg: cfg, path: path}
}

// Get returns the current Config. Callers must not mutate it.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Reload loads the configuration from the stored path and swaps it in.
// On error the previous configuration remains in place.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.path)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
	return nil
}
