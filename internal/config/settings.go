package config

import "sync"

// Settings holds what can be changed while the demo runs
type Settings struct {
	mu        sync.RWMutex
	fpsLimit  int
	showStats bool
}

var globalSettings = &Settings{
	fpsLimit: 120,
}

// Apply copies the runtime settings out of cfg
func Apply(cfg Config) {
	SetFPSLimit(cfg.Window.FPSLimit)
}

// GetFPSLimit returns the frame cap, 0 when unlimited
func GetFPSLimit() int {
	globalSettings.mu.RLock()
	defer globalSettings.mu.RUnlock()
	return globalSettings.fpsLimit
}

// SetFPSLimit sets the frame cap
func SetFPSLimit(limit int) {
	globalSettings.mu.Lock()
	defer globalSettings.mu.Unlock()
	globalSettings.fpsLimit = clampFPS(limit)
}

func clampFPS(limit int) int {
	// Clamp to reasonable values
	if limit <= 0 {
		return 0
	}
	if limit < 10 {
		return 10
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

// ShowStats reports whether the stats overlay is on
func ShowStats() bool {
	globalSettings.mu.RLock()
	defer globalSettings.mu.RUnlock()
	return globalSettings.showStats
}

// ToggleStats flips the stats overlay and returns the new state
func ToggleStats() bool {
	globalSettings.mu.Lock()
	defer globalSettings.mu.Unlock()
	globalSettings.showStats = !globalSettings.showStats
	return globalSettings.showStats
}
