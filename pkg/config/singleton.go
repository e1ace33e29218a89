package config

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// active is the configuration the running server was built from.
	active     *Config
	activePath string
	activeMu   sync.RWMutex
)

// Install makes cfg, loaded from path, the process-wide configuration.
// ReloadConfig re-reads path later.
func Install(path string, cfg *Config) {
	activeMu.Lock()
	defer activeMu.Unlock()
	active = cfg
	activePath = path
}

// GetConfig returns the process-wide configuration, or nil before Install.
func GetConfig() *Config {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return active
}

// ReloadConfig re-reads the installed path with environment overrides,
// applies overrides in order and installs the result. On failure the
// current configuration stays in place.
func ReloadConfig(overrides ...func(*Config)) (*Config, error) {
	activeMu.RLock()
	path, installed := activePath, active != nil
	activeMu.RUnlock()
	if !installed {
		return nil, errors.New("no configuration installed")
	}

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, fmt.Errorf("failed to reload configuration: %w", err)
	}
	for _, apply := range overrides {
		apply(cfg)
	}

	activeMu.Lock()
	active = cfg
	activeMu.Unlock()
	return cfg, nil
}
