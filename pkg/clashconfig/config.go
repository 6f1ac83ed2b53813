// Package clashconfig loads clash's optional configuration file, the
// way the teacher's pkg/repo/config.go loads repository configuration:
// github.com/BurntSushi/toml, defaults applied when the file (or a
// section of it) is absent.
package clashconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultDebounceMillis is the quiescence window §4.7 asks for ("roughly
// 250 ms").
const DefaultDebounceMillis = 250

// Config is clash's on-disk configuration, read from ".clash.toml" at
// the repository root or from the user config directory.
type Config struct {
	Watch  WatchConfig  `toml:"watch"`
	Engine EngineConfig `toml:"engine"`
}

// WatchConfig controls the Change Observer.
type WatchConfig struct {
	DebounceMillis int      `toml:"debounce_ms"`
	Ignore         []string `toml:"ignore"`
}

// EngineConfig controls the Pairwise Conflict Engine's concurrency.
type EngineConfig struct {
	// MaxParallelPairs bounds how many pairs are merged concurrently.
	// Zero means GOMAXPROCS.
	MaxParallelPairs int `toml:"max_parallel_pairs"`
}

// Default returns a Config with the specification's defaults applied.
func Default() Config {
	return Config{
		Watch: WatchConfig{
			DebounceMillis: DefaultDebounceMillis,
		},
	}
}

// Load reads ".clash.toml" from repoRoot, falling back to
// $XDG_CONFIG_HOME/clash/config.toml, and finally to Default() if
// neither exists. A malformed file is a hard error; a missing one is not.
func Load(repoRoot string) (Config, error) {
	cfg := Default()

	for _, candidate := range candidatePaths(repoRoot) {
		data, err := os.ReadFile(candidate)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return cfg, fmt.Errorf("read config %q: %w", candidate, err)
		}
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", candidate, err)
		}
		applyDefaults(&cfg)
		return cfg, nil
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func candidatePaths(repoRoot string) []string {
	paths := []string{filepath.Join(repoRoot, ".clash.toml")}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "clash", "config.toml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "clash", "config.toml"))
	}
	return paths
}

func applyDefaults(cfg *Config) {
	if cfg.Watch.DebounceMillis <= 0 {
		cfg.Watch.DebounceMillis = DefaultDebounceMillis
	}
}
