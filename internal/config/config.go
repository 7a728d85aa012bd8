package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the optional shelfscan configuration file.
type Config struct {
	Scanner  ScannerConfig  `toml:"scanner"`
	Backend  BackendConfig  `toml:"backend"`
	Defaults DefaultsConfig `toml:"defaults"`
	Theme    ThemeConfig    `toml:"theme"`
}

// ScannerConfig tunes scan capture.
type ScannerConfig struct {
	IdleTimeout         *Duration `toml:"idle_timeout"`
	Terminator          *string   `toml:"terminator"`
	SuppressWhenFocused *bool     `toml:"suppress_when_focused"`
	Device              *string   `toml:"device"`
	Grab                *bool     `toml:"grab"`
}

// BackendConfig points at the library backend.
type BackendConfig struct {
	URL     *string   `toml:"url"`
	Rate    *float64  `toml:"rate"`
	Timeout *Duration `toml:"timeout"`
}

// DefaultsConfig holds persistent flag defaults.
type DefaultsConfig struct {
	Library *string `toml:"library"`
	Mode    *string `toml:"mode"`
	TUI     *bool   `toml:"tui"`
	History *string `toml:"history"`
}

// ThemeConfig holds optional color overrides.
type ThemeConfig struct {
	Green  *string `toml:"green"`
	Blue   *string `toml:"blue"`
	Yellow *string `toml:"yellow"`
	Red    *string `toml:"red"`
	Teal   *string `toml:"teal"`
	Mauve  *string `toml:"mauve"`
	Muted  *string `toml:"muted"`
	Dim    *string `toml:"dim"`
	Bright *string `toml:"bright"`
}

// Duration is a time.Duration written as a Go duration string ("150ms").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Path returns the resolved path to the config file.
func Path() string {
	return xdgPath("XDG_CONFIG_HOME", ".config", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}

	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}

func xdgPath(env, fallback, name string) string {
	dir := os.Getenv(env)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, fallback)
	}
	return filepath.Join(dir, "shelfscan", name)
}
