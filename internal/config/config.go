// Package config loads and persists the bridge CLI configuration as a TOML
// file. Flag values override file values; file values override defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	wasmbridge "github.com/wippyai/wasm-bridge"
)

// DefaultBlockingTimeout mirrors the library default so a missing config
// file behaves the same as no config at all.
const DefaultBlockingTimeout = wasmbridge.DefaultBlockingTimeout

// Config is the top-level CLI configuration, persisted at DefaultPath().
type Config struct {
	Socket  Socket  `toml:"socket"`
	Logging Logging `toml:"logging"`
}

// Socket configures the connection to the compile peer.
type Socket struct {
	// Address is the websocket URL of the compile peer
	// (e.g. "ws://localhost:8787/compile").
	Address string `toml:"address"`

	// BlockingTimeout bounds each shared-memory poll of a blocking round
	// trip (e.g. "10s").
	BlockingTimeout Duration `toml:"blocking_timeout"`
}

// Logging configures diagnostic output.
type Logging struct {
	// Debug enables debug-level logging in the worker session.
	Debug bool `toml:"debug"`
}

// Duration wraps time.Duration so TOML files can use "10s" style values.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Socket: Socket{
			BlockingTimeout: Duration(DefaultBlockingTimeout),
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "wasm-bridge.toml"
	}
	return filepath.Join(dir, "wasm-bridge", "config.toml")
}

// Load reads the configuration from path. A missing file yields the
// defaults without error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Socket.BlockingTimeout <= 0 {
		cfg.Socket.BlockingTimeout = Duration(DefaultBlockingTimeout)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories as
// needed.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening config %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}
