// Package config loads and saves the TOML configuration file a peer
// process starts from, in the same style the teacher uses for its own
// config: a typed Config struct, sensible defaults applied after
// decode, and a dedicated save path per command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultConfigDir is the system-wide config directory for rtbus.
const DefaultConfigDir = "/etc/rtbus"

// Config is the top-level configuration for an rtbus peer process. It
// is persisted as a TOML file at DefaultConfigPath().
type Config struct {
	Device  DeviceConfig  `toml:"device"`
	Network NetworkConfig `toml:"network"`
	Metrics MetricsConfig `toml:"metrics"`
}

// DeviceConfig identifies this peer on the bus.
type DeviceConfig struct {
	// Name is this device's sender identity on the bus. Required.
	Name string `toml:"name"`
}

// NetworkConfig controls the UDP transport.
type NetworkConfig struct {
	// Port is the UDP port the bus socket binds to and sends to.
	Port int `toml:"port"`

	// BroadcastAddr is the destination used for undirected publishes.
	BroadcastAddr string `toml:"broadcast_addr"`

	// ReceiveTimeout bounds each blocking socket read, given as a
	// duration string (e.g. "10ms").
	ReceiveTimeout duration `toml:"receive_timeout"`

	// MetaInterval is the minimum spacing between meta heartbeats.
	MetaInterval duration `toml:"meta_interval"`

	// QueueSize bounds the outbound publish queue.
	QueueSize int `toml:"queue_size,omitempty"`
}

// MetricsConfig controls the optional Prometheus exporter.
type MetricsConfig struct {
	// Enabled turns on the /metrics HTTP listener.
	Enabled bool `toml:"enabled"`

	// ListenAddr is the address the metrics server binds to (e.g.
	// "127.0.0.1:9100"). Ignored when Enabled is false.
	ListenAddr string `toml:"listen_addr,omitempty"`
}

// duration wraps time.Duration so it round-trips through TOML as a
// duration string ("10ms") instead of an opaque integer of
// nanoseconds.
type duration time.Duration

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	*d = duration(parsed)
	return nil
}

// Duration returns d as a time.Duration.
func (d duration) Duration() time.Duration { return time.Duration(d) }

// DefaultConfig returns a Config populated with sensible defaults.
// Device.Name is left empty and must be filled in by the user or by
// `rtbusctl init`.
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			Port:           5999,
			BroadcastAddr:  "255.255.255.255",
			ReceiveTimeout: duration(10 * time.Millisecond),
			MetaInterval:   duration(100 * time.Millisecond),
			QueueSize:      64,
		},
	}
}

// DefaultConfigPath returns the default path for the rtbus config
// file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir, "config.toml")
}

// LoadConfig reads and decodes the TOML config file at path, applying
// defaults for anything the file leaves zero-valued.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	applyDefaults(cfg)
	if cfg.Device.Name == "" {
		return nil, errors.New("config: device.name is required")
	}
	return cfg, nil
}

// SaveConfig writes cfg as TOML to path, creating parent directories
// as needed.
func SaveConfig(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding TOML: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ParseTOML decodes a TOML config from a string.
func ParseTOML(s string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.Decode(s, cfg); err != nil {
		return nil, fmt.Errorf("decoding TOML config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// MarshalTOML encodes cfg to a TOML string.
func MarshalTOML(cfg *Config) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", fmt.Errorf("encoding TOML config: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// applyDefaults fills in default values for optional fields that are
// still zero-valued after TOML decoding.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Network.Port == 0 {
		cfg.Network.Port = def.Network.Port
	}
	if cfg.Network.BroadcastAddr == "" {
		cfg.Network.BroadcastAddr = def.Network.BroadcastAddr
	}
	if cfg.Network.ReceiveTimeout == 0 {
		cfg.Network.ReceiveTimeout = def.Network.ReceiveTimeout
	}
	if cfg.Network.MetaInterval == 0 {
		cfg.Network.MetaInterval = def.Network.MetaInterval
	}
	if cfg.Network.QueueSize == 0 {
		cfg.Network.QueueSize = def.Network.QueueSize
	}
}
