package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is netcored's on-disk configuration. Any field left unset keeps
// its DefaultConfig value; -flag values override whatever the file set.
type Config struct {
	// Port is the UDP/TCP port both transport variants listen on.
	Port int `yaml:"port"`

	// LogLevel is one of: trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// MetricsAddr is the address the Prometheus exposition endpoint binds
	// to. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// DisableStream disables the stream (reliable/ordered) transport.
	DisableStream bool `yaml:"disable_stream"`

	// DisableDatagram disables the datagram (unreliable) transport. Setting
	// both DisableStream and DisableDatagram leaves both transports enabled.
	DisableDatagram bool `yaml:"disable_datagram"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Port:        14625,
		LogLevel:    "info",
		MetricsAddr: ":9465",
	}
}

// LoadConfig reads and parses a YAML config file at path, layering it over
// DefaultConfig. A missing path is not an error: defaults are used as-is.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
