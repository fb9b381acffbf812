// Package config loads the optional TOML file consumed by the
// reference CLI. The core packages know nothing about it.
package config

import (
	"os"
	"time"

	"github.com/brodyxchen/framerpc/errors"
	toml "github.com/pelletier/go-toml/v2"
)

type PHYConfig struct {
	// Backend selects "pipe", "vsock" or "tcp".
	Backend string `toml:"backend"`

	// Named-pipe backend: the two FIFO paths. The server sends on
	// First and receives on Second; the client swaps them.
	FirstPath  string `toml:"first_path"`
	SecondPath string `toml:"second_path"`

	// Socket backends.
	ContextID uint32 `toml:"context_id"`
	IP        string `toml:"ip"`
	Port      uint32 `toml:"port"`
}

type Config struct {
	PHY PHYConfig `toml:"phy"`

	WorkerCount int `toml:"worker_count"`
	QueueDepth  int `toml:"queue_depth"`

	RequestTimeoutMs int `toml:"request_timeout_ms"`
	HandlerTimeoutMs int `toml:"handler_timeout_ms"`

	LogLevel    string `toml:"log_level"`
	LogFile     string `toml:"log_file"`
	MetricsAddr string `toml:"metrics_addr"`
}

func Default() *Config {
	return &Config{
		PHY: PHYConfig{
			Backend:    "pipe",
			FirstPath:  "/tmp/fifo_first",
			SecondPath: "/tmp/fifo_second",
		},
		LogLevel: "info",
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.PHY.Backend {
	case "pipe":
		if c.PHY.FirstPath == "" || c.PHY.SecondPath == "" {
			return errors.New("pipe backend requires first_path and second_path")
		}
	case "vsock", "tcp":
		if c.PHY.Port == 0 {
			return errors.New(c.PHY.Backend + " backend requires port")
		}
	default:
		return errors.New("unknown phy backend: " + c.PHY.Backend)
	}
	if c.WorkerCount < 0 || c.QueueDepth < 0 {
		return errors.New("negative worker_count or queue_depth")
	}
	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c *Config) HandlerTimeout() time.Duration {
	return time.Duration(c.HandlerTimeoutMs) * time.Millisecond
}
