package config

import (
	"fmt"
	"os"
	"time"
)

// Config represents the main configuration for the operator console
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Cluster ClusterConfig `yaml:"cluster"`
	Streams StreamsConfig `yaml:"streams"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains the HTTP/WebSocket listener configuration
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`      // e.g. ":7420"
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // graceful shutdown window
}

// ClusterConfig contains orchestration API access configuration
type ClusterConfig struct {
	Kubeconfig      string   `yaml:"kubeconfig"`       // Path to kubeconfig; empty means in-cluster
	WatchNamespaces []string `yaml:"watch_namespaces"` // Namespaces the cluster watcher covers; empty means all
}

// StreamsConfig contains log-tail session configuration
type StreamsConfig struct {
	TailLines  int `yaml:"tail_lines"`  // Historical snippet size fetched before the live tail
	SendBuffer int `yaml:"send_buffer"` // Per-connection outbound channel capacity
	ReadChunk  int `yaml:"read_chunk"`  // Live tail read buffer size in bytes
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Colors bool   `yaml:"colors"` // colored console output
}

// Default returns a Config populated with working defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":7420",
			ShutdownTimeout: 10 * time.Second,
		},
		Cluster: ClusterConfig{},
		Streams: StreamsConfig{
			TailLines:  100,
			SendBuffer: 128,
			ReadChunk:  4096,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Colors: true,
		},
	}
}

// LoadFromFile reads YAML configuration from path on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	if err := DecodeStrict(f, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the console cannot run with.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr must not be empty")
	}
	if c.Streams.TailLines < 0 {
		return fmt.Errorf("streams.tail_lines must not be negative")
	}
	if c.Streams.SendBuffer <= 0 {
		return fmt.Errorf("streams.send_buffer must be positive")
	}
	if c.Streams.ReadChunk <= 0 {
		return fmt.Errorf("streams.read_chunk must be positive")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
