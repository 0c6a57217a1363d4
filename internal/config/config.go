package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Game    GameConfig    `yaml:"game" toml:"game"`
	HTTP    HTTPConfig    `yaml:"http" toml:"http"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ServerConfig contains UDP transport configuration
type ServerConfig struct {
	UDPPort         int    `yaml:"udp_port" toml:"udp_port"`
	BindAddress     string `yaml:"bind_address" toml:"bind_address"`
	BufferSize      int    `yaml:"buffer_size" toml:"buffer_size"`             // socket read buffer, bytes
	MaxDatagramSize int    `yaml:"max_datagram_size" toml:"max_datagram_size"` // bytes
	QueueSize       int    `yaml:"queue_size" toml:"queue_size"`               // inbound packets held between ticks
}

// GameConfig contains lobby and tick loop parameters
type GameConfig struct {
	TickInterval   int     `yaml:"tick_interval_ms" toml:"tick_interval_ms"` // milliseconds
	SessionTimeout int     `yaml:"session_timeout" toml:"session_timeout"`   // seconds
	PingInterval   int     `yaml:"ping_interval" toml:"ping_interval"`       // seconds, client side
	MaxNameLength  int     `yaml:"max_name_length" toml:"max_name_length"`
	RateLimit      float64 `yaml:"rate_limit" toml:"rate_limit"` // packets per second per session, 0 disables
	RateBurst      int     `yaml:"rate_burst" toml:"rate_burst"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port" toml:"port"`
	Address string `yaml:"address" toml:"address"`
	Enabled bool   `yaml:"enabled" toml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	Output string `yaml:"output" toml:"output"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Server: ServerConfig{
			UDPPort:         55555,
			BindAddress:     "0.0.0.0",
			BufferSize:      65536,
			MaxDatagramSize: 1024,
			QueueSize:       4096,
		},
		Game: GameConfig{
			TickInterval:   10,
			SessionTimeout: 5,
			PingInterval:   1,
			MaxNameLength:  32,
			RateLimit:      50,
			RateBurst:      100,
		},
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "127.0.0.1",
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := decode(path, data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func decode(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), config)
		return err
	default:
		return yaml.Unmarshal(data, config)
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Game.Validate(); err != nil {
		return fmt.Errorf("game config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.UDPPort < 1 || s.UDPPort > 65535 {
		return fmt.Errorf("udp_port must be between 1 and 65535, got %d", s.UDPPort)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.BufferSize < 1024 {
		return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", s.BufferSize)
	}

	if s.MaxDatagramSize < 64 || s.MaxDatagramSize > 65507 {
		return fmt.Errorf("max_datagram_size must be between 64 and 65507 bytes, got %d", s.MaxDatagramSize)
	}

	if s.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", s.QueueSize)
	}

	return nil
}

// Validate validates game configuration
func (g *GameConfig) Validate() error {
	if g.TickInterval < 1 || g.TickInterval > 1000 {
		return fmt.Errorf("tick_interval_ms must be between 1 and 1000, got %d", g.TickInterval)
	}

	if g.PingInterval < 1 {
		return fmt.Errorf("ping_interval must be at least 1 second, got %d", g.PingInterval)
	}

	// a single lost ping must not expire a session
	if g.SessionTimeout < 2*g.PingInterval {
		return fmt.Errorf("session_timeout (%d) must be at least twice ping_interval (%d)",
			g.SessionTimeout, g.PingInterval)
	}

	if g.MaxNameLength < 1 || g.MaxNameLength > 255 {
		return fmt.Errorf("max_name_length must be between 1 and 255, got %d", g.MaxNameLength)
	}

	if g.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative, got %f", g.RateLimit)
	}

	if g.RateLimit > 0 && g.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1 when rate_limit is set, got %d", g.RateBurst)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTickInterval returns the tick interval as a time.Duration
func (g *GameConfig) GetTickInterval() time.Duration {
	return time.Duration(g.TickInterval) * time.Millisecond
}

// GetSessionTimeout returns the liveness timeout as a time.Duration
func (g *GameConfig) GetSessionTimeout() time.Duration {
	return time.Duration(g.SessionTimeout) * time.Second
}

// GetPingInterval returns the client ping interval as a time.Duration
func (g *GameConfig) GetPingInterval() time.Duration {
	return time.Duration(g.PingInterval) * time.Second
}
