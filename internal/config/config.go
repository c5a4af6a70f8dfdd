package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Supermagnum/gr-sleipnir-sub000/internal/frame"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/ldpc"
)

// Config represents the complete daemon configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	HTTP    HTTPConfig    `yaml:"http"`
	Link    LinkConfig    `yaml:"link"`
	LDPC    LDPCConfig    `yaml:"ldpc"`
	Crypto  CryptoConfig  `yaml:"crypto"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains the UDP soft-bit ingest configuration.
type ServerConfig struct {
	UDPPort            int    `yaml:"udp_port"`
	BindAddress        string `yaml:"bind_address"`
	BufferSize         int    `yaml:"buffer_size"`
	MaxConcurrentLinks int    `yaml:"max_concurrent_links"`
	LinkTimeout        int    `yaml:"link_timeout"` // seconds
}

// HTTPConfig contains the HTTP monitoring API configuration.
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LinkConfig contains the per-link framing behavior.
type LinkConfig struct {
	Callsign          string   `yaml:"callsign"`
	Recipients        []string `yaml:"recipients"`
	SigningEnabled    bool     `yaml:"signing_enabled"`
	EncryptionEnabled bool     `yaml:"encryption_enabled"`
	SyncFrameInterval uint32   `yaml:"sync_frame_interval"` // superframes, 0 disables
}

// LDPCConfig locates the FEC matrices and tunes the decoder.
type LDPCConfig struct {
	VoiceMatrixPath string `yaml:"voice_matrix_path"`
	AuthMatrixPath  string `yaml:"auth_matrix_path"`
	MaxIterations   int    `yaml:"max_iterations"`
	Decoder         string `yaml:"decoder"` // "sum-product" or "min-sum"
}

// CryptoConfig locates key material. All paths are optional; absent keys
// disable the corresponding capability.
type CryptoConfig struct {
	SigningKeyPath   string `yaml:"signing_key_path"`
	VerifyKeyPath    string `yaml:"verify_key_path"`
	SymmetricKeyPath string `yaml:"symmetric_key_path"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration,
// including the cross-section constraints between link switches and key
// material.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Link.Validate(); err != nil {
		return fmt.Errorf("link config: %w", err)
	}

	if err := c.LDPC.Validate(); err != nil {
		return fmt.Errorf("ldpc config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if c.Link.SigningEnabled && c.Crypto.SigningKeyPath == "" && c.Crypto.VerifyKeyPath == "" {
		return fmt.Errorf("link config: signing_enabled requires signing_key_path or verify_key_path")
	}
	if c.Link.EncryptionEnabled && c.Crypto.SymmetricKeyPath == "" {
		return fmt.Errorf("link config: encryption_enabled requires symmetric_key_path")
	}

	return nil
}

// Validate validates server configuration.
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

	if s.MaxConcurrentLinks < 1 {
		return fmt.Errorf("max_concurrent_links must be at least 1, got %d", s.MaxConcurrentLinks)
	}

	if s.LinkTimeout < 1 {
		return fmt.Errorf("link_timeout must be at least 1 second, got %d", s.LinkTimeout)
	}

	return nil
}

// Validate validates HTTP configuration.
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

// Validate validates link configuration.
func (l *LinkConfig) Validate() error {
	if _, err := frame.EncodeCallsign(l.Callsign); err != nil {
		return fmt.Errorf("callsign: %w", err)
	}

	for _, r := range l.Recipients {
		if _, err := frame.EncodeCallsign(r); err != nil {
			return fmt.Errorf("recipient: %w", err)
		}
	}

	if l.SigningEnabled && l.SyncFrameInterval > 0 {
		return fmt.Errorf("sync_frame_interval requires signing_enabled: false (the sync slot is only free without an auth frame)")
	}

	return nil
}

// Validate validates LDPC configuration.
func (l *LDPCConfig) Validate() error {
	if l.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", l.MaxIterations)
	}

	switch l.Decoder {
	case "sum-product", "min-sum":
	default:
		return fmt.Errorf("decoder must be 'sum-product' or 'min-sum', got '%s'", l.Decoder)
	}

	return nil
}

// Validate validates logging configuration.
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

// Variant maps the decoder name to the engine's decoder selector.
func (l *LDPCConfig) Variant() ldpc.Variant {
	if l.Decoder == "min-sum" {
		return ldpc.MinSum
	}
	return ldpc.SumProduct
}

// GetLinkTimeoutDuration returns the link timeout as a time.Duration.
func (s *ServerConfig) GetLinkTimeoutDuration() time.Duration {
	return time.Duration(s.LinkTimeout) * time.Second
}
