package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/dotside-studios/nfc-bridge/mifare"
)

// Config represents the complete configuration for the bridge daemon.
// Flags override whatever is loaded here.
type Config struct {
	Device    string     `yaml:"device"`
	Port      int        `yaml:"port"`
	APISecret string     `yaml:"apiSecret"`
	Poll      PollConfig `yaml:"poll"`
	CardTypes []string   `yaml:"cardTypes"` // Empty means all types allowed
}

// PollConfig holds field polling settings
type PollConfig struct {
	IntervalMs      int `yaml:"intervalMs"`
	OpenCooldownSec int `yaml:"openCooldownSec"`
}

// LoadConfig loads configuration from an optional YAML file and
// environment variables, layered over defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := getDefaultConfig()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %v", path, err)
		}
	}

	// Override with environment variables
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	return cfg, nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		Device: "", // Auto-detect
		Port:   18080,
		Poll: PollConfig{
			IntervalMs:      500,
			OpenCooldownSec: 3,
		},
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if device := os.Getenv("NFC_BRIDGE_DEVICE"); device != "" {
		cfg.Device = device
	}

	if port := os.Getenv("NFC_BRIDGE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}

	if secret := os.Getenv("NFC_BRIDGE_API_SECRET"); secret != "" {
		cfg.APISecret = secret
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d, must be 1-65535", cfg.Port)
	}

	if cfg.Poll.IntervalMs <= 0 {
		return fmt.Errorf("poll interval %d ms must be positive", cfg.Poll.IntervalMs)
	}

	if cfg.Poll.OpenCooldownSec <= 0 {
		return fmt.Errorf("open cooldown %d seconds must be positive", cfg.Poll.OpenCooldownSec)
	}

	validTypes := mifare.GetAllCardTypes()
	for _, cardType := range cfg.CardTypes {
		if !contains(validTypes, cardType) {
			return fmt.Errorf("unknown card type %q, must be one of: %v", cardType, validTypes)
		}
	}

	return nil
}

// AllowedCardTypes converts the configured card type list to the filter
// map the server consumes. An empty list yields an empty map, which
// allows every type.
func (c *Config) AllowedCardTypes() map[string]bool {
	allowed := make(map[string]bool)
	for _, cardType := range c.CardTypes {
		allowed[cardType] = true
	}
	return allowed
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMs) * time.Millisecond
}

// OpenCooldown returns the device open retry cooldown as a duration.
func (c *Config) OpenCooldown() time.Duration {
	return time.Duration(c.Poll.OpenCooldownSec) * time.Second
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
