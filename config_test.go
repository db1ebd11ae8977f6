package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dotside-studios/nfc-bridge/mifare"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Device != "" {
		t.Errorf("expected auto-detect device, got %q", cfg.Device)
	}
	if cfg.Port != 18080 {
		t.Errorf("expected default port 18080, got %d", cfg.Port)
	}
	if got := cfg.PollInterval(); got != 500*time.Millisecond {
		t.Errorf("expected 500ms poll interval, got %v", got)
	}
	if got := cfg.OpenCooldown(); got != 3*time.Second {
		t.Errorf("expected 3s open cooldown, got %v", got)
	}
	if got := cfg.AllowedCardTypes(); len(got) != 0 {
		t.Errorf("expected empty card type filter, got %v", got)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
device: "pn532_uart:/dev/ttyUSB0"
port: 9000
apiSecret: "hunter2"
poll:
  intervalMs: 250
  openCooldownSec: 5
cardTypes:
  - "NTAG215"
  - "MIFARE Classic 1K"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Device != "pn532_uart:/dev/ttyUSB0" {
		t.Errorf("device = %q", cfg.Device)
	}
	if cfg.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Port)
	}
	if cfg.APISecret != "hunter2" {
		t.Errorf("apiSecret = %q", cfg.APISecret)
	}
	if got := cfg.PollInterval(); got != 250*time.Millisecond {
		t.Errorf("poll interval = %v, want 250ms", got)
	}
	if got := cfg.OpenCooldown(); got != 5*time.Second {
		t.Errorf("open cooldown = %v, want 5s", got)
	}

	allowed := cfg.AllowedCardTypes()
	if len(allowed) != 2 {
		t.Fatalf("expected 2 allowed card types, got %v", allowed)
	}
	if !allowed[mifare.CardTypeNtag215] || !allowed[mifare.CardTypeMifareClassic1K] {
		t.Errorf("unexpected card type filter: %v", allowed)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("NFC_BRIDGE_DEVICE", "acr122_usb:001:004")
	t.Setenv("NFC_BRIDGE_PORT", "9999")
	t.Setenv("NFC_BRIDGE_API_SECRET", "from-env")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Device != "acr122_usb:001:004" {
		t.Errorf("device = %q", cfg.Device)
	}
	if cfg.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Port)
	}
	if cfg.APISecret != "from-env" {
		t.Errorf("apiSecret = %q", cfg.APISecret)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "port too low",
			content: "port: 0",
		},
		{
			name:    "port too high",
			content: "port: 70000",
		},
		{
			name:    "zero poll interval",
			content: "poll:\n  intervalMs: 0",
		},
		{
			name:    "zero open cooldown",
			content: "poll:\n  openCooldownSec: 0",
		},
		{
			name:    "unknown card type",
			content: "cardTypes:\n  - \"Credit Card\"",
		},
		{
			name:    "malformed yaml",
			content: "port: [not a number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Errorf("expected error for %q", tt.content)
			}
		})
	}
}
