package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	cfg := Default()
	cfg.RCPDevice = "/dev/ttyACM0"
	cfg.TunInterface = "tun0"
	cfg.AllowedChans = []int{0, 1, 2, 3}
	cfg.NetworkName = "test-network"
	cfg.KeyStoragePath = "/var/lib/wsbrd/keys"
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	mutations := []func(*Config){
		func(c *Config) { c.RCPDevice = "" },
		func(c *Config) { c.TunInterface = "" },
		func(c *Config) { c.AllowedChans = nil },
		func(c *Config) { c.NetworkName = "" },
		func(c *Config) { c.KeyStoragePath = "" },
	}
	for i, mutate := range mutations {
		cfg := validConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("mutation %d: expected validation error", i)
		}
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wsbrd.yaml")
	doc := `
rcp_device: /dev/ttyUSB1
network_name: field-net
tun_interface: tun7
allowed_channels: [5, 6]
key_storage_path: /tmp/keys
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RCPDevice != "/dev/ttyUSB1" || cfg.NetworkName != "field-net" {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
	// Untouched knobs keep their defaults.
	if cfg.RCPBaud != 115200 {
		t.Fatalf("RCPBaud = %d, want default 115200", cfg.RCPBaud)
	}
	if cfg.TunMTU != 1280 {
		t.Fatalf("TunMTU = %d, want default 1280", cfg.TunMTU)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for a missing config file")
	}
}

func TestIntersectChannels(t *testing.T) {
	cfg := validConfig()
	cfg.AllowedChans = []int{1, 3, 5, 7}

	got := cfg.IntersectChannels([]int{0, 1, 2, 3})
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("IntersectChannels = %v, want [1 3]", got)
	}

	if got := cfg.IntersectChannels([]int{0, 2, 4}); len(got) != 0 {
		t.Fatalf("expected empty intersection, got %v", got)
	}
}
