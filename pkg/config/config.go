// Package config loads and validates the border-router/router daemon's
// startup configuration from a YAML file, in the same load-then-validate
// shape the rest of the ambient stack uses.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RCPTransport selects how the daemon reaches the radio co-processor.
type RCPTransport string

const (
	RCPTransportUART RCPTransport = "uart"
	RCPTransportIPC  RCPTransport = "ipc"
)

// Config is the root configuration document.
type Config struct {
	// RCP transport.
	RCPTransport RCPTransport `yaml:"rcp_transport"`
	RCPDevice    string       `yaml:"rcp_device"`
	RCPBaud      int          `yaml:"rcp_baud"`

	// Network identity.
	NetworkName  string `yaml:"network_name"`
	PANID        int    `yaml:"pan_id"` // -1 leaves the PAN-id unconfigured
	AllowedChans []int  `yaml:"allowed_channels"`
	RegDomain    string `yaml:"regulatory_domain"`

	// TUN interface.
	TunInterface string `yaml:"tun_interface"`
	TunMTU       int    `yaml:"tun_mtu"`

	// Neighbor table.
	NeighborTTLSeconds int `yaml:"neighbor_ttl_seconds"`

	// EAPOL pipeline.
	RadiusAddress   string `yaml:"radius_address"`
	EAPRetryCeiling int    `yaml:"eap_retry_ceiling"`

	// Persisted key storage.
	KeyStoragePath string `yaml:"key_storage_path"`

	// Packet capture.
	PCAPPath string `yaml:"pcap_path"`

	// Management IPC.
	MgmtListenAddr string `yaml:"mgmt_listen_addr"`
	MgmtJWTSecret  string `yaml:"mgmt_jwt_secret"`

	// Logging.
	LogPath  string `yaml:"log_path"`
	LogLevel string `yaml:"log_level"`
}

// Load reads and parses the configuration file at path. Callers must still
// call Validate before acting on the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with the daemon's baseline policy values
// filled in; Load starts from this before overlaying the YAML document.
func Default() *Config {
	return &Config{
		RCPTransport:       RCPTransportUART,
		RCPBaud:            115200,
		PANID:              -1,
		TunMTU:             1280,
		NeighborTTLSeconds: 3600,
		EAPRetryCeiling:    3,
		LogLevel:           "info",
		MgmtListenAddr:     "127.0.0.1:9991",
	}
}

// Validate checks the configuration for the conditions that make
// a configuration error (exit code 1) the correct response.
func (c *Config) Validate() error {
	if c.RCPDevice == "" {
		return fmt.Errorf("rcp_device must name a serial device or IPC socket path")
	}
	if c.TunInterface == "" {
		return fmt.Errorf("tun_interface must be set")
	}
	if len(c.AllowedChans) == 0 {
		return fmt.Errorf("allowed_channels must not be empty")
	}
	if c.NetworkName == "" {
		return fmt.Errorf("network_name must be set")
	}
	if c.KeyStoragePath == "" {
		return fmt.Errorf("key_storage_path must be set")
	}
	return nil
}

// IntersectChannels returns the channels present in both the configured
// allow-list and the regulatory mask. An empty result is a ConfigInvalid
// condition the caller must reject before bringing up the radio.
func (c *Config) IntersectChannels(regulatoryMask []int) []int {
	allowed := make(map[int]bool, len(c.AllowedChans))
	for _, ch := range c.AllowedChans {
		allowed[ch] = true
	}
	var out []int
	for _, ch := range regulatoryMask {
		if allowed[ch] {
			out = append(out, ch)
		}
	}
	return out
}
