// Package config provides configuration management for hdsweep.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Electrum ElectrumConfig `yaml:"electrum"`
	Scan     ScanConfig     `yaml:"scan"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ElectrumConfig defines how to reach an Electrum server.
type ElectrumConfig struct {
	// Host overrides the server list with a fixed server. Empty means
	// pick a random entry from Servers.
	Host string `yaml:"host,omitempty"`

	// Port is the server port. Zero means the transport default
	// (50001 for tcp, 50002 for ssl).
	Port int `yaml:"port,omitempty"`

	// Transport is "tcp" or "ssl".
	Transport string `yaml:"transport"`

	// Batching enables request pipelining. When false every request
	// waits for its response before the next is sent.
	Batching bool `yaml:"batching"`

	// MaxRetries bounds transparent retries for connection failures
	// and timeouts.
	MaxRetries int `yaml:"max_retries"`

	// RequestsPerSecond paces outgoing requests; zero disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Servers is the fallback server list used when Host is empty.
	Servers []Server `yaml:"servers"`
}

// Server is one entry of the Electrum server list.
type Server struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Transport string `yaml:"transport"`
}

// ScanConfig defines the search parameters.
type ScanConfig struct {
	// AddressGap is the number of consecutive unused addresses probed
	// before a chain scan terminates. Overrides catalog defaults.
	AddressGap int `yaml:"address_gap"`

	// AccountGap is the number of empty account levels explored before
	// a descriptor scan terminates.
	AccountGap int `yaml:"account_gap"`

	// Window is the number of indices probed per batched round trip.
	Window int `yaml:"window"`

	// Concurrency bounds how many descriptors are scanned at once.
	Concurrency int `yaml:"concurrency"`
}

// SweepConfig defines sweep transaction parameters.
type SweepConfig struct {
	// FeeRate in sat/vbyte. Zero means fetch the next-block estimate.
	FeeRate int64 `yaml:"fee_rate,omitempty"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from the specified file, applying defaults
// for anything the file omits.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, sweeperr.Classify(sweeperr.ErrConfigInvalid, err, "parsing %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Scan.AddressGap <= 0 {
		return sweeperr.WithDetails(sweeperr.ErrConfigInvalid,
			map[string]string{"scan.address_gap": "must be positive"})
	}
	if c.Scan.AccountGap < 0 {
		return sweeperr.WithDetails(sweeperr.ErrConfigInvalid,
			map[string]string{"scan.account_gap": "must not be negative"})
	}
	if c.Scan.Window <= 0 {
		return sweeperr.WithDetails(sweeperr.ErrConfigInvalid,
			map[string]string{"scan.window": "must be positive"})
	}
	if c.Scan.Concurrency <= 0 {
		return sweeperr.WithDetails(sweeperr.ErrConfigInvalid,
			map[string]string{"scan.concurrency": "must be positive"})
	}
	switch c.Electrum.Transport {
	case "tcp", "ssl":
	default:
		return sweeperr.WithDetails(sweeperr.ErrConfigInvalid,
			map[string]string{"electrum.transport": c.Electrum.Transport})
	}
	return nil
}
