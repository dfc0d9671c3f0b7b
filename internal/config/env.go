package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHost       = "HDSWEEP_HOST"
	EnvPort       = "HDSWEEP_PORT"
	EnvTransport  = "HDSWEEP_TRANSPORT"
	EnvAddressGap = "HDSWEEP_ADDRESS_GAP"
	EnvAccountGap = "HDSWEEP_ACCOUNT_GAP"
	EnvLogLevel   = "HDSWEEP_LOG_LEVEL"
	EnvNoBatching = "HDSWEEP_NO_BATCHING"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHost); v != "" {
		cfg.Electrum.Host = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Electrum.Port = port
		}
	}

	if v := os.Getenv(EnvTransport); v != "" {
		cfg.Electrum.Transport = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvAddressGap); v != "" {
		if gap, err := strconv.Atoi(v); err == nil && gap > 0 {
			cfg.Scan.AddressGap = gap
		}
	}

	if v := os.Getenv(EnvAccountGap); v != "" {
		if gap, err := strconv.Atoi(v); err == nil && gap >= 0 {
			cfg.Scan.AccountGap = gap
		}
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvNoBatching); v != "" {
		cfg.Electrum.Batching = !parseBool(v)
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}
