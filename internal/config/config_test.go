package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultAddressGap, cfg.Scan.AddressGap)
	assert.Equal(t, DefaultAccountGap, cfg.Scan.AccountGap)
	assert.True(t, cfg.Electrum.Batching)
	assert.NotEmpty(t, cfg.Electrum.Servers)
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  address_gap: 5\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Scan.AddressGap)
	assert.Equal(t, DefaultWindow, cfg.Scan.Window)
	assert.Equal(t, "ssl", cfg.Electrum.Transport)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n\t- not yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, sweeperr.Is(err, sweeperr.ErrConfigInvalid))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero address gap", func(c *Config) { c.Scan.AddressGap = 0 }},
		{"negative account gap", func(c *Config) { c.Scan.AccountGap = -1 }},
		{"zero window", func(c *Config) { c.Scan.Window = 0 }},
		{"zero concurrency", func(c *Config) { c.Scan.Concurrency = 0 }},
		{"bad transport", func(c *Config) { c.Electrum.Transport = "udp" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPickServer(t *testing.T) {
	t.Run("explicit host wins", func(t *testing.T) {
		ec := ElectrumConfig{Host: "example.org", Transport: "tcp", Servers: DefaultServers}
		s := ec.PickServer()
		assert.Equal(t, "example.org", s.Host)
		assert.Equal(t, 50001, s.Port)
	})

	t.Run("explicit port wins", func(t *testing.T) {
		ec := ElectrumConfig{Host: "example.org", Port: 60601, Transport: "ssl"}
		assert.Equal(t, 60601, ec.PickServer().Port)
	})

	t.Run("falls back to the server list", func(t *testing.T) {
		ec := ElectrumConfig{Transport: "ssl", Servers: []Server{{Host: "only.one", Port: 50002, Transport: "ssl"}}}
		s := ec.PickServer()
		assert.Equal(t, "only.one", s.Host)
	})
}

func TestApplyEnvironment(t *testing.T) {
	t.Setenv(EnvHost, "env.example.org")
	t.Setenv(EnvAddressGap, "42")
	t.Setenv(EnvNoBatching, "1")

	cfg := Defaults()
	ApplyEnvironment(cfg)

	assert.Equal(t, "env.example.org", cfg.Electrum.Host)
	assert.Equal(t, 42, cfg.Scan.AddressGap)
	assert.False(t, cfg.Electrum.Batching)
}
