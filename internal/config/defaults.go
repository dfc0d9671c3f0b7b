package config

import "math/rand/v2"

// Default scan parameters.
const (
	// DefaultAddressGap is the standard HD wallet gap limit.
	DefaultAddressGap = 20

	// DefaultAccountGap keeps the account search shallow; raise it to
	// force a deeper search.
	DefaultAccountGap = 0

	// DefaultWindow is the number of indices probed per batched round trip.
	DefaultWindow = 20

	// DefaultConcurrency bounds concurrent descriptor scans against one server.
	DefaultConcurrency = 4

	// DefaultMaxRetries bounds transparent retries of transient network errors.
	DefaultMaxRetries = 3

	// DefaultRequestsPerSecond paces request submission to public servers.
	DefaultRequestsPerSecond = 50
)

// DefaultServers are public Electrum servers tried when no host is
// configured, mirroring the bundled server list of classic Electrum.
//
//nolint:gochecknoglobals // Configuration default, same pattern as Defaults
var DefaultServers = []Server{
	{Host: "electrum.blockstream.info", Port: 50002, Transport: "ssl"},
	{Host: "electrum.emzy.de", Port: 50002, Transport: "ssl"},
	{Host: "electrum.bitaroo.net", Port: 50002, Transport: "ssl"},
	{Host: "fulcrum.sethforprivacy.com", Port: 50002, Transport: "ssl"},
	{Host: "blockstream.info", Port: 700, Transport: "ssl"},
}

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Electrum: ElectrumConfig{
			Transport:         "ssl",
			Batching:          true,
			MaxRetries:        DefaultMaxRetries,
			RequestsPerSecond: DefaultRequestsPerSecond,
			Servers:           DefaultServers,
		},
		Scan: ScanConfig{
			AddressGap:  DefaultAddressGap,
			AccountGap:  DefaultAccountGap,
			Window:      DefaultWindow,
			Concurrency: DefaultConcurrency,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// PickServer resolves the server to use: the explicitly configured host
// wins, otherwise a random entry of the server list, like the classic
// Electrum client does to spread load.
func (c *ElectrumConfig) PickServer() Server {
	if c.Host != "" {
		port := c.Port
		if port == 0 {
			port = defaultPort(c.Transport)
		}
		return Server{Host: c.Host, Port: port, Transport: c.Transport}
	}

	s := c.Servers[rand.IntN(len(c.Servers))]
	if s.Transport == "" {
		s.Transport = c.Transport
	}
	if s.Port == 0 {
		s.Port = defaultPort(s.Transport)
	}
	return s
}

func defaultPort(transport string) int {
	if transport == "tcp" {
		return 50001
	}
	return 50002
}
