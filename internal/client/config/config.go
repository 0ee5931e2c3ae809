// Package config handles configuration for the admin client component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the sitekeeper admin client.
//
// Fields:
//   - ServerURL: base URL of the sitekeeper server.
//   - SnapshotPath: sqlite file with the last hydrated dataset, used to seed
//     the cache when the server is unreachable at startup.
//   - PushQueueSize: buffered optimistic-write queue length.
//   - ReconcileInterval: how often clean cache state is re-fetched.
type Config struct {
	ServerURL         string
	SnapshotPath      string
	PushQueueSize     int
	ReconcileInterval time.Duration
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.SnapshotPath = "sitekeeper.db"
	c.PushQueueSize = 64
	c.ReconcileInterval = 5 * time.Minute
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
