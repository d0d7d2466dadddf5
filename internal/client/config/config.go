// Package config holds runtime settings for the Privora client CLI.
package config

// Config holds runtime settings for the client.
//
// Fields:
//   - ServerEndpointAddr: base URL of the backend HTTP API.
//   - DownloadDir: directory (relative to cwd) where fetched files land.
//   - MaxActiveTransfers: concurrency cap of the download engine.
//   - MaxRetries: automatic retry budget per transfer.
type Config struct {
	ServerEndpointAddr string
	DownloadDir        string
	MaxActiveTransfers int
	MaxRetries         int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DownloadDir = "downloads"
	c.MaxActiveTransfers = 3
	c.MaxRetries = 3
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
