package config

import "time"

// Store modes.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Config holds runtime settings for the GophLedger CLI.
//
// Fields:
//   - Mode: "local" keeps records in SQLite, "remote" uses the store server.
//   - ServerEndpointAddr: host:port of the store server gRPC endpoint.
//   - DatabaseDSN: SQLite file for local records and metadata.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - DecodeConcurrency: upper bound of parallel record decodes per snapshot.
//   - LogLevel: debug, info, warn or error.
//
// Units: OnlineCheckInterval is a time.Duration (e.g., 3*time.Second).
type Config struct {
	Mode                string
	ServerEndpointAddr  string
	DatabaseDSN         string
	OnlineCheckInterval time.Duration
	DecodeConcurrency   int
	LogLevel            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.Mode = ModeLocal
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabaseDSN = "gophledger.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.DecodeConcurrency = 8
	c.LogLevel = "warn"
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
