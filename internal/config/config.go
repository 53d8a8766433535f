// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address for the read-only surface,
	// e.g. ":9080". Empty disables the HTTP server.
	Addr string `koanf:"addr"`

	// DBPath locates the sqlite database holding the match log, team
	// store, and checkpoint.
	DBPath string `koanf:"db_path"`

	// FeedPath locates the normalized result feed document to ingest.
	// Empty disables ingestion (read-only process).
	FeedPath string `koanf:"feed_path"`

	// PollIntervalSec re-runs ingestion this often. Zero ingests once.
	PollIntervalSec int `koanf:"poll_interval_sec"`

	// InitialRating is assigned to newly registered teams.
	InitialRating float64 `koanf:"initial_rating"`

	// MaxStandingsLimit caps GET /standings?limit.
	MaxStandingsLimit int `koanf:"max_standings_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		DBPath:            "sideout.sqlite",
		FeedPath:          "",
		PollIntervalSec:   0,
		InitialRating:     500,
		MaxStandingsLimit: 100,
	}
}
