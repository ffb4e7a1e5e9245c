// Package config loads runtime configuration for the gophnotes client.
//
// Sources, later ones winning: built-in defaults, .env and GOPHNOTES_*
// environment variables, the JSON file named by -c/-config, and finally
// command-line flags.
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "health_addr": "127.0.0.1:50051",
//	  "data_dir": "data",
//	  "sync_interval": "30s",
//	  "online_check_interval": "3s",
//	  "connect_timeout": "5s",
//	  "log_level": "info"
//	}
package config

import (
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/filex"
	"github.com/dmitrijs2005/gophnotes/internal/flagx"
)

const databaseFile = "gophnotes.db"

// Config holds runtime settings for the gophnotes CLI.
//
// Fields:
//   - ServerURL: base URL of the ledger HTTP API, used for new accounts.
//   - HealthAddr: host:port of the server's gRPC health endpoint.
//   - DataDir: directory holding the local cache; relative paths start at the working directory.
//   - SyncInterval: period of the background sync timer.
//   - OnlineCheckInterval: how often the client checks server reachability.
//   - ConnectTimeout: limit on establishing a connection to the server.
type Config struct {
	ServerURL           string
	HealthAddr          string
	DataDir             string
	SyncInterval        time.Duration
	OnlineCheckInterval time.Duration
	ConnectTimeout      time.Duration
	LogLevel            string
	LogFormat           string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.HealthAddr = "127.0.0.1:50051"
	c.DataDir = "data"
	c.SyncInterval = 30 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.ConnectTimeout = 5 * time.Second
	c.LogLevel = "warn"
	c.LogFormat = "text"
}

// DatabasePath creates DataDir when missing and returns the cache file path
// inside it.
func (c *Config) DatabasePath() (string, error) {
	dir, err := filex.EnsureDir(c.DataDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, databaseFile), nil
}

// LoadConfig constructs a Config, applies defaults, then overlays the
// environment, JSON (if present) and command-line flags. Invalid input
// panics.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := flagx.LoadEnvFile(".env"); err != nil {
		panic(err)
	}
	if err := parseEnv(cfg, flagx.NewEnv()); err != nil {
		panic(err)
	}
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
