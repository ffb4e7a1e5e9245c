package config

import "github.com/dmitrijs2005/gophnotes/internal/flagx"

func parseEnv(c *Config, env *flagx.Env) error {
	env.String("GOPHNOTES_SERVER_URL", &c.ServerURL)
	env.String("GOPHNOTES_HEALTH_ADDR", &c.HealthAddr)
	env.String("GOPHNOTES_DATA_DIR", &c.DataDir)
	env.Duration("GOPHNOTES_SYNC_INTERVAL", &c.SyncInterval)
	env.Duration("GOPHNOTES_ONLINE_CHECK_INTERVAL", &c.OnlineCheckInterval)
	env.Duration("GOPHNOTES_CONNECT_TIMEOUT", &c.ConnectTimeout)
	env.String("GOPHNOTES_LOG_LEVEL", &c.LogLevel)
	env.String("GOPHNOTES_LOG_FORMAT", &c.LogFormat)
	return env.Err()
}
