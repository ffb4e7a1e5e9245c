package config

import "github.com/dmitrijs2005/gophnotes/internal/flagx"

func parseEnv(c *Config, env *flagx.Env) error {
	env.String("GOPHNOTES_HTTP_ADDR", &c.EndpointAddrHTTP)
	env.String("GOPHNOTES_GRPC_ADDR", &c.EndpointAddrGRPC)
	env.String("GOPHNOTES_DATABASE_DSN", &c.DatabaseDSN)
	env.Int("GOPHNOTES_DB_MAX_CONNS", &c.DBMaxConns)
	env.Int("GOPHNOTES_DB_MIN_CONNS", &c.DBMinConns)
	env.String("GOPHNOTES_SECRET_KEY", &c.SecretKey)
	env.String("GOPHNOTES_PASSWORD_PEPPER", &c.PasswordPepper)
	env.Duration("GOPHNOTES_DEVICE_TOKEN_TTL", &c.DeviceTokenValidityDuration)
	env.Duration("GOPHNOTES_PENDING_TOKEN_TTL", &c.PendingTokenValidityDuration)
	env.Duration("GOPHNOTES_CODE_LIFETIME", &c.CodeLifetime)
	env.Duration("GOPHNOTES_PENDING_LIFETIME", &c.PendingLifetime)
	env.Duration("GOPHNOTES_WAIT_LIFETIME", &c.WaitLifetime)
	env.Duration("GOPHNOTES_PING_INTERVAL", &c.PingInterval)
	env.Duration("GOPHNOTES_PONG_WAIT", &c.PongWait)
	env.String("GOPHNOTES_LOG_LEVEL", &c.LogLevel)
	env.String("GOPHNOTES_LOG_FORMAT", &c.LogFormat)
	return env.Err()
}
