package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/flagx"
	"github.com/dmitrijs2005/gophnotes/internal/timex"
)

// JsonConfig is the file form of Config. Durations accept "5m" or integer
// nanoseconds. Absent or zero fields keep the value already in Config.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	DBMaxConns                   int            `json:"db_max_conns"`
	DBMinConns                   int            `json:"db_min_conns"`
	SecretKey                    string         `json:"secret_key"`
	PasswordPepper               string         `json:"password_pepper"`
	DeviceTokenValidityDuration  timex.Duration `json:"device_token_validity_duration"`
	PendingTokenValidityDuration timex.Duration `json:"pending_token_validity_duration"`
	CodeLifetime                 timex.Duration `json:"code_lifetime"`
	PendingLifetime              timex.Duration `json:"pending_lifetime"`
	WaitLifetime                 timex.Duration `json:"wait_lifetime"`
	PingInterval                 timex.Duration `json:"ping_interval"`
	PongWait                     timex.Duration `json:"pong_wait"`
	LogLevel                     string         `json:"log_level"`
	LogFormat                    string         `json:"log_format"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

// parseJson overlays the file named by -c/-config, if any. An unreadable
// or malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setInt(&config.DBMaxConns, c.DBMaxConns)
	setInt(&config.DBMinConns, c.DBMinConns)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.PasswordPepper, c.PasswordPepper)
	setDuration(&config.DeviceTokenValidityDuration, c.DeviceTokenValidityDuration)
	setDuration(&config.PendingTokenValidityDuration, c.PendingTokenValidityDuration)
	setDuration(&config.CodeLifetime, c.CodeLifetime)
	setDuration(&config.PendingLifetime, c.PendingLifetime)
	setDuration(&config.WaitLifetime, c.WaitLifetime)
	setDuration(&config.PingInterval, c.PingInterval)
	setDuration(&config.PongWait, c.PongWait)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}
