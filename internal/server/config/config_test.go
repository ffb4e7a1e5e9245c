package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/flagx"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func setArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"testbin"}, args...)
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, 5*time.Minute, c.CodeLifetime)
	assert.Equal(t, 5*time.Minute, c.PendingLifetime)
	assert.Equal(t, 5*time.Minute, c.WaitLifetime)
	assert.Equal(t, 5*time.Minute, c.PendingTokenValidityDuration)
	assert.Equal(t, 60*time.Second, c.PingInterval)
	assert.Equal(t, 120*time.Second, c.PongWait)
	assert.Equal(t, "json", c.LogFormat)
}

func TestParseEnv(t *testing.T) {
	c := defaults()
	env := flagx.NewEnvFromMap(map[string]string{
		"GOPHNOTES_HTTP_ADDR":       ":9000",
		"GOPHNOTES_DB_MAX_CONNS":    "25",
		"GOPHNOTES_PONG_WAIT":       "30s",
		"GOPHNOTES_PASSWORD_PEPPER": "pp",
	})

	require.NoError(t, parseEnv(c, env))

	want := defaults()
	want.EndpointAddrHTTP = ":9000"
	want.DBMaxConns = 25
	want.PongWait = 30 * time.Second
	want.PasswordPepper = "pp"
	assert.Empty(t, cmp.Diff(want, c))
}

func TestParseEnv_Invalid(t *testing.T) {
	c := defaults()
	err := parseEnv(c, flagx.NewEnvFromMap(map[string]string{"GOPHNOTES_WAIT_LIFETIME": "forever"}))
	assert.Error(t, err)
	assert.Equal(t, 5*time.Minute, c.WaitLifetime)
}

func TestParseJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(map[string]any{
		"endpoint_addr_http": "www.example:9000",
		"database_dsn":       "postgres://x",
		"secret_key":         "my_secret_key",
		"wait_lifetime":      "2m",
		"ping_interval":      int64(time.Second),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))

	t.Run("overlays present fields only", func(t *testing.T) {
		setArgs(t, "-config", path)
		c := defaults()
		parseJson(c)

		want := defaults()
		want.EndpointAddrHTTP = "www.example:9000"
		want.DatabaseDSN = "postgres://x"
		want.SecretKey = "my_secret_key"
		want.WaitLifetime = 2 * time.Minute
		want.PingInterval = time.Second
		assert.Empty(t, cmp.Diff(want, c))
	})

	t.Run("no config flag leaves config untouched", func(t *testing.T) {
		setArgs(t)
		c := defaults()
		parseJson(c)
		assert.Empty(t, cmp.Diff(defaults(), c))
	})

	t.Run("missing file panics", func(t *testing.T) {
		setArgs(t, "-c", filepath.Join(t.TempDir(), "absent.json"))
		assert.Panics(t, func() { parseJson(defaults()) })
	})

	t.Run("malformed file panics", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		setArgs(t, "-c", bad)
		assert.Panics(t, func() { parseJson(defaults()) })
	})
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		mutate      func(c *Config)
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"-a", "127.0.0.1:9090", "-g", ":6000", "-d", "db", "-s", "secret", "-p", "pepper2", "-t", "1h", "-l", "debug"},
			mutate: func(c *Config) {
				c.EndpointAddrHTTP = "127.0.0.1:9090"
				c.EndpointAddrGRPC = ":6000"
				c.DatabaseDSN = "db"
				c.SecretKey = "secret"
				c.PasswordPepper = "pepper2"
				c.DeviceTokenValidityDuration = time.Hour
				c.LogLevel = "debug"
			},
		},
		{
			name:   "foreign flags are ignored",
			args:   []string{"-c", "cfg.json", "-x", "y", "-a", ":1"},
			mutate: func(c *Config) { c.EndpointAddrHTTP = ":1" },
		},
		{name: "bad duration", args: []string{"-t", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setArgs(t, tt.args...)
			c := defaults()

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(c) })
				return
			}
			require.NotPanics(t, func() { parseFlags(c) })

			want := defaults()
			tt.mutate(want)
			assert.Empty(t, cmp.Diff(want, c))
		})
	}
}
