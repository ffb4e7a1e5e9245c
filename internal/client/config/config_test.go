package config

import (
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

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, "127.0.0.1:50051", c.HealthAddr)
	assert.Equal(t, "data", c.DataDir)
	assert.Equal(t, 30*time.Second, c.SyncInterval)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 5*time.Second, c.ConnectTimeout)
}

func TestParseEnv(t *testing.T) {
	c := defaults()
	env := flagx.NewEnvFromMap(map[string]string{
		"GOPHNOTES_SERVER_URL":    "https://notes.example",
		"GOPHNOTES_SYNC_INTERVAL": "1m",
		"GOPHNOTES_LOG_LEVEL":     " ",
	})
	require.NoError(t, parseEnv(c, env))

	want := defaults()
	want.ServerURL = "https://notes.example"
	want.SyncInterval = time.Minute
	assert.Empty(t, cmp.Diff(want, c))

	bad := flagx.NewEnvFromMap(map[string]string{"GOPHNOTES_CONNECT_TIMEOUT": "soon"})
	assert.Error(t, parseEnv(defaults(), bad))
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expectPanic bool
		mutate      func(c *Config)
	}{
		{
			name: "overrides",
			args: []string{"-s", "http://h:1", "-i", "10s", "-c", "ignored.json", "-x"},
			mutate: func(c *Config) {
				c.ServerURL = "http://h:1"
				c.SyncInterval = 10 * time.Second
			},
		},
		{name: "bad interval", args: []string{"-i", "abc"}, expectPanic: true},
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

func TestParseJson(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"health_addr":"h:9","online_check_interval":"10s","connect_timeout":7000000000}`), 0o600))

	setArgs(t, "-config", path)
	c := defaults()
	parseJson(c)

	want := defaults()
	want.HealthAddr = "h:9"
	want.OnlineCheckInterval = 10 * time.Second
	want.ConnectTimeout = 7 * time.Second
	assert.Empty(t, cmp.Diff(want, c))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{ nope`), 0o600))
	setArgs(t, "-c", bad)
	assert.Panics(t, func() { parseJson(defaults()) })
}

func TestDatabasePath(t *testing.T) {
	t.Chdir(t.TempDir())
	c := defaults()
	c.DataDir = "cache"

	path, err := c.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, databaseFile, filepath.Base(path))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
