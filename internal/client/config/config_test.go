package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:50051", c.ServerEndpointAddr)
	assert.Equal(t, "offsync/outbox.db", c.OutboxDSN)
	assert.Empty(t, c.DeviceID)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("syncctl", pflag.ContinueOnError)
	f := BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return f.Load(fs)
}

func TestLoad_Precedence(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	path := writeConfig(t, `{"server_endpoint_addr":"json:1","outbox_dsn":"/tmp/o.db","device_id":"pos-1","request_timeout":"3s"}`)

	tests := []struct {
		name     string
		args     []string
		expected Config
	}{
		{name: "defaults", args: nil,
			expected: Config{ServerEndpointAddr: "127.0.0.1:50051", OutboxDSN: "offsync/outbox.db", RequestTimeout: 10 * time.Second}},
		{name: "json only", args: []string{"-c", path},
			expected: Config{ServerEndpointAddr: "json:1", OutboxDSN: "/tmp/o.db", DeviceID: "pos-1", RequestTimeout: 3 * time.Second}},
		{name: "flags override json", args: []string{"--config", path, "-a", "flag:2", "-t", "1m"},
			expected: Config{ServerEndpointAddr: "flag:2", OutboxDSN: "/tmp/o.db", DeviceID: "pos-1", RequestTimeout: time.Minute}},
		{name: "flags only", args: []string{"-d", "pos-9", "-o", "x.db"},
			expected: Config{ServerEndpointAddr: "127.0.0.1:50051", OutboxDSN: "x.db", DeviceID: "pos-9", RequestTimeout: 10 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(t, tt.args...)
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, *cfg))
		})
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv(EnvConfigFile, writeConfig(t, `{"device_id":"env-dev"}`))

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "env-dev", cfg.DeviceID)
	assert.Equal(t, "127.0.0.1:50051", cfg.ServerEndpointAddr)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvConfigFile, "")

	_, err := load(t, "-c", writeConfig(t, `{ this is not valid json`))
	assert.ErrorContains(t, err, "parse config")

	_, err = load(t, "-c", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read config")

	fs := pflag.NewFlagSet("syncctl", pflag.ContinueOnError)
	BindFlags(fs)
	assert.Error(t, fs.Parse([]string{"-t", "abc"}))
}
