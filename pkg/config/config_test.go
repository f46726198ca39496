package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FillsDefaults(t *testing.T) {
	path := writeConfig(t, "environment: test\n")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"R_10", "R_25", "R_50", "R_75", "R_100"}, c.Sniper.Markets)
	assert.Equal(t, ModeMulti, c.Sniper.Mode)
	assert.Equal(t, SourceWebsocket, c.Deriv.Source)
	assert.Equal(t, "1089", c.Deriv.AppID)
	assert.Equal(t, 20*time.Second, c.Deriv.PingInterval)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "sniper.alerts", c.Kafka.AlertTopic)
	assert.Equal(t, "wss://ws.derivws.com/websockets/v3?app_id=1089", c.DerivEndpoint())
}

func TestLoad_ExplicitZeroValuesWin(t *testing.T) {
	path := writeConfig(t, `environment: test
server:
  host: 127.0.0.1
  cors: false
pipeline:
  max_ticks_per_second: 0
kafka:
  required_acks: 0
sniper:
  markets: [R_10]
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.False(t, c.Server.CORS)
	assert.Zero(t, c.Pipeline.MaxTicksPerSecond)
	assert.Zero(t, c.Kafka.RequiredAcks)
	assert.Equal(t, "127.0.0.1", c.Server.Host)
	assert.Equal(t, []string{"R_10"}, c.Sniper.Markets)
	assert.Equal(t, 5, c.Pipeline.Burst, "unset fields keep their defaults")
}

func TestLoad_ExampleFile(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "development", c.Environment)
	assert.Len(t, c.Sniper.Markets, 5)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad mode", "environment: x\nsniper:\n  mode: both\n"},
		{"single with unknown default", "environment: x\nsniper:\n  mode: single\n  default_market: R_1\n"},
		{"kafka source without kafka", "environment: x\nderiv:\n  source: kafka\n"},
		{"kafka without brokers", "environment: x\nkafka:\n  enabled: true\n"},
		{"telegram without token", "environment: x\ntelegram:\n  enabled: true\n"},
		{"bad yaml", "environment: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	t.Setenv("SNIPER_MARKETS", "R_50, R_75")
	t.Setenv("SNIPER_MODE", "single")
	t.Setenv("DERIV_APP_ID", "4242")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001")

	c, err := LoadWithEnv(path)
	require.Error(t, err, "default market R_10 is no longer listed")

	t.Setenv("SNIPER_MARKETS", "R_10,R_50")
	c, err = LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"R_10", "R_50"}, c.Sniper.Markets)
	assert.Equal(t, ModeSingle, c.Sniper.Mode)
	assert.Equal(t, "4242", c.Deriv.AppID)
	assert.Equal(t, int64(-1001), c.Telegram.ChatID)
}

func TestLoadWithEnv_BadChatID(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	t.Setenv("TELEGRAM_CHAT_ID", "abc")
	_, err := LoadWithEnv(path)
	assert.Error(t, err)
}
