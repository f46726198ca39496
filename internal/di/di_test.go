package di

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SniperBot/internal/repository"
	"SniperBot/pkg/config"
)

func loadConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestInitializeApp_WebsocketSource(t *testing.T) {
	cfg := loadConfig(t, "environment: test\nlogging:\n  level: error\n")

	app, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	require.NotNil(t, app)
	cleanup()
}

func TestInitializeApp_KafkaSource(t *testing.T) {
	cfg := loadConfig(t, `environment: test
logging:
  level: error
deriv:
  source: kafka
kafka:
  enabled: true
  brokers: [localhost:9092]
`)

	app, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	require.NotNil(t, app)
	cleanup()
}

func TestProvideAlertSinks_OnlyConfigured(t *testing.T) {
	cfg := loadConfig(t, "environment: test\n")
	c, closeCache := ProvideCache(nil)
	defer closeCache()
	store := ProvideAlertStore(cfg, c)

	sinks := ProvideAlertSinks(cfg, store, nil, nil, nil)
	require.Len(t, sinks, 1)
	assert.Equal(t, "last_alert", sinks[0].Name())
	_, ok := sinks[0].(*repository.AlertStore)
	assert.True(t, ok)
}

func TestProvideTickSource_PrefersKafka(t *testing.T) {
	cfg := loadConfig(t, "environment: test\nderiv:\n  source: kafka\nkafka:\n  enabled: true\n  brokers: [localhost:9092]\n")
	ks, closeSource := ProvideKafkaTickSource(cfg, ProvideMetrics(ProvidePrometheusRegistry()))
	defer closeSource()

	src := ProvideTickSource(nil, ks)
	assert.Same(t, ks, src)
}
