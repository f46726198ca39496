package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ModeMulti  = "multi"
	ModeSingle = "single"

	SourceWebsocket = "websocket"
	SourceKafka     = "kafka"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Logging     struct {
		Level     string `yaml:"level" default:"info"`
		Format    string `yaml:"format" default:"console"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic" default:"logs"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORS            bool          `yaml:"cors" default:"true"`
		Control         struct {
			RatePerSecond float64       `yaml:"rate_per_second" default:"1"`
			Burst         int           `yaml:"burst" default:"3"`
			IdleTTL       time.Duration `yaml:"idle_ttl" default:"10m"`
		} `yaml:"control"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Deriv struct {
		Source           string        `yaml:"source" default:"websocket"`
		URL              string        `yaml:"url" default:"wss://ws.derivws.com/websockets/v3"`
		AppID            string        `yaml:"app_id" default:"1089"`
		PingInterval     time.Duration `yaml:"ping_interval" default:"20s"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout" default:"10s"`
		ReconnectMin     time.Duration `yaml:"reconnect_min" default:"500ms"`
		ReconnectMax     time.Duration `yaml:"reconnect_max" default:"30s"`
		BufferSize       int           `yaml:"buffer_size" default:"64"`
	} `yaml:"deriv"`
	Sniper struct {
		Markets       []string `yaml:"markets" default:"[\"R_10\",\"R_25\",\"R_50\",\"R_75\",\"R_100\"]"`
		Mode          string   `yaml:"mode" default:"multi"`
		DefaultMarket string   `yaml:"default_market" default:"R_10"`
	} `yaml:"sniper"`
	Pipeline struct {
		MaxTicksPerSecond float64 `yaml:"max_ticks_per_second" default:"20"`
		Burst             int     `yaml:"burst" default:"5"`
	} `yaml:"pipeline"`
	Alerts struct {
		Timeout          time.Duration `yaml:"timeout" default:"10s"`
		RatePerSecond    float64       `yaml:"rate_per_second" default:"1"`
		Burst            int           `yaml:"burst" default:"3"`
		BreakerFailures  uint32        `yaml:"breaker_failures" default:"5"`
		BreakerOpenFor   time.Duration `yaml:"breaker_open_for" default:"30s"`
		BreakerHalfOpenN uint32        `yaml:"breaker_half_open_requests" default:"1"`
	} `yaml:"alerts"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		TickTopic    string   `yaml:"tick_topic" default:"deriv.ticks"`
		AlertTopic   string   `yaml:"alert_topic" default:"sniper.alerts"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"sniperbot"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"1048576"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled      bool          `yaml:"enabled"`
		Addr         string        `yaml:"addr" default:"localhost:6379"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		Channel      string        `yaml:"channel" default:"sniper:alerts"`
		LastAlertTTL time.Duration `yaml:"last_alert_ttl" default:"1h"`
	} `yaml:"redis"`
	Telegram struct {
		Enabled bool   `yaml:"enabled"`
		Token   string `yaml:"token"`
		ChatID  int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
}

// Load reads a YAML file, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv is Load plus a .env file (if present) and environment overrides.
// Overrides are applied before validation.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Defaults first, so explicit zero values in the file (false, 0) win.
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DERIV_APP_ID"); v != "" {
		c.Deriv.AppID = v
	}
	if v := os.Getenv("DERIV_URL"); v != "" {
		c.Deriv.URL = v
	}
	if v := os.Getenv("SNIPER_MARKETS"); v != "" {
		c.Sniper.Markets = splitList(v)
	}
	if v := os.Getenv("SNIPER_MODE"); v != "" {
		c.Sniper.Mode = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Sniper.Markets) == 0 {
		return fmt.Errorf("sniper.markets cannot be empty")
	}
	switch c.Sniper.Mode {
	case ModeMulti:
	case ModeSingle:
		if !contains(c.Sniper.Markets, c.Sniper.DefaultMarket) {
			return fmt.Errorf("sniper.default_market %q is not in sniper.markets", c.Sniper.DefaultMarket)
		}
	default:
		return fmt.Errorf("sniper.mode must be '%s' or '%s', got '%s'", ModeMulti, ModeSingle, c.Sniper.Mode)
	}
	switch c.Deriv.Source {
	case SourceWebsocket:
		if c.Deriv.URL == "" || c.Deriv.AppID == "" {
			return fmt.Errorf("deriv.url and deriv.app_id are required for the websocket source")
		}
	case SourceKafka:
		if !c.Kafka.Enabled {
			return fmt.Errorf("deriv.source 'kafka' requires kafka.enabled")
		}
	default:
		return fmt.Errorf("deriv.source must be '%s' or '%s', got '%s'", SourceWebsocket, SourceKafka, c.Deriv.Source)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Logging.Collector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("logging.collector requires kafka.enabled")
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	if c.Pipeline.MaxTicksPerSecond < 0 {
		return fmt.Errorf("pipeline.max_ticks_per_second must be >= 0")
	}
	return nil
}

// DerivEndpoint returns the websocket URL including the app_id query parameter.
func (c *Config) DerivEndpoint() string {
	sep := "?"
	if strings.Contains(c.Deriv.URL, "?") {
		sep = "&"
	}
	return c.Deriv.URL + sep + "app_id=" + c.Deriv.AppID
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
