package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HydroNutri/Hardware/internal/link"
)

// Config is the complete controller configuration. Values are loaded from a
// YAML file, then overridden by environment variables, then defaulted and
// validated.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Bus       LinkConfig      `yaml:"bus"`
	Uplink    LinkConfig      `yaml:"uplink"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Reporter  ReporterConfig  `yaml:"reporter"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	FirmwareVersion string `yaml:"firmware_version"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig selects the settings/log persistence backend.
// Backend is one of "file", "sqlite" or "redis".
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LinkConfig selects the transport for one side of the controller.
// Transport is "memory" (in-process loopback, used with the simulator)
// or "mqtt".
type LinkConfig struct {
	Transport string          `yaml:"transport"`
	Buffer    int             `yaml:"buffer"`
	MQTT      link.MQTTConfig `yaml:"mqtt"`
}

type MonitorConfig struct {
	Period         time.Duration `yaml:"period"`
	StaleThreshold time.Duration `yaml:"stale_threshold"`
}

type ReporterConfig struct {
	Period time.Duration `yaml:"period"`
}

type SchedulerConfig struct {
	Period time.Duration `yaml:"period"`
}

// WebhookConfig enables alarm transition notifications when URL is set.
type WebhookConfig struct {
	URL string `yaml:"url"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the configuration file at path. An empty path skips the file and
// builds the configuration from environment variables and defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Store.Backend = getEnv("STORE_BACKEND", c.Store.Backend)
	c.Store.Path = getEnv("STORE_PATH", c.Store.Path)
	c.Store.Redis.Addr = getEnv("REDIS_ADDR", c.Store.Redis.Addr)
	c.Store.Redis.Password = getEnv("REDIS_PASSWORD", c.Store.Redis.Password)
	if v, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		c.Store.Redis.DB = v
	}

	c.Bus.Transport = getEnv("BUS_TRANSPORT", c.Bus.Transport)
	c.Bus.MQTT.Broker = getEnv("BUS_MQTT_BROKER", c.Bus.MQTT.Broker)
	c.Uplink.Transport = getEnv("UPLINK_TRANSPORT", c.Uplink.Transport)
	c.Uplink.MQTT.Broker = getEnv("UPLINK_MQTT_BROKER", c.Uplink.MQTT.Broker)

	c.Webhook.URL = getEnv("WEBHOOK_URL", c.Webhook.URL)
	c.Metrics.Addr = getEnv("METRICS_ADDR", c.Metrics.Addr)
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "file"
	}
	if c.Store.Path == "" {
		switch c.Store.Backend {
		case "sqlite":
			c.Store.Path = "data/controller.db"
		default:
			c.Store.Path = "data/controller.json"
		}
	}
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}

	if c.Bus.Transport == "" {
		c.Bus.Transport = "memory"
	}
	if c.Bus.Buffer <= 0 {
		c.Bus.Buffer = 64
	}
	if c.Uplink.Transport == "" {
		c.Uplink.Transport = "memory"
	}
	if c.Uplink.Buffer <= 0 {
		c.Uplink.Buffer = 64
	}

	if c.Monitor.Period <= 0 {
		c.Monitor.Period = 100 * time.Millisecond
	}
	if c.Monitor.StaleThreshold <= 0 {
		c.Monitor.StaleThreshold = 500 * time.Millisecond
	}
	if c.Reporter.Period <= 0 {
		c.Reporter.Period = 200 * time.Millisecond
	}
	if c.Scheduler.Period <= 0 {
		c.Scheduler.Period = time.Second
	}

	if c.FirmwareVersion == "" {
		c.FirmwareVersion = "0.1.0"
	}
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "file", "sqlite", "redis":
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	if err := validateTransport("bus", &c.Bus); err != nil {
		return err
	}
	if err := validateTransport("uplink", &c.Uplink); err != nil {
		return err
	}
	if c.Monitor.StaleThreshold < c.Monitor.Period {
		return fmt.Errorf("monitor.stale_threshold must be at least monitor.period")
	}
	return nil
}

func validateTransport(name string, lc *LinkConfig) error {
	switch lc.Transport {
	case "memory":
	case "mqtt":
		if lc.MQTT.Broker == "" {
			return fmt.Errorf("%s.mqtt.broker is required for the mqtt transport", name)
		}
	default:
		return fmt.Errorf("%s.transport: unknown transport %q", name, lc.Transport)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
