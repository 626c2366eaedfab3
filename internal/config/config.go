package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"cicd-notifier/internal/logx"
)

// Config contains runtime configuration values.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Integration IntegrationConfig `yaml:"integration"`
	CORS        CORSConfig        `yaml:"cors"`
	Dispatch    DispatchConfig    `yaml:"dispatch"`
	Redis       RedisConfig       `yaml:"redis"`
	Logging     logx.Config       `yaml:"logging"`
}

type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
}

// IntegrationConfig feeds /integration.json. DefaultWebhookURL is the
// operator's own webhook advertised as the setting default.
type IntegrationConfig struct {
	DefaultWebhookURL string   `yaml:"default_webhook_url"`
	PublicBaseURL     string   `yaml:"public_base_url"`
	AppName           string   `yaml:"app_name"`
	AppDescription    string   `yaml:"app_description"`
	AppLogo           string   `yaml:"app_logo"`
	BackgroundColor   string   `yaml:"background_color"`
	Author            string   `yaml:"author"`
	Category          string   `yaml:"category"`
	KeyFeatures       []string `yaml:"key_features"`
	CreatedAt         string   `yaml:"created_at"`
	UpdatedAt         string   `yaml:"updated_at"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DispatchConfig controls the background delivery pipeline.
type DispatchConfig struct {
	Backend         string   `yaml:"backend"` // memory | redis
	Workers         int      `yaml:"workers"`
	QueueSize       int      `yaml:"queue_size"`
	DeliveryTimeout Duration `yaml:"delivery_timeout"` // 0 disables
	RatePerSec      float64  `yaml:"rate_per_sec"`     // 0 disables
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Duration is a time.Duration read from a Go duration string ("10s").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8000",
			ReadHeaderTimeout: Duration(10 * time.Second),
			ShutdownTimeout:   Duration(10 * time.Second),
		},
		Integration: IntegrationConfig{
			AppName:         "CI/CD Notifier",
			AppDescription:  "A notifier for the operation",
			AppLogo:         "https://i.imgur.com/1Zqvffp.png",
			BackgroundColor: "#fff",
			Author:          "Fabian Muoghalu",
			Category:        "DevOps & CI/CD",
			KeyFeatures: []string{
				"- provides notification from ci/cd operation",
				"- sends the notification to your slack channel",
			},
			CreatedAt: "2025-02-16",
			UpdatedAt: "2025-02-16",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://staging.telextest.im",
				"http://telextest.im",
				"https://staging.telex.im",
				"https://telex.im",
			},
		},
		Dispatch: DispatchConfig{
			Backend:         BackendMemory,
			Workers:         5,
			QueueSize:       1024,
			DeliveryTimeout: Duration(10 * time.Second),
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			Key:  "notification_queue",
		},
		Logging: logx.Config{Level: "info", Format: "console"},
	}
}

// Load builds a Config from defaults, the optional YAML file at path and
// environment variables, in that order of precedence (env wins).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Server.Addr = getenvDefault("NOTIFIER_ADDR", cfg.Server.Addr)
	cfg.Integration.DefaultWebhookURL = getenvDefault("SLACK_WEBHOOK_URL", cfg.Integration.DefaultWebhookURL)
	cfg.Integration.PublicBaseURL = getenvDefault("NOTIFIER_PUBLIC_BASE_URL", cfg.Integration.PublicBaseURL)
	cfg.Dispatch.Backend = getenvDefault("NOTIFIER_QUEUE_BACKEND", cfg.Dispatch.Backend)
	cfg.Redis.Addr = getenvDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getenvDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = parseIntDefault("REDIS_DB", cfg.Redis.DB)
	cfg.Logging.Level = getenvDefault("NOTIFIER_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getenvDefault("NOTIFIER_LOG_FORMAT", cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes the config and rejects values the service cannot run with.
func (c *Config) Validate() error {
	c.Dispatch.Backend = strings.ToLower(strings.TrimSpace(c.Dispatch.Backend))
	switch c.Dispatch.Backend {
	case "":
		c.Dispatch.Backend = BackendMemory
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("dispatch.backend %q is not one of memory, redis", c.Dispatch.Backend)
	}

	if c.Dispatch.Workers <= 0 {
		return errors.New("dispatch.workers must be positive")
	}
	if c.Dispatch.QueueSize <= 0 {
		return errors.New("dispatch.queue_size must be positive")
	}
	if c.Dispatch.DeliveryTimeout < 0 {
		return errors.New("dispatch.delivery_timeout must not be negative")
	}
	if c.Dispatch.RatePerSec < 0 {
		return errors.New("dispatch.rate_per_sec must not be negative")
	}
	if c.Dispatch.Backend == BackendRedis && c.Redis.Addr == "" {
		return errors.New("redis.addr is required for the redis backend")
	}
	if c.Redis.Key == "" {
		c.Redis.Key = "notification_queue"
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	c.Integration.PublicBaseURL = strings.TrimRight(c.Integration.PublicBaseURL, "/")
	return nil
}

func getenvDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseIntDefault(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}
