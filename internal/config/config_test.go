package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notifier.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dispatch.Backend != BackendMemory || cfg.Dispatch.Workers != 5 {
		t.Fatalf("dispatch = %+v", cfg.Dispatch)
	}
	if len(cfg.CORS.AllowedOrigins) != 4 {
		t.Fatalf("origins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Dispatch.DeliveryTimeout.Std() != 10*time.Second {
		t.Fatalf("delivery_timeout = %v", cfg.Dispatch.DeliveryTimeout.Std())
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
integration:
  default_webhook_url: https://hooks.example.com/from-file
  public_base_url: https://notifier.example.com/
dispatch:
  backend: Redis
  workers: 2
  queue_size: 16
  delivery_timeout: 3s
  rate_per_sec: 1.5
redis:
  addr: redis:6379
logging:
  level: debug
  format: json
`)
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.example.com/from-env")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Integration.DefaultWebhookURL != "https://hooks.example.com/from-env" {
		t.Fatalf("webhook = %q, env should win", cfg.Integration.DefaultWebhookURL)
	}
	if cfg.Integration.PublicBaseURL != "https://notifier.example.com" {
		t.Fatalf("public base = %q", cfg.Integration.PublicBaseURL)
	}
	if cfg.Dispatch.Backend != BackendRedis || cfg.Dispatch.Workers != 2 || cfg.Dispatch.QueueSize != 16 {
		t.Fatalf("dispatch = %+v", cfg.Dispatch)
	}
	if cfg.Dispatch.DeliveryTimeout.Std() != 3*time.Second || cfg.Dispatch.RatePerSec != 1.5 {
		t.Fatalf("dispatch timing = %+v", cfg.Dispatch)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.DB != 3 || cfg.Redis.Key != "notification_queue" {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Integration.AppName != "CI/CD Notifier" {
		t.Fatalf("app name = %q", cfg.Integration.AppName)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"backend":  "dispatch:\n  backend: kafka\n",
		"workers":  "dispatch:\n  workers: 0\n",
		"duration": "dispatch:\n  delivery_timeout: soon\n",
		"negative": "dispatch:\n  rate_per_sec: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("err = %v", err)
	}
}
