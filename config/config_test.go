package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	cfg := LoadConfig()

	if cfg.ServerPort != 8000 {
		t.Fatalf("unexpected server port: %d", cfg.ServerPort)
	}
	if cfg.DevProxy.Prefix != "/basic-api" {
		t.Fatalf("unexpected proxy prefix: %q", cfg.DevProxy.Prefix)
	}
	if cfg.DevProxy.Target != "http://127.0.0.1:8000" {
		t.Fatalf("unexpected proxy target: %q", cfg.DevProxy.Target)
	}
	if cfg.Client.Timeout != 30*time.Second {
		t.Fatalf("unexpected client timeout: %s", cfg.Client.Timeout)
	}
	if cfg.RabbitMQ.Exchange != "ojadmin.events" {
		t.Fatalf("unexpected rabbitmq exchange: %q", cfg.RabbitMQ.Exchange)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("DEVPROXY_TARGET", "http://127.0.0.1:9999")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("OJADMIN_TIMEOUT", "5s")
	t.Setenv("MINIO_USE_SSL", "not-a-bool")

	cfg := LoadConfig()

	if cfg.ServerPort != 9090 {
		t.Fatalf("unexpected server port: %d", cfg.ServerPort)
	}
	if !cfg.Database.UseSSL {
		t.Fatalf("expected database ssl to be enabled")
	}
	if cfg.DevProxy.Target != "http://127.0.0.1:9999" {
		t.Fatalf("unexpected proxy target: %q", cfg.DevProxy.Target)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
	if cfg.Client.Timeout != 5*time.Second {
		t.Fatalf("unexpected client timeout: %s", cfg.Client.Timeout)
	}
	if cfg.Minio.UseSSL {
		t.Fatalf("invalid bool should fall back to default")
	}
}
