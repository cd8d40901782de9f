package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_UsesDefaults_WhenNoFile(t *testing.T) {
	// Reset viper to avoid cross-test pollution
	viper.Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	// Spot-check a few defaults
	if cfg.Web.Enabled != true {
		t.Errorf("expected Web.Enabled default true, got %v", cfg.Web.Enabled)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected Web.Port default 8080, got %d", cfg.Web.Port)
	}
	if len(cfg.Codec.Enabled) != 0 {
		t.Errorf("expected no explicit protocol list by default, got %v", cfg.Codec.Enabled)
	}
	if cfg.Codec.HistoryLimit != 100 {
		t.Errorf("expected Codec.HistoryLimit default 100, got %d", cfg.Codec.HistoryLimit)
	}
	if cfg.Codec.RepeatWindow != time.Second {
		t.Errorf("expected Codec.RepeatWindow default 1s, got %v", cfg.Codec.RepeatWindow)
	}
	if cfg.Database.RetentionDays != 30 {
		t.Errorf("expected Database.RetentionDays default 30, got %d", cfg.Database.RetentionDays)
	}
	if cfg.Logging.Level == "" {
		t.Errorf("expected Logging.Level to be set (default info)")
	}
	if cfg.Metrics.Prometheus.Port != 9090 {
		t.Errorf("expected Prometheus.Port default 9090, got %d", cfg.Metrics.Prometheus.Port)
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
codec:
  enabled: [dooya_dc90, voltomat]
  strict_bits: true
  repeat_window: 250ms
web:
  port: 8181
database:
  path: /tmp/rf-test.db
  retention_days: 0
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Codec.Enabled) != 2 || cfg.Codec.Enabled[1] != "voltomat" {
		t.Errorf("expected two enabled protocols, got %v", cfg.Codec.Enabled)
	}
	if !cfg.Codec.StrictBits {
		t.Error("expected strict_bits from file")
	}
	if cfg.Codec.RepeatWindow != 250*time.Millisecond {
		t.Errorf("expected repeat_window 250ms, got %v", cfg.Codec.RepeatWindow)
	}
	if cfg.Web.Port != 8181 {
		t.Errorf("expected web.port 8181, got %d", cfg.Web.Port)
	}
	if cfg.Database.RetentionDays != 0 {
		t.Errorf("expected retention 0, got %d", cfg.Database.RetentionDays)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("RF_WEB_PORT", "8282")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Web.Port != 8282 {
		t.Errorf("expected RF_WEB_PORT to override web.port, got %d", cfg.Web.Port)
	}
}

func TestLoad_RejectsUnknownProtocol(t *testing.T) {
	viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("codec:\n  enabled: [quigg]\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}

func validConfig() *Config {
	return &Config{
		Web:      WebConfig{Enabled: true, Port: 8080},
		Codec:    CodecConfig{HistoryLimit: 100},
		Database: DatabaseConfig{Enabled: true, Path: "rf.db", RetentionDays: 7},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Metrics:  MetricsConfig{Enabled: true, Prometheus: PrometheusConfig{Enabled: true, Port: 9090}},
	}
}

func TestValidate_Errors(t *testing.T) {
	if err := validate(validConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid web port when enabled", func(c *Config) { c.Web.Port = 70000 }},
		{"unknown protocol", func(c *Config) { c.Codec.Enabled = []string{"nope"} }},
		{"duplicate protocol", func(c *Config) { c.Codec.Enabled = []string{"voltomat", "voltomat"} }},
		{"negative history limit", func(c *Config) { c.Codec.HistoryLimit = -1 }},
		{"negative repeat window", func(c *Config) { c.Codec.RepeatWindow = -time.Second }},
		{"missing database path", func(c *Config) { c.Database.Path = "" }},
		{"negative retention", func(c *Config) { c.Database.RetentionDays = -1 }},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true }},
		{"mqtt qos out of range", func(c *Config) { c.MQTT = MQTTConfig{Enabled: true, Broker: "tcp://x:1883", QoS: 3} }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"metrics port clashes with web", func(c *Config) { c.Metrics.Prometheus.Port = 8080 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidate_DisabledSectionsSkipChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Web = WebConfig{Enabled: false, Port: 0}
	cfg.Database = DatabaseConfig{Enabled: false}
	cfg.Metrics.Prometheus.Port = 0
	cfg.Metrics.Enabled = false
	if err := validate(cfg); err != nil {
		t.Fatalf("expected disabled sections to be skipped, got %v", err)
	}
}
