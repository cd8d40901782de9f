package config

import (
	"fmt"
	"strings"

	"github.com/dbehnke/rf-nexus/pkg/protocols"
)

// validate validates the configuration
func validate(cfg *Config) error {
	// Validate web config
	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
	}

	// Validate codec config
	seen := make(map[string]bool)
	for _, name := range cfg.Codec.Enabled {
		if !protocols.Known(name) {
			return fmt.Errorf("codec.enabled: unknown protocol %q (known: %s)", name, strings.Join(protocols.Names(), ", "))
		}
		if seen[name] {
			return fmt.Errorf("codec.enabled: protocol %q listed twice", name)
		}
		seen[name] = true
	}
	if cfg.Codec.HistoryLimit < 0 {
		return fmt.Errorf("codec.history_limit must not be negative")
	}
	if cfg.Codec.RepeatWindow < 0 {
		return fmt.Errorf("codec.repeat_window must not be negative")
	}

	// Validate database config
	if cfg.Database.Enabled {
		if cfg.Database.Path == "" {
			return fmt.Errorf("database.path is required when the database is enabled")
		}
		if cfg.Database.RetentionDays < 0 {
			return fmt.Errorf("database.retention_days must not be negative")
		}
	}

	// Validate MQTT config
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	// Validate logging config
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}

	// Validate metrics config
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		if cfg.Metrics.Prometheus.Port <= 0 || cfg.Metrics.Prometheus.Port > 65535 {
			return fmt.Errorf("metrics.prometheus.port must be between 1 and 65535")
		}
		if cfg.Web.Enabled && cfg.Metrics.Prometheus.Port == cfg.Web.Port {
			return fmt.Errorf("metrics.prometheus.port conflicts with web.port")
		}
	}

	return nil
}
