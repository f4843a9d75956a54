package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "DELTAWATCH_"

// Config represents the top-level application config.
type Config struct {
	Environment string         `koanf:"environment"`
	Server      ServerConfig   `koanf:"server"`
	Source      SourceConfig   `koanf:"source"`
	State       StateConfig    `koanf:"state"`
	Webhook     WebhookConfig  `koanf:"webhook"`
	Schedule    ScheduleConfig `koanf:"schedule"`
	Log         LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Port    int    `koanf:"port"`
	Host    string `koanf:"host"`
	Mode    string `koanf:"mode"` // debug | release
}

// SourceConfig points at the monitored database. An empty DSN is legal: every pass
// then completes with an empty summary.
type SourceConfig struct {
	DSN          string        `koanf:"dsn"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	MaxIdleConns int           `koanf:"max_idle_conns"`
	QueryTimeout time.Duration `koanf:"query_timeout"` // 0 disables
}

// StateConfig points at the database holding run history. Optional.
type StateConfig struct {
	DSN          string `koanf:"dsn"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
	HistoryLimit int    `koanf:"history_limit"`
}

type WebhookConfig struct {
	URL           string        `koanf:"url"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerMinute int           `koanf:"rate_per_minute"`
}

// ScheduleConfig holds cron specs. An empty spec leaves the job manual-only.
type ScheduleConfig struct {
	Timezone     string            `koanf:"timezone"`
	Transactions string            `koanf:"transactions"`
	PaymentLog   string            `koanf:"payment_log"`
	Heartbeats   []HeartbeatConfig `koanf:"heartbeats"`
}

type HeartbeatConfig struct {
	Name  string `koanf:"name"`
	Cron  string `koanf:"cron"`
	Label string `koanf:"label"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

func (c *Config) Validate() error {
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
		}
		if strings.TrimSpace(c.Server.Host) == "" {
			return fmt.Errorf("server.host is required")
		}
		if c.Server.Mode != "debug" && c.Server.Mode != "release" {
			return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
		}
	}

	if c.Source.MaxOpenConns <= 0 {
		return fmt.Errorf("source.max_open_conns must be > 0")
	}
	if c.Source.MaxIdleConns <= 0 {
		return fmt.Errorf("source.max_idle_conns must be > 0")
	}
	if c.Source.QueryTimeout < 0 {
		return fmt.Errorf("source.query_timeout must be >= 0")
	}

	if c.State.HistoryLimit <= 0 {
		return fmt.Errorf("state.history_limit must be > 0")
	}

	if c.Webhook.Timeout <= 0 {
		return fmt.Errorf("webhook.timeout must be > 0")
	}
	if c.Webhook.RatePerMinute < 0 {
		return fmt.Errorf("webhook.rate_per_minute must be >= 0")
	}

	seen := make(map[string]bool)
	for i, hb := range c.Schedule.Heartbeats {
		if strings.TrimSpace(hb.Name) == "" {
			return fmt.Errorf("schedule.heartbeats[%d].name is required", i)
		}
		name := HeartbeatName(hb)
		if seen[name] {
			return fmt.Errorf("duplicate job name %q in schedule.heartbeats", name)
		}
		seen[name] = true
		if strings.TrimSpace(hb.Cron) == "" {
			return fmt.Errorf("schedule.heartbeats[%d].cron is required", i)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q (must be text or json)", c.Log.Format)
	}

	return nil
}

// HeartbeatName prefixes a heartbeat entry name so it reads as a job name.
func HeartbeatName(hb HeartbeatConfig) string {
	return "heartbeat-" + strings.ToLower(strings.TrimSpace(hb.Name))
}

func defaultHeartbeats() []map[string]interface{} {
	return []map[string]interface{}{
		{"name": "morning", "cron": "0 0 8 * * *", "label": "Buenos días - 8:00 AM"},
		{"name": "midday", "cron": "0 0 12 * * *", "label": "Mediodía - 12:00 PM"},
		{"name": "afternoon", "cron": "0 0 15 * * *", "label": "Buenas tardes - 3:00 PM"},
		{"name": "evening", "cron": "0 0 17 * * *", "label": "Final del día - 5:00 PM"},
	}
}

// Load parses config from defaults, file and env, then validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"environment":             "Production",
		"server.enabled":          true,
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.mode":             "release",
		"source.dsn":              "",
		"source.max_open_conns":   4,
		"source.max_idle_conns":   2,
		"source.query_timeout":    "30s",
		"state.dsn":               "",
		"state.auto_migrate":      true,
		"state.history_limit":     50,
		"webhook.url":             "",
		"webhook.timeout":         "10s",
		"webhook.rate_per_minute": 20,
		"schedule.timezone":       "America/Caracas",
		"schedule.transactions":   "0 */5 * * * *",
		"schedule.payment_log":    "0 */10 * * * *",
		"schedule.heartbeats":     defaultHeartbeats(),
		"log.level":               "info",
		"log.format":              "text",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
