// Package config provides runtime configuration for iGuardian.
// It uses Viper to load settings from files, environment variables, and CLI
// flags, falling back to the reference tuning.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sd3mir06/iguardian/internal/engine"
	"github.com/Sd3mir06/iguardian/internal/monitor"
)

// Config holds all runtime configuration.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────────────
	ServerHost string `mapstructure:"server_host"`
	// ControlPort: JWT-protected REST API for the UI.
	ControlPort int    `mapstructure:"control_port"`
	DBPath      string `mapstructure:"db_path"`

	// ── Security ─────────────────────────────────────────────────────────────
	// JWTSecret: HS256 signing key for control-plane tokens.
	// Change this in production; the default is a placeholder.
	JWTSecret string `mapstructure:"jwt_secret"`
	AdminUser string `mapstructure:"admin_user"`
	AdminPass string `mapstructure:"admin_pass"`

	// ── Notifications ────────────────────────────────────────────────────────
	WebhookURL            string `mapstructure:"webhook_url"`
	WebhookTimeoutSeconds int    `mapstructure:"webhook_timeout_seconds"`

	// ── Engine tuning ────────────────────────────────────────────────────────
	TickIntervalSeconds   int     `mapstructure:"tick_interval_seconds"`
	IdleAfterSeconds      int     `mapstructure:"idle_after_seconds"`
	IdleCPUPercent        float64 `mapstructure:"idle_cpu_percent"`
	IdleNetworkKBps       float64 `mapstructure:"idle_network_kbps"`
	BaselineWarmupSamples int     `mapstructure:"baseline_warmup_samples"`
	BaselineAlpha         float64 `mapstructure:"baseline_alpha"`
	BaselineMultiplier    float64 `mapstructure:"baseline_multiplier"`
	LevelCooldownSeconds  int     `mapstructure:"level_cooldown_seconds"`
	AlertCooldownSeconds  int     `mapstructure:"alert_cooldown_seconds"`
	IncidentDedupeSeconds int     `mapstructure:"incident_dedupe_seconds"`
	WindowSpanMinutes     int     `mapstructure:"window_span_minutes"`
	ActivityLogSize       int     `mapstructure:"activity_log_size"`

	// ── Default thresholds (seeded on first run, then DB-owned) ──────────────
	ThresholdTotalUploadMB   float64 `mapstructure:"threshold_total_upload_mb"`
	ThresholdTotalDownloadMB float64 `mapstructure:"threshold_total_download_mb"`
	ThresholdUploadRateMBH   float64 `mapstructure:"threshold_upload_rate_mbh"`
	ThresholdDownloadRateMBH float64 `mapstructure:"threshold_download_rate_mbh"`
	ThresholdCPUPercent      float64 `mapstructure:"threshold_cpu_percent"`
	ThresholdBatteryDrain    float64 `mapstructure:"threshold_battery_drain"`

	// ── Logging ──────────────────────────────────────────────────────────────
	LogLevel  string `mapstructure:"log_level"`  // debug | info | warn | error
	LogFormat string `mapstructure:"log_format"` // json | console
}

// Load reads config from file (./config.yaml or ~/.iguardian/config.yaml)
// and falls back to the reference defaults. Environment variables with
// prefix GUARDIAN_ override file values.
func Load() (*Config, error) {
	v := viper.New()

	// --- Defaults ---
	v.SetDefault("server_host", "127.0.0.1")
	v.SetDefault("control_port", 6611)
	v.SetDefault("db_path", "iguardian.db")

	// Security defaults. MUST be overridden in production.
	v.SetDefault("jwt_secret", "iGd$Qw3!nT8#vB5^kR2&xM7*pL4@zC1f")
	v.SetDefault("admin_user", "admin")
	v.SetDefault("admin_pass", "admin")

	v.SetDefault("webhook_url", "")
	v.SetDefault("webhook_timeout_seconds", 5)

	// Reference engine tuning from the detection design.
	v.SetDefault("tick_interval_seconds", 3)
	v.SetDefault("idle_after_seconds", 60)
	v.SetDefault("idle_cpu_percent", 15.0)
	v.SetDefault("idle_network_kbps", 50.0)
	v.SetDefault("baseline_warmup_samples", 30)
	v.SetDefault("baseline_alpha", 0.1)
	v.SetDefault("baseline_multiplier", 5.0)
	v.SetDefault("level_cooldown_seconds", 60)
	v.SetDefault("alert_cooldown_seconds", 300)
	v.SetDefault("incident_dedupe_seconds", 60)
	v.SetDefault("window_span_minutes", 60)
	v.SetDefault("activity_log_size", 50)

	v.SetDefault("threshold_total_upload_mb", 100.0)
	v.SetDefault("threshold_total_download_mb", 500.0)
	v.SetDefault("threshold_upload_rate_mbh", 50.0)
	v.SetDefault("threshold_download_rate_mbh", 200.0)
	v.SetDefault("threshold_cpu_percent", 40.0)
	v.SetDefault("threshold_battery_drain", 5.0)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	// --- Config file ---
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.iguardian")
	if err := v.ReadInConfig(); err != nil {
		// config file is optional; ignore "not found" errors
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// --- Environment Variables ---
	v.SetEnvPrefix("GUARDIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// MonitorConfig translates the flat file keys into the monitor's tuning.
func (c *Config) MonitorConfig() monitor.Config {
	return monitor.Config{
		TickInterval: time.Duration(c.TickIntervalSeconds) * time.Second,
		Idle: engine.IdleConfig{
			MinIdle:        time.Duration(c.IdleAfterSeconds) * time.Second,
			IdleCPUPercent: c.IdleCPUPercent,
			IdleNetworkBps: c.IdleNetworkKBps * 1024,
		},
		BaselineWarmup:     c.BaselineWarmupSamples,
		BaselineAlpha:      c.BaselineAlpha,
		BaselineMultiplier: c.BaselineMultiplier,
		LevelCooldown:      time.Duration(c.LevelCooldownSeconds) * time.Second,
		WindowSpan:         time.Duration(c.WindowSpanMinutes) * time.Minute,
		ActivityCap:        c.ActivityLogSize,
	}
}

// GateConfig translates the dedupe and cooldown settings.
func (c *Config) GateConfig() engine.GateConfig {
	return engine.GateConfig{
		IncidentDedupe: time.Duration(c.IncidentDedupeSeconds) * time.Second,
		AlertCooldown:  time.Duration(c.AlertCooldownSeconds) * time.Second,
	}
}

// DefaultThresholds returns the threshold rows seeded into the store on
// first run. Min/Max/Step bound what the editing UI may set.
func (c *Config) DefaultThresholds() []engine.Threshold {
	return []engine.Threshold{
		{Metric: engine.MetricTotalUpload, Value: c.ThresholdTotalUploadMB, Enabled: true, Min: 10, Max: 2000, Step: 10},
		{Metric: engine.MetricTotalDownload, Value: c.ThresholdTotalDownloadMB, Enabled: true, Min: 50, Max: 10000, Step: 50},
		{Metric: engine.MetricUploadRate, Value: c.ThresholdUploadRateMBH, Enabled: true, Min: 5, Max: 1000, Step: 5},
		{Metric: engine.MetricDownloadRate, Value: c.ThresholdDownloadRateMBH, Enabled: true, Min: 10, Max: 5000, Step: 10},
		{Metric: engine.MetricCPUUsage, Value: c.ThresholdCPUPercent, Enabled: true, Min: 10, Max: 100, Step: 5},
		{Metric: engine.MetricBatteryDrain, Value: c.ThresholdBatteryDrain, Enabled: true, Min: 1, Max: 50, Step: 0.5},
	}
}
