package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sd3mir06/iguardian/internal/engine"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1", cfg.ServerHost)
	require.Equal(t, 6611, cfg.ControlPort)
	require.Equal(t, 3, cfg.TickIntervalSeconds)
	require.Equal(t, 60, cfg.IdleAfterSeconds)
	require.Equal(t, 30, cfg.BaselineWarmupSamples)
	require.InDelta(t, 0.1, cfg.BaselineAlpha, 1e-9)
	require.Equal(t, 300, cfg.AlertCooldownSeconds)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("GUARDIAN_CONTROL_PORT", "9999")
	t.Setenv("GUARDIAN_IDLE_CPU_PERCENT", "25")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.ControlPort)
	require.InDelta(t, 25, cfg.IdleCPUPercent, 1e-9)
}

func TestMonitorConfigTranslation(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	mc := cfg.MonitorConfig()
	require.Equal(t, 3*time.Second, mc.TickInterval)
	require.Equal(t, 60*time.Second, mc.Idle.MinIdle)
	require.InDelta(t, 50*1024, mc.Idle.IdleNetworkBps, 1e-9)
	require.Equal(t, time.Hour, mc.WindowSpan)
	require.Equal(t, 50, mc.ActivityCap)
}

func TestDefaultThresholdsCoverEveryMetric(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	defaults := cfg.DefaultThresholds()
	require.Len(t, defaults, 6)
	for _, thr := range defaults {
		require.True(t, engine.KnownMetric(thr.Metric), "metric %s", thr.Metric)
		require.True(t, thr.Enabled)
		require.Positive(t, thr.Value)
		require.Less(t, thr.Min, thr.Max)
	}
}
