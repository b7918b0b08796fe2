// Package engine implements the idle-aware threat-scoring core of iGuardian:
// idle detection, per-device baseline learning, weighted factor scoring,
// hysteresis-gated level transitions and alert/incident gating.
// The package is pure domain logic and performs no I/O of its own.
package engine

import (
	"time"

	"github.com/rs/zerolog"
)

// IdleConfig tunes when the device is considered unattended.
type IdleConfig struct {
	// MinIdle is the interaction-free floor before idle can be confirmed.
	MinIdle time.Duration
	// IdleCPUPercent is the CPU level below which the device counts as quiet.
	IdleCPUPercent float64
	// IdleNetworkBps is the per-direction network rate below which the
	// device counts as quiet, in bytes per second.
	IdleNetworkBps float64
}

// DefaultIdleConfig returns the reference tuning: 60s floor, 15% CPU, 50 KB/s.
func DefaultIdleConfig() IdleConfig {
	return IdleConfig{
		MinIdle:        60 * time.Second,
		IdleCPUPercent: 15,
		IdleNetworkBps: 50 * 1024,
	}
}

// IdleDetector decides whether the device is unattended.
//
// Idle requires BOTH an interaction-free period of at least MinIdle AND low
// instantaneous activity (CPU below IdleCPUPercent OR network below
// IdleNetworkBps). A registered user interaction flips the detector to active
// immediately, regardless of metric values.
type IdleDetector struct {
	cfg             IdleConfig
	lastInteraction time.Time
	idle            bool
	idleSince       time.Time
	logger          zerolog.Logger
}

// NewIdleDetector creates a detector that treats now as the most recent
// user interaction.
func NewIdleDetector(cfg IdleConfig, now time.Time, logger zerolog.Logger) *IdleDetector {
	return &IdleDetector{
		cfg:             cfg,
		lastInteraction: now,
		logger:          logger.With().Str("component", "idle").Logger(),
	}
}

// Touch registers a user interaction. This is an override, not just a timer
// reset: the device is active from this instant even if metrics are quiet.
func (d *IdleDetector) Touch(now time.Time) {
	d.lastInteraction = now
	d.idle = false
}

// Evaluate recomputes the idle state from the latest metric sample.
// Entering idle is logged for diagnostics; it never raises an alert itself.
// The idle→active direction has no hysteresis: a false negative there would
// mean scoring the device while the user is actively using it.
func (d *IdleDetector) Evaluate(now time.Time, cpuPercent, uploadBps, downloadBps float64) bool {
	quiet := cpuPercent < d.cfg.IdleCPUPercent || max(uploadBps, downloadBps) < d.cfg.IdleNetworkBps
	idle := now.Sub(d.lastInteraction) >= d.cfg.MinIdle && quiet

	if idle && !d.idle {
		d.idleSince = now
		d.logger.Info().
			Float64("cpu_percent", cpuPercent).
			Float64("upload_bps", uploadBps).
			Float64("download_bps", downloadBps).
			Msg("device entered idle")
	}
	d.idle = idle
	return idle
}

// Idle reports the state computed by the last Evaluate or Touch.
func (d *IdleDetector) Idle() bool {
	return d.idle
}

// IdleDuration returns how long the device has been idle, or zero when active.
func (d *IdleDetector) IdleDuration(now time.Time) time.Duration {
	if !d.idle {
		return 0
	}
	return now.Sub(d.idleSince)
}

// QuietIdle reports whether the device is idle AND the instantaneous values
// are themselves below the idle thresholds. The baseline is learned only in
// this state, never from an idle-but-spiking sample.
func (d *IdleDetector) QuietIdle(cpuPercent, uploadBps, downloadBps float64) bool {
	return d.idle &&
		cpuPercent < d.cfg.IdleCPUPercent &&
		max(uploadBps, downloadBps) < d.cfg.IdleNetworkBps
}
