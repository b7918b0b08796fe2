package engine

import (
	"fmt"
	"time"
)

// ThermalLevel is the device thermal state as an ordinal.
type ThermalLevel int

const (
	ThermalNominal ThermalLevel = iota
	ThermalFair
	ThermalSerious
	ThermalCritical
)

// String implements fmt.Stringer.
func (t ThermalLevel) String() string {
	switch t {
	case ThermalNominal:
		return "nominal"
	case ThermalFair:
		return "fair"
	case ThermalSerious:
		return "serious"
	case ThermalCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Snapshot is one evaluation tick's view of the device. It is immutable for
// the duration of the tick and discarded afterwards.
type Snapshot struct {
	Timestamp           time.Time
	UploadBps           float64 // instantaneous egress, bytes/s
	DownloadBps         float64 // instantaneous ingress, bytes/s
	CPUPercent          float64 // 0-100
	BatteryLevel        float64 // 0-100
	BatteryDrainPerHour float64 // percent/h, negative while charging
	Thermal             ThermalLevel
}

// Metric identifies a user-adjustable alert threshold.
type Metric string

const (
	MetricUploadRate    Metric = "upload_rate"    // hourly-equivalent upload, MB/h
	MetricDownloadRate  Metric = "download_rate"  // hourly-equivalent download, MB/h
	MetricCPUUsage      Metric = "cpu_usage"      // percent
	MetricBatteryDrain  Metric = "battery_drain"  // percent/h
	MetricTotalUpload   Metric = "total_upload"   // trailing-hour total, MB
	MetricTotalDownload Metric = "total_download" // trailing-hour total, MB
)

// KnownMetric reports whether m names one of the adjustable thresholds.
func KnownMetric(m Metric) bool {
	switch m {
	case MetricUploadRate, MetricDownloadRate, MetricCPUUsage,
		MetricBatteryDrain, MetricTotalUpload, MetricTotalDownload:
		return true
	}
	return false
}

// Threshold is one user-adjustable limit. Min/Max/Step bound what the
// editing UI may set; the engine tolerates any value it is handed and the
// store clamps writes.
type Threshold struct {
	Metric  Metric
	Value   float64
	Enabled bool
	Min     float64
	Max     float64
	Step    float64
}

// Thresholds is the per-metric threshold set read fresh on every tick.
type Thresholds map[Metric]Threshold

// enabled returns the threshold for m when it is present, enabled and has a
// positive value. A zero threshold would make ratio math meaningless, so it
// short-circuits the factor to "not triggered".
func (t Thresholds) enabled(m Metric) (Threshold, bool) {
	thr, ok := t[m]
	if !ok || !thr.Enabled || thr.Value <= 0 {
		return Threshold{}, false
	}
	return thr, true
}

// Factor is one independently evaluated contributor to the threat score.
type Factor struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// Factor names, also used by the gate to categorise incidents.
const (
	FactorTotalUpload     = "total_upload"
	FactorTotalUploadNear = "total_upload_near"
	FactorTotalDownload   = "total_download"
	FactorSustainedUpload = "sustained_upload"
	FactorIdleCPU         = "idle_cpu"
	FactorBatteryDrain    = "battery_drain"
	FactorThermal         = "thermal"
	FactorSurveillance    = "surveillance_pattern"
)

// Composite surveillance heuristic constants. Deliberately fixed rather than
// derived from the user thresholds: co-occurrence of moderate upload +
// moderate CPU + moderate drain while idle is a stronger signal than any
// single metric near its own limit.
const (
	surveillanceUploadMB = 30.0
	surveillanceCPU      = 20.0
	surveillanceDrain    = 3.0
)

// ScoreConfig tunes the scoring engine.
type ScoreConfig struct {
	// BaselineMultiplier is how far above the learned idle baseline a
	// sustained rate must be before it counts as anomalous (reference 5x).
	BaselineMultiplier float64
}

// DefaultScoreConfig returns the reference tuning.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{BaselineMultiplier: 5}
}

const bytesPerMB = 1e6

// hourlyMB converts an instantaneous rate in bytes/s to MB per hour.
func hourlyMB(bps float64) float64 {
	return bps * 3600 / bytesPerMB
}

// Score evaluates the weighted threat factors for one tick and returns an
// integer score in [0,100] plus the factors that fired.
//
// The function is pure and total: no error path, out-of-range inputs are
// clamped at the boundary. While the device is actively used it returns
// (0, nil) without evaluating anything: every factor below is an
// idle-only signal, and scoring during active use would be pure noise.
func Score(snap Snapshot, isIdle bool, base *Baseline, thresholds Thresholds, totals Totals, cfg ScoreConfig) (int, []Factor) {
	if !isIdle {
		return 0, nil
	}

	upload := clampNonNegative(snap.UploadBps)
	cpu := clampRange(snap.CPUPercent, 0, 100)
	drain := snap.BatteryDrainPerHour // negative while charging; never triggers
	totalUploadMB := clampNonNegative(totals.UploadBytes) / bytesPerMB
	totalDownloadMB := clampNonNegative(totals.DownloadBytes) / bytesPerMB

	var factors []Factor

	// 1. Hourly upload volume. Full weight past the threshold, a reduced
	// early-warning weight past 80% of it.
	if thr, ok := thresholds.enabled(MetricTotalUpload); ok {
		switch {
		case totalUploadMB > thr.Value:
			factors = append(factors, Factor{
				Name:   FactorTotalUpload,
				Score:  50,
				Reason: fmt.Sprintf("uploaded %.1f MB in the last hour (limit %.0f MB)", totalUploadMB, thr.Value),
			})
		case totalUploadMB > 0.8*thr.Value:
			factors = append(factors, Factor{
				Name:   FactorTotalUploadNear,
				Score:  20,
				Reason: fmt.Sprintf("uploaded %.1f MB in the last hour, approaching the %.0f MB limit", totalUploadMB, thr.Value),
			})
		}
	}

	// 2. Hourly download volume.
	if thr, ok := thresholds.enabled(MetricTotalDownload); ok && totalDownloadMB > thr.Value {
		factors = append(factors, Factor{
			Name:   FactorTotalDownload,
			Score:  30,
			Reason: fmt.Sprintf("downloaded %.1f MB in the last hour (limit %.0f MB)", totalDownloadMB, thr.Value),
		})
	}

	// 3. Sustained upload rate. Requires BOTH the absolute threshold AND a
	// multiple of the learned baseline. A device whose idle baseline is
	// naturally high should not alert on its ordinary chatter.
	if thr, ok := thresholds.enabled(MetricUploadRate); ok && base != nil && base.Warm() {
		rateMBH := hourlyMB(upload)
		baselineMBH := hourlyMB(base.UploadBps)
		if rateMBH > thr.Value && rateMBH > cfg.BaselineMultiplier*baselineMBH {
			factors = append(factors, Factor{
				Name:   FactorSustainedUpload,
				Score:  25,
				Reason: fmt.Sprintf("sustained upload of %.1f MB/h, %.0fx above the idle baseline", rateMBH, safeRatio(rateMBH, baselineMBH)),
			})
		}
	}

	// 4. CPU load while nobody is using the device.
	if thr, ok := thresholds.enabled(MetricCPUUsage); ok && cpu > thr.Value {
		factors = append(factors, Factor{
			Name:   FactorIdleCPU,
			Score:  25,
			Reason: fmt.Sprintf("CPU at %.0f%% while idle (limit %.0f%%)", cpu, thr.Value),
		})
	}

	// 5. Battery drain rate.
	if thr, ok := thresholds.enabled(MetricBatteryDrain); ok && drain > thr.Value {
		factors = append(factors, Factor{
			Name:   FactorBatteryDrain,
			Score:  20,
			Reason: fmt.Sprintf("battery draining at %.1f%%/h while idle (limit %.1f%%/h)", drain, thr.Value),
		})
	}

	// 6. Thermal pressure while idle.
	if snap.Thermal >= ThermalSerious {
		factors = append(factors, Factor{
			Name:   FactorThermal,
			Score:  20,
			Reason: fmt.Sprintf("thermal state %s while idle", snap.Thermal),
		})
	}

	// 7. Composite screen-mirroring / surveillance signature.
	if totalUploadMB > surveillanceUploadMB && cpu > surveillanceCPU && drain > surveillanceDrain {
		factors = append(factors, Factor{
			Name:   FactorSurveillance,
			Score:  20,
			Reason: fmt.Sprintf("possible mirroring signature: %.1f MB/h upload, %.0f%% CPU, %.1f%%/h drain", totalUploadMB, cpu, drain),
		})
	}

	score := 0
	for _, f := range factors {
		score += f.Score
	}
	if score > 100 {
		score = 100
	}
	return score, factors
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// safeRatio guards the human-readable ratio against a zero baseline.
func safeRatio(value, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return value / base
}
