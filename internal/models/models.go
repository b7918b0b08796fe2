// Package models defines GORM data models for iGuardian.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Incident is a recorded anomaly episode. Lifecycle: open → (optionally)
// acknowledged → resolved. A resolved incident is never reopened; a fresh
// row is created instead.
type Incident struct {
	gorm.Model

	Type     string `gorm:"index;not null" json:"type"`
	Severity string `gorm:"not null" json:"severity"`
	Score    int    `json:"score"`
	Reason   string `json:"reason"`

	OpenedAt   time.Time  `gorm:"index" json:"opened_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	Acknowledged bool `gorm:"default:false" json:"acknowledged"`
	Resolved     bool `gorm:"index;default:false" json:"resolved"`

	// ── Metric values at detection time ──────────────────────────────────────
	UploadBps           float64 `json:"upload_bps"`
	DownloadBps         float64 `json:"download_bps"`
	CPUPercent          float64 `json:"cpu_percent"`
	BatteryLevel        float64 `json:"battery_level"`
	BatteryDrainPerHour float64 `json:"battery_drain_per_hour"`
	ThermalLevel        int     `json:"thermal_level"`
}

// ThresholdSetting is one user-adjustable alert threshold. Min/Max/Step
// bound what the editing UI may set; writes outside the bounds are clamped
// by the store.
type ThresholdSetting struct {
	gorm.Model

	Metric  string  `gorm:"uniqueIndex;not null" json:"metric"`
	Value   float64 `json:"value"`
	Enabled bool    `gorm:"default:true" json:"enabled"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
}
