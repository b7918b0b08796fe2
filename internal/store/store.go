// Package store manages the iGuardian database layer. It initializes GORM
// with SQLite and persists incidents and user-adjustable thresholds. The
// store is constructed once by the host process and passed by reference to
// the engine and the API; no package-level database handle.
package store

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Sd3mir06/iguardian/internal/engine"
	"github.com/Sd3mir06/iguardian/internal/models"
)

// Store wraps the GORM handle.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// Open opens (or creates) the SQLite database at path and runs AutoMigrate.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&models.Incident{}, &models.ThresholdSetting{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	log := logger.With().Str("component", "store").Logger()
	log.Info().Str("path", path).Msg("database opened")
	return &Store{db: db, logger: log}, nil
}

// ─── Thresholds ───────────────────────────────────────────────────────────────

// SeedThresholds creates any threshold rows that do not exist yet. Existing
// rows keep their user-edited value and enabled flag, but bounds are
// refreshed from the defaults.
func (s *Store) SeedThresholds(defaults []engine.Threshold) error {
	for _, d := range defaults {
		var row models.ThresholdSetting
		err := s.db.Where("metric = ?", string(d.Metric)).First(&row).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			row = models.ThresholdSetting{
				Metric:  string(d.Metric),
				Value:   d.Value,
				Enabled: d.Enabled,
				Min:     d.Min,
				Max:     d.Max,
				Step:    d.Step,
			}
			if err := s.db.Create(&row).Error; err != nil {
				return fmt.Errorf("seeding threshold %s: %w", d.Metric, err)
			}
		case err != nil:
			return fmt.Errorf("looking up threshold %s: %w", d.Metric, err)
		default:
			if err := s.db.Model(&row).Updates(map[string]any{
				"min": d.Min, "max": d.Max, "step": d.Step,
			}).Error; err != nil {
				return fmt.Errorf("refreshing bounds for %s: %w", d.Metric, err)
			}
		}
	}
	return nil
}

// Thresholds returns the full threshold set. The monitor calls this on
// every tick so edits take effect immediately.
func (s *Store) Thresholds() (engine.Thresholds, error) {
	var rows []models.ThresholdSetting
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading thresholds: %w", err)
	}
	out := make(engine.Thresholds, len(rows))
	for _, r := range rows {
		m := engine.Metric(r.Metric)
		out[m] = engine.Threshold{
			Metric:  m,
			Value:   r.Value,
			Enabled: r.Enabled,
			Min:     r.Min,
			Max:     r.Max,
			Step:    r.Step,
		}
	}
	return out, nil
}

// UpdateThreshold sets value and enabled for a metric. Out-of-bounds values
// are clamped rather than rejected, so the engine stays resilient to
// concurrent configuration edits.
func (s *Store) UpdateThreshold(metric engine.Metric, value float64, enabled bool) (engine.Threshold, error) {
	if !engine.KnownMetric(metric) {
		return engine.Threshold{}, fmt.Errorf("unknown metric %q", metric)
	}
	var row models.ThresholdSetting
	if err := s.db.Where("metric = ?", string(metric)).First(&row).Error; err != nil {
		return engine.Threshold{}, fmt.Errorf("looking up threshold %s: %w", metric, err)
	}

	if row.Max > row.Min {
		if value < row.Min {
			value = row.Min
		}
		if value > row.Max {
			value = row.Max
		}
	}

	if err := s.db.Model(&row).Updates(map[string]any{
		"value": value, "enabled": enabled,
	}).Error; err != nil {
		return engine.Threshold{}, fmt.Errorf("updating threshold %s: %w", metric, err)
	}

	s.logger.Info().Str("metric", string(metric)).Float64("value", value).Bool("enabled", enabled).
		Msg("threshold updated")
	return engine.Threshold{
		Metric: metric, Value: value, Enabled: enabled,
		Min: row.Min, Max: row.Max, Step: row.Step,
	}, nil
}

// ─── Incidents ────────────────────────────────────────────────────────────────

// OpenIncident persists a new open incident with the metric values at
// detection time.
func (s *Store) OpenIncident(rec engine.IncidentRecord) error {
	row := models.Incident{
		Type:                string(rec.Type),
		Severity:            rec.Severity.String(),
		Score:               rec.Score,
		Reason:              rec.Reason,
		OpenedAt:            rec.OpenedAt,
		UploadBps:           rec.Snapshot.UploadBps,
		DownloadBps:         rec.Snapshot.DownloadBps,
		CPUPercent:          rec.Snapshot.CPUPercent,
		BatteryLevel:        rec.Snapshot.BatteryLevel,
		BatteryDrainPerHour: rec.Snapshot.BatteryDrainPerHour,
		ThermalLevel:        int(rec.Snapshot.Thermal),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("creating incident: %w", err)
	}
	return nil
}

// ResolveOpen closes every still-open incident, used when the level has
// returned to Normal.
func (s *Store) ResolveOpen(now time.Time) error {
	res := s.db.Model(&models.Incident{}).
		Where("resolved = ?", false).
		Updates(map[string]any{"resolved": true, "resolved_at": now})
	if res.Error != nil {
		return fmt.Errorf("resolving incidents: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info().Int64("count", res.RowsAffected).Msg("incidents resolved")
	}
	return nil
}

// RecentIncidents returns up to limit incidents, newest first.
func (s *Store) RecentIncidents(limit int) ([]models.Incident, error) {
	var rows []models.Incident
	err := s.db.Order("opened_at desc").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading incidents: %w", err)
	}
	return rows, nil
}

// AcknowledgeIncident marks an incident as seen by the user.
func (s *Store) AcknowledgeIncident(id uint) error {
	res := s.db.Model(&models.Incident{}).Where("id = ?", id).Update("acknowledged", true)
	if res.Error != nil {
		return fmt.Errorf("acknowledging incident %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("incident %d not found", id)
	}
	return nil
}
