package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Sd3mir06/iguardian/internal/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	return s
}

func seedDefaults(t *testing.T, s *Store) {
	t.Helper()
	err := s.SeedThresholds([]engine.Threshold{
		{Metric: engine.MetricTotalUpload, Value: 100, Enabled: true, Min: 10, Max: 2000, Step: 10},
		{Metric: engine.MetricCPUUsage, Value: 40, Enabled: true, Min: 10, Max: 100, Step: 5},
	})
	require.NoError(t, err)
}

func TestSeedAndLoadThresholds(t *testing.T) {
	s := openTestStore(t)
	seedDefaults(t, s)

	set, err := s.Thresholds()
	require.NoError(t, err)
	require.Len(t, set, 2)
	require.Equal(t, 100.0, set[engine.MetricTotalUpload].Value)
	require.True(t, set[engine.MetricCPUUsage].Enabled)
}

func TestSeedPreservesUserEdits(t *testing.T) {
	s := openTestStore(t)
	seedDefaults(t, s)

	_, err := s.UpdateThreshold(engine.MetricTotalUpload, 250, false)
	require.NoError(t, err)

	// Re-seeding (a restart) must not clobber the user's value or flag.
	seedDefaults(t, s)
	set, err := s.Thresholds()
	require.NoError(t, err)
	require.Equal(t, 250.0, set[engine.MetricTotalUpload].Value)
	require.False(t, set[engine.MetricTotalUpload].Enabled)
}

func TestUpdateThresholdClampsToBounds(t *testing.T) {
	s := openTestStore(t)
	seedDefaults(t, s)

	updated, err := s.UpdateThreshold(engine.MetricTotalUpload, 99999, true)
	require.NoError(t, err)
	require.Equal(t, 2000.0, updated.Value)

	updated, err = s.UpdateThreshold(engine.MetricTotalUpload, 1, true)
	require.NoError(t, err)
	require.Equal(t, 10.0, updated.Value)
}

func TestUpdateThresholdRejectsUnknownMetric(t *testing.T) {
	s := openTestStore(t)
	_, err := s.UpdateThreshold(engine.Metric("bogus"), 5, true)
	require.Error(t, err)
}

func TestIncidentLifecycle(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	err := s.OpenIncident(engine.IncidentRecord{
		Type:     engine.IncidentDataExfiltration,
		Severity: engine.LevelAlert,
		Score:    55,
		Reason:   "uploaded 150.0 MB in the last hour (limit 100 MB)",
		OpenedAt: now,
		Snapshot: engine.Snapshot{UploadBps: 50000, CPUPercent: 12},
	})
	require.NoError(t, err)

	incidents, err := s.RecentIncidents(10)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	require.Equal(t, "data_exfiltration", incidents[0].Type)
	require.Equal(t, "alert", incidents[0].Severity)
	require.False(t, incidents[0].Resolved)
	require.False(t, incidents[0].Acknowledged)

	require.NoError(t, s.AcknowledgeIncident(incidents[0].ID))
	require.NoError(t, s.ResolveOpen(now.Add(time.Minute)))

	incidents, err = s.RecentIncidents(10)
	require.NoError(t, err)
	require.True(t, incidents[0].Acknowledged)
	require.True(t, incidents[0].Resolved)
	require.NotNil(t, incidents[0].ResolvedAt)
}

func TestAcknowledgeMissingIncident(t *testing.T) {
	s := openTestStore(t)
	require.Error(t, s.AcknowledgeIncident(12345))
}

func TestRecentIncidentsNewestFirstAndLimited(t *testing.T) {
	s := openTestStore(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		err := s.OpenIncident(engine.IncidentRecord{
			Type:     engine.IncidentBackgroundCPU,
			Severity: engine.LevelWarning,
			Score:    25,
			Reason:   "cpu",
			OpenedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	incidents, err := s.RecentIncidents(3)
	require.NoError(t, err)
	require.Len(t, incidents, 3)
	require.True(t, incidents[0].OpenedAt.After(incidents[1].OpenedAt))
}
