package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Sd3mir06/iguardian/internal/engine"
)

// scriptedSampler returns queued samples, then keeps repeating the last one.
type scriptedSampler struct {
	samples []*Sample
	err     error
}

func (s *scriptedSampler) Collect() (*Sample, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.samples) == 0 {
		return nil, errors.New("exhausted")
	}
	next := s.samples[0]
	if len(s.samples) > 1 {
		s.samples = s.samples[1:]
	}
	return next, nil
}

type staticThresholds struct {
	set engine.Thresholds
	err error
}

func (s *staticThresholds) Thresholds() (engine.Thresholds, error) { return s.set, s.err }

func quietSample(cum uint64) *Sample {
	return &Sample{
		Timestamp:               time.Now(),
		UploadBps:               100,
		DownloadBps:             100,
		CumulativeUploadBytes:   cum,
		CumulativeDownloadBytes: cum,
		CPUPercent:              3,
		BatteryLevel:            80,
	}
}

func testMonitorConfig() Config {
	cfg := DefaultConfig()
	cfg.ActivityCap = 5
	return cfg
}

func allThresholds() engine.Thresholds {
	return engine.Thresholds{
		engine.MetricTotalUpload:   {Metric: engine.MetricTotalUpload, Value: 100, Enabled: true},
		engine.MetricTotalDownload: {Metric: engine.MetricTotalDownload, Value: 500, Enabled: true},
		engine.MetricUploadRate:    {Metric: engine.MetricUploadRate, Value: 50, Enabled: true},
		engine.MetricCPUUsage:      {Metric: engine.MetricCPUUsage, Value: 40, Enabled: true},
		engine.MetricBatteryDrain:  {Metric: engine.MetricBatteryDrain, Value: 5, Enabled: true},
	}
}

func TestTickPublishesStatus(t *testing.T) {
	sampler := &scriptedSampler{samples: []*Sample{quietSample(1000)}}
	m := New(testMonitorConfig(), sampler, &staticThresholds{set: allThresholds()}, nil, zerolog.Nop())

	m.tick(time.Now())

	st := m.Status()
	require.Equal(t, 0, st.Score)
	require.Equal(t, "normal", st.Level)
	require.False(t, st.Idle) // interaction clock starts at construction
	require.InDelta(t, 3, st.CPUPercent, 1e-9)
	require.False(t, st.BaselineWarm)
}

func TestTickDetectsIdleAndLogsActivity(t *testing.T) {
	sampler := &scriptedSampler{samples: []*Sample{quietSample(1000)}}
	m := New(testMonitorConfig(), sampler, &staticThresholds{set: allThresholds()}, nil, zerolog.Nop())

	// Two minutes without interaction on a quiet device.
	at := time.Now().Add(2 * time.Minute)
	m.tick(at)

	st := m.Status()
	require.True(t, st.Idle)
	require.Positive(t, st.IdleSeconds)

	activity := m.Activity()
	require.Len(t, activity, 1)
	require.Equal(t, "device entered idle", activity[0].Message)
}

func TestTouchOverridesIdle(t *testing.T) {
	sampler := &scriptedSampler{samples: []*Sample{quietSample(1000)}}
	m := New(testMonitorConfig(), sampler, &staticThresholds{set: allThresholds()}, nil, zerolog.Nop())

	m.tick(time.Now().Add(2 * time.Minute))
	require.True(t, m.Status().Idle)

	m.Touch()
	st := m.Status()
	require.False(t, st.Idle)
	require.Zero(t, st.IdleSeconds)
}

func TestTickReusesLastSampleOnCollectFailure(t *testing.T) {
	sampler := &scriptedSampler{samples: []*Sample{quietSample(1000)}}
	m := New(testMonitorConfig(), sampler, &staticThresholds{set: allThresholds()}, nil, zerolog.Nop())

	m.tick(time.Now())
	require.InDelta(t, 3, m.Status().CPUPercent, 1e-9)

	// Sampler starts failing; status keeps the last known good metrics.
	sampler.err = errors.New("probe unavailable")
	m.tick(time.Now().Add(3 * time.Second))
	require.InDelta(t, 3, m.Status().CPUPercent, 1e-9)
}

func TestTickSkipsWhenNoSampleEver(t *testing.T) {
	sampler := &scriptedSampler{err: errors.New("probe unavailable")}
	m := New(testMonitorConfig(), sampler, &staticThresholds{set: allThresholds()}, nil, zerolog.Nop())

	before := m.Status()
	m.tick(time.Now())
	require.Equal(t, before, m.Status())
}

func TestTickReusesThresholdsOnStoreFailure(t *testing.T) {
	sampler := &scriptedSampler{samples: []*Sample{quietSample(1000)}}
	src := &staticThresholds{set: allThresholds()}
	m := New(testMonitorConfig(), sampler, src, nil, zerolog.Nop())

	m.tick(time.Now())

	// Threshold reads fail from now on; the tick keeps the previous set and
	// does not stall.
	src.err = errors.New("db locked")
	require.NotPanics(t, func() { m.tick(time.Now().Add(3 * time.Second)) })
}

func TestActivityLogBounded(t *testing.T) {
	sampler := &scriptedSampler{samples: []*Sample{quietSample(1000)}}
	m := New(testMonitorConfig(), sampler, &staticThresholds{set: allThresholds()}, nil, zerolog.Nop())

	now := time.Now()
	for i := 0; i < 20; i++ {
		m.appendActivity(now, "info", "entry")
	}
	require.Len(t, m.Activity(), 5)
}

func TestActivityNewestFirst(t *testing.T) {
	sampler := &scriptedSampler{samples: []*Sample{quietSample(1000)}}
	m := New(testMonitorConfig(), sampler, &staticThresholds{set: allThresholds()}, nil, zerolog.Nop())

	now := time.Now()
	m.appendActivity(now, "info", "first")
	m.appendActivity(now.Add(time.Second), "info", "second")

	activity := m.Activity()
	require.Equal(t, "second", activity[0].Message)
	require.Equal(t, "first", activity[1].Message)
}

func TestListenerReceivesStatus(t *testing.T) {
	sampler := &scriptedSampler{samples: []*Sample{quietSample(1000)}}
	m := New(testMonitorConfig(), sampler, &staticThresholds{set: allThresholds()}, nil, zerolog.Nop())

	var got []Status
	m.Subscribe(func(st Status) { got = append(got, st) })

	m.tick(time.Now())
	require.Len(t, got, 1)
	require.Equal(t, "normal", got[0].Level)
}

func TestStartStopIdempotent(t *testing.T) {
	sampler := &scriptedSampler{samples: []*Sample{quietSample(1000)}}
	cfg := testMonitorConfig()
	cfg.TickInterval = 10 * time.Millisecond
	m := New(cfg, sampler, &staticThresholds{set: allThresholds()}, nil, zerolog.Nop())

	m.Start()
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	m.Stop()
}
