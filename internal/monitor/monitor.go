package monitor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sd3mir06/iguardian/internal/engine"
)

// ThresholdSource supplies the user-adjustable thresholds. They are read
// fresh on every tick so configuration edits take effect immediately.
type ThresholdSource interface {
	Thresholds() (engine.Thresholds, error)
}

// Config tunes the monitoring loop.
type Config struct {
	TickInterval       time.Duration
	Idle               engine.IdleConfig
	BaselineWarmup     int
	BaselineAlpha      float64
	BaselineMultiplier float64
	LevelCooldown      time.Duration
	WindowSpan         time.Duration
	ActivityCap        int
}

// DefaultConfig returns the reference tuning: 3s ticks, 60s level cooldown,
// one-hour rolling window, 50-entry activity log.
func DefaultConfig() Config {
	return Config{
		TickInterval:       3 * time.Second,
		Idle:               engine.DefaultIdleConfig(),
		BaselineWarmup:     30,
		BaselineAlpha:      0.1,
		BaselineMultiplier: 5,
		LevelCooldown:      60 * time.Second,
		WindowSpan:         time.Hour,
		ActivityCap:        50,
	}
}

// Status is the snapshot published after every tick for UI consumers.
type Status struct {
	Timestamp   time.Time       `json:"timestamp"`
	Score       int             `json:"score"`
	Level       string          `json:"level"`
	Idle        bool            `json:"idle"`
	IdleSeconds float64         `json:"idle_seconds"`
	Factors     []engine.Factor `json:"factors"`

	UploadBps           float64 `json:"upload_bps"`
	DownloadBps         float64 `json:"download_bps"`
	CPUPercent          float64 `json:"cpu_percent"`
	BatteryLevel        float64 `json:"battery_level"`
	BatteryDrainPerHour float64 `json:"battery_drain_per_hour"`
	Thermal             string  `json:"thermal"`

	HourlyUploadMB   float64 `json:"hourly_upload_mb"`
	HourlyDownloadMB float64 `json:"hourly_download_mb"`

	BaselineWarm bool `json:"baseline_warm"`
}

// ActivityEntry is one line of the bounded recent-activity log.
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// Listener receives the status published after each tick.
type Listener func(Status)

// Monitor owns the timer-driven evaluation pipeline. All engine state is
// mutated only while holding mu, which preserves the tick's atomicity even
// though Touch and the HTTP handlers run on other goroutines. There is no
// blocking I/O inside the tick; notification dispatch is asynchronous in the
// notifier.
type Monitor struct {
	cfg        Config
	sampler    Sampler
	thresholds ThresholdSource
	gate       *engine.Gate
	logger     zerolog.Logger

	mu         sync.Mutex
	detector   *engine.IdleDetector
	baseline   *engine.Baseline
	window     *engine.RollingWindow
	levels     *engine.LevelStateMachine
	lastSample *Sample
	lastThr    engine.Thresholds
	status     Status
	activity   []ActivityEntry
	listeners  []Listener

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	started  bool
}

// New creates a monitor. The gate may be nil for headless evaluation.
func New(cfg Config, sampler Sampler, thresholds ThresholdSource, gate *engine.Gate, logger zerolog.Logger) *Monitor {
	now := time.Now()
	log := logger.With().Str("component", "monitor").Logger()
	return &Monitor{
		cfg:        cfg,
		sampler:    sampler,
		thresholds: thresholds,
		gate:       gate,
		logger:     log,
		detector:   engine.NewIdleDetector(cfg.Idle, now, log),
		baseline:   engine.NewBaseline(cfg.BaselineWarmup, cfg.BaselineAlpha),
		window:     engine.NewRollingWindow(cfg.WindowSpan),
		levels:     engine.NewLevelStateMachine(now, cfg.LevelCooldown),
		status:     Status{Level: engine.LevelNormal.String(), Thermal: engine.ThermalNominal.String()},
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start launches the recurring tick. Calling Start twice is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	// Warmup collect seeds the bandwidth and battery deltas so the first
	// real tick sees rates instead of zeroes.
	_, _ = m.sampler.Collect()

	go m.loop()
	m.logger.Info().Dur("tick", m.cfg.TickInterval).Msg("monitoring started")
}

// Stop cancels the recurring tick. It is idempotent and returns once the
// loop has exited; no in-flight work needs to be awaited beyond that.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		<-m.doneCh
	}
}

// Touch registers a user interaction, immediately overriding idle.
func (m *Monitor) Touch() {
	now := time.Now()
	m.mu.Lock()
	m.detector.Touch(now)
	m.status.Idle = false
	m.status.IdleSeconds = 0
	m.mu.Unlock()
}

// Status returns a copy of the last published snapshot. Safe from any
// goroutine.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status
	st.Factors = append([]engine.Factor(nil), m.status.Factors...)
	return st
}

// Activity returns the recent-activity log, newest first.
func (m *Monitor) Activity() []ActivityEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ActivityEntry, 0, len(m.activity))
	for i := len(m.activity) - 1; i >= 0; i-- {
		out = append(out, m.activity[i])
	}
	return out
}

// Subscribe registers a listener invoked with the status after every tick.
// Listeners run on the tick goroutine and must return quickly.
func (m *Monitor) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Monitor) loop() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			m.logger.Info().Msg("monitoring stopped")
			return
		case now := <-ticker.C:
			m.tick(now)
		}
	}
}

// tick runs one full evaluate→score→transition→gate pass. Each step only
// begins after the previous one completes; the whole pass holds mu.
func (m *Monitor) tick(now time.Time) {
	sample, err := m.sampler.Collect()

	m.mu.Lock()

	// A failed collect degrades to the last known good sample rather than
	// skipping state transitions; stale data bounded by one interval is an
	// accepted inconsistency, not an error.
	if err != nil || sample == nil {
		if m.lastSample == nil {
			m.mu.Unlock()
			m.logger.Warn().Err(err).Msg("no sample available yet, skipping tick")
			return
		}
		m.logger.Warn().Err(err).Msg("collect failed, reusing last sample")
		sample = m.lastSample
	} else {
		m.lastSample = sample
	}

	idle := m.detector.Evaluate(now, sample.CPUPercent, sample.UploadBps, sample.DownloadBps)
	wasIdle := m.status.Idle

	if m.detector.QuietIdle(sample.CPUPercent, sample.UploadBps, sample.DownloadBps) {
		m.baseline.Observe(sample.UploadBps, sample.DownloadBps, sample.CPUPercent)
	}

	m.window.Record(now, sample.CumulativeUploadBytes, sample.CumulativeDownloadBytes)
	totals := m.window.Totals(now)

	thresholds, err := m.thresholds.Thresholds()
	if err != nil {
		m.logger.Warn().Err(err).Msg("reading thresholds failed, reusing previous set")
		thresholds = m.lastThr
	} else {
		m.lastThr = thresholds
	}

	snap := engine.Snapshot{
		Timestamp:           now,
		UploadBps:           sample.UploadBps,
		DownloadBps:         sample.DownloadBps,
		CPUPercent:          sample.CPUPercent,
		BatteryLevel:        sample.BatteryLevel,
		BatteryDrainPerHour: sample.BatteryDrainPerHour,
		Thermal:             sample.Thermal,
	}

	score, factors := engine.Score(snap, idle, m.baseline, thresholds, totals,
		engine.ScoreConfig{BaselineMultiplier: m.cfg.BaselineMultiplier})

	prev := m.levels.Level()
	level, changed := m.levels.Apply(now, score)

	if idle != wasIdle {
		if idle {
			m.appendActivity(now, "info", "device entered idle")
		} else {
			m.appendActivity(now, "info", "device active again")
		}
	}
	if changed {
		m.appendActivity(now, level.String(),
			"threat level "+prev.String()+" -> "+level.String())
		m.logger.Info().
			Str("from", prev.String()).
			Str("to", level.String()).
			Int("score", score).
			Msg("threat level changed")
		if m.gate != nil {
			m.gate.HandleTransition(now, prev, level, score, factors, snap)
		}
	}

	m.status = Status{
		Timestamp:           now,
		Score:               score,
		Level:               level.String(),
		Idle:                idle,
		IdleSeconds:         m.detector.IdleDuration(now).Seconds(),
		Factors:             factors,
		UploadBps:           sample.UploadBps,
		DownloadBps:         sample.DownloadBps,
		CPUPercent:          sample.CPUPercent,
		BatteryLevel:        sample.BatteryLevel,
		BatteryDrainPerHour: sample.BatteryDrainPerHour,
		Thermal:             sample.Thermal.String(),
		HourlyUploadMB:      totals.UploadBytes / 1e6,
		HourlyDownloadMB:    totals.DownloadBytes / 1e6,
		BaselineWarm:        m.baseline.Warm(),
	}
	status := m.status
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		l(status)
	}
}

// appendActivity records one log line, evicting the oldest past the cap.
// Caller holds mu.
func (m *Monitor) appendActivity(now time.Time, level, msg string) {
	m.activity = append(m.activity, ActivityEntry{Timestamp: now, Level: level, Message: msg})
	if over := len(m.activity) - m.cfg.ActivityCap; over > 0 {
		m.activity = append(m.activity[:0], m.activity[over:]...)
	}
}
