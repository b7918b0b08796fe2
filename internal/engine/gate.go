package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Notification is a fire-and-forget request to the delivery collaborator.
type Notification struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Severity string `json:"severity"`
}

// Notifier delivers user-visible notifications. Implementations must not
// block: dispatch happens inside the tick and a slow transport would stall
// the next evaluation. Delivery failures are the implementation's to log;
// the gate never retries.
type Notifier interface {
	Notify(n Notification)
}

// IncidentType categorises a detected anomaly episode.
type IncidentType string

const (
	IncidentDataExfiltration  IncidentType = "data_exfiltration"
	IncidentExcessiveDownload IncidentType = "excessive_download"
	IncidentSustainedUpload   IncidentType = "sustained_upload"
	IncidentBackgroundCPU     IncidentType = "background_cpu"
	IncidentBatteryDrain      IncidentType = "battery_drain"
	IncidentThermalStress     IncidentType = "thermal_stress"
	IncidentSurveillance      IncidentType = "surveillance_pattern"
)

// factorIncidents maps factor names to the incident category they open.
// The near-limit upload factor is advisory only and opens nothing.
var factorIncidents = map[string]IncidentType{
	FactorTotalUpload:     IncidentDataExfiltration,
	FactorTotalDownload:   IncidentExcessiveDownload,
	FactorSustainedUpload: IncidentSustainedUpload,
	FactorIdleCPU:         IncidentBackgroundCPU,
	FactorBatteryDrain:    IncidentBatteryDrain,
	FactorThermal:         IncidentThermalStress,
	FactorSurveillance:    IncidentSurveillance,
}

// IncidentRecord carries a detected episode to the incident store.
type IncidentRecord struct {
	Type     IncidentType
	Severity Level
	Score    int
	Reason   string
	OpenedAt time.Time
	Snapshot Snapshot
}

// IncidentSink persists incident records. Implementations own the Open →
// Acknowledged → Resolved lifecycle; a resolved incident is never reopened,
// a fresh one is created instead.
type IncidentSink interface {
	OpenIncident(rec IncidentRecord) error
	// ResolveOpen closes every still-open incident, used when conditions
	// have cleared (the level returned to Normal).
	ResolveOpen(now time.Time) error
}

// GateConfig tunes deduplication and rate limiting.
type GateConfig struct {
	// IncidentDedupe suppresses a second incident of the same type within
	// this window (reference 60s).
	IncidentDedupe time.Duration
	// AlertCooldown suppresses a repeat notification for the same logical
	// alert identity (reference 5 minutes).
	AlertCooldown time.Duration
}

// DefaultGateConfig returns the reference tuning.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		IncidentDedupe: 60 * time.Second,
		AlertCooldown:  5 * time.Minute,
	}
}

// Gate turns accepted level transitions into at most one incident per
// category and at most one notification per cooldown window. A failure in
// either collaborator is logged and swallowed; scoring never blocks on
// persistence or delivery.
type Gate struct {
	cfg          GateConfig
	notifier     Notifier
	sink         IncidentSink
	lastIncident map[IncidentType]time.Time
	lastNotify   map[string]time.Time
	logger       zerolog.Logger
}

// NewGate creates a gate. notifier and sink may be nil, in which case the
// corresponding output is skipped (useful for tests and headless runs).
func NewGate(cfg GateConfig, notifier Notifier, sink IncidentSink, logger zerolog.Logger) *Gate {
	return &Gate{
		cfg:          cfg,
		notifier:     notifier,
		sink:         sink,
		lastIncident: make(map[IncidentType]time.Time),
		lastNotify:   make(map[string]time.Time),
		logger:       logger.With().Str("component", "gate").Logger(),
	}
}

// HandleTransition processes one accepted level change together with the
// factors that produced it.
//
//   - Back to Normal: reset the in-memory suspicion bookkeeping and resolve
//     open incidents; no notification.
//   - Warning or above: open one incident per triggered factor category,
//     deduplicated within IncidentDedupe.
//   - Alert or Critical: additionally emit a notification, rate-limited per
//     level identity by AlertCooldown. Warning transitions only feed the
//     activity log upstream.
func (g *Gate) HandleTransition(now time.Time, from, to Level, score int, factors []Factor, snap Snapshot) {
	if to == LevelNormal {
		g.lastIncident = make(map[IncidentType]time.Time)
		if g.sink != nil {
			if err := g.sink.ResolveOpen(now); err != nil {
				g.logger.Warn().Err(err).Msg("resolving open incidents failed")
			}
		}
		g.logger.Info().Str("from", from.String()).Msg("conditions cleared, back to normal")
		return
	}

	g.recordIncidents(now, to, score, factors, snap)

	if to >= LevelAlert {
		g.notify(now, to, score, factors)
	}
}

func (g *Gate) recordIncidents(now time.Time, level Level, score int, factors []Factor, snap Snapshot) {
	if g.sink == nil {
		return
	}
	for _, f := range factors {
		typ, ok := factorIncidents[f.Name]
		if !ok {
			continue
		}
		if last, seen := g.lastIncident[typ]; seen && now.Sub(last) < g.cfg.IncidentDedupe {
			continue
		}
		rec := IncidentRecord{
			Type:     typ,
			Severity: level,
			Score:    score,
			Reason:   f.Reason,
			OpenedAt: now,
			Snapshot: snap,
		}
		if err := g.sink.OpenIncident(rec); err != nil {
			g.logger.Warn().Err(err).Str("type", string(typ)).Msg("recording incident failed")
			continue
		}
		g.lastIncident[typ] = now
		g.logger.Info().Str("type", string(typ)).Int("score", score).Msg("incident recorded")
	}
}

func (g *Gate) notify(now time.Time, level Level, score int, factors []Factor) {
	if g.notifier == nil {
		return
	}
	identity := "level:" + level.String()
	if last, seen := g.lastNotify[identity]; seen && now.Sub(last) < g.cfg.AlertCooldown {
		g.logger.Debug().Str("identity", identity).Msg("notification suppressed by cooldown")
		return
	}
	g.lastNotify[identity] = now

	body := fmt.Sprintf("Suspicious background activity while idle (score %d).", score)
	if len(factors) > 0 {
		body = fmt.Sprintf("%s %s", body, factors[0].Reason)
	}
	g.notifier.Notify(Notification{
		Title:    fmt.Sprintf("Threat level %s", level),
		Body:     body,
		Severity: level.String(),
	})
}
