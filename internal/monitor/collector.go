// Package monitor runs the iGuardian evaluation loop: it samples device
// metrics with gopsutil, drives the engine once per tick and publishes the
// latest status for API consumers.
package monitor

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/sensors"

	"github.com/Sd3mir06/iguardian/internal/engine"
)

// Sample holds one collection cycle's metric data.
type Sample struct {
	Timestamp time.Time

	UploadBps   float64 // egress bytes/s since last collect
	DownloadBps float64 // ingress bytes/s since last collect

	// Cumulative interface counters, fed to the rolling hourly window.
	CumulativeUploadBytes   uint64
	CumulativeDownloadBytes uint64

	CPUPercent          float64
	BatteryLevel        float64 // percent; 100 on devices without a battery
	BatteryDrainPerHour float64 // percent/h, negative while charging
	Thermal             engine.ThermalLevel
}

// Sampler supplies metric samples to the monitor. The production
// implementation is Collector; tests inject fakes.
type Sampler interface {
	Collect() (*Sample, error)
}

// Thermal bands applied to the hottest reported sensor, degrees Celsius.
const (
	thermalFairAt     = 60.0
	thermalSeriousAt  = 70.0
	thermalCriticalAt = 80.0
)

// Collector gathers system metrics via gopsutil plus direct sysfs reads for
// battery state. Bandwidth is delta-based across calls.
type Collector struct {
	mu          sync.Mutex
	prevRx      uint64
	prevTx      uint64
	prevTime    time.Time
	initialized bool

	prevBattery     float64
	prevBatteryTime time.Time
	batteryPrimed   bool
	drainPerHour    float64
}

// NewCollector creates a ready-to-use Collector. Call Collect once at
// startup to prime the bandwidth and battery deltas before the first tick.
func NewCollector() *Collector {
	return &Collector{}
}

// Collect gathers the current device sample. Individual probes fail soft:
// a missing sensor contributes its zero value rather than an error, so one
// unavailable source never stalls the evaluation loop.
func (c *Collector) Collect() (*Sample, error) {
	now := time.Now()
	s := &Sample{Timestamp: now, BatteryLevel: 100}

	// CPU: interval 0 compares against the previous call, so this never
	// blocks the tick.
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		s.CPUPercent = pcts[0]
	}

	// Network counters + delta-based rates, aggregated over all interfaces.
	if stats, err := psnet.IOCounters(false); err == nil && len(stats) > 0 {
		s.CumulativeUploadBytes = stats[0].BytesSent
		s.CumulativeDownloadBytes = stats[0].BytesRecv
		up, down := c.bandwidth(now, stats[0].BytesSent, stats[0].BytesRecv)
		s.UploadBps = up
		s.DownloadBps = down
	}

	// Battery level + drain rate.
	if level, ok := batteryLevel(); ok {
		s.BatteryLevel = level
		s.BatteryDrainPerHour = c.batteryDrain(now, level)
	}

	s.Thermal = thermalState()
	return s, nil
}

// bandwidth computes bytes/s since the last call from counter deltas.
func (c *Collector) bandwidth(now time.Time, curTx, curRx uint64) (upBps, downBps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		dt := now.Sub(c.prevTime).Seconds()
		if dt > 0 && curTx >= c.prevTx && curRx >= c.prevRx {
			// Counters that went backwards (reboot, interface reset)
			// contribute zero for this cycle.
			upBps = float64(curTx-c.prevTx) / dt
			downBps = float64(curRx-c.prevRx) / dt
		}
	}

	c.prevTx = curTx
	c.prevRx = curRx
	c.prevTime = now
	c.initialized = true
	return upBps, downBps
}

// batteryDrain derives percent-per-hour from level deltas. Capacity
// reporting is quantised to whole percent, so the instantaneous value is
// smoothed lightly to avoid a sawtooth.
func (c *Collector) batteryDrain(now time.Time, level float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.batteryPrimed {
		c.prevBattery = level
		c.prevBatteryTime = now
		c.batteryPrimed = true
		return 0
	}

	dtHours := now.Sub(c.prevBatteryTime).Hours()
	if dtHours > 0 {
		inst := (c.prevBattery - level) / dtHours
		c.drainPerHour = 0.3*inst + 0.7*c.drainPerHour
	}
	c.prevBattery = level
	c.prevBatteryTime = now
	return c.drainPerHour
}

// batteryLevel reads the charge percentage from the OS.
// Linux: /sys/class/power_supply/*/capacity. Other platforms: unavailable.
func batteryLevel() (float64, bool) {
	if runtime.GOOS != "linux" {
		return 0, false
	}
	supplies, err := filepath.Glob("/sys/class/power_supply/*")
	if err != nil {
		return 0, false
	}
	for _, dir := range supplies {
		typ, err := os.ReadFile(filepath.Join(dir, "type"))
		if err != nil || strings.TrimSpace(string(typ)) != "Battery" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, "capacity"))
		if err != nil {
			continue
		}
		level, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			continue
		}
		return level, true
	}
	return 0, false
}

// thermalState maps the hottest reported sensor temperature to the ordinal
// thermal level. Devices with no readable sensors report nominal.
func thermalState() engine.ThermalLevel {
	temps, err := sensors.SensorsTemperatures()
	if err != nil || len(temps) == 0 {
		return engine.ThermalNominal
	}
	var hottest float64
	for _, t := range temps {
		if t.Temperature > hottest {
			hottest = t.Temperature
		}
	}
	switch {
	case hottest >= thermalCriticalAt:
		return engine.ThermalCritical
	case hottest >= thermalSeriousAt:
		return engine.ThermalSerious
	case hottest >= thermalFairAt:
		return engine.ThermalFair
	default:
		return engine.ThermalNominal
	}
}
