package engine

import "time"

// Totals is the cumulative traffic transferred within the trailing window,
// per direction.
type Totals struct {
	UploadBytes   float64
	DownloadBytes float64
}

type windowSample struct {
	at       time.Time
	upload   float64
	download float64
}

// RollingWindow derives trailing-window byte totals from the raw cumulative
// interface counters supplied by the metric source. Totals are monotonically
// non-decreasing within the window and shrink only by evicting samples that
// age out, never by zeroing.
type RollingWindow struct {
	span     time.Duration
	samples  []windowSample
	prevUp   uint64
	prevDown uint64
	primed   bool
}

// NewRollingWindow creates a window covering the given trailing span
// (reference: one hour).
func NewRollingWindow(span time.Duration) *RollingWindow {
	return &RollingWindow{span: span}
}

// Record ingests the current cumulative counters. The first call only primes
// the previous values; a counter that went backwards (interface reset,
// reboot) contributes zero for that tick rather than a huge negative delta.
func (w *RollingWindow) Record(now time.Time, cumUpload, cumDownload uint64) {
	if !w.primed {
		w.prevUp = cumUpload
		w.prevDown = cumDownload
		w.primed = true
		return
	}

	var up, down float64
	if cumUpload >= w.prevUp {
		up = float64(cumUpload - w.prevUp)
	}
	if cumDownload >= w.prevDown {
		down = float64(cumDownload - w.prevDown)
	}
	w.prevUp = cumUpload
	w.prevDown = cumDownload

	w.samples = append(w.samples, windowSample{at: now, upload: up, download: down})
	w.evict(now)
}

// Totals returns the per-direction byte totals over the trailing span.
func (w *RollingWindow) Totals(now time.Time) Totals {
	w.evict(now)
	var t Totals
	for _, s := range w.samples {
		t.UploadBytes += s.upload
		t.DownloadBytes += s.download
	}
	return t
}

func (w *RollingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.samples) && !w.samples[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
}
