package engine

// Baseline maintains a learned estimate of "normal" idle activity for this
// device: upload rate, download rate and CPU usage. It distinguishes
// elevated-but-ordinary background chatter (cloud sync, push connections)
// from genuinely anomalous sustained activity.
//
// Cold start uses a simple running mean so the estimate is not dominated by
// an unstable EMA seeded from zero. Once warm, an exponential moving average
// lets the baseline drift with long-term usage patterns without being pulled
// far by any single spike.
//
// Baseline values survive for the life of the monitoring session only;
// a process restart clears them. That is an accepted limitation.
type Baseline struct {
	UploadBps   float64
	DownloadBps float64
	CPUPercent  float64
	Samples     int

	warmup int
	alpha  float64
}

// NewBaseline creates a baseline learner. warmup is the number of samples
// averaged before switching to EMA smoothing with factor alpha.
func NewBaseline(warmup int, alpha float64) *Baseline {
	if warmup < 1 {
		warmup = 1
	}
	return &Baseline{warmup: warmup, alpha: alpha}
}

// Observe folds one quiet-idle sample into the baseline. Callers must only
// invoke this while the device is in quiet idle (see IdleDetector.QuietIdle).
// Negative rates are clamped to zero.
func (b *Baseline) Observe(uploadBps, downloadBps, cpuPercent float64) {
	uploadBps = clampNonNegative(uploadBps)
	downloadBps = clampNonNegative(downloadBps)
	cpuPercent = clampNonNegative(cpuPercent)

	if b.Samples < b.warmup {
		n := float64(b.Samples)
		b.UploadBps = (b.UploadBps*n + uploadBps) / (n + 1)
		b.DownloadBps = (b.DownloadBps*n + downloadBps) / (n + 1)
		b.CPUPercent = (b.CPUPercent*n + cpuPercent) / (n + 1)
	} else {
		b.UploadBps = b.alpha*uploadBps + (1-b.alpha)*b.UploadBps
		b.DownloadBps = b.alpha*downloadBps + (1-b.alpha)*b.DownloadBps
		b.CPUPercent = b.alpha*cpuPercent + (1-b.alpha)*b.CPUPercent
	}
	b.Samples++
}

// Warm reports whether the baseline has exited the cold-start phase.
// Factors that compare against the baseline are skipped until then.
func (b *Baseline) Warm() bool {
	return b.Samples >= b.warmup
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
