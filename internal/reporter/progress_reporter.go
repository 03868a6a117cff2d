package reporter

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	logging "github.com/ipfs/go-log/v2"

	"zknet/pkg/types"
)

var log = logging.Logger("progress")

const defaultInterval = 5 * time.Second

// ProgressReporter writes transfer progress to the log, at most once per
// interval plus once when the transfer completes.
type ProgressReporter struct {
	name     string
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastLog  time.Time
	complete bool
}

// NewProgressReporter creates a reporter for the transfer of name. A zero
// interval uses the default.
func NewProgressReporter(name string, interval time.Duration) *ProgressReporter {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &ProgressReporter{
		name:     name,
		interval: interval,
		now:      time.Now,
	}
}

func (pr *ProgressReporter) OnProgress(ev types.ProgressEvent) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if pr.complete {
		return
	}

	done := ev.Total > 0 && ev.Transferred >= ev.Total
	now := pr.now()
	if !done && !pr.lastLog.IsZero() && now.Sub(pr.lastLog) < pr.interval {
		return
	}
	pr.lastLog = now

	if done {
		pr.complete = true
		log.Infow("transfer complete", "name", pr.name,
			"size", humanize.IBytes(ev.Transferred),
			"rate", humanize.IBytes(uint64(ev.Rate))+"/s")
		return
	}

	if pct := ev.Percentage(); pct >= 0 {
		log.Infow("transfer progress", "name", pr.name, "percent", int(pct),
			"done", humanize.IBytes(ev.Transferred), "total", humanize.IBytes(ev.Total),
			"rate", humanize.IBytes(uint64(ev.Rate))+"/s")
		return
	}
	log.Infow("transfer progress", "name", pr.name,
		"done", humanize.IBytes(ev.Transferred),
		"rate", humanize.IBytes(uint64(ev.Rate))+"/s")
}

// Logged reports whether an event for the completed transfer was written
func (pr *ProgressReporter) Logged() bool {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.complete
}
