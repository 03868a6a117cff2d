package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"zknet/pkg/types"
)

// ProgressUI renders transfer progress events as a progress bar
type ProgressUI struct {
	mu          sync.Mutex
	w           io.Writer
	description string
	bar         *progressbar.ProgressBar
	last        types.ProgressEvent
	start       time.Time
	finished    bool
}

// NewProgressUI creates a progress display writing to w. The bar itself is
// created on the first event, once the size is known.
func NewProgressUI(w io.Writer, description string) *ProgressUI {
	return &ProgressUI{
		w:           w,
		description: description,
	}
}

func (p *ProgressUI) initBar(total uint64) {
	limit := int64(-1) // spinner when the size is unknown
	if total > 0 {
		limit = int64(total)
	}

	p.start = time.Now()
	p.bar = progressbar.NewOptions64(limit,
		progressbar.OptionSetDescription(p.description),
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
	)
}

// OnProgress updates the bar with the cumulative transferred bytes
func (p *ProgressUI) OnProgress(ev types.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		return
	}
	if p.bar == nil {
		p.initBar(ev.Total)
	}

	p.last = ev
	_ = p.bar.Set64(int64(ev.Transferred))
	p.bar.Describe(fmt.Sprintf("%s (%s/s)", p.description, humanize.IBytes(uint64(ev.Rate))))
}

// Finish completes the bar and prints a summary of the transfer
func (p *ProgressUI) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished || p.bar == nil {
		p.finished = true
		return
	}
	p.finished = true
	_ = p.bar.Finish()

	fmt.Fprintf(p.w, "\n=============================================\n")
	fmt.Fprintf(p.w, "%s completed\n", p.description)
	fmt.Fprintf(p.w, "+ Total bytes: %s\n", humanize.IBytes(p.last.Transferred))
	fmt.Fprintf(p.w, "+ Transfer time: %s\n", time.Since(p.start).Round(time.Millisecond))
	fmt.Fprintf(p.w, "+ Average throughput: %s/s\n", humanize.IBytes(uint64(p.last.Rate)))
	fmt.Fprintf(p.w, "=============================================\n")
}
