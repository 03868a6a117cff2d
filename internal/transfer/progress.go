package transfer

import (
	"time"

	"zknet/pkg/types"
)

// minElapsed floors the elapsed time used for rate computation so the first
// chunk never divides by zero.
const minElapsed = time.Microsecond

// ProgressObserver is notified synchronously after every chunk. A slow
// observer delays the next read of the transfer it observes.
type ProgressObserver interface {
	OnProgress(event types.ProgressEvent)
}

// ProgressFunc adapts a plain function to ProgressObserver
type ProgressFunc func(event types.ProgressEvent)

func (f ProgressFunc) OnProgress(event types.ProgressEvent) { f(event) }

type nopObserver struct{}

func (nopObserver) OnProgress(types.ProgressEvent) {}

// Nop discards every progress event
var Nop ProgressObserver = nopObserver{}

// Multi fans every event out to each non-nil observer, in order
func Multi(observers ...ProgressObserver) ProgressObserver {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multiObserver []ProgressObserver

func (m multiObserver) OnProgress(event types.ProgressEvent) {
	for _, o := range m {
		o.OnProgress(event)
	}
}

// meter accumulates transferred bytes for one transfer call
type meter struct {
	start    time.Time
	total    uint64
	done     uint64
	observer ProgressObserver
}

func newMeter(total uint64, observer ProgressObserver) *meter {
	if observer == nil {
		observer = Nop
	}
	return &meter{
		start:    time.Now(),
		total:    total,
		observer: observer,
	}
}

func (m *meter) add(n int) {
	m.done += uint64(n)

	elapsed := time.Since(m.start)
	if elapsed < minElapsed {
		elapsed = minElapsed
	}

	m.observer.OnProgress(types.ProgressEvent{
		Chunk:       uint64(n),
		Transferred: m.done,
		Total:       m.total,
		Rate:        float64(m.done) / elapsed.Seconds(),
	})
}
