package reporter

import (
	"testing"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/stretchr/testify/require"

	"zknet/pkg/types"
)

func TestProgressReporterThrottles(t *testing.T) {
	now := time.Unix(0, 0)
	pr := NewProgressReporter("walletshield", time.Second)
	pr.now = func() time.Time { return now }

	pr.OnProgress(types.ProgressEvent{Chunk: 10, Transferred: 10, Total: 100, Rate: 10})
	first := pr.lastLog

	now = now.Add(500 * time.Millisecond)
	pr.OnProgress(types.ProgressEvent{Chunk: 10, Transferred: 20, Total: 100, Rate: 10})
	require.Equal(t, first, pr.lastLog)

	now = now.Add(time.Second)
	pr.OnProgress(types.ProgressEvent{Chunk: 10, Transferred: 30, Total: 100, Rate: 10})
	require.Equal(t, now, pr.lastLog)
	require.False(t, pr.Logged())

	// completion is always reported, even inside the interval
	now = now.Add(time.Millisecond)
	pr.OnProgress(types.ProgressEvent{Chunk: 70, Transferred: 100, Total: 100, Rate: 10})
	require.True(t, pr.Logged())
	require.Equal(t, now, pr.lastLog)

	now = now.Add(time.Hour)
	pr.OnProgress(types.ProgressEvent{Chunk: 1, Transferred: 101, Total: 100, Rate: 10})
	require.NotEqual(t, now, pr.lastLog)
}

func TestProgressReporterUnknownTotal(t *testing.T) {
	require.NoError(t, logging.SetLogLevel("progress", "error"))
	pr := NewProgressReporter("stream", 0)
	require.Equal(t, defaultInterval, pr.interval)

	pr.OnProgress(types.ProgressEvent{Chunk: 5, Transferred: 5, Rate: 1})
	require.False(t, pr.Logged())
}
