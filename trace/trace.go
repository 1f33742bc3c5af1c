// Package trace provides SQL statement tracing for modernc.org/sqlite.
//
// It registers a "sqlite-trace" driver that wraps the standard "sqlite"
// driver and observes every Exec and Query. Open a database through it
// with dbopen.WithDriver(trace.DriverName):
//
//	db, err := dbopen.Open("data/story.db", dbopen.WithDriver(trace.DriverName))
//
// Each statement is logged via slog (Debug, Warn above SlowThreshold,
// Error on failure) with the request ID from kit.GetRequestID, and timed
// into the storyedit_sql_duration_seconds histogram. PRAGMA statements are
// only reported when slow or failing.
package trace

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	sqlite "modernc.org/sqlite"
)

// DriverName is the database/sql driver name registered by this package.
const DriverName = "sqlite-trace"

// SlowThreshold is the duration above which a statement logs at Warn.
const SlowThreshold = 100 * time.Millisecond

// Entry is a single traced statement.
type Entry struct {
	RequestID string
	Op        string // "Exec" or "Query"
	Query     string
	Duration  time.Duration
	Err       error
}

// Recorder receives every traced statement. It runs on the caller's
// goroutine and must not block.
type Recorder func(e Entry)

var (
	recorder   Recorder
	recorderMu sync.RWMutex

	sqlDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storyedit_sql_duration_seconds",
		Help:    "SQL statement duration through the tracing driver",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"op", "status"})
)

// SetRecorder installs r; nil removes it.
func SetRecorder(r Recorder) {
	recorderMu.Lock()
	recorder = r
	recorderMu.Unlock()
}

func getRecorder() Recorder {
	recorderMu.RLock()
	defer recorderMu.RUnlock()
	return recorder
}

func init() {
	sql.Register(DriverName, &TracingDriver{
		Driver: &sqlite.Driver{},
	})
}
