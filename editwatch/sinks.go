package editwatch

import (
	"context"
	"io"

	"github.com/hazyhaar/storyedit/editwatch/internal/sink"
)

// Sink is the output interface for editwatch events.
type Sink = sink.Sink

// SnapshotEvent reports a recorded snapshot.
type SnapshotEvent = sink.SnapshotEvent

// CandidateEvent reports a candidate generation.
type CandidateEvent = sink.CandidateEvent

// NewStdoutSink creates a JSON-lines sink writing to w (os.Stdout if nil).
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewCallbackSink creates an in-process callback sink. Either handler may
// be nil.
func NewCallbackSink(
	onSnapshot func(ctx context.Context, ev SnapshotEvent) error,
	onCandidate func(ctx context.Context, ev CandidateEvent) error,
) Sink {
	return sink.NewCallback(onSnapshot, onCandidate)
}
