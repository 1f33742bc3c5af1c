package sink

import "context"

// SnapshotFunc is called for each snapshot event.
type SnapshotFunc func(ctx context.Context, ev SnapshotEvent) error

// CandidateFunc is called for each candidate event.
type CandidateFunc func(ctx context.Context, ev CandidateEvent) error

// Callback delivers events as in-process function calls.
type Callback struct {
	onSnapshot  SnapshotFunc
	onCandidate CandidateFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onSnapshot SnapshotFunc, onCandidate CandidateFunc) *Callback {
	return &Callback{onSnapshot: onSnapshot, onCandidate: onCandidate}
}

func (c *Callback) SendSnapshot(ctx context.Context, ev SnapshotEvent) error {
	if c.onSnapshot != nil {
		return c.onSnapshot(ctx, ev)
	}
	return nil
}

func (c *Callback) SendCandidate(ctx context.Context, ev CandidateEvent) error {
	if c.onCandidate != nil {
		return c.onCandidate(ctx, ev)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
