// Package sink defines output backends for editwatch events: every
// recorded snapshot and every change to the candidate artifact.
package sink

import (
	"context"

	"github.com/hazyhaar/storyedit/editwatch/record"
)

// SnapshotEvent reports a snapshot appended to (or refreshed in) a log.
type SnapshotEvent struct {
	Origin    record.Origin   `json:"origin"`
	Refreshed bool            `json:"refreshed"`
	Snapshot  record.Snapshot `json:"snapshot"`
}

// CandidateEvent reports the result of a candidate generation. Candidate
// is nil when the artifact was cleared.
type CandidateEvent struct {
	Outcome   string            `json:"outcome"`
	Candidate *record.Candidate `json:"candidate,omitempty"`
}

// Sink is the output interface. Implementations deliver events to
// different backends (stdout, in-process callback).
type Sink interface {
	SendSnapshot(ctx context.Context, ev SnapshotEvent) error
	SendCandidate(ctx context.Context, ev CandidateEvent) error
	Close() error
}
