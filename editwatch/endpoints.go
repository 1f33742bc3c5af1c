package editwatch

import (
	"context"
	"fmt"

	"github.com/hazyhaar/storyedit/editwatch/record"
	"github.com/hazyhaar/storyedit/kit"
)

// Requests and responses shared by the HTTP and MCP surfaces.

type notifyRequest struct {
	Selectors []string `json:"selectors"`
}

type mutationRequest struct {
	Targets []string `json:"targets"`
}

type captureRequest struct {
	Meta map[string]string `json:"meta,omitempty"`
}

type originRequest struct {
	Origin record.Origin `json:"origin"`
}

type redoRequest struct {
	Selector string `json:"selector"`
}

type payloadRequest struct {
	Action map[string]any `json:"action"`
}

type pendingResponse struct {
	Pending bool `json:"pending"`
}

type keyResponse struct {
	Handled bool `json:"handled"`
}

type captureResponse struct {
	Snapshot  *record.Snapshot  `json:"snapshot"`
	Candidate *record.Candidate `json:"candidate"`
}

type snapshotsResponse struct {
	Origin    record.Origin     `json:"origin"`
	Snapshots []record.Snapshot `json:"snapshots"`
}

type candidateResponse struct {
	Candidate *record.Candidate `json:"candidate"`
}

type redoResponse struct {
	Removed   bool              `json:"removed"`
	Candidate *record.Candidate `json:"candidate"`
}

func (w *Watcher) notifyEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		r := req.(*notifyRequest)
		w.NotifyServerUpdate(ctx, r.Selectors...)
		return w.latest(record.OriginServer, nil), nil
	}
}

func (w *Watcher) editEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		e := req.(*Edit)
		if !w.reader.Monitored(e.Selector) {
			return nil, fmt.Errorf("editwatch: %q is not a monitored region", e.Selector)
		}
		w.HandleEdit(ctx, *e)
		return pendingResponse{Pending: w.CapturePending()}, nil
	}
}

func (w *Watcher) keyEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		return keyResponse{Handled: w.HandleKey(ctx, *req.(*KeyPress))}, nil
	}
}

func (w *Watcher) mutationEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		w.HandleMutation(ctx, req.(*mutationRequest).Targets...)
		return pendingResponse{Pending: w.CapturePending()}, nil
	}
}

func (w *Watcher) captureEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		w.ForceUserCapture(ctx, req.(*captureRequest).Meta)
		c, err := w.PendingCandidate(ctx)
		if err != nil {
			return nil, err
		}
		return w.latest(record.OriginUser, c), nil
	}
}

func (w *Watcher) snapshotsEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		o := req.(*originRequest).Origin
		snaps, err := w.Snapshots(o)
		if err != nil {
			return nil, err
		}
		return snapshotsResponse{Origin: o, Snapshots: snaps}, nil
	}
}

func (w *Watcher) clearSnapshotsEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		o := req.(*originRequest).Origin
		if err := w.ClearSnapshots(ctx, o); err != nil {
			return nil, err
		}
		return snapshotsResponse{Origin: o, Snapshots: []record.Snapshot{}}, nil
	}
}

func (w *Watcher) candidateEndpoint() kit.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		c, err := w.PendingCandidate(ctx)
		if err != nil {
			return nil, err
		}
		return candidateResponse{Candidate: c}, nil
	}
}

func (w *Watcher) generateEndpoint() kit.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		c := w.Generate(ctx)
		if c.Empty() {
			c = nil
		}
		return candidateResponse{Candidate: c}, nil
	}
}

func (w *Watcher) acknowledgeEndpoint() kit.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		if err := w.AcknowledgeCandidate(ctx); err != nil {
			return nil, err
		}
		return candidateResponse{}, nil
	}
}

func (w *Watcher) payloadEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		return w.BuildPayload(ctx, req.(*payloadRequest).Action), nil
	}
}

func (w *Watcher) redoEndpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		sel := req.(*redoRequest).Selector
		if !w.reader.Monitored(sel) {
			return nil, fmt.Errorf("editwatch: %q is not a monitored region", sel)
		}
		removed, err := w.RemoveLastParagraph(ctx, sel)
		if err != nil {
			return nil, err
		}
		c, err := w.PendingCandidate(ctx)
		if err != nil {
			return nil, err
		}
		return redoResponse{Removed: removed, Candidate: c}, nil
	}
}

// latest pairs the newest snapshot of origin with c.
func (w *Watcher) latest(o record.Origin, c *record.Candidate) captureResponse {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, _ := w.logFor(o)
	resp := captureResponse{Candidate: c}
	if snap, ok := l.Latest(); ok {
		resp.Snapshot = &snap
	}
	return resp
}

func validOrigin(o record.Origin) error {
	if !o.Valid() {
		return fmt.Errorf("editwatch: unknown origin %q (want server or user)", o)
	}
	return nil
}
