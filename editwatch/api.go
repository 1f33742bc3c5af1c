package editwatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/storyedit/editwatch/record"
	"github.com/hazyhaar/storyedit/kit"
)

// errBadRequest marks decode failures so they map to 400.
var errBadRequest = errors.New("bad request")

// Routes returns the HTTP surface of the watcher. Mount it under a prefix,
// e.g. r.Mount("/api", w.Routes()).
//
//	POST   /notify               {"selectors": [...]}
//	POST   /edits                {"kind": "input", "selector": "#story-history"}
//	POST   /keys                 {"key": "s", "ctrl": true, "focused": "#story-history"}
//	POST   /mutations            {"targets": [...]}
//	POST   /capture              {"meta": {...}}
//	POST   /redo                 {"selector": "#story-history"}
//	GET    /snapshots/{origin}
//	DELETE /snapshots/{origin}
//	GET    /candidate
//	POST   /candidate/generate
//	DELETE /candidate
//	POST   /payload              {"action": {...}}
func (w *Watcher) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/notify", w.handle("notify", w.notifyEndpoint(), decodeBody[notifyRequest]))
	r.Post("/edits", w.handle("edit", w.editEndpoint(), decodeEdit))
	r.Post("/keys", w.handle("key", w.keyEndpoint(), decodeBody[KeyPress]))
	r.Post("/mutations", w.handle("mutation", w.mutationEndpoint(), decodeBody[mutationRequest]))
	r.Post("/capture", w.handle("capture", w.captureEndpoint(), decodeOptionalBody[captureRequest]))
	r.Post("/redo", w.handle("redo", w.redoEndpoint(), decodeBody[redoRequest]))

	r.Get("/snapshots/{origin}", w.handle("snapshots", w.snapshotsEndpoint(), decodeOrigin))
	r.Delete("/snapshots/{origin}", w.handle("clear_snapshots", w.clearSnapshotsEndpoint(), decodeOrigin))

	r.Get("/candidate", w.handle("candidate", w.candidateEndpoint(), decodeNothing))
	r.Post("/candidate/generate", w.handle("generate", w.generateEndpoint(), decodeNothing))
	r.Delete("/candidate", w.handle("acknowledge", w.acknowledgeEndpoint(), decodeNothing))

	r.Post("/payload", w.handle("payload", w.payloadEndpoint(), decodeOptionalBody[payloadRequest]))
	return r
}

// handle adapts an endpoint to HTTP: decode, log, encode.
func (w *Watcher) handle(op string, ep kit.Endpoint, decode func(*http.Request) (any, error)) http.HandlerFunc {
	ep = kit.Chain(kit.Logging(w.logger, "editwatch."+op), instrument(op))(ep)
	return func(rw http.ResponseWriter, r *http.Request) {
		req, err := decode(r)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err)
			return
		}
		resp, err := ep(kit.WithTransport(r.Context(), "http"), req)
		if err != nil {
			writeError(rw, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(rw, http.StatusOK, resp)
	}
}

func decodeBody[T any](r *http.Request) (any, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return &v, nil
}

// decodeOptionalBody accepts an empty body as the zero request.
func decodeOptionalBody[T any](r *http.Request) (any, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return &v, nil
}

func decodeEdit(r *http.Request) (any, error) {
	v, err := decodeBody[Edit](r)
	if err != nil {
		return nil, err
	}
	switch e := v.(*Edit); e.Kind {
	case EditInput, EditPaste, EditComposition, EditBlur:
		return e, nil
	default:
		return nil, fmt.Errorf("%w: unknown edit kind %q", errBadRequest, e.Kind)
	}
}

func decodeOrigin(r *http.Request) (any, error) {
	o := record.Origin(chi.URLParam(r, "origin"))
	if err := validOrigin(o); err != nil {
		return nil, err
	}
	return &originRequest{Origin: o}, nil
}

func decodeNothing(*http.Request) (any, error) { return nil, nil }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
