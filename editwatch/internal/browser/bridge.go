package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod/lib/proto"
)

//go:embed bridge.js
var bridgeJS string

const bindingName = "__editwatch_binding"

// Signal is one event forwarded by the page script.
type Signal struct {
	// Kind is input, paste, composition, blur, save, mutation or server.
	Kind     string   `json:"kind"`
	Selector string   `json:"selector,omitempty"`
	Targets  []string `json:"targets,omitempty"`
}

// Sink receives page signals. Calls arrive on the bridge goroutine, one at
// a time.
type Sink interface {
	Signal(ctx context.Context, s Signal)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, s Signal)

func (f SinkFunc) Signal(ctx context.Context, s Signal) { f(ctx, s) }

// Bridge installs the edit listener script in a page and forwards what it
// reports to a Sink.
type Bridge struct {
	page      *Page
	selectors []string
	sink      Sink
	logger    *slog.Logger
}

// NewBridge creates a Bridge for the monitored selectors of page.
func NewBridge(page *Page, selectors []string, sink Sink, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{page: page, selectors: selectors, sink: sink, logger: logger}
}

// Start installs the binding and the script, then forwards signals until
// ctx is done.
func (b *Bridge) Start(ctx context.Context) error {
	rp := b.page.page
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(rp); err != nil {
		b.logger.Warn("browser: addBinding failed (may already exist)", "error", err)
	}

	go rp.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		s, err := DecodeSignal(e.Payload)
		if err != nil {
			b.logger.Warn("browser: parse binding payload", "error", err)
			return
		}
		b.sink.Signal(ctx, s)
	})()

	if _, err := rp.Context(ctx).Eval(bridgeJS, b.selectors); err != nil {
		return fmt.Errorf("browser: inject bridge: %w", err)
	}
	b.logger.Debug("browser: bridge installed", "selectors", b.selectors)
	return nil
}

// DecodeSignal parses one binding payload.
func DecodeSignal(payload string) (Signal, error) {
	var s Signal
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return Signal{}, err
	}
	switch s.Kind {
	case "input", "paste", "composition", "blur", "save":
		if s.Selector == "" {
			return Signal{}, fmt.Errorf("browser: %s signal without selector", s.Kind)
		}
	case "mutation", "server":
	default:
		return Signal{}, fmt.Errorf("browser: unknown signal kind %q", s.Kind)
	}
	return s, nil
}
