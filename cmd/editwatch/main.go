// Command editwatch serves the edit capture API for a story page.
//
// Usage:
//
//	editwatch -config editwatch.yaml
//	editwatch -html story.html -addr :8090           # static page, edited over the API
//	editwatch -url http://localhost:5000/story       # live page through a browser
//	editwatch -config editwatch.yaml -events         # print snapshot/candidate events
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/storyedit/editkeeper"
	"github.com/hazyhaar/storyedit/editwatch"
	"github.com/hazyhaar/storyedit/editwatch/record"
	"github.com/hazyhaar/storyedit/shield"
)

func main() {
	configPath := flag.String("config", "", "path to editwatch.yaml config file")
	htmlPath := flag.String("html", "", "serve regions from a static HTML file")
	pageURL := flag.String("url", "", "serve regions from a live page")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	events := flag.Bool("events", false, "print snapshot and candidate events to stdout")
	traceSQL := flag.Bool("trace-sql", false, "log and time every story database statement")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath, *htmlPath, *pageURL, *addr)
	if err != nil {
		logger.Error("editwatch: config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, *events, *traceSQL); err != nil {
		logger.Error("editwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path, htmlPath, pageURL, addr string) (*editwatch.Config, error) {
	cfg := editwatch.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = editwatch.LoadConfigFile(path); err != nil {
			return nil, err
		}
	}
	if htmlPath != "" {
		cfg.Document.File, cfg.Document.URL = htmlPath, ""
	}
	if pageURL != "" {
		cfg.Document.URL, cfg.Document.File = pageURL, ""
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if cfg.Document.File == "" && cfg.Document.URL == "" {
		return nil, errors.New("no document: set document.file or document.url (or -html / -url)")
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, logger *slog.Logger, cfg *editwatch.Config, events, traceSQL bool) error {
	store, err := editwatch.OpenStore(cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	var (
		doc    editwatch.Document
		page   *editwatch.Page
		static *editwatch.HTMLDocument
	)
	if cfg.Document.URL != "" {
		page, err = editwatch.OpenPage(ctx, editwatch.PageConfig{
			URL:       cfg.Document.URL,
			RemoteURL: cfg.Document.Remote,
			Stealth:   cfg.Document.Stealth,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("open page: %w", err)
		}
		defer page.Close()
		doc = page
	} else {
		d, err := editwatch.OpenHTMLFile(cfg.Document.File)
		if err != nil {
			return fmt.Errorf("open html: %w", err)
		}
		doc, static = d, d
	}

	var opts []editwatch.Option
	opts = append(opts, editwatch.WithLogger(logger))
	if events {
		opts = append(opts, editwatch.WithSinks(editwatch.NewStdoutSink(nil)))
	}
	w, err := editwatch.New(ctx, cfg, doc, store, opts...)
	if err != nil {
		return err
	}
	defer w.Close()

	if page != nil {
		if err := w.AttachPage(ctx, page); err != nil {
			return fmt.Errorf("attach page: %w", err)
		}
	}

	var keeper *editkeeper.Keeper
	if cfg.StoryDB != "" {
		kopts := []editkeeper.Option{editkeeper.WithLogger(logger)}
		if traceSQL {
			kopts = append(kopts, editkeeper.WithSQLTrace())
		}
		keeper, err = editkeeper.Open(cfg.StoryDB, kopts...)
		if err != nil {
			return err
		}
		defer keeper.Close()
	}

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "editwatch", Version: "1.0.0"}, nil)
	w.RegisterMCP(mcpSrv)

	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack(logger) {
		r.Use(mw)
	}
	r.Get("/health", func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, http.StatusOK, map[string]any{"status": "ok", "regions": w.Regions()})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))
	r.Mount("/api", w.Routes())
	r.Post("/api/submit", submitHandler(w, keeper))
	if static != nil {
		r.Put("/document", documentHandler(w, static))
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("editwatch: server starting", "addr", cfg.HTTP.Addr, "store", cfg.Store.Backend, "story_db", cfg.StoryDB != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("editwatch: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// submitHandler stands in for the story server's request endpoint: it
// builds the outgoing payload, applies its candidate to the story database
// and acknowledges the candidate once the write committed.
func submitHandler(w *editwatch.Watcher, keeper *editkeeper.Keeper) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var action map[string]any
		if err := json.NewDecoder(r.Body).Decode(&action); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		payload := w.BuildPayload(r.Context(), action)

		c, ok := payload["candidate"].(*record.Candidate)
		if !ok || keeper == nil {
			writeJSON(rw, http.StatusOK, map[string]any{"payload": payload})
			return
		}
		res, err := keeper.Apply(r.Context(), c)
		if err != nil {
			writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if err := w.AcknowledgeCandidate(r.Context()); err != nil {
			shield.GetLogger(r.Context()).Warn("editwatch: acknowledge candidate", "error", err)
		}
		writeJSON(rw, http.StatusOK, map[string]any{"payload": payload, "applied": res})
	}
}

// markupPolicy filters region writes: paragraph structure and the
// paragraph identity attributes survive, scripts and handlers do not.
var markupPolicy = newMarkupPolicy()

func newMarkupPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("data-paragraph-id", "data-story-id").OnElements("p")
	return p
}

type regionWrite struct {
	Selector string `json:"selector"`
	Markup   string `json:"markup"`
	// Origin is "server" for a render, "user" for an in-place edit.
	Origin string `json:"origin"`
}

// documentHandler writes into a static document, standing in for the
// render layer (origin=server) or the user typing (origin=user).
func documentHandler(w *editwatch.Watcher, doc *editwatch.HTMLDocument) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var req regionWrite
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := doc.SetInnerHTML(req.Selector, markupPolicy.Sanitize(req.Markup)); err != nil {
			writeJSON(rw, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		switch record.Origin(req.Origin) {
		case record.OriginServer:
			w.NotifyServerUpdate(r.Context(), req.Selector)
		default:
			w.HandleEdit(r.Context(), editwatch.Edit{Kind: editwatch.EditInput, Selector: req.Selector})
		}
		writeJSON(rw, http.StatusOK, map[string]any{"pending": w.CapturePending()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
