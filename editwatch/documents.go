package editwatch

import (
	"context"

	"github.com/hazyhaar/storyedit/editwatch/internal/browser"
	"github.com/hazyhaar/storyedit/editwatch/internal/htmldoc"
)

// HTMLDocument is an Editable parsed from static HTML. The render layer
// writes server content into it with SetInnerHTML.
type HTMLDocument = htmldoc.Document

// ParseHTML parses a full HTML page.
func ParseHTML(s string) (*HTMLDocument, error) {
	return htmldoc.ParseString(s)
}

// OpenHTMLFile parses the HTML page at path.
func OpenHTMLFile(path string) (*HTMLDocument, error) {
	return htmldoc.Open(path)
}

// PageConfig configures a live browser page.
type PageConfig = browser.Config

// Page is an Editable backed by a live browser tab.
type Page = browser.Page

// OpenPage launches (or connects to) a browser and loads cfg.URL.
func OpenPage(ctx context.Context, cfg PageConfig) (*Page, error) {
	return browser.Open(ctx, cfg)
}

// AttachPage installs the edit listener script in p and routes the
// signals it reports to the watcher until ctx is done.
func (w *Watcher) AttachPage(ctx context.Context, p *Page) error {
	b := browser.NewBridge(p, w.Regions(), browser.SinkFunc(w.dispatchSignal), w.logger)
	return b.Start(ctx)
}

// dispatchSignal maps a page signal onto the matching handler.
func (w *Watcher) dispatchSignal(ctx context.Context, s browser.Signal) {
	switch s.Kind {
	case "input", "paste", "composition", "blur":
		w.HandleEdit(ctx, Edit{Kind: EditKind(s.Kind), Selector: s.Selector})
	case "save":
		// The page already prevented the browser's save dialog.
		w.HandleKey(ctx, KeyPress{Key: "s", Ctrl: true, Focused: s.Selector})
	case "mutation":
		w.HandleMutation(ctx, s.Targets...)
	case "server":
		w.NotifyServerUpdate(ctx, s.Targets...)
	default:
		w.logger.Debug("editwatch: unknown page signal", "kind", s.Kind)
	}
}
