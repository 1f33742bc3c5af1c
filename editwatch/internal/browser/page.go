// Package browser serves monitored regions from a live Chrome page driven
// through Rod, and bridges the page's edit signals back into Go.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures Open.
type Config struct {
	// URL is the page to load.
	URL string
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local headless Chrome.
	RemoteURL string
	// Stealth opens the tab with go-rod/stealth evasions.
	Stealth bool
	// EvalTimeout bounds every region read or write. Default: 5s.
	EvalTimeout time.Duration
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.EvalTimeout <= 0 {
		c.EvalTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Page is a loaded Chrome tab.
type Page struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
}

// Open starts (or connects to) Chrome and loads cfg.URL.
func Open(ctx context.Context, cfg Config) (*Page, error) {
	cfg.defaults()
	if cfg.URL == "" {
		return nil, errors.New("browser: url is required")
	}
	log := cfg.Logger

	p := &Page{cfg: cfg}
	wsURL := cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		p.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL)
	} else {
		log.Info("browser: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		p.Close()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	p.browser = b

	var err error
	if cfg.Stealth {
		p.page, err = stealth.Page(b)
	} else {
		p.page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := p.page.Context(navCtx).Navigate(cfg.URL); err != nil {
		p.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", cfg.URL, err)
	}
	if err := p.page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("browser: wait load timeout", "url", cfg.URL, "error", err)
	}
	return p, nil
}

const regionJS = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return null;
	return { markup: el.innerHTML, text: el.innerText };
}`

// Region reads the inner markup and rendered text of the first element
// matching selector. Evaluation errors read as an absent region.
func (p *Page) Region(selector string) (markup, text string, ok bool) {
	res, err := p.page.Timeout(p.cfg.EvalTimeout).Eval(regionJS, selector)
	if err != nil {
		p.cfg.Logger.Warn("browser: read region", "selector", selector, "error", err)
		return "", "", false
	}
	if res.Value.Nil() {
		return "", "", false
	}
	return res.Value.Get("markup").Str(), res.Value.Get("text").Str(), true
}

const setJS = `(sel, markup) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	el.innerHTML = markup;
	return true;
}`

// SetInnerHTML replaces the content of the first element matching selector.
func (p *Page) SetInnerHTML(selector, markup string) error {
	res, err := p.page.Timeout(p.cfg.EvalTimeout).Eval(setJS, selector, markup)
	if err != nil {
		return fmt.Errorf("browser: set %s: %w", selector, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("browser: set %s: no matching element", selector)
	}
	return nil
}

const removeLastJS = `(sel, child) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	const all = el.querySelectorAll(child);
	if (!all.length) return false;
	all[all.length - 1].remove();
	return true;
}`

// RemoveLast removes the last element matching child inside the region.
func (p *Page) RemoveLast(selector, child string) (bool, error) {
	res, err := p.page.Timeout(p.cfg.EvalTimeout).Eval(removeLastJS, selector, child)
	if err != nil {
		return false, fmt.Errorf("browser: remove last %s in %s: %w", child, selector, err)
	}
	return res.Value.Bool(), nil
}

// Close closes the tab and the browser it started.
func (p *Page) Close() error {
	if p.page != nil {
		p.page.Close()
	}
	if p.browser != nil {
		p.browser.Close()
	}
	if p.lnch != nil {
		p.lnch.Cleanup()
	}
	return nil
}
