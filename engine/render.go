package engine

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"Folium/errors"
)

const (
	// defaultRenderTimeout bounds navigation and settling when the source
	// config does not say otherwise.
	defaultRenderTimeout = 30 * time.Second

	// settleCushion gives late JavaScript a beat after network idle before
	// anyone reads the DOM.
	settleCushion = 250 * time.Millisecond

	// selectorWait bounds how long interaction primitives wait for their
	// target element to appear.
	selectorWait = 10 * time.Second
)

// RenderService drives a headless browser for sources whose chapter lists
// or content only exist after JavaScript runs. One browser is launched
// lazily on first use and lives until Close.
type RenderService struct {
	Logger *LoggerService

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// RenderedPage is a settled tab plus the interaction primitives adapters
// need. It is only valid inside the WithPage callback.
type RenderedPage struct {
	page *rod.Page
	log  *LoggerService
}

func (r *RenderService) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errors.New(errors.KindFetchRender, "render service is closed")
	}
	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled")

	u, err := l.Launch()
	if err != nil {
		return nil, errors.Wrap(errors.KindFetchRender, err, "failed to launch browser")
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, errors.Wrap(errors.KindFetchRender, err, "failed to connect to browser")
	}

	r.browser = b
	r.lnch = l
	if r.Logger != nil {
		r.Logger.Debug("Launched headless browser at %s", u)
	}
	return b, nil
}

// Close shuts the browser down. Safe to call when it never launched.
func (r *RenderService) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.browser != nil {
		if err := r.browser.Close(); err != nil && r.Logger != nil {
			r.Logger.Debug("Browser close: %v", err)
		}
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
}

// WithPage opens a stealth tab, navigates, waits for the page to settle and
// hands it to fn. Navigation and settling are bounded by timeout; fn runs
// under the caller's context. The tab always closes before WithPage returns.
func (r *RenderService) WithPage(ctx context.Context, pageURL string, timeout time.Duration, fn func(*RenderedPage) error) error {
	b, err := r.ensureBrowser()
	if err != nil {
		return err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return errors.Wrap(errors.KindFetchRender, err, "failed to open tab")
	}
	defer func() {
		if cerr := page.Close(); cerr != nil && r.Logger != nil {
			r.Logger.Debug("Tab close: %v", cerr)
		}
	}()

	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	nav := page.Context(navCtx)
	if err := nav.Navigate(pageURL); err != nil {
		return renderError(err, pageURL, "navigation failed")
	}
	if err := nav.WaitLoad(); err != nil {
		return renderError(err, pageURL, "page never finished loading")
	}

	// Let XHR-driven sites finish fetching before anyone reads the DOM.
	wait := nav.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
	wait()
	time.Sleep(settleCushion)

	return fn(&RenderedPage{page: page.Context(ctx), log: r.Logger})
}

// FetchRendered returns the serialized DOM of a page after scripts settle.
func (r *RenderService) FetchRendered(ctx context.Context, pageURL string, timeout time.Duration) (string, error) {
	var html string
	err := r.WithPage(ctx, pageURL, timeout, func(p *RenderedPage) error {
		var herr error
		html, herr = p.HTML()
		return herr
	})
	return html, err
}

// HTML serializes the current DOM as outer HTML.
func (p *RenderedPage) HTML() (string, error) {
	res, err := p.page.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", errors.Wrap(errors.KindFetchRender, err, "failed to serialize DOM")
	}
	return res.Value.Str(), nil
}

// Eval runs a script in the page and returns its JSON result.
func (p *RenderedPage) Eval(js string) (string, error) {
	res, err := p.page.Eval(js)
	if err != nil {
		return "", errors.Wrap(errors.KindFetchRender, err, "script failed")
	}
	return res.Value.JSON("", ""), nil
}

// Click waits for the selector, clicks it, then pauses so the page can
// react. A reveal button that never appears is a missing selector, not a
// transport failure.
func (p *RenderedPage) Click(selector string, delay time.Duration) error {
	el, err := p.page.Timeout(selectorWait).Element(selector)
	if err != nil {
		return errors.Wrap(errors.KindSelectorMissing, err, "element %q not found", selector)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return errors.Wrap(errors.KindFetchRender, err, "failed to click %q", selector)
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return nil
}

// ClickMatching clicks the first element matching the selector whose text
// matches the pattern (a JS regex, so "Contenido" matches as a substring).
// Unlike Click it does not wait: controls that are going to exist are
// already in the DOM once the page settles.
func (p *RenderedPage) ClickMatching(selector, pattern string, delay time.Duration) error {
	has, el, err := p.page.HasR(selector, pattern)
	if err != nil {
		return errors.Wrap(errors.KindFetchRender, err, "failed to query %q", selector)
	}
	if !has {
		return errors.New(errors.KindSelectorMissing, "no %q element with text %q", selector, pattern)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return errors.Wrap(errors.KindFetchRender, err, "failed to click %q", selector)
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return nil
}

// ClickEach clicks every element currently matching the selector, pausing
// between clicks. Individual click failures are skipped; the count of
// successful clicks is returned.
func (p *RenderedPage) ClickEach(selector string, delay time.Duration) (int, error) {
	els, err := p.page.Elements(selector)
	if err != nil {
		return 0, errors.Wrap(errors.KindFetchRender, err, "failed to query %q", selector)
	}

	clicked := 0
	for i, el := range els {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			if p.log != nil {
				p.log.Debug("Click on %q match %d: %v", selector, i, err)
			}
			continue
		}
		clicked++
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	return clicked, nil
}

// ScrollToBottom scrolls repeatedly until the document height stops
// growing, which is how lazy image grids are forced to load everything.
func (p *RenderedPage) ScrollToBottom(idle time.Duration) error {
	if idle <= 0 {
		idle = time.Second
	}
	last := -1
	for {
		res, err := p.page.Eval(`() => {
			window.scrollTo(0, document.body.scrollHeight);
			return document.body.scrollHeight;
		}`)
		if err != nil {
			return errors.Wrap(errors.KindFetchRender, err, "scroll failed")
		}
		height := res.Value.Int()
		if height == last {
			return nil
		}
		last = height
		time.Sleep(idle)
	}
}

func renderError(err error, pageURL, msg string) *errors.Error {
	e := errors.Wrap(errors.KindFetchRender, err, "%s", msg)
	e.URL = pageURL
	return e
}
