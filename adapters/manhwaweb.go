package adapters

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"Folium/engine"
	"Folium/errors"
)

// Selectors for manhwaweb.com. The site is a Tailwind SPA, so the class
// soup below is genuinely the most stable handle it offers.
const (
	manhwawebTitleSelector   = `h2.text-left.md\:text-3xl.xs\:text-2xl.mb-1.text-xl.font-normal`
	manhwawebCoverSelector   = `img.h-full.object-cover.aspect-lezhin`
	manhwawebItemSelector    = `div.grid.grid-cols-1.md\:border.border-y div.flex.p-2.gap-2.border-t`
	manhwawebItemTitle       = `div.sm\:text-lg.xs\:text-base.text-sm`
	manhwawebItemLink        = `a.text-gray-500`
	manhwawebViewAllSelector = `button.ver_todo`
	manhwawebNumberPattern   = `Capitulo\s+(\d+)`
)

// unwantedImagePatterns marks reader images that are not part of the
// comic: ad frames and the lazy-load placeholder.
var unwantedImagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bads?\b`),
	regexp.MustCompile(`(?i)banner`),
	regexp.MustCompile(`(?i)doubleclick`),
	regexp.MustCompile(`(?i)loading\.gif`),
}

// Manhwaweb serves image comics from manhwaweb.com. Everything on the
// site is rendered client-side, so all fetches go through the browser.
type Manhwaweb struct {
	eng *engine.Engine
}

func NewManhwaweb(e *engine.Engine) *Manhwaweb {
	return &Manhwaweb{eng: e}
}

func (m *Manhwaweb) ID() string          { return "manhwaweb" }
func (m *Manhwaweb) Name() string        { return "ManhwaWeb" }
func (m *Manhwaweb) Description() string { return "Spanish-language comics from manhwaweb.com" }
func (m *Manhwaweb) SiteURL() string     { return "https://manhwaweb.com" }
func (m *Manhwaweb) Kind() engine.WorkKind {
	return engine.KindComic
}

// Info pulls the little metadata the site exposes: a title and a cover.
func (m *Manhwaweb) Info(ctx context.Context, workURL string) (*engine.WorkMetadata, error) {
	var pageHTML string
	err := m.eng.Render.WithPage(ctx, workURL, 0, func(p *engine.RenderedPage) error {
		var herr error
		pageHTML, herr = p.HTML()
		return herr
	})
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(pageHTML)
	if err != nil {
		return nil, err
	}

	meta := &engine.WorkMetadata{
		Kind:       engine.KindComic,
		SourceName: m.ID(),
		SourceURL:  workURL,
		Language:   "es",
		Status:     engine.StatusUnknown,
	}
	meta.Title = selectText(doc, manhwawebTitleSelector)
	if src, ok := doc.Find(manhwawebCoverSelector).First().Attr("src"); ok {
		meta.CoverURL = resolveURL(workURL, src)
	}
	if meta.Title == "" {
		err := errors.New(errors.KindSelectorMissing, "no title found at %s", workURL)
		err.Source = m.ID()
		err.URL = workURL
		return nil, err
	}
	return meta, nil
}

// Discover expands the chapter grid ("Ver Todo" plus a scroll for the
// lazy rows) and reads every row that carries both a label and a link.
func (m *Manhwaweb) Discover(ctx context.Context, workURL string, opts engine.DiscoverOptions) ([]engine.ChapterDescriptor, error) {
	var pageHTML string
	err := m.eng.Render.WithPage(ctx, workURL, 0, func(p *engine.RenderedPage) error {
		if cerr := p.Click(manhwawebViewAllSelector, time.Second); cerr != nil {
			m.eng.Logger.Debug("[manhwaweb] View-all control unavailable at %s: %v", workURL, cerr)
		}
		if serr := p.ScrollToBottom(0); serr != nil {
			m.eng.Logger.Debug("[manhwaweb] Scroll at %s: %v", workURL, serr)
		}
		var herr error
		pageHTML, herr = p.HTML()
		return herr
	})
	if err != nil {
		return nil, err
	}

	doc, err := parseDocument(pageHTML)
	if err != nil {
		return nil, err
	}

	var chapters []engine.ChapterDescriptor
	doc.Find(manhwawebItemSelector).Each(func(_ int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find(manhwawebItemTitle).First().Text())
		if title == "" {
			return
		}
		href, ok := item.Find(manhwawebItemLink).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		number, ok := m.eng.Parser.NumberFromTitle(manhwawebNumberPattern, title)
		if !ok {
			number = float64(len(chapters) + 1)
		}
		chapters = append(chapters, engine.ChapterDescriptor{
			Number: number,
			Title:  title,
			URL:    resolveURL(workURL, href),
			Kind:   engine.KindComic,
		})
	})

	return truncateChapters(chapters, opts.Max), nil
}

// Materialize collects the chapter's image grid into a manifest,
// store-first; fresh manifests get their images mirrored to disk.
func (m *Manhwaweb) Materialize(ctx context.Context, work engine.WorkRef, ch engine.ChapterRef) (*engine.ContentEnvelope, error) {
	return materializeComic(ctx, m.eng, work, ch, func(ctx context.Context) (*engine.ComicManifest, error) {
		var pageHTML string
		err := m.eng.Render.WithPage(ctx, ch.URL, 0, func(p *engine.RenderedPage) error {
			if serr := p.ScrollToBottom(0); serr != nil {
				m.eng.Logger.Debug("[manhwaweb] Scroll at %s: %v", ch.URL, serr)
			}
			var herr error
			pageHTML, herr = p.HTML()
			return herr
		})
		if err != nil {
			return nil, err
		}

		images := collectComicImages(pageHTML, ch.URL)
		if len(images) == 0 {
			ierr := errors.New(errors.KindSelectorMissing, "no readable images at %s", ch.URL)
			ierr.Source = m.ID()
			ierr.URL = ch.URL
			return nil, ierr
		}
		return &engine.ComicManifest{
			Title:  ch.Title,
			Number: ch.Number,
			Images: images,
			Total:  len(images),
		}, nil
	})
}

// collectComicImages walks the rendered reader page and keeps the images
// that are actually part of the comic, in DOM order. Ad frames, tracking
// pixels and lazy-load placeholders are dropped, and ordinals restart at
// 1 over the survivors.
func collectComicImages(pageHTML, baseURL string) []engine.ComicImage {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil
	}

	sel := doc.Find("main img")
	if sel.Length() == 0 {
		sel = doc.Find("img")
	}

	var images []engine.ComicImage
	sel.Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			return
		}
		resolved := resolveURL(baseURL, src)
		if !strings.HasPrefix(resolved, "http") {
			return
		}
		for _, re := range unwantedImagePatterns {
			if re.MatchString(resolved) {
				return
			}
		}
		width, height := attrInt(s, "width"), attrInt(s, "height")
		if (width > 0 && width <= 1) || (height > 0 && height <= 1) {
			return
		}

		images = append(images, engine.ComicImage{
			URL:    resolved,
			Alt:    strings.TrimSpace(s.AttrOr("alt", "")),
			Width:  width,
			Height: height,
			Index:  len(images) + 1,
		})
	})
	return images
}

func attrInt(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}
