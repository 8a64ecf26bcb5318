package adapters

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"Folium/engine"
	"Folium/errors"
)

// Selectors for skynovels.net, an Angular site. The skn- classes are the
// site's own and survive redesigns better than the framework markup.
const (
	skynovelsTitleSelector   = "h1.skn-novel-presentation-info-title"
	skynovelsCoverSelector   = "div.skn-novel-presentation-image img"
	skynovelsDescriptionMeta = `meta[name="description"]`
	skynovelsTagsSelector    = "div.skn-nvl-card-genres span.skn-secondary"
	skynovelsAuthorSelector  = "div.skn-text"
	skynovelsStatusSelector  = "div.skn-secondary h4"
	skynovelsLinkSelector    = "a.unstyled-a-tag.w-100.skn-link"
	skynovelsLinkTitle       = "div.skn-nvl-chp-element-title"
	skynovelsLinkIndex       = "div.skn-nvl-chp-element-chp-number-index"
	skynovelsPanelHeaders    = "mat-expansion-panel-header, div.accordion-header button, h2.accordion-header button"
	skynovelsContentSelector = "div.skn-chp-chapter-content"
)

var (
	skynovelsNumberInTitle = regexp.MustCompile(`(?i)Capitulo\s+(\d+)`)
	skynovelsNumberInURL   = regexp.MustCompile(`/capitulo[/-](\d+)`)
	anyNumber              = regexp.MustCompile(`(\d+)`)
)

// skynovelsUnwantedText erases the site's promo lines and the inline ad
// script fragments that survive tag stripping.
var skynovelsUnwantedText = []*regexp.Regexp{
	regexp.MustCompile(`(?is)Please support the translation team.*`),
	regexp.MustCompile(`(?is)Join our Discord for updates.*`),
	regexp.MustCompile(`(?is)Please read this chapter on our website.*`),
	regexp.MustCompile(`(?is)Visita skynovels\.net para.*`),
	regexp.MustCompile(`(?is)Si quieres leer más, visita.*`),
	regexp.MustCompile(`(?is)Todos los derechos reservados.*`),
	regexp.MustCompile(`(?is)Esta historia es propiedad de.*`),
	regexp.MustCompile(`(?is)\(?function\s*\(\s*w\s*,\s*q\s*\)\s*\{\s*w\s*\[\s*q\s*\]\s*=.*`),
	regexp.MustCompile(`(?i)_mgwidget`),
	regexp.MustCompile(`(?i)_mgq`),
	regexp.MustCompile(`(?i)_mgc\.load`),
}

// skynovelsPolicy keeps basic formatting, image sources and link targets;
// every other tag and attribute is stripped.
var skynovelsPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "div", "span", "strong", "em", "b", "i", "u", "s",
		"br", "hr", "h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "ul", "ol", "li")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("href").OnElements("a")
	return p
}()

// Skynovels serves Spanish novels from skynovels.net. Chapter lists hide
// behind expandable volume panels and bodies arrive as rich-text blocks,
// so everything runs through the browser.
type Skynovels struct {
	eng *engine.Engine
}

func NewSkynovels(e *engine.Engine) *Skynovels {
	return &Skynovels{eng: e}
}

func (s *Skynovels) ID() string          { return "skynovels" }
func (s *Skynovels) Name() string        { return "SkyNovels" }
func (s *Skynovels) Description() string { return "Spanish-language novels from skynovels.net" }
func (s *Skynovels) SiteURL() string     { return "https://skynovels.net" }
func (s *Skynovels) Kind() engine.WorkKind {
	return engine.KindText
}

// Info scrapes the presentation card of a novel.
func (s *Skynovels) Info(ctx context.Context, workURL string) (*engine.WorkMetadata, error) {
	pageHTML, err := s.eng.Render.FetchRendered(ctx, workURL, 0)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(pageHTML)
	if err != nil {
		return nil, err
	}

	meta := &engine.WorkMetadata{
		Kind:       engine.KindText,
		SourceName: s.ID(),
		SourceURL:  workURL,
		Language:   "es",
	}
	meta.Title = selectText(doc, skynovelsTitleSelector)
	if src, ok := doc.Find(skynovelsCoverSelector).First().Attr("src"); ok {
		meta.CoverURL = resolveURL(workURL, src)
	}
	if desc, ok := doc.Find(skynovelsDescriptionMeta).First().Attr("content"); ok {
		meta.Description = strings.TrimSpace(desc)
	}
	doc.Find(skynovelsTagsSelector).Each(func(_ int, t *goquery.Selection) {
		if tag := strings.TrimSpace(t.Text()); tag != "" {
			meta.Tags = append(meta.Tags, tag)
		}
	})
	doc.Find(skynovelsAuthorSelector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if !strings.Contains(el.Text(), "Autor:") {
			return true
		}
		meta.Author = strings.TrimSpace(el.Find("strong").First().Text())
		return false
	})
	meta.Status = engine.StatusUnknown
	if status := strings.ToLower(selectText(doc, skynovelsStatusSelector)); status != "" {
		if strings.Contains(status, "finalizada") {
			meta.Status = engine.StatusCompleted
		} else {
			meta.Status = engine.StatusOngoing
		}
	}

	if meta.Title == "" {
		err := errors.New(errors.KindSelectorMissing, "no title found at %s", workURL)
		err.Source = s.ID()
		err.URL = workURL
		return nil, err
	}
	return meta, nil
}

// Discover opens the "Contenido" tab, expands every volume panel, and
// reads the chapter links. Optional controls that are not on the page are
// logged and skipped.
func (s *Skynovels) Discover(ctx context.Context, workURL string, opts engine.DiscoverOptions) ([]engine.ChapterDescriptor, error) {
	var pageHTML string
	err := s.eng.Render.WithPage(ctx, workURL, 0, func(p *engine.RenderedPage) error {
		if cerr := p.ClickMatching("a.nav-link", "Contenido", 2*time.Second); cerr != nil {
			s.eng.Logger.Debug("[skynovels] Content tab unavailable at %s: %v", workURL, cerr)
		}
		if cerr := p.ClickMatching("button, a", "Volumenes", 2*time.Second); cerr != nil {
			s.eng.Logger.Debug("[skynovels] Volume control unavailable at %s: %v", workURL, cerr)
		}
		if expanded, cerr := p.ClickEach(skynovelsPanelHeaders, 500*time.Millisecond); cerr != nil {
			s.eng.Logger.Debug("[skynovels] Panel expansion at %s: %v", workURL, cerr)
		} else if expanded > 0 {
			s.eng.Logger.Debug("[skynovels] Expanded %d volume panels", expanded)
		}
		if serr := p.ScrollToBottom(0); serr != nil {
			s.eng.Logger.Debug("[skynovels] Scroll at %s: %v", workURL, serr)
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
	doc.Find(skynovelsLinkSelector).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		title := strings.TrimSpace(link.Find(skynovelsLinkTitle).First().Text())
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}

		number, ok := parseIndexElement(link.Find(skynovelsLinkIndex).First().Text())
		if !ok {
			number, ok = titleNumber(title)
		}
		if !ok {
			if m := skynovelsNumberInURL.FindStringSubmatch(href); m != nil {
				number, _ = strconv.ParseFloat(m[1], 64)
				ok = true
			}
		}
		if !ok {
			number = float64(len(chapters) + 1)
		}

		chapters = append(chapters, engine.ChapterDescriptor{
			Number: number,
			Title:  title,
			URL:    resolveURL(workURL, href),
			Kind:   engine.KindText,
		})
	})

	return truncateChapters(chapters, opts.Max), nil
}

// Materialize renders the chapter and reduces it to sanitized rich text,
// store-first.
func (s *Skynovels) Materialize(ctx context.Context, work engine.WorkRef, ch engine.ChapterRef) (*engine.ContentEnvelope, error) {
	return materializeText(ctx, s.eng, work, ch, func(ctx context.Context) (string, error) {
		pageHTML, err := s.eng.Render.FetchRendered(ctx, ch.URL, 0)
		if err != nil {
			return "", err
		}
		return s.chapterContent(pageHTML, ch.URL)
	})
}

// chapterContent concatenates the rich-text blocks inside the chapter
// container, falling back to the whole container when the site serves the
// body unwrapped, and cleans the result.
func (s *Skynovels) chapterContent(pageHTML, pageURL string) (string, error) {
	doc, err := parseDocument(pageHTML)
	if err != nil {
		return "", err
	}

	container := doc.Find(skynovelsContentSelector).First()
	if container.Length() == 0 {
		cerr := errors.New(errors.KindSelectorMissing, "chapter container missing at %s", pageURL)
		cerr.Source = s.ID()
		cerr.URL = pageURL
		return "", cerr
	}

	var buf strings.Builder
	blocks := container.Find("markdown")
	if blocks.Length() > 0 {
		blocks.Each(func(_ int, b *goquery.Selection) {
			if inner, herr := b.Html(); herr == nil {
				buf.WriteString(inner)
			}
		})
	} else {
		inner, herr := container.Html()
		if herr != nil {
			return "", errors.Wrap(errors.KindSelectorMissing, herr, "could not serialize chapter at %s", pageURL)
		}
		buf.WriteString(inner)
	}

	return cleanChapterHTML(buf.String()), nil
}

// cleanChapterHTML strips scripts, ad-widget tags (miad-*), surplus
// attributes and emptied elements from a chapter fragment, then erases
// the promo and inline-script text patterns.
func cleanChapterHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	doc.Find("script, style").Remove()
	doc.Find("*").Each(func(_ int, el *goquery.Selection) {
		if strings.HasPrefix(goquery.NodeName(el), "miad-") {
			el.Remove()
		}
	})

	inner, err := doc.Find("body").Html()
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	sanitized := skynovelsPolicy.Sanitize(inner)

	if clean, err := goquery.NewDocumentFromReader(strings.NewReader(sanitized)); err == nil {
		clean.Find("*").Each(func(_ int, el *goquery.Selection) {
			switch goquery.NodeName(el) {
			case "html", "head", "body", "img", "br", "hr":
				return
			}
			if strings.TrimSpace(el.Text()) == "" && el.Find("img, br, hr").Length() == 0 {
				el.Remove()
			}
		})
		if body, err := clean.Find("body").Html(); err == nil {
			sanitized = body
		}
	}

	for _, re := range skynovelsUnwantedText {
		sanitized = re.ReplaceAllString(sanitized, "")
	}
	return strings.TrimSpace(sanitized)
}

// parseIndexElement reads the numeric index badge next to a chapter link.
func parseIndexElement(text string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// titleNumber extracts a chapter number from a title, by the site's
// "Capitulo N" convention first and any digit run second.
func titleNumber(title string) (float64, bool) {
	for _, re := range []*regexp.Regexp{skynovelsNumberInTitle, anyNumber} {
		if m := re.FindStringSubmatch(title); m != nil {
			if n, err := strconv.ParseFloat(m[1], 64); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
