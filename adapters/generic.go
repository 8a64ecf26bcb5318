package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"Folium/engine"
	"Folium/errors"
)

// Default selectors for configuration-driven sources. A SourceConfig only
// has to name what deviates from these.
const (
	defaultTitleSelector       = "h1"
	defaultAuthorSelector      = ".author"
	defaultDescriptionSelector = ".description"
	defaultCoverSelector       = ".cover img"
	defaultStatusSelector      = ".status"
	defaultTagsSelector        = ".tags a"
	defaultChapterListSelector = ".chapter-list"
	defaultChapterLinkSelector = "a"
	defaultContentSelector     = ".chapter-content"
)

// defaultUnwantedText erases the credit lines translation groups append
// to chapters.
var defaultUnwantedText = []string{
	`Please\s+read\s+at\s+.*`,
	`Translator:.*`,
	`Editor:.*`,
	`Proofreader:.*`,
}

// statusSynonyms maps the words sites use for publication state onto the
// canonical values, checked in order. Per-source tables in
// SourceConfig.StatusMap win over these.
var statusSynonyms = []struct {
	word   string
	status string
}{
	{"on-going", engine.StatusOngoing},
	{"ongoing", engine.StatusOngoing},
	{"updating", engine.StatusOngoing},
	{"publishing", engine.StatusOngoing},
	{"en curso", engine.StatusOngoing},
	{"activa", engine.StatusOngoing},
	{"completed", engine.StatusCompleted},
	{"complete", engine.StatusCompleted},
	{"finished", engine.StatusCompleted},
	{"completado", engine.StatusCompleted},
	{"finalizada", engine.StatusCompleted},
}

// Generic scrapes any site describable by a SourceConfig. Plain selector
// sites and scroll-to-bottom readers need configuration, not code.
type Generic struct {
	eng *engine.Engine
	cfg *engine.SourceConfig
}

// NewGeneric builds a configuration-driven adapter.
func NewGeneric(e *engine.Engine, cfg *engine.SourceConfig) *Generic {
	return &Generic{eng: e, cfg: cfg}
}

func (g *Generic) ID() string {
	return strings.ToLower(g.cfg.Name)
}

func (g *Generic) Name() string {
	return g.cfg.Name
}

func (g *Generic) Description() string {
	return fmt.Sprintf("Configured scraper for %s", g.cfg.BaseURL)
}

func (g *Generic) SiteURL() string {
	return g.cfg.BaseURL
}

func (g *Generic) Kind() engine.WorkKind {
	if g.cfg.Kind == engine.KindComic {
		return engine.KindComic
	}
	return engine.KindText
}

// Info scrapes the work's landing page with the configured selectors.
// Fields whose selectors match nothing stay empty; only a page with no
// title at all is treated as unreadable.
func (g *Generic) Info(ctx context.Context, workURL string) (*engine.WorkMetadata, error) {
	doc, err := g.fetchDocument(ctx, workURL, false)
	if err != nil {
		return nil, err
	}

	meta := &engine.WorkMetadata{
		Kind:       g.Kind(),
		SourceName: g.ID(),
		SourceURL:  workURL,
		Language:   g.cfg.Language,
	}
	meta.Title = selectText(doc, g.cfg.Selector("title", defaultTitleSelector))
	meta.Author = selectText(doc, g.cfg.Selector("author", defaultAuthorSelector))
	meta.Description = selectText(doc, g.cfg.Selector("description", defaultDescriptionSelector))
	if src, ok := doc.Find(g.cfg.Selector("cover_image", defaultCoverSelector)).First().Attr("src"); ok {
		meta.CoverURL = resolveURL(workURL, src)
	}
	meta.Status = g.mapStatus(selectText(doc, g.cfg.Selector("status", defaultStatusSelector)))
	doc.Find(g.cfg.Selector("tags", defaultTagsSelector)).Each(func(_ int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.Text()); tag != "" {
			meta.Tags = append(meta.Tags, tag)
		}
	})

	if meta.Title == "" {
		err := errors.New(errors.KindSelectorMissing, "no title found at %s", workURL)
		err.Source = g.ID()
		err.URL = workURL
		return nil, err
	}
	return meta, nil
}

// Discover lists the chapters on the work page. With Recursive set and a
// next_link pattern configured it follows the pagination chain through
// the crawl engine instead.
func (g *Generic) Discover(ctx context.Context, workURL string, opts engine.DiscoverOptions) ([]engine.ChapterDescriptor, error) {
	if opts.Recursive && g.cfg.Patterns.NextLink != "" {
		seen := 0
		step := func(ctx context.Context, pageURL string) ([]engine.ChapterDescriptor, string, error) {
			pageHTML, err := g.fetchHTML(ctx, pageURL, true)
			if err != nil {
				return nil, "", err
			}
			doc, err := parseDocument(pageHTML)
			if err != nil {
				return nil, "", err
			}
			found := g.parseChapterList(doc, pageURL, seen)
			seen += len(found)
			return found, g.nextPage(pageHTML), nil
		}
		return truncateChapters(g.eng.Crawler.Run(ctx, workURL, opts.Max, step), opts.Max), nil
	}

	doc, err := g.fetchDocument(ctx, workURL, true)
	if err != nil {
		return nil, err
	}
	return truncateChapters(g.parseChapterList(doc, workURL, 0), opts.Max), nil
}

// Materialize fetches one chapter body, store-first, and reduces it to
// clean text.
func (g *Generic) Materialize(ctx context.Context, work engine.WorkRef, ch engine.ChapterRef) (*engine.ContentEnvelope, error) {
	return materializeText(ctx, g.eng, work, ch, func(ctx context.Context) (string, error) {
		doc, err := g.fetchDocument(ctx, ch.URL, false)
		if err != nil {
			return "", err
		}

		sel := g.cfg.Selector("chapter_content", defaultContentSelector)
		content := doc.Find(sel).First()
		if content.Length() == 0 {
			cerr := errors.New(errors.KindSelectorMissing, "content selector %q matched nothing at %s", sel, ch.URL)
			cerr.Source = g.ID()
			cerr.URL = ch.URL
			return "", cerr
		}

		fragment, err := goquery.OuterHtml(content)
		if err != nil {
			return "", errors.Wrap(errors.KindSelectorMissing, err, "could not serialize content at %s", ch.URL)
		}

		patterns := append(append([]string{}, defaultUnwantedText...), g.cfg.Patterns.UnwantedText...)
		return g.eng.Cleaner.Clean(fragment, g.cfg.UnwantedElements, patterns), nil
	})
}

// parseChapterList extracts descriptors from a chapter index document.
// startPos seeds positional numbering so paginated lists keep counting.
func (g *Generic) parseChapterList(doc *goquery.Document, pageURL string, startPos int) []engine.ChapterDescriptor {
	container := doc.Find(g.cfg.Selector("chapter_list", defaultChapterListSelector)).First()
	if container.Length() == 0 {
		g.eng.Logger.Warn("[%s] Chapter list selector matched nothing at %s", g.ID(), pageURL)
		return nil
	}

	var chapters []engine.ChapterDescriptor
	container.Find(g.cfg.Selector("chapter_link", defaultChapterLinkSelector)).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		title := strings.TrimSpace(s.Text())
		chapterURL := resolveURL(pageURL, href)
		number := g.eng.Parser.ChapterNumber(g.cfg.Patterns.ChapterNumber, title, chapterURL, startPos+len(chapters))

		chapters = append(chapters, engine.ChapterDescriptor{
			Number: number,
			Title:  title,
			URL:    chapterURL,
			Kind:   g.Kind(),
		})
	})
	return chapters
}

// nextPage applies the configured next_link pattern to the raw page,
// honoring the sentinel pattern that marks the end of a chain.
func (g *Generic) nextPage(pageHTML string) string {
	if g.cfg.Patterns.Sentinel != "" {
		if re := g.eng.Parser.Compile(g.cfg.Patterns.Sentinel); re != nil && re.MatchString(pageHTML) {
			return ""
		}
	}
	re := g.eng.Parser.Compile(g.cfg.Patterns.NextLink)
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(pageHTML)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// fetchHTML retrieves a page in the configured mode. Discovery pages run
// the reveal gesture first when one is configured; a missing reveal
// control is logged and skipped, not fatal.
func (g *Generic) fetchHTML(ctx context.Context, pageURL string, discovery bool) (string, error) {
	gesture := g.cfg.RevealAll
	if g.cfg.UseRendered && discovery && gesture != nil {
		var pageHTML string
		err := g.eng.Render.WithPage(ctx, pageURL, g.cfg.Timeout(0), func(p *engine.RenderedPage) error {
			pause := time.Duration(gesture.WaitAfterClick * float64(time.Second))
			if cerr := p.Click(gesture.Selector, pause); cerr != nil {
				g.eng.Logger.Debug("[%s] Reveal control unavailable at %s: %v", g.ID(), pageURL, cerr)
			}
			if gesture.ScrollAfterClick {
				if serr := p.ScrollToBottom(0); serr != nil {
					g.eng.Logger.Debug("[%s] Scroll at %s: %v", g.ID(), pageURL, serr)
				}
			}
			var herr error
			pageHTML, herr = p.HTML()
			return herr
		})
		return pageHTML, err
	}
	return g.eng.FetchPage(ctx, pageURL, engine.FetchOptionsFor(g.cfg))
}

func (g *Generic) fetchDocument(ctx context.Context, pageURL string, discovery bool) (*goquery.Document, error) {
	pageHTML, err := g.fetchHTML(ctx, pageURL, discovery)
	if err != nil {
		return nil, err
	}
	return parseDocument(pageHTML)
}

// mapStatus canonicalizes scraped status text, trying the per-source
// table first, then the shared synonyms, exact then substring.
func (g *Generic) mapStatus(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return engine.StatusUnknown
	}
	if mapped, ok := g.cfg.StatusMap[text]; ok {
		return mapped
	}
	for _, syn := range statusSynonyms {
		if text == syn.word || strings.Contains(text, syn.word) {
			return syn.status
		}
	}
	return engine.StatusUnknown
}

func parseDocument(pageHTML string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, errors.Wrap(errors.KindFetchNetwork, err, "unreadable page")
	}
	return doc, nil
}

func selectText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}
