package adapters

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"Folium/engine"
	"Folium/utils"
)

// maxRawSize bounds how much of a paste is kept; anything beyond it is
// assumed to be garbage or abuse.
const maxRawSize = 500_000

var (
	// digitLine matches a line that is nothing but a chapter number.
	digitLine = regexp.MustCompile(`^\d+$`)

	// pastebinNextLink finds the trailing "Capítulo N: <paste>" line that
	// chains to the next chapter.
	pastebinNextLink = regexp.MustCompile(`(?i)Capítulo\s+\d+:\s+(https?://pastebin\.com/\w+)\s*$`)

	// pastebinSentinel is the trailing date line marking the end of the
	// published chain.
	pastebinSentinel = regexp.MustCompile(`Capítulo\s+\d+:\s+\d{2}/\d{2}/\d{4}\s*$`)
)

// Pastebin serves novels published as chains of raw pastes: each paste
// holds one chapter and links the next one on its final line.
type Pastebin struct {
	eng *engine.Engine
}

func NewPastebin(e *engine.Engine) *Pastebin {
	return &Pastebin{eng: e}
}

func (p *Pastebin) ID() string          { return "pastebin" }
func (p *Pastebin) Name() string        { return "Pastebin" }
func (p *Pastebin) Description() string { return "Chapter chains published as raw pastes" }
func (p *Pastebin) SiteURL() string     { return "https://pastebin.com" }
func (p *Pastebin) Kind() engine.WorkKind {
	return engine.KindText
}

// Info reads the first paste of the chain; a paste has no real landing
// page, so the chapter header doubles as the work's identity.
func (p *Pastebin) Info(ctx context.Context, workURL string) (*engine.WorkMetadata, error) {
	content, err := p.fetchRaw(ctx, workURL)
	if err != nil {
		return nil, err
	}

	desc, _ := parseRawPage(p.eng.Parser, content, workURL, 0)
	status := engine.StatusUnknown
	if pastebinSentinel.MatchString(content) {
		status = engine.StatusCompleted
	}
	return &engine.WorkMetadata{
		Title:      desc.Title,
		Kind:       engine.KindText,
		SourceName: p.ID(),
		SourceURL:  workURL,
		Language:   "es",
		Status:     status,
	}, nil
}

// Discover walks the paste chain through the crawl engine, one chapter
// per page, until the chain ends or the budget is spent.
func (p *Pastebin) Discover(ctx context.Context, workURL string, opts engine.DiscoverOptions) ([]engine.ChapterDescriptor, error) {
	seen := 0
	step := func(ctx context.Context, pageURL string) ([]engine.ChapterDescriptor, string, error) {
		content, err := p.fetchRaw(ctx, pageURL)
		if err != nil {
			return nil, "", err
		}
		desc, next := parseRawPage(p.eng.Parser, content, pageURL, seen)
		seen++
		if next == "" && pastebinSentinel.MatchString(content) {
			p.eng.Logger.Debug("[pastebin] Date marker at %s, end of the published chain", pageURL)
		}
		return []engine.ChapterDescriptor{desc}, next, nil
	}
	return p.eng.Crawler.Run(ctx, workURL, opts.Max, step), nil
}

// Materialize returns the paste body as-is, store-first. Pastes are
// already plain text; there is nothing to strip.
func (p *Pastebin) Materialize(ctx context.Context, work engine.WorkRef, ch engine.ChapterRef) (*engine.ContentEnvelope, error) {
	return materializeText(ctx, p.eng, work, ch, func(ctx context.Context) (string, error) {
		return p.fetchRaw(ctx, ch.URL)
	})
}

// fetchRaw retrieves a paste in raw mode (the HTTP service rewrites the
// URL) and truncates oversized bodies before anyone parses them.
func (p *Pastebin) fetchRaw(ctx context.Context, pageURL string) (string, error) {
	content, err := p.eng.HTTP.FetchString(ctx, pageURL, engine.RequestOptions{})
	if err != nil {
		return "", err
	}
	if len(content) > maxRawSize {
		p.eng.Logger.Debug("[pastebin] Truncating %d byte response from %s", len(content), pageURL)
		content = truncateRaw(content)
	}
	return content, nil
}

// truncateRaw cuts at the size limit, backing off to a rune boundary so
// multibyte characters never get torn.
func truncateRaw(content string) string {
	cut := maxRawSize
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

// parseRawPage reads the chapter header of a paste: the first numeric-only
// line is the chapter number and the next non-empty line its title. The
// URL's trailing digits and the crawl position back the header up, and the
// trailing "Capítulo N: <paste>" line links the next chapter.
func parseRawPage(parser *engine.ParserService, content, pageURL string, position int) (engine.ChapterDescriptor, string) {
	var (
		number float64
		title  string
		found  bool
	)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !digitLine.MatchString(trimmed) {
			continue
		}
		number, _ = strconv.ParseFloat(trimmed, 64)
		for _, rest := range lines[i+1:] {
			if t := strings.TrimSpace(rest); t != "" {
				title = t
				break
			}
		}
		found = true
		break
	}

	if !found {
		if n, ok := parser.NumberFromURL(pageURL); ok {
			number = n
		} else {
			number = float64(position + 1)
		}
	}
	if title == "" {
		title = "Capítulo " + utils.FormatChapterNumber(number)
	}

	next := ""
	if m := pastebinNextLink.FindStringSubmatch(content); m != nil {
		next = m[1]
	}

	return engine.ChapterDescriptor{
		Number: number,
		Title:  title,
		URL:    pageURL,
		Kind:   engine.KindText,
	}, next
}
