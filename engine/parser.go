package engine

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// defaultNumberPattern matches the common "Chapter 12" / "Chapter 12.5"
// title shape. Sources with other conventions configure their own pattern.
const defaultNumberPattern = `Chapter\s+(\d+(?:\.\d+)?)`

// trailingDigits captures the last digit run in a URL, fractional part
// included, ignoring any non-digit tail.
var trailingDigits = regexp.MustCompile(`(\d+(?:\.\d+)?)\D*$`)

// ParserService extracts chapter numbers from titles and URLs. Compiled
// patterns are cached because the same per-source pattern runs against
// every discovered chapter.
type ParserService struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

func NewParserService() *ParserService {
	return &ParserService{patterns: make(map[string]*regexp.Regexp)}
}

// Compile returns the cached compiled form of pattern. Invalid patterns
// compile to nil, which callers treat as a non-match.
func (p *ParserService) Compile(pattern string) *regexp.Regexp {
	p.mu.Lock()
	defer p.mu.Unlock()

	if re, ok := p.patterns[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	p.patterns[pattern] = re
	return re
}

// NumberFromTitle extracts a chapter number from a title using the given
// pattern, or the default pattern when empty. The pattern's first capture
// group must hold the number.
func (p *ParserService) NumberFromTitle(pattern, title string) (float64, bool) {
	if title == "" {
		return 0, false
	}
	if pattern == "" {
		pattern = defaultNumberPattern
	}
	re := p.Compile(pattern)
	if re == nil {
		return 0, false
	}
	m := re.FindStringSubmatch(title)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NumberFromURL extracts the trailing digit run of a URL, the usual shape
// of /capitulo-123 or /chapter/45.5 style paths.
func (p *ParserService) NumberFromURL(rawURL string) (float64, bool) {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	m := trailingDigits.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ChapterNumber runs the extraction ladder: title pattern first, then the
// URL's trailing digits, then the positional fallback. Extraction always
// degrades instead of failing so one odd title never drops a chapter.
func (p *ParserService) ChapterNumber(pattern, title, rawURL string, position int) float64 {
	if n, ok := p.NumberFromTitle(pattern, title); ok {
		return n
	}
	if n, ok := p.NumberFromURL(rawURL); ok {
		return n
	}
	return float64(position + 1)
}
