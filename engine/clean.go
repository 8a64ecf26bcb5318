package engine

import (
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// builtinUnwanted erases boilerplate that reader sites append to chapter
// bodies. Dot-all on purpose: these fragments sit at the tail of a chapter
// and everything after them is noise too.
var builtinUnwanted = []*regexp.Regexp{
	regexp.MustCompile(`(?is)Enhance your reading experience by removing ads.*`),
	regexp.MustCompile(`(?is)This material may be protected by copyright.*`),
	regexp.MustCompile(`(?is)Excerpt From.*`),
	regexp.MustCompile(`(?is)Remove Ads From.*`),
}

var blankRuns = regexp.MustCompile(`\n\s*\n`)

// CleanerService turns scraped chapter markup into readable plain text.
type CleanerService struct {
	Logger *LoggerService

	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

func NewCleanerService(logger *LoggerService) *CleanerService {
	return &CleanerService{
		Logger:   logger,
		compiled: make(map[string]*regexp.Regexp),
	}
}

// Clean strips a chapter fragment down to its prose: script, style,
// iframe and noscript subtrees go first, then any configured unwanted
// selectors; the remaining text blocks are joined by blank lines; finally
// the built-in boilerplate patterns and the source's unwanted_text
// patterns erase credit lines and copyright tails.
func (c *CleanerService) Clean(fragment string, unwantedSelectors, unwantedPatterns []string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return c.applyPatterns(fragment, unwantedPatterns)
	}

	doc.Find("script, style, iframe, noscript").Remove()
	for _, sel := range unwantedSelectors {
		doc.Find(sel).Remove()
	}

	var blocks []string
	for _, root := range doc.Nodes {
		collectText(root, &blocks)
	}
	return c.applyPatterns(strings.Join(blocks, "\n\n"), unwantedPatterns)
}

func (c *CleanerService) applyPatterns(text string, extra []string) string {
	for _, re := range builtinUnwanted {
		text = re.ReplaceAllString(text, "")
	}
	for _, pattern := range extra {
		if re := c.compile(pattern); re != nil {
			text = re.ReplaceAllString(text, "")
		}
	}
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// compile caches configured patterns, matching them case-insensitively
// and across lines like the builtins. Broken patterns are logged once and
// skipped.
func (c *CleanerService) compile(pattern string) *regexp.Regexp {
	c.mu.Lock()
	defer c.mu.Unlock()

	if re, ok := c.compiled[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(`(?is)` + pattern)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn("Ignoring invalid unwanted_text pattern %q: %v", pattern, err)
		}
		re = nil
	}
	c.compiled[pattern] = re
	return re
}

// collectText gathers trimmed text nodes in document order.
func collectText(n *html.Node, blocks *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*blocks = append(*blocks, t)
		}
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, blocks)
	}
}
