package engine

import (
	"context"

	"Folium/errors"
)

const (
	defaultCrawlLimit = 50
	maxCrawlLimit     = 200
)

// CrawlStep fetches one page of a chapter chain and returns the chapters
// found there plus the link to the following page, empty when the chain
// ends.
type CrawlStep func(ctx context.Context, pageURL string) ([]ChapterDescriptor, string, error)

// CrawlService walks paginated chapter chains: fetch a page, emit its
// chapters, follow the next link. Cycles and page budgets bound the walk,
// and a failing step returns whatever earlier steps produced instead of
// discarding it.
type CrawlService struct {
	Logger *LoggerService
}

// DiscoverLimit normalizes a discovery budget: zero picks the default of
// 50 chapters, anything beyond the hard cap clamps to 200.
func DiscoverLimit(max int) int {
	if max <= 0 {
		return defaultCrawlLimit
	}
	if max > maxCrawlLimit {
		return maxCrawlLimit
	}
	return max
}

// Run follows the chain from start until it ends, repeats itself, fails,
// or max chapters have been discovered. max of 0 selects the default of
// 50; values beyond 200 are capped.
func (c *CrawlService) Run(ctx context.Context, start string, max int, step CrawlStep) []ChapterDescriptor {
	max = DiscoverLimit(max)

	visited := map[string]bool{start: true}
	var chapters []ChapterDescriptor

	pageURL := start
	for {
		if ctx.Err() != nil {
			if c.Logger != nil {
				c.Logger.Debug("Crawl interrupted at %s", pageURL)
			}
			break
		}

		found, next, err := step(ctx, pageURL)
		if err != nil {
			if c.Logger != nil {
				c.Logger.Warn("Crawl stopped at %s with %d chapters: %v", pageURL, len(chapters), err)
			}
			break
		}
		chapters = append(chapters, found...)

		if len(chapters) >= max {
			if len(chapters) > max {
				chapters = chapters[:max]
			}
			if next != "" && c.Logger != nil {
				c.Logger.Info("%v", errors.New(errors.KindCrawlLimit, "stopping discovery after %d chapters", max))
			}
			break
		}
		if next == "" {
			break
		}
		if visited[next] {
			if c.Logger != nil {
				c.Logger.Debug("%v", errors.New(errors.KindCrawlCycle, "next link %s already visited", next))
			}
			break
		}

		visited[next] = true
		pageURL = next
	}

	return chapters
}
