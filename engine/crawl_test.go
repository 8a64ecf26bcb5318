package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// chainStep builds a CrawlStep over a canned page graph. Each page yields
// one chapter and points at the next page, "" ending the chain.
func chainStep(pages map[string]string, calls *[]string) CrawlStep {
	number := 0.0
	return func(_ context.Context, pageURL string) ([]ChapterDescriptor, string, error) {
		*calls = append(*calls, pageURL)
		number++
		return []ChapterDescriptor{{Number: number, URL: pageURL}}, pages[pageURL], nil
	}
}

func TestDiscoverLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 50, DiscoverLimit(0))
	assert.Equal(t, 50, DiscoverLimit(-3))
	assert.Equal(t, 1, DiscoverLimit(1))
	assert.Equal(t, 200, DiscoverLimit(200))
	assert.Equal(t, 200, DiscoverLimit(5000))
}

func TestCrawlFollowsChainToEnd(t *testing.T) {
	t.Parallel()

	var calls []string
	pages := map[string]string{"a": "b", "b": "c", "c": ""}
	c := &CrawlService{}

	got := c.Run(context.Background(), "a", 10, chainStep(pages, &calls))

	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.Len(t, got, 3)
	assert.Equal(t, "a", got[0].URL)
	assert.Equal(t, "c", got[2].URL)
}

func TestCrawlStopsOnCycle(t *testing.T) {
	t.Parallel()

	var calls []string
	// c points back to a, which was the start.
	pages := map[string]string{"a": "b", "b": "c", "c": "a"}
	c := &CrawlService{}

	got := c.Run(context.Background(), "a", 10, chainStep(pages, &calls))

	// Every page is visited exactly once; the cycle terminates the walk.
	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.Len(t, got, 3)
}

func TestCrawlStopsAtBudget(t *testing.T) {
	t.Parallel()

	var calls []string
	step := func(_ context.Context, pageURL string) ([]ChapterDescriptor, string, error) {
		calls = append(calls, pageURL)
		// An endless chain: page N links to page N+1.
		return []ChapterDescriptor{{URL: pageURL}}, fmt.Sprintf("p%d", len(calls)), nil
	}
	c := &CrawlService{}

	got := c.Run(context.Background(), "p0", 5, step)
	assert.Len(t, got, 5)
	assert.Len(t, calls, 5)

	// The hard cap holds even when the caller asks for more.
	calls = nil
	got = c.Run(context.Background(), "p0", 100000, step)
	assert.Len(t, got, 200)
}

func TestCrawlTruncatesOverfullLastPage(t *testing.T) {
	t.Parallel()

	step := func(_ context.Context, pageURL string) ([]ChapterDescriptor, string, error) {
		// One page yielding more chapters than the budget allows.
		out := make([]ChapterDescriptor, 8)
		for i := range out {
			out[i] = ChapterDescriptor{Number: float64(i + 1)}
		}
		return out, "", nil
	}
	c := &CrawlService{}

	got := c.Run(context.Background(), "a", 5, step)
	assert.Len(t, got, 5)
	assert.Equal(t, 5.0, got[4].Number)
}

func TestCrawlKeepsPartialResultsOnError(t *testing.T) {
	t.Parallel()

	step := func(_ context.Context, pageURL string) ([]ChapterDescriptor, string, error) {
		if pageURL == "bad" {
			return nil, "", fmt.Errorf("boom")
		}
		return []ChapterDescriptor{{URL: pageURL}}, "bad", nil
	}
	c := &CrawlService{}

	// The failing page does not discard what earlier pages produced.
	got := c.Run(context.Background(), "a", 10, step)
	assert.Len(t, got, 1)
	assert.Equal(t, "a", got[0].URL)
}

func TestCrawlHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	step := func(_ context.Context, pageURL string) ([]ChapterDescriptor, string, error) {
		t.Fatal("step must not run after cancellation")
		return nil, "", nil
	}
	c := &CrawlService{}

	got := c.Run(ctx, "a", 10, step)
	assert.Empty(t, got)
}
