package adapters

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"Folium/engine"
	"Folium/errors"
	"Folium/utils"
)

// resolveURL resolves href against base. Absolute hrefs pass through, and
// anything that refuses to parse is returned as-is rather than dropped.
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

// sortChapters orders descriptors ascending by chapter number.
func sortChapters(chapters []engine.ChapterDescriptor) {
	sort.Slice(chapters, func(i, j int) bool {
		return chapters[i].Number < chapters[j].Number
	})
}

// dedupeChapters drops descriptors whose URL was already seen, keeping
// the first occurrence. Index pages that list a chapter twice (a "latest"
// row plus the full list) would otherwise double it.
func dedupeChapters(chapters []engine.ChapterDescriptor) []engine.ChapterDescriptor {
	seen := make(map[string]bool, len(chapters))
	kept := chapters[:0]
	for _, ch := range chapters {
		if seen[ch.URL] {
			continue
		}
		seen[ch.URL] = true
		kept = append(kept, ch)
	}
	return kept
}

// truncateChapters dedupes, sorts and bounds a discovery result to the
// normalized chapter budget.
func truncateChapters(chapters []engine.ChapterDescriptor, max int) []engine.ChapterDescriptor {
	chapters = dedupeChapters(chapters)
	sortChapters(chapters)
	if limit := engine.DiscoverLimit(max); len(chapters) > limit {
		return chapters[:limit]
	}
	return chapters
}

// materializeText wraps a text fetch in the store-first protocol: a cached
// raw artifact short-circuits the network entirely, and a fresh body is
// cached before it is returned.
func materializeText(ctx context.Context, e *engine.Engine, work engine.WorkRef, ch engine.ChapterRef, fetch func(context.Context) (string, error)) (*engine.ContentEnvelope, error) {
	if data, err := e.Store.Get(work, ch.Number, engine.FormatRaw, work.Language); err == nil {
		return &engine.ContentEnvelope{Kind: engine.KindText, Body: string(data), FromCache: true}, nil
	} else if !errors.Is(err, errors.ErrStoreMissing) {
		return nil, err
	}

	body, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := e.Store.Put(work, ch.Number, engine.FormatRaw, work.Language, []byte(body)); err != nil {
		e.Logger.Warn("Could not cache chapter %s: %v", utils.FormatChapterNumber(ch.Number), err)
	}
	return &engine.ContentEnvelope{Kind: engine.KindText, Body: body}, nil
}

// materializeComic is the comic counterpart: a stored manifest wins, a
// fresh one has its images mirrored to disk on the way through.
func materializeComic(ctx context.Context, e *engine.Engine, work engine.WorkRef, ch engine.ChapterRef, fetch func(context.Context) (*engine.ComicManifest, error)) (*engine.ContentEnvelope, error) {
	if manifest, err := e.Store.GetManifest(work, ch.Number); err == nil {
		return &engine.ContentEnvelope{Kind: engine.KindComic, Images: manifest.Images, Total: manifest.Total, FromCache: true}, nil
	} else if !errors.Is(err, errors.ErrStoreMissing) {
		return nil, err
	}

	manifest, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := e.Store.PutManifest(ctx, work, manifest); err != nil {
		return nil, err
	}
	return &engine.ContentEnvelope{Kind: engine.KindComic, Images: manifest.Images, Total: manifest.Total}, nil
}
