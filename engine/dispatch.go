package engine

import (
	"context"

	"Folium/errors"
	"Folium/utils"
)

// The four dispatcher operations below are the only surface the CLI and
// library layers call; everything else hangs off the services.

// RefreshMetadata scrapes a work's landing page through its source adapter
func (e *Engine) RefreshMetadata(ctx context.Context, source, workURL string) (*WorkMetadata, error) {
	adapter, err := e.ResolveAdapter(source)
	if err != nil {
		return nil, err
	}
	e.Logger.Info("Refreshing metadata via %s: %s", adapter.ID(), workURL)
	return adapter.Info(ctx, workURL)
}

// DiscoverChapters lists a work's chapters through its source adapter
func (e *Engine) DiscoverChapters(ctx context.Context, source, workURL string, opts DiscoverOptions) ([]ChapterDescriptor, error) {
	adapter, err := e.ResolveAdapter(source)
	if err != nil {
		return nil, err
	}
	e.Logger.Info("Discovering chapters via %s: %s", adapter.ID(), workURL)
	return adapter.Discover(ctx, workURL, opts)
}

// GetChapter materializes one chapter, translating text bodies when asked.
// Materialization is store-first inside the adapter; translations are
// cached under the target language so repeat reads stay offline.
func (e *Engine) GetChapter(ctx context.Context, source string, work WorkRef, ch ChapterRef, opts ChapterOptions) (*ContentEnvelope, error) {
	adapter, err := e.ResolveAdapter(source)
	if err != nil {
		return nil, err
	}

	envelope, err := adapter.Materialize(ctx, work, ch)
	if err != nil {
		return nil, err
	}
	if !opts.Translate || envelope.Kind != KindText {
		return envelope, nil
	}

	target := opts.TargetLang
	if target == "" {
		target = e.Config.TargetLanguage
	}
	normalized, err := utils.NormalizeLanguage(target)
	if err != nil {
		return nil, err
	}
	if utils.SameLanguage(work.Language, normalized) {
		return envelope, nil
	}

	if cached, err := e.Store.Get(work, ch.Number, FormatRaw, normalized); err == nil {
		translated := *envelope
		translated.Body = string(cached)
		translated.FromCache = true
		return &translated, nil
	} else if !errors.Is(err, errors.ErrStoreMissing) {
		return nil, err
	}

	body, err := e.Translator.TranslateHTML(ctx, envelope.Body, work.Language, normalized)
	if err != nil {
		return nil, err
	}
	if _, err := e.Store.Put(work, ch.Number, FormatRaw, normalized, []byte(body)); err != nil {
		e.Logger.Warn("Could not cache translation of chapter %s: %v", utils.FormatChapterNumber(ch.Number), err)
	}

	translated := *envelope
	translated.Body = body
	translated.FromCache = false
	return &translated, nil
}

// BuildBundle packages the selected chapters of a work into an EPUB
func (e *Engine) BuildBundle(ctx context.Context, source string, work WorkRef, descriptors []ChapterDescriptor, sel Selection, translate bool, targetLang string) (*BundleResult, error) {
	adapter, err := e.ResolveAdapter(source)
	if err != nil {
		return nil, err
	}
	if targetLang == "" {
		targetLang = e.Config.TargetLanguage
	}
	return e.Bundler.Build(ctx, adapter, work, descriptors, sel, translate, targetLang)
}
