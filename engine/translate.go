package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"Folium/errors"
	"Folium/utils"
)

// Usage reports translation quota consumption. Backends without a quota
// signal report Supported=false and zero counters.
type Usage struct {
	Used      int64   `json:"used"`
	Limit     int64   `json:"limit"`
	Percent   float64 `json:"percent"`
	Supported bool    `json:"supported"`
}

// Translator is the backend contract: translate one HTML chunk between
// two languages, enforcing the glossary for the pair when one exists.
type Translator interface {
	Translate(ctx context.Context, chunk, sourceLang, targetLang string) (string, error)
	Usage(ctx context.Context) (Usage, error)
}

// TranslatorService runs chunked, glossary-enforced translation on top of
// a backend. Chapters regularly exceed the per-request ceiling, so the
// input is split along block boundaries, translated chunk by chunk and
// reassembled; a failed chunk keeps its original text rather than losing
// part of the chapter.
type TranslatorService struct {
	Logger  *LoggerService
	Backend Translator
}

// NewTranslatorService selects the backend named by the config: "paid" is
// DeepL with server-side glossaries and usage accounting, "free" is the
// public Google endpoint with client-side term pinning and no usage
// signal.
func NewTranslatorService(cfg *Config, logger *LoggerService) (*TranslatorService, error) {
	var backend Translator
	switch cfg.TranslatorBackend {
	case "paid":
		backend = NewDeepLBackend(cfg.TranslatorAPIKey, logger)
	case "free":
		backend = NewGoogleBackend(logger)
	default:
		return nil, fmt.Errorf("unknown translator backend %q", cfg.TranslatorBackend)
	}
	return &TranslatorService{Logger: logger, Backend: backend}, nil
}

// TranslateHTML translates an HTML fragment, preserving its markup.
// Before starting it refuses when the backend reports an exhausted quota;
// per-chunk failures degrade to the original text.
func (t *TranslatorService) TranslateHTML(ctx context.Context, fragment, sourceLang, targetLang string) (string, error) {
	source := utils.APILanguage(sourceLang)
	if source == "" {
		source = "EN"
	}
	target := utils.APILanguage(targetLang)

	if usage, err := t.Backend.Usage(ctx); err == nil {
		if usage.Supported && usage.Limit > 0 && usage.Used >= usage.Limit {
			return "", errors.New(errors.KindQuotaExceeded, "translation quota exhausted (%d of %d characters)", usage.Used, usage.Limit)
		}
	} else if t.Logger != nil {
		t.Logger.Warn("Could not read translation usage: %v", err)
	}

	chunks := ChunkHTML(fragment, maxChunkSize)
	if len(chunks) == 0 {
		return fragment, nil
	}

	translated := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrap(errors.KindChunkFailed, err, "translation interrupted at chunk %d of %d", i+1, len(chunks))
		}

		out, err := t.Backend.Translate(ctx, chunk, source, target)
		if err != nil {
			if errors.IsKind(err, errors.KindQuotaExceeded) {
				return "", err
			}
			if t.Logger != nil {
				t.Logger.Error("Chunk %d of %d kept original: %v", i+1, len(chunks), err)
			}
			translated = append(translated, chunk)
			continue
		}
		translated = append(translated, out)
	}

	return strings.Join(translated, "\n"), nil
}

// Usage exposes the backend's quota counters.
func (t *TranslatorService) Usage(ctx context.Context) (Usage, error) {
	return t.Backend.Usage(ctx)
}

// ---- DeepL backend (paid) ----

// DeepLBackend speaks the DeepL v2 REST API. Keys issued for the free
// plan carry a ":fx" suffix and route to the api-free host; glossaries
// are created on first use per language pair and reused afterwards.
type DeepLBackend struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	Logger  *LoggerService

	mu         sync.Mutex
	glossaries map[string]string // "SOURCE→TARGET" → glossary id, "" = none
}

func NewDeepLBackend(apiKey string, logger *LoggerService) *DeepLBackend {
	base := "https://api.deepl.com"
	if strings.HasSuffix(apiKey, ":fx") {
		base = "https://api-free.deepl.com"
	}
	return &DeepLBackend{
		APIKey:     apiKey,
		BaseURL:    base,
		Client:     &http.Client{Timeout: 60 * time.Second},
		Logger:     logger,
		glossaries: make(map[string]string),
	}
}

func (d *DeepLBackend) Translate(ctx context.Context, chunk, sourceLang, targetLang string) (string, error) {
	form := url.Values{}
	form.Set("text", chunk)
	form.Set("source_lang", sourceLang)
	form.Set("target_lang", targetLang)
	form.Set("tag_handling", "html")
	form.Set("preserve_formatting", "1")
	form.Set("formality", "prefer_more")
	if id := d.glossaryID(ctx, sourceLang, targetLang); id != "" {
		form.Set("glossary_id", id)
	}

	var result struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := d.call(ctx, http.MethodPost, "/v2/translate", form, &result); err != nil {
		return "", err
	}
	if len(result.Translations) == 0 {
		return "", errors.New(errors.KindChunkFailed, "translation response carried no text")
	}
	return result.Translations[0].Text, nil
}

func (d *DeepLBackend) Usage(ctx context.Context) (Usage, error) {
	var result struct {
		CharacterCount int64 `json:"character_count"`
		CharacterLimit int64 `json:"character_limit"`
	}
	if err := d.call(ctx, http.MethodGet, "/v2/usage", nil, &result); err != nil {
		return Usage{}, err
	}
	u := Usage{
		Used:      result.CharacterCount,
		Limit:     result.CharacterLimit,
		Supported: true,
	}
	if u.Limit > 0 {
		u.Percent = float64(u.Used) / float64(u.Limit) * 100
	}
	return u, nil
}

// glossaryID returns the bound glossary for a language pair: create the
// built-in glossary on first use, and when creation fails (it already
// exists, or the plan forbids it) fall back to finding it by name.
// Failures degrade to translating without a glossary.
func (d *DeepLBackend) glossaryID(ctx context.Context, sourceLang, targetLang string) string {
	key := sourceLang + "→" + targetLang

	d.mu.Lock()
	id, ok := d.glossaries[key]
	d.mu.Unlock()
	if ok {
		return id
	}

	id = d.bindGlossary(ctx, sourceLang, targetLang)

	d.mu.Lock()
	d.glossaries[key] = id
	d.mu.Unlock()
	return id
}

func (d *DeepLBackend) bindGlossary(ctx context.Context, sourceLang, targetLang string) string {
	g := GlossaryFor(sourceLang, targetLang)
	if g == nil {
		return ""
	}

	form := url.Values{}
	form.Set("name", g.Name)
	form.Set("source_lang", sourceLang)
	form.Set("target_lang", targetLang)
	form.Set("entries", g.TSV())
	form.Set("entries_format", "tsv")

	var created struct {
		GlossaryID string `json:"glossary_id"`
	}
	if err := d.call(ctx, http.MethodPost, "/v2/glossaries", form, &created); err == nil {
		return created.GlossaryID
	} else if d.Logger != nil {
		d.Logger.Debug("Glossary create failed, looking up existing: %v", err)
	}

	var listed struct {
		Glossaries []struct {
			GlossaryID string `json:"glossary_id"`
			Name       string `json:"name"`
		} `json:"glossaries"`
	}
	if err := d.call(ctx, http.MethodGet, "/v2/glossaries", nil, &listed); err != nil {
		if d.Logger != nil {
			d.Logger.Warn("Translating without glossary: %v", err)
		}
		return ""
	}
	for _, g2 := range listed.Glossaries {
		if g2.Name == g.Name {
			return g2.GlossaryID
		}
	}
	if d.Logger != nil {
		d.Logger.Warn("Glossary %q not found, translating without it", g.Name)
	}
	return ""
}

func (d *DeepLBackend) call(ctx context.Context, method, path string, form url.Values, result interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, d.BaseURL+path, body)
	if err != nil {
		return errors.Wrap(errors.KindChunkFailed, err, "invalid request")
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.APIKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return errors.Wrap(errors.KindChunkFailed, err, "translation request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// 456 is DeepL's quota-exhausted status.
	if resp.StatusCode == 456 {
		return errors.New(errors.KindQuotaExceeded, "translation quota exhausted")
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e := errors.New(errors.KindChunkFailed, "translation API returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
		e.Status = resp.StatusCode
		return e
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return errors.Wrap(errors.KindChunkFailed, err, "malformed translation response")
	}
	return nil
}

// ---- Google backend (free) ----

// GoogleBackend uses the public translate_a/single endpoint. There is no
// glossary support and no usage endpoint, so glossary terms are pinned to
// placeholders around the call and Usage reports Supported=false.
type GoogleBackend struct {
	BaseURL string
	Client  *http.Client
	Logger  *LoggerService
}

func NewGoogleBackend(logger *LoggerService) *GoogleBackend {
	return &GoogleBackend{
		BaseURL: "https://translate.googleapis.com",
		Client:  &http.Client{Timeout: 60 * time.Second},
		Logger:  logger,
	}
}

func (g *GoogleBackend) Translate(ctx context.Context, chunk, sourceLang, targetLang string) (string, error) {
	var pinned map[string]string
	if gl := GlossaryFor(sourceLang, targetLang); gl != nil {
		chunk, pinned = gl.Pin(chunk)
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", strings.ToLower(sourceLang))
	q.Set("tl", strings.ToLower(targetLang))
	q.Set("dt", "t")
	q.Set("q", chunk)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"/translate_a/single?"+q.Encode(), nil)
	if err != nil {
		return "", errors.Wrap(errors.KindChunkFailed, err, "invalid request")
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.KindChunkFailed, err, "translation request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		e := errors.New(errors.KindChunkFailed, "translation endpoint returned %s", resp.Status)
		e.Status = resp.StatusCode
		return "", e
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(errors.KindChunkFailed, err, "failed to read response")
	}

	out, err := decodeGoogleResponse(data)
	if err != nil {
		return "", err
	}
	return Restore(out, pinned), nil
}

func (g *GoogleBackend) Usage(context.Context) (Usage, error) {
	return Usage{Supported: false}, nil
}

// decodeGoogleResponse unpacks the endpoint's nested-array payload: the
// first element lists segments, each segment's first element is its
// translated text.
func decodeGoogleResponse(data []byte) (string, error) {
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) == 0 {
		return "", errors.New(errors.KindChunkFailed, "malformed translation response")
	}
	segments, ok := raw[0].([]interface{})
	if !ok {
		return "", errors.New(errors.KindChunkFailed, "malformed translation response")
	}

	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]interface{})
		if !ok || len(parts) == 0 {
			continue
		}
		if text, ok := parts[0].(string); ok {
			b.WriteString(text)
		}
	}
	return b.String(), nil
}
